package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultQuestions is how many questions Questions asks for when n is not positive.
const DefaultQuestions = 10

// ErrEmptyNote is returned when there is nothing to generate questions from.
var ErrEmptyNote = errors.New("note is empty")

// Generator turns a prompt into text. Implementations may fail per call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Prompt builds the request for a single flashcard question about note.
func Prompt(note string) string {
	return fmt.Sprintf(
		"Generate a single flashcard question from the following note: %s. "+
			"Question must be different from previous questions generated.", note)
}

// Options controls Questions.
type Options struct {
	Count    int           // questions to request; DefaultQuestions when <= 0
	Attempts int           // tries per question; 1 when <= 0
	Backoff  time.Duration // wait between tries
}

// Questions asks gen for opts.Count questions about note, one call each.
// A call is retried up to opts.Attempts times. When a question still cannot
// be generated, Questions stops and returns what it has so far with the error.
func Questions(ctx context.Context, gen Generator, note string, opts Options) ([]string, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrEmptyNote
	}
	count := opts.Count
	if count <= 0 {
		count = DefaultQuestions
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	prompt := Prompt(note)
	questions := make([]string, 0, count)
	for i := 0; i < count; i++ {
		q, err := generateOne(ctx, gen, prompt, attempts, opts.Backoff)
		if err != nil {
			return questions, fmt.Errorf("failed to generate question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func generateOne(ctx context.Context, gen Generator, prompt string, attempts int, backoff time.Duration) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := gen.Generate(ctx, prompt)
		if err == nil {
			if text = strings.TrimSpace(text); text != "" {
				return text, nil
			}
			err = errors.New("empty response")
		}
		lastErr = err
		slog.Warn("Question generation failed", "attempt", attempt, "error", err)

		if attempt < attempts && backoff > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", lastErr
}
