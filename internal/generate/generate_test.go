package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
)

func TestPrompt(t *testing.T) {
	p := Prompt("Mitochondria produce ATP")
	if !strings.Contains(p, "following note: Mitochondria produce ATP.") {
		t.Errorf("Expected the note to be embedded in the prompt, but got %q", p)
	}
	if !strings.Contains(p, "different from previous questions") {
		t.Errorf("Expected the prompt to ask for distinct questions, but got %q", p)
	}
}

func TestQuestions(t *testing.T) {
	calls := 0
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return fmt.Sprintf("  Question %d?\n", calls), nil
	})

	got, err := Questions(context.Background(), gen, "note", Options{Count: 3})
	if err != nil {
		t.Fatalf("Questions() returned an unexpected error: %v", err)
	}
	want := []string{"Question 1?", "Question 2?", "Question 3?"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %v, but got %v", want, got)
	}
}

func TestQuestionsDefaultsToTen(t *testing.T) {
	calls := 0
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "q", nil
	})
	got, err := Questions(context.Background(), gen, "note", Options{})
	if err != nil || len(got) != DefaultQuestions || calls != DefaultQuestions {
		t.Errorf("Expected %d questions, but got %d (calls %d, err %v)", DefaultQuestions, len(got), calls, err)
	}
}

func TestQuestionsStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	calls := 0
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		if calls == 3 {
			return "", boom
		}
		return "q", nil
	})

	got, err := Questions(context.Background(), gen, "note", Options{Count: 5})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the generator error, but got %v", err)
	}
	if !strings.Contains(err.Error(), "question 3") {
		t.Errorf("Expected the error to name question 3, but got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected the 2 questions generated before the failure, but got %v", got)
	}
	if calls != 3 {
		t.Errorf("Expected generation to stop after the failure, but got %d calls", calls)
	}
}

func TestQuestionsRetries(t *testing.T) {
	calls := 0
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		switch calls {
		case 1:
			return "", errors.New("transient")
		case 2:
			return "   ", nil
		default:
			return "recovered?", nil
		}
	})

	got, err := Questions(context.Background(), gen, "note", Options{Count: 1, Attempts: 3, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("Questions() returned an unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "recovered?" || calls != 3 {
		t.Errorf("Expected one recovered question after 3 calls, but got %v after %d", got, calls)
	}
}

func TestQuestionsHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		cancel()
		return "", errors.New("unavailable")
	})

	_, err := Questions(ctx, gen, "note", Options{Count: 1, Attempts: 5, Backoff: time.Hour})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, but got %v", err)
	}
}

func TestQuestionsEmptyNote(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		t.Fatal("generator should not be called")
		return "", nil
	})
	if _, err := Questions(context.Background(), gen, "  \n", Options{}); !errors.Is(err, ErrEmptyNote) {
		t.Errorf("Expected ErrEmptyNote, but got %v", err)
	}
}

func TestExtractText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("What is "), genai.Text("ATP?")}}},
			{Content: nil},
		},
	}
	if got := extractText(resp); got != "What is ATP?" {
		t.Errorf("Expected 'What is ATP?', but got %q", got)
	}
}
