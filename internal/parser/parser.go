package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/revision/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	separator      = "---"
)

// ErrMissingAnswer marks a question that has no answer block.
var ErrMissingAnswer = errors.New("question has no answer")

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
)

// ParseFile reads a deck file from the given path and extracts its cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a deck in the "Q: ... / A: ..." format. Either block may span
// several lines; a new "Q:" or a "---" line ends the current card.
//
// Questions without an answer are left out and reported in the returned error
// next to the cards that did parse.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var (
		cards    []domain.Card
		problems []error
		current  domain.Card
		block    []string
		started  int
		lineNo   int
	)
	currentState := seeking

	flushBlock := func() {
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		switch {
		case current.Question == "":
		case current.Answer == "":
			problems = append(problems, fmt.Errorf("line %d: %w: %q", started, ErrMissingAnswer, current.Question))
		default:
			cards = append(cards, current)
		}
		current = domain.Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		switch {
		case strings.TrimSpace(line) == separator:
			finishCard()
		case strings.HasPrefix(line, questionPrefix):
			finishCard()
			currentState = readingQuestion
			started = lineNo
			block = append(block, trimPrefix(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix) && currentState != seeking:
			flushBlock()
			currentState = readingAnswer
			block = append(block, trimPrefix(line, answerPrefix))
		case currentState != seeking:
			block = append(block, line)
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, errors.Join(problems...)
}

// trimPrefix removes the marker and at most one following space.
func trimPrefix(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}
