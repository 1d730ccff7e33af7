package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultEaseFactor is the ease every new card starts with.
	DefaultEaseFactor = 2.5
	// MinEaseFactor is the floor the ease factor never drops below.
	MinEaseFactor = 1.3
)

// Offsets applied to the creation time so a new card is due immediately.
const (
	SeedOffset   = 24 * time.Hour // initial deck load
	ImportOffset = time.Minute    // cards added by import
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Card is a question/answer pair before it has any scheduling state.
type Card struct {
	Question string
	Answer   string
}

// CardState is the scheduling record of a single card.
// LastReviewed and Grade stay nil until the first review.
type CardState struct {
	ID           string `validate:"required"`
	Question     string `validate:"required"`
	Answer       string
	Repetitions  int     `validate:"gte=0"`
	Interval     int     `validate:"gte=0"`
	EaseFactor   float64 `validate:"gte=1.3"`
	LastReviewed *time.Time
	NextReview   time.Time `validate:"required"`
	Grade        *Grade
}

// NewCardState creates the initial state for a card, due offset before now.
func NewCardState(id string, card Card, now time.Time, offset time.Duration) CardState {
	return CardState{
		ID:         id,
		Question:   card.Question,
		Answer:     card.Answer,
		EaseFactor: DefaultEaseFactor,
		NextReview: now.Add(-offset),
	}
}

// Reviewed reports whether the card has been graded at least once.
func (c CardState) Reviewed() bool {
	return c.LastReviewed != nil
}

// Validate checks the record against the CardState invariants.
func (c CardState) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedCardState, c.ID, err)
	}
	if c.Grade != nil && !c.Grade.IsValid() {
		return fmt.Errorf("%w: %s: %v", ErrMalformedCardState, c.ID, *c.Grade)
	}
	return nil
}
