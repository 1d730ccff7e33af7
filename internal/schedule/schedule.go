package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/revision/internal/domain"
)

// Params holds the constants of the scheduling algorithm.
type Params struct {
	HardMultiplier float64 // interval growth on Hard
	GoodMultiplier float64 // interval growth on Good
	EasyMultiplier float64 // interval growth on Easy

	AgainPenalty float64 // ease lost on Again
	HardPenalty  float64 // ease lost on Hard
	GoodBonus    float64 // ease gained on Good
	EasyBonus    float64 // ease gained on Easy

	MinEase float64

	// FirstInterval replaces the interval of the first successful Good or
	// Easy review. Hard never receives it.
	FirstInterval int

	// MaxInterval caps the interval in days so the next review stays a
	// representable date.
	MaxInterval int
}

// DefaultParams returns the parameters the scheduler ships with.
func DefaultParams() *Params {
	return &Params{
		HardMultiplier: 1.1,
		GoodMultiplier: 1.2,
		EasyMultiplier: 1.3,
		AgainPenalty:   0.2,
		HardPenalty:    0.15,
		GoodBonus:      0.1,
		EasyBonus:      0.15,
		MinEase:        domain.MinEaseFactor,
		FirstInterval:  6,
		MaxInterval:    MaxInterval,
	}
}

// Validate rejects parameters that would break the CardState invariants.
func (p *Params) Validate() error {
	multipliers := []struct {
		name  string
		value float64
	}{
		{"hard multiplier", p.HardMultiplier},
		{"good multiplier", p.GoodMultiplier},
		{"easy multiplier", p.EasyMultiplier},
	}
	for _, m := range multipliers {
		if m.value <= 0 {
			return fmt.Errorf("%w: %s %v must be positive", ErrInvalidParams, m.name, m.value)
		}
	}
	if p.MinEase < domain.MinEaseFactor {
		return fmt.Errorf("%w: minimum ease %v below %v", ErrInvalidParams, p.MinEase, domain.MinEaseFactor)
	}
	if p.FirstInterval < 1 {
		return fmt.Errorf("%w: first interval %d must be at least 1", ErrInvalidParams, p.FirstInterval)
	}
	if p.MaxInterval < p.FirstInterval || p.MaxInterval > MaxInterval {
		return fmt.Errorf("%w: max interval %d must be between %d and %d", ErrInvalidParams, p.MaxInterval, p.FirstInterval, MaxInterval)
	}
	return nil
}

// NextState computes the state of a card after it is graded at now.
// The input is not modified. On error the zero CardState is returned.
//
// The interval is rounded half-to-even after every review, so the multipliers
// compound on the stored whole-day interval rather than on a hidden real value.
func (p *Params) NextState(current domain.CardState, grade domain.Grade, now time.Time) (domain.CardState, error) {
	if !grade.IsValid() {
		return domain.CardState{}, fmt.Errorf("%w: %v", domain.ErrInvalidGrade, grade)
	}
	if err := current.Validate(); err != nil {
		return domain.CardState{}, err
	}

	repetitions := current.Repetitions
	interval := float64(current.Interval)
	ease := current.EaseFactor

	switch grade {
	case domain.Again:
		repetitions = 0
		interval = 1
		ease = math.Max(p.MinEase, ease-p.AgainPenalty)
	case domain.Hard:
		repetitions++
		interval *= p.HardMultiplier
		ease = math.Max(p.MinEase, ease-p.HardPenalty)
	case domain.Good:
		repetitions++
		interval *= p.GoodMultiplier
		if repetitions == 1 {
			interval = float64(p.FirstInterval)
		}
		ease += p.GoodBonus
	case domain.Easy:
		repetitions++
		interval *= p.EasyMultiplier
		if repetitions == 1 {
			interval = float64(p.FirstInterval)
		}
		ease += p.EasyBonus
	}

	if grade != domain.Again && interval < 1 {
		interval = 1
	}
	maxInterval := p.MaxInterval
	if maxInterval <= 0 {
		maxInterval = MaxInterval
	}
	if interval > float64(maxInterval) {
		interval = float64(maxInterval)
	}
	days := int(math.RoundToEven(interval))

	reviewed := now
	g := grade
	next := current
	next.Repetitions = repetitions
	next.Interval = days
	next.EaseFactor = ease
	next.LastReviewed = &reviewed
	next.NextReview = DueDate(now, days)
	next.Grade = &g
	return next, nil
}

// NextState applies DefaultParams.
func NextState(current domain.CardState, grade domain.Grade, now time.Time) (domain.CardState, error) {
	return defaultParams.NextState(current, grade, now)
}

var defaultParams = DefaultParams()

// MaxInterval is the longest interval in days, 100 years.
const MaxInterval = 36500

// DueDate is reviewed plus the given number of calendar days.
func DueDate(reviewed time.Time, days int) time.Time {
	return reviewed.AddDate(0, 0, days)
}
