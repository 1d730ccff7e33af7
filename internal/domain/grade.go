package domain

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Grade is the learner's self-assessed recall for a review.
// The zero value is not a valid grade.
type Grade int

const (
	Again Grade = iota + 1 // Forgotten.
	Hard                   // Recalled with significant difficulty.
	Good                   // Recalled with some effort.
	Easy                   // Recalled effortlessly.
)

var (
	gradeNames  = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}
	gradeByName = map[string]Grade{
		"Again": Again,
		"Hard":  Hard,
		"Good":  Good,
		"Easy":  Easy,
	}
)

var (
	_ fmt.Stringer             = Grade(0)
	_ json.Marshaler           = Grade(0)
	_ json.Unmarshaler         = (*Grade)(nil)
	_ encoding.TextMarshaler   = Grade(0)
	_ encoding.TextUnmarshaler = (*Grade)(nil)
)

// Grades lists every valid grade in ascending order.
func Grades() []Grade {
	return []Grade{Again, Hard, Good, Easy}
}

// ParseGrade returns the grade with the given name ("Again", "Hard", "Good", "Easy").
func ParseGrade(name string) (Grade, error) {
	var g Grade
	if err := g.UnmarshalText([]byte(name)); err != nil {
		return 0, err
	}
	return g, nil
}

func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// IsValid reports whether g is one of Again, Hard, Good or Easy.
func (g Grade) IsValid() bool {
	return g >= Again && g <= Easy
}

func (g Grade) MarshalText() ([]byte, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}
	return []byte(gradeNames[g]), nil
}

func (g *Grade) UnmarshalText(text []byte) error {
	v, ok := gradeByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidGrade, text)
	}
	*g = v
	return nil
}

// MarshalJSON encodes the grade as its name.
func (g Grade) MarshalJSON() ([]byte, error) {
	text, err := g.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

func (g *Grade) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidGrade, data)
	}
	return g.UnmarshalText([]byte(s))
}
