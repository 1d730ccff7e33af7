package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/revision/internal/domain"
)

// timeLayout is RFC 3339 with fixed nanosecond width, so UTC values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// record is the persisted form of a CardState. The card ID is the map key.
type record struct {
	Question     string        `json:"question"`
	Answer       string        `json:"answer"`
	Repetitions  int           `json:"repetitions"`
	Interval     int           `json:"interval"`
	EaseFactor   json.Number   `json:"ease_factor"`
	LastReviewed *string       `json:"last_reviewed"`
	NextReview   string        `json:"next_review"`
	Grade        *domain.Grade `json:"grade,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts ISO 8601 timestamps without an offset, read as local
// time, which is how progress files from older versions were written.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	if local, lerr := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local); lerr == nil {
		return local, nil
	}
	return time.Time{}, err
}

// formatEase always keeps a fractional digit, so 2 is written as 2.0.
func formatEase(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func toRecord(cs domain.CardState) record {
	r := record{
		Question:    cs.Question,
		Answer:      cs.Answer,
		Repetitions: cs.Repetitions,
		Interval:    cs.Interval,
		EaseFactor:  json.Number(formatEase(cs.EaseFactor)),
		NextReview:  formatTime(cs.NextReview),
		Grade:       cs.Grade,
	}
	if cs.LastReviewed != nil {
		s := formatTime(*cs.LastReviewed)
		r.LastReviewed = &s
	}
	return r
}

func fromRecord(id string, r record) (domain.CardState, error) {
	ease, err := r.EaseFactor.Float64()
	if err != nil {
		return domain.CardState{}, fmt.Errorf("%w: %s: ease factor %q", domain.ErrMalformedCardState, id, r.EaseFactor)
	}
	next, err := parseTime(r.NextReview)
	if err != nil {
		return domain.CardState{}, fmt.Errorf("%w: %s: next review: %v", domain.ErrMalformedCardState, id, err)
	}
	cs := domain.CardState{
		ID:          id,
		Question:    r.Question,
		Answer:      r.Answer,
		Repetitions: r.Repetitions,
		Interval:    r.Interval,
		EaseFactor:  ease,
		NextReview:  next,
		Grade:       r.Grade,
	}
	if r.LastReviewed != nil {
		last, err := parseTime(*r.LastReviewed)
		if err != nil {
			return domain.CardState{}, fmt.Errorf("%w: %s: last reviewed: %v", domain.ErrMalformedCardState, id, err)
		}
		cs.LastReviewed = &last
	}
	return cs, nil
}

// Marshal encodes a collection as indented JSON keyed by card ID.
func Marshal(cards map[string]domain.CardState) ([]byte, error) {
	records := make(map[string]record, len(cards))
	for id, cs := range cards {
		records[id] = toRecord(cs)
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode progress: %w", err)
	}
	return data, nil
}

// Unmarshal decodes the output of Marshal. Records that cannot be decoded are
// skipped with a warning so one bad entry does not hide the rest of the deck.
func Unmarshal(data []byte) (map[string]domain.CardState, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	cards := make(map[string]domain.CardState, len(raw))
	for id, msg := range raw {
		cs, err := decodeRecord(id, msg)
		if err != nil {
			slog.Warn("Skipping malformed card record", "id", id, "error", err)
			continue
		}
		cards[id] = cs
	}
	return cards, nil
}

func decodeRecord(id string, msg []byte) (domain.CardState, error) {
	var r record
	if err := json.Unmarshal(msg, &r); err != nil {
		return domain.CardState{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedCardState, id, err)
	}
	return fromRecord(id, r)
}

func encodeRecord(cs domain.CardState) ([]byte, error) {
	data, err := json.Marshal(toRecord(cs))
	if err != nil {
		return nil, fmt.Errorf("failed to encode card %s: %w", cs.ID, err)
	}
	return data, nil
}
