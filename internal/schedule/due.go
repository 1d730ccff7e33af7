package schedule

import (
	"sort"
	"time"

	"github.com/conorfennell/revision/internal/domain"
)

// DueCards returns the cards whose next review falls on or before the
// calendar date of asOf, compared in asOf's location. Records without a next
// review are skipped. The result is ordered by next review, then by ID.
func DueCards(cards map[string]domain.CardState, asOf time.Time) []domain.CardState {
	today := civilDate(asOf, asOf.Location())

	var due []domain.CardState
	for _, cs := range cards {
		if cs.NextReview.IsZero() {
			continue
		}
		if !civilDate(cs.NextReview, asOf.Location()).After(today) {
			due = append(due, cs)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextReview.Equal(due[j].NextReview) {
			return due[i].NextReview.Before(due[j].NextReview)
		}
		return due[i].ID < due[j].ID
	})
	return due
}

// civilDate truncates t to midnight of its date in loc.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
