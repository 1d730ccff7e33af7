package review

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/revision/internal/domain"
	"github.com/conorfennell/revision/internal/knol"
	"github.com/conorfennell/revision/internal/schedule"
	"github.com/conorfennell/revision/internal/storage"
)

// Session holds the collection in memory between store round trips.
// Every change is written back with a whole-collection Save.
type Session struct {
	mu     sync.Mutex
	store  storage.ProgressStore
	params *schedule.Params
	now    func() time.Time
	cards  map[string]domain.CardState

	// excluded holds records that failed validation, keyed as loaded. They
	// are written back unchanged on every Save.
	excluded map[string]domain.CardState
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithParams replaces schedule.DefaultParams.
func WithParams(p *schedule.Params) Option {
	return func(s *Session) { s.params = p }
}

// Open loads the collection from store.
//
// Records that fail validation are left out of the session with a warning
// and kept in the store. Records stored under a key other than the hash of
// their question, as progress files keyed by question text are, move to
// that hash; a record whose hash is already taken is left out like a
// malformed one.
func Open(ctx context.Context, store storage.ProgressStore, opts ...Option) (*Session, error) {
	s := &Session{
		store:  store,
		params: schedule.DefaultParams(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.params.Validate(); err != nil {
		return nil, err
	}

	cards, err := store.Load(ctx)
	if err != nil {
		return nil, &CollaboratorError{Op: "load progress", Err: err}
	}
	s.cards = make(map[string]domain.CardState, len(cards))
	s.excluded = make(map[string]domain.CardState)
	var rekey []string
	for key, cs := range cards {
		cs.ID = key
		if err := cs.Validate(); err != nil {
			slog.Warn("Excluding malformed card", "id", key, "error", err)
			s.excluded[key] = cs
			continue
		}
		if knol.ID(cs.Question) != key {
			rekey = append(rekey, key)
			continue
		}
		s.cards[key] = cs
	}

	sort.Strings(rekey)
	for _, key := range rekey {
		cs := cards[key]
		cs.ID = knol.ID(cs.Question)
		if _, taken := s.cards[cs.ID]; taken {
			slog.Warn("Excluding duplicate card", "key", key, "id", knol.ShortID(cs.ID))
			cs.ID = key
			s.excluded[key] = cs
			continue
		}
		slog.Info("Re-keying card by question hash", "key", key, "id", knol.ShortID(cs.ID))
		s.cards[cs.ID] = cs
	}
	slog.Debug("Session opened", "cards", len(s.cards), "excluded", len(s.excluded))
	return s, nil
}

// Len returns the number of cards in the session.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cards)
}

// Card returns the state of one card.
func (s *Session) Card(id string) (domain.CardState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.cards[id]
	return cs, ok
}

// Cards returns a copy of the collection.
func (s *Session) Cards() map[string]domain.CardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.cards)
}

// Due returns the cards due today.
func (s *Session) Due() []domain.CardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schedule.DueCards(s.cards, s.now())
}

// Grade schedules the card's next review and saves the collection.
// If the save fails the new state is kept in memory and a CollaboratorError
// is returned alongside it.
func (s *Session) Grade(ctx context.Context, id string, grade domain.Grade) (domain.CardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.cards[id]
	if !ok {
		return domain.CardState{}, fmt.Errorf("%w: %s", ErrUnknownCard, id)
	}
	next, err := s.params.NextState(current, grade, s.now())
	if err != nil {
		return domain.CardState{}, err
	}
	s.cards[id] = next

	slog.Info("Card reviewed",
		"id", knol.ShortID(id),
		"grade", grade,
		"interval", next.Interval,
		"ease_factor", next.EaseFactor,
	)
	return next, s.save(ctx)
}

// Seed fills an empty collection with the given cards, due a day ago.
// It does nothing when the session already has cards.
func (s *Session) Seed(ctx context.Context, cards []domain.Card) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cards) > 0 {
		return 0, nil
	}
	now := s.now()
	for _, c := range cards {
		id := knol.ID(c.Question)
		s.cards[id] = domain.NewCardState(id, c, now, domain.SeedOffset)
	}
	return len(s.cards), s.save(ctx)
}

// Import adds cards, due a minute ago. A card whose ID already exists is
// replaced and its progress reset.
func (s *Session) Import(ctx context.Context, cards []domain.Card) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cards) == 0 {
		return 0, nil
	}
	now := s.now()
	for _, c := range cards {
		id := knol.ID(c.Question)
		s.cards[id] = domain.NewCardState(id, c, now, domain.ImportOffset)
	}
	return len(cards), s.save(ctx)
}

// AddNew adds only the cards whose ID is not in the collection yet, keeping
// the progress of known cards. It returns the number added.
func (s *Session) AddNew(ctx context.Context, cards []domain.Card) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	added := 0
	for _, c := range cards {
		id := knol.ID(c.Question)
		if _, ok := s.cards[id]; ok {
			continue
		}
		s.cards[id] = domain.NewCardState(id, c, now, domain.ImportOffset)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, s.save(ctx)
}

// Export returns the store's serialized collection.
func (s *Session) Export(ctx context.Context) ([]byte, error) {
	data, err := s.store.Export(ctx)
	if err != nil {
		return nil, &CollaboratorError{Op: "export progress", Err: err}
	}
	return data, nil
}

// save must be called with s.mu held.
func (s *Session) save(ctx context.Context) error {
	all := make(map[string]domain.CardState, len(s.excluded)+len(s.cards))
	maps.Copy(all, s.excluded)
	maps.Copy(all, s.cards)
	if err := s.store.Save(ctx, all); err != nil {
		slog.Error("Failed to save progress", "error", err)
		return &CollaboratorError{Op: "save progress", Err: err}
	}
	return nil
}
