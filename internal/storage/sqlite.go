package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/conorfennell/revision/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// SQLiteStore keeps the collection in a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens the database at dsn and ensures the schema is up to date.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases consistent and avoids
	// writer contention on files.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &SQLiteStore{conn: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Load reads every card state. Rows that fail to decode are skipped.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]domain.CardState, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, question, answer, repetitions, interval_days, ease_factor, last_reviewed, next_review, grade
		FROM card_states
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load card states: %w", err)
	}
	defer rows.Close()

	cards := make(map[string]domain.CardState)
	for rows.Next() {
		var (
			id       string
			r        record
			ease     float64
			lastSeen sql.NullString
			grade    sql.NullString
		)
		if err := rows.Scan(&id, &r.Question, &r.Answer, &r.Repetitions, &r.Interval, &ease, &lastSeen, &r.NextReview, &grade); err != nil {
			return nil, fmt.Errorf("failed to scan card state row: %w", err)
		}
		r.EaseFactor = json.Number(formatEase(ease))
		if lastSeen.Valid {
			r.LastReviewed = &lastSeen.String
		}
		if grade.Valid {
			g, err := domain.ParseGrade(grade.String)
			if err != nil {
				slog.Warn("Skipping card with unknown grade", "id", id, "grade", grade.String)
				continue
			}
			r.Grade = &g
		}

		cs, err := fromRecord(id, r)
		if err != nil {
			slog.Warn("Skipping malformed card row", "id", id, "error", err)
			continue
		}
		cards[id] = cs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read card states: %w", err)
	}
	return cards, nil
}

// Save replaces the stored collection in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, cards map[string]domain.CardState) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM card_states`); err != nil {
		return fmt.Errorf("failed to clear card states: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO card_states (id, question, answer, repetitions, interval_days, ease_factor, last_reviewed, next_review, grade)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for id, cs := range cards {
		r := toRecord(cs)
		var lastSeen, grade sql.NullString
		if r.LastReviewed != nil {
			lastSeen = sql.NullString{String: *r.LastReviewed, Valid: true}
		}
		if cs.Grade != nil {
			grade = sql.NullString{String: cs.Grade.String(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, r.Question, r.Answer, r.Repetitions, r.Interval, cs.EaseFactor, lastSeen, r.NextReview, grade); err != nil {
			return fmt.Errorf("failed to insert card %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit card states: %w", err)
	}
	return nil
}

// Export returns the stored collection as indented JSON.
func (s *SQLiteStore) Export(ctx context.Context) ([]byte, error) {
	cards, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Marshal(cards)
}
