package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/conorfennell/revision/internal/config"
	"github.com/conorfennell/revision/internal/domain"
	"github.com/conorfennell/revision/internal/knol"
	"github.com/conorfennell/revision/internal/review"
	"github.com/conorfennell/revision/internal/storage"
)

func TestResolveID(t *testing.T) {
	ctx := context.Background()
	session, err := review.Open(ctx, storage.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	cards := []domain.Card{{Question: "q", Answer: "a"}, {Question: "r", Answer: "b"}}
	if _, err := session.Seed(ctx, cards); err != nil {
		t.Fatal(err)
	}
	id := knol.ID("q")

	got, err := resolveID(session, knol.ShortID(id))
	if err != nil || got != id {
		t.Errorf("resolveID(short) = %q, %v; want %q", got, err, id)
	}
	if _, err := resolveID(session, "zz-not-hex"); !errors.Is(err, review.ErrUnknownCard) {
		t.Errorf("resolveID(unknown) error = %v, want ErrUnknownCard", err)
	}
	if _, err := resolveID(session, ""); err == nil {
		t.Error("resolveID(\"\") matched every card without an error")
	}
}

func TestNewLogger(t *testing.T) {
	logger := newLogger(config.Log{Level: "warn", Format: "json"})
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn disabled at warn level")
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("one\ntwo"); got != "one ..." {
		t.Errorf("firstLine = %q", got)
	}
	if got := firstLine("single"); got != "single" {
		t.Errorf("firstLine = %q", got)
	}
}
