package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/revision/internal/config"
	"github.com/conorfennell/revision/internal/domain"
	"github.com/conorfennell/revision/internal/generate"
	"github.com/conorfennell/revision/internal/knol"
	"github.com/conorfennell/revision/internal/parser"
	"github.com/conorfennell/revision/internal/review"
	"github.com/conorfennell/revision/internal/storage"
	"github.com/conorfennell/revision/internal/sync"
	"github.com/conorfennell/revision/internal/web"
)

const usage = `Usage: revision [flags] <command> [args]

Commands:
  due                  list the cards due today
  review <id> <grade>  grade a card (Again, Hard, Good, Easy); id may be a prefix
  import <file>        add the cards of a deck file, resetting known ones
  export               write the progress JSON to stdout
  sync                 add new cards from deck.sources
  generate <note>      generate flashcard questions from a note
  serve                start the web review front end

Flags:
`

func main() {
	flags := pflag.NewFlagSet("revision", pflag.ContinueOnError)
	config.Flags(flags)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags.Arg(0), flags.Args()[1:]); err != nil {
		slog.Error("Command failed", "command", flags.Arg(0), "error", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	store, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		URL:    cfg.Store.URL,
		Key:    cfg.Store.Key,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	session, err := review.Open(ctx, store)
	if err != nil {
		return err
	}

	switch command {
	case "due":
		if err := seed(ctx, session, cfg.Deck.Path); err != nil {
			return err
		}
		return listDue(session)
	case "review":
		if len(args) != 2 {
			return errors.New("usage: revision review <id> <grade>")
		}
		if err := seed(ctx, session, cfg.Deck.Path); err != nil {
			return err
		}
		return reviewCard(ctx, session, args[0], args[1])
	case "import":
		if len(args) != 1 {
			return errors.New("usage: revision import <file>")
		}
		return importDeck(ctx, session, args[0])
	case "export":
		data, err := session.Export(ctx)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	case "sync":
		report, err := sync.Run(ctx, session, cfg.Deck.Sources, cfg.Deck.Repos)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d sources: %d cards found, %d new, %d errors.\n",
			report.Sources, report.Parsed, report.Added, len(report.Errors))
		return nil
	case "generate":
		if len(args) == 0 {
			return errors.New("usage: revision generate <note>")
		}
		return generateQuestions(ctx, cfg.Gemini, strings.Join(args, " "))
	case "serve":
		if err := seed(ctx, session, cfg.Deck.Path); err != nil {
			return err
		}
		return serve(ctx, cfg, session)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// seed loads the deck file into an empty store.
func seed(ctx context.Context, session *review.Session, deckPath string) error {
	if session.Len() > 0 {
		return nil
	}
	cards, err := parser.ParseFile(deckPath)
	if len(cards) == 0 && err != nil {
		return fmt.Errorf("failed to seed empty store from %s: %w", deckPath, err)
	}
	if err != nil {
		slog.Warn("Problems parsing deck file", "path", deckPath, "error", err)
	}
	n, err := session.Seed(ctx, cards)
	if err != nil {
		return err
	}
	slog.Info("Seeded store from deck file", "path", deckPath, "cards", n)
	return nil
}

func listDue(session *review.Session) error {
	due := session.Due()
	if len(due) == 0 {
		fmt.Println("You have no cards due for review today. Great job!")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tDUE\tQUESTION\n")
	for _, cs := range due {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", knol.ShortID(cs.ID), cs.NextReview.Local().Format(time.DateOnly), firstLine(cs.Question))
	}
	return tw.Flush()
}

func reviewCard(ctx context.Context, session *review.Session, prefix, gradeName string) error {
	grade, err := domain.ParseGrade(gradeName)
	if err != nil {
		return err
	}
	id, err := resolveID(session, prefix)
	if err != nil {
		return err
	}
	next, err := session.Grade(ctx, id, grade)
	if err != nil {
		return err
	}
	fmt.Printf("%s: next review %s (interval %d days, ease %.2f)\n",
		knol.ShortID(id), next.NextReview.Local().Format(time.DateOnly), next.Interval, next.EaseFactor)
	return nil
}

// resolveID finds the single card whose ID starts with prefix.
func resolveID(session *review.Session, prefix string) (string, error) {
	prefix = strings.ToLower(prefix)
	var matches []string
	for id := range session.Cards() {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", review.ErrUnknownCard, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("card id prefix %q is ambiguous: %d matches", prefix, len(matches))
	}
}

func importDeck(ctx context.Context, session *review.Session, path string) error {
	cards, parseErr := parser.ParseFile(path)
	if len(cards) == 0 && parseErr != nil {
		return fmt.Errorf("failed to parse %s: %w", path, parseErr)
	}
	if parseErr != nil {
		slog.Warn("Problems parsing deck file", "path", path, "error", parseErr)
	}
	n, err := session.Import(ctx, cards)
	if err != nil {
		return err
	}
	fmt.Printf("%d cards added to your deck.\n", n)
	return nil
}

func generateQuestions(ctx context.Context, cfg config.Gemini, note string) error {
	if cfg.Key == "" {
		return errors.New("question generation needs gemini.key (REVISION_GEMINI_KEY)")
	}
	gen, err := generate.NewGemini(ctx, cfg.Key, cfg.Model)
	if err != nil {
		return err
	}
	defer gen.Close()

	questions, err := generate.Questions(ctx, gen, note, questionOptions(cfg))
	for i, q := range questions {
		fmt.Printf("%d. %s\n", i+1, q)
	}
	if err != nil {
		return &review.CollaboratorError{Op: "generate questions", Err: err}
	}
	return nil
}

func questionOptions(cfg config.Gemini) generate.Options {
	return generate.Options{Count: cfg.Questions, Attempts: cfg.Attempts, Backoff: time.Second}
}

func serve(ctx context.Context, cfg *config.Config, session *review.Session) error {
	opts := web.Options{
		Questions: questionOptions(cfg.Gemini),
		Sources:   cfg.Deck.Sources,
		ReposDir:  cfg.Deck.Repos,
	}
	if cfg.GenerationEnabled() {
		gen, err := generate.NewGemini(ctx, cfg.Gemini.Key, cfg.Gemini.Model)
		if err != nil {
			return err
		}
		defer gen.Close()
		opts.Generator = gen
	}

	srv, err := web.NewServer(session, opts)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
