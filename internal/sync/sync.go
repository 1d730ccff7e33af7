package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/conorfennell/revision/internal/domain"
	"github.com/conorfennell/revision/internal/gitsource"
	"github.com/conorfennell/revision/internal/parser"
)

// Adder receives the cards found in deck sources.
type Adder interface {
	AddNew(ctx context.Context, cards []domain.Card) (int, error)
}

// Report summarises one sync run.
type Report struct {
	Sources int
	Parsed  int
	Added   int
	Errors  []error
}

// Run collects the cards of every source and hands them to dst.
// Problems with individual sources or files are logged and reported, not fatal;
// only a failure to store the new cards is returned as an error.
func Run(ctx context.Context, dst Adder, sources []string, reposDir string) (Report, error) {
	slog.Info("Starting sync process for all sources...", "sources", len(sources))
	report := Report{Sources: len(sources)}
	if len(sources) == 0 {
		slog.Info("No deck sources configured. Add one with --deck.sources <path/or/url.git>")
		return report, nil
	}

	cards, errs := Collect(ctx, sources, reposDir)
	report.Parsed = len(cards)
	report.Errors = errs

	added, err := dst.AddNew(ctx, cards)
	if err != nil {
		return report, err
	}
	report.Added = added

	slog.Info("Sync process complete.",
		"parsed_cards", report.Parsed,
		"added", report.Added,
		"errors", len(report.Errors),
	)
	return report, nil
}

// Collect pulls git sources into reposDir and parses every deck file of every source.
func Collect(ctx context.Context, sources []string, reposDir string) ([]domain.Card, []error) {
	var (
		cards []domain.Card
		errs  []error
	)
	for _, source := range sources {
		dir := source
		if gitsource.IsRemote(source) {
			localPath, err := gitsource.LocalPath(reposDir, source)
			if err != nil {
				slog.Error("Error determining local path for git repo", "url", source, "error", err)
				errs = append(errs, err)
				continue
			}
			if err := gitsource.Sync(ctx, source, localPath); err != nil {
				slog.Error("Error syncing git repo", "url", source, "error", err)
				errs = append(errs, err)
				continue
			}
			dir = localPath
		}

		slog.Info("Scanning source", "source", source, "path", dir)
		found, scanErrs := ScanDir(dir)
		cards = append(cards, found...)
		errs = append(errs, scanErrs...)
	}
	return cards, errs
}

// ScanDir parses every .md file below dir. Files that fail to parse are
// reported and the walk continues.
func ScanDir(dir string) ([]domain.Card, []error) {
	var (
		cards []domain.Card
		errs  []error
	)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			fileCards, parseErr := parser.ParseFile(path)
			if parseErr != nil {
				slog.Warn("Problems parsing deck file", "path", path, "error", parseErr)
				errs = append(errs, fmt.Errorf("parsing %s: %w", path, parseErr))
			}
			cards = append(cards, fileCards...)
		}
		return nil
	})
	if walkErr != nil {
		slog.Error("Error walking directory", "path", dir, "error", walkErr)
		errs = append(errs, walkErr)
	}
	return cards, errs
}
