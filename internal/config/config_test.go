package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	return Load(flags)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.Store.Driver != "json" || cfg.Store.Path != "data/user_progress.json" {
		t.Errorf("Unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected default addr :8080, but got %q", cfg.Server.Addr)
	}
	if cfg.Gemini.Questions != 10 || cfg.Gemini.Attempts != 2 {
		t.Errorf("Unexpected gemini defaults: %+v", cfg.Gemini)
	}
	if cfg.GenerationEnabled() {
		t.Error("Expected generation to be disabled without a key")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revision.yaml")
	yaml := `
store:
  driver: sqlite
  path: from-file.db
server:
  addr: ":9000"
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REVISION_SERVER_ADDR", ":9100")
	t.Setenv("REVISION_GEMINI_KEY", "secret")
	t.Setenv("REVISION_DECK_SOURCES", "decks, https://github.com/a/b.git")

	cfg, err := load(t, "--config", path, "--log.level", "warn")
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "from-file.db" {
		t.Errorf("Expected store settings from the file, but got %+v", cfg.Store)
	}
	if cfg.Server.Addr != ":9100" {
		t.Errorf("Expected the environment to override the file, but got %q", cfg.Server.Addr)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected the flag to override the file, but got %q", cfg.Log.Level)
	}
	if !cfg.GenerationEnabled() {
		t.Error("Expected generation to be enabled with a key from the environment")
	}
	if len(cfg.Deck.Sources) != 2 || cfg.Deck.Sources[1] != "https://github.com/a/b.git" {
		t.Errorf("Expected two deck sources, but got %q", cfg.Deck.Sources)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Expected unset keys to keep their defaults, but got format %q", cfg.Log.Format)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"unknown driver", []string{"--store.driver", "csv"}},
		{"redis without url", []string{"--store.driver", "redis"}},
		{"sqlite without path", []string{"--store.driver", "sqlite", "--store.path", ""}},
		{"too many questions", []string{"--gemini.questions", "500"}},
		{"bad log level", []string{"--log.level", "loud"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := load(t, tc.args...); err == nil {
				t.Errorf("Expected Load(%v) to fail", tc.args)
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}
