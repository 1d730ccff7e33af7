package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables; REVISION_STORE_DRIVER sets store.driver.
const EnvPrefix = "REVISION_"

// Config is the full application configuration.
type Config struct {
	Store  Store  `koanf:"store"`
	Server Server `koanf:"server"`
	Deck   Deck   `koanf:"deck"`
	Gemini Gemini `koanf:"gemini"`
	Log    Log    `koanf:"log"`
}

type Store struct {
	Driver string `koanf:"driver" validate:"oneof=json sqlite redis memory"`
	Path   string `koanf:"path"`
	URL    string `koanf:"url" validate:"required_if=Driver redis"`
	Key    string `koanf:"key"`
}

type Server struct {
	Addr string `koanf:"addr" validate:"required"`
}

// Deck locates the cards. Path seeds an empty store; Sources are synced on demand.
type Deck struct {
	Path    string   `koanf:"path"`
	Sources []string `koanf:"sources"`
	Repos   string   `koanf:"repos" validate:"required"`
}

// Gemini configures question generation. Generation is disabled without a key.
type Gemini struct {
	Key       string `koanf:"key"`
	Model     string `koanf:"model"`
	Questions int    `koanf:"questions" validate:"gte=1,lte=50"`
	Attempts  int    `koanf:"attempts" validate:"gte=1,lte=10"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Flags registers every configuration key on flags with its default value.
func Flags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to a YAML configuration file")

	flags.String("store.driver", "json", "Progress store: json, sqlite, redis or memory")
	flags.String("store.path", "data/user_progress.json", "JSON file or SQLite database path")
	flags.String("store.url", "", "Redis URL, e.g. redis://localhost:6379/0")
	flags.String("store.key", "revision:cards", "Redis hash holding the cards")

	flags.String("server.addr", ":8080", "Listen address for serve")

	flags.String("deck.path", "data/deck.md", "Deck file used to seed an empty store")
	flags.StringSlice("deck.sources", nil, "Deck directories or git URLs to sync")
	flags.String("deck.repos", "repos", "Directory for git deck checkouts")

	flags.String("gemini.key", "", "Gemini API key; question generation is disabled without it")
	flags.String("gemini.model", "gemini-2.0-flash", "Gemini model name")
	flags.Int("gemini.questions", 10, "Questions to generate per note")
	flags.Int("gemini.attempts", 2, "Tries per generated question")

	flags.String("log.level", "info", "Log level: debug, info, warn or error")
	flags.String("log.format", "text", "Log format: text or json")
}

// Load builds the configuration from, in increasing precedence, flag
// defaults, the YAML file named by --config, a .env file, REVISION_*
// environment variables and flags set on the command line. flags must already
// be parsed.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue maps REVISION_STORE_DRIVER to store.driver and splits
// comma-separated lists.
func envValue(name, value string) (string, interface{}) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", ".")
	if key == "deck.sources" {
		var sources []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sources = append(sources, s)
			}
		}
		return key, sources
	}
	return key, value
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if (c.Store.Driver == "json" || c.Store.Driver == "sqlite") && c.Store.Path == "" {
		return fmt.Errorf("invalid configuration: store.path is required for the %s driver", c.Store.Driver)
	}
	return nil
}

// GenerationEnabled reports whether a Gemini key is configured.
func (c *Config) GenerationEnabled() bool {
	return c.Gemini.Key != ""
}
