package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/conorfennell/revision/internal/domain"
)

// ProgressStore is a durable mapping from card ID to CardState.
// Save replaces the whole collection.
type ProgressStore interface {
	Load(ctx context.Context) (map[string]domain.CardState, error)
	Save(ctx context.Context, cards map[string]domain.CardState) error
	Export(ctx context.Context) ([]byte, error)
}

// Backend is a ProgressStore that holds resources until closed.
type Backend interface {
	ProgressStore
	io.Closer
}

// Drivers accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	Path   string // json file or sqlite database
	URL    string // redis URL
	Key    string // redis hash key
}

// Open creates the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverJSON:
		return NewFileStore(opts.Path), nil
	case DriverSQLite:
		return OpenSQLite(opts.Path)
	case DriverRedis:
		return NewRedisStore(ctx, opts.URL, opts.Key)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
