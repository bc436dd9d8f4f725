package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/dama-table/internal/domain"
)

// ErrNotFound is returned when a table has no stored record.
var ErrNotFound = errors.New("table not found")

// Store is the durable home of table snapshots and statuses.
type Store interface {
	// Create inserts a new table record.
	Create(ctx context.Context, id string, snap domain.Snapshot) error
	// Status reports the stored status, or ErrNotFound when the table does not exist.
	Status(ctx context.Context, id string) (domain.Status, error)
	// Load returns the stored record. An empty snapshot blob loads as the default snapshot.
	Load(ctx context.Context, id string) (*domain.Record, error)
	SaveSnapshot(ctx context.Context, id string, snap domain.Snapshot) error
	SetStatus(ctx context.Context, id string, status domain.Status) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Backends accepted by Open.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	RedisURL    string
	DatabaseURL string
}

// Open connects the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendRedis, "":
		return NewRedisStoreFromURL(ctx, opts.RedisURL)
	case BackendPostgres:
		pg, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
	}
}

func normID(id string) string { return strings.TrimSpace(id) }
