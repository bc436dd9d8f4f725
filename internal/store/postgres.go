package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/dama-table/internal/domain"
)

// PostgresStore keeps tables in the `tables` relation: id, game_state (JSON text), status.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already opened handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const schemaTables = `
CREATE TABLE IF NOT EXISTS tables (
	id VARCHAR(36) PRIMARY KEY,
	game_state TEXT,
	status VARCHAR(16) NOT NULL DEFAULT 'open'
		CHECK (status IN ('open', 'full', 'playing', 'finished')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the tables relation when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaTables); err != nil {
		return fmt.Errorf("create tables relation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, id string, snap domain.Snapshot) error {
	raw, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	const q = `INSERT INTO tables (id, game_state, status) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, q, normID(id), string(raw), string(domain.StatusOpen))
	if err != nil {
		return fmt.Errorf("insert table: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicateTable
	}
	return nil
}

func (s *PostgresStore) Status(ctx context.Context, id string) (domain.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM tables WHERE id = $1`, normID(id)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select status: %w", err)
	}
	return domain.ParseStatus(status), nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*domain.Record, error) {
	var (
		state  sql.NullString
		status string
	)
	err := s.db.QueryRowContext(ctx, `SELECT game_state, status FROM tables WHERE id = $1`, normID(id)).Scan(&state, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select table: %w", err)
	}
	snap, err := domain.DecodeSnapshot([]byte(state.String))
	if err != nil {
		return nil, err
	}
	return &domain.Record{ID: normID(id), Snapshot: snap, Status: domain.ParseStatus(status)}, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, id string, snap domain.Snapshot) error {
	raw, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return s.update(ctx, `UPDATE tables SET game_state = $2 WHERE id = $1`, normID(id), string(raw))
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status domain.Status) error {
	return s.update(ctx, `UPDATE tables SET status = $2 WHERE id = $1`, normID(id), string(status))
}

func (s *PostgresStore) update(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update table: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tables WHERE id = $1`, normID(id)); err != nil {
		return fmt.Errorf("delete table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
