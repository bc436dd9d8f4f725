package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/park285/dama-table/internal/domain"
)

const (
	fieldState  = "game_state"
	fieldStatus = "status"
)

// RedisStore keeps each table in a hash under table:<id>.
type RedisStore struct{ rdb *redis.Client }

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

// NewRedisStoreFromURL dials redis://host:port/db and pings it.
func NewRedisStoreFromURL(ctx context.Context, redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) key(id string) string { return "table:" + normID(id) }

// Create writes status and state in one transaction, so a concurrent Load never
// sees a half-created table.
func (s *RedisStore) Create(ctx context.Context, id string, snap domain.Snapshot) error {
	raw, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	key := s.key(id)
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateTable
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldStatus, string(domain.StatusOpen), fieldState, raw)
			return nil
		})
		return err
	}, key)
}

// Status treats any existing hash as a table; a missing status field reads as open.
func (s *RedisStore) Status(ctx context.Context, id string) (domain.Status, error) {
	key := s.key(id)
	pipe := s.rdb.TxPipeline()
	exists := pipe.Exists(ctx, key)
	status := pipe.HGet(ctx, key, fieldStatus)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	if exists.Val() == 0 {
		return "", ErrNotFound
	}
	return domain.ParseStatus(status.Val()), nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*domain.Record, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	snap, err := domain.DecodeSnapshot([]byte(m[fieldState]))
	if err != nil {
		return nil, err
	}
	return &domain.Record{ID: normID(id), Snapshot: snap, Status: domain.ParseStatus(m[fieldStatus])}, nil
}

func (s *RedisStore) SaveSnapshot(ctx context.Context, id string, snap domain.Snapshot) error {
	raw, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return s.setExisting(ctx, id, fieldState, raw)
}

func (s *RedisStore) SetStatus(ctx context.Context, id string, status domain.Status) error {
	return s.setExisting(ctx, id, fieldStatus, string(status))
}

// setExisting writes one field only while the table key still exists, so a late write
// never resurrects a deleted table.
func (s *RedisStore) setExisting(ctx context.Context, id, field string, value any) error {
	key := s.key(id)
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		pipe := tx.TxPipeline()
		pipe.HSet(ctx, key, field, value)
		_, err = pipe.Exec(ctx)
		return err
	}, key)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
