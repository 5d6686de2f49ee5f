package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/largeweb/skapp-sub000/internal/domain"
)

// PostgresKV is the production KVStore: a single kv table with an optional
// expires_at column. Reads filter expired rows so a lapsed storage TTL
// behaves like a deleted key.
type PostgresKV struct {
	db *pgxpool.Pool
}

func NewPostgresKV(db *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{db: db}
}

// EnsureSchema creates the kv table if it does not exist.
func (s *PostgresKV) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM kv
		 WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (s *PostgresKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO kv (key, value, expires_at, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, value, expiresAt,
	)
	return err
}

func (s *PostgresKV) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key)
	return err
}

func (s *PostgresKV) ListByPrefix(ctx context.Context, prefix string) ([]domain.KVEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key, value FROM kv
		 WHERE key LIKE $1 || '%' AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY key`,
		prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.KVEntry
	for rows.Next() {
		var e domain.KVEntry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
