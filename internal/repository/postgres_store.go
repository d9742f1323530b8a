package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresStore keeps values as jsonb rows in kv_store, partitioned by namespace.
type postgresStore[T any] struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresStore returns a Store over the kv_store table created by migrations.
func NewPostgresStore[T any](pool *pgxpool.Pool, namespace string) Store[T] {
	return &postgresStore[T]{pool: pool, namespace: namespace}
}

func (s *postgresStore[T]) Get(ctx context.Context, key string) (T, error) {
	const query = `SELECT value FROM kv_store WHERE namespace=$1 AND key=$2`

	var zero T
	var raw []byte
	if err := s.pool.QueryRow(ctx, query, s.namespace, key).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("decode %s/%s: %w", s.namespace, key, err)
	}
	return v, nil
}

func (s *postgresStore[T]) Put(ctx context.Context, key string, value T) error {
	const query = `
        INSERT INTO kv_store (namespace, key, value, updated_at)
        VALUES ($1,$2,$3,NOW())
        ON CONFLICT (namespace, key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.namespace, key, err)
	}
	_, err = s.pool.Exec(ctx, query, s.namespace, key, raw)
	return err
}

func (s *postgresStore[T]) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_store WHERE namespace=$1 AND key=$2`

	_, err := s.pool.Exec(ctx, query, s.namespace, key)
	return err
}

func (s *postgresStore[T]) Scan(ctx context.Context) ([]T, error) {
	const query = `SELECT value FROM kv_store WHERE namespace=$1 ORDER BY key`

	rows, err := s.pool.Query(ctx, query, s.namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.namespace, err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}
