package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationClientState is the DDL for the client_state table. It is safe to
// execute multiple times.
const MigrationClientState = `
CREATE TABLE IF NOT EXISTS client_state (
    namespace   TEXT NOT NULL,
    key         TEXT NOT NULL,
    value       TEXT NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (namespace, key)
);
`

// pgRow represents a single row returned by QueryRow.
type pgRow interface {
	Scan(dest ...any) error
}

// pgConn is the minimal database interface required by PGStore.
// *pgxpool.Pool satisfies it through pgxPoolWrapper; tests pass a mock.
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgRow
	Exec(ctx context.Context, sql string, args ...any) error
}

// PGStore is a PostgreSQL-backed Store. All keys live under one namespace so
// several client profiles can share a database.
type PGStore struct {
	db        pgConn
	namespace string
}

func NewPGStore(db pgConn, namespace string) *PGStore {
	return &PGStore{db: db, namespace: namespace}
}

// NewPGStoreFromPool creates a store directly from a *pgxpool.Pool.
func NewPGStoreFromPool(pool *pgxpool.Pool, namespace string) *PGStore {
	return &PGStore{db: &pgxPoolWrapper{pool: pool}, namespace: namespace}
}

// Migrate creates the backing table if it does not exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	if err := s.db.Exec(ctx, MigrationClientState); err != nil {
		return fmt.Errorf("migrate client_state: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM client_state WHERE namespace = $1 AND key = $2`

	var value string
	if err := s.db.QueryRow(ctx, query, s.namespace, key).Scan(&value); err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *PGStore) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO client_state (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value      = EXCLUDED.value,
                                           updated_at = EXCLUDED.updated_at`

	if err := s.db.Exec(ctx, query, s.namespace, key, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM client_state WHERE namespace = $1 AND key = $2`
	if err := s.db.Exec(ctx, query, s.namespace, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *PGStore) Clear(ctx context.Context) error {
	const query = `DELETE FROM client_state WHERE namespace = $1`
	if err := s.db.Exec(ctx, query, s.namespace); err != nil {
		return fmt.Errorf("clear namespace %q: %w", s.namespace, err)
	}
	return nil
}

// isNoRows works with both pgx.ErrNoRows and the mock used in tests.
func isNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "no rows")
}

// pgxPoolWrapper adapts *pgxpool.Pool to pgConn. pgxpool.Pool.Exec returns a
// command tag as well, which PGStore never needs.
type pgxPoolWrapper struct {
	pool *pgxpool.Pool
}

func (w *pgxPoolWrapper) QueryRow(ctx context.Context, sql string, args ...any) pgRow {
	return w.pool.QueryRow(ctx, sql, args...)
}

func (w *pgxPoolWrapper) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := w.pool.Exec(ctx, sql, args...)
	return err
}
