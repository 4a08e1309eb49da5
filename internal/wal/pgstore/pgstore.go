// Package pgstore is an optional, fleet-visible mirror of the Agent's WAL
// into PostgreSQL, grounded on the teacher's pkg/storage/postgres package
// (connection-pool construction in store.go, the upsert-inside-a-transaction
// pattern in nonces.go). It is never the authoritative WAL — filestore
// always is — so writes here are best-effort and never gate the drain loop
// on Postgres availability.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventbus-fabric/eventbus/internal/wal"
)

// Config holds PostgreSQL connection configuration, matching the teacher's
// postgres.Config field set.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (c Config) connString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// schemaDDL matches spec.md §6's events table definition literally.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS events (
	idempotency_key     TEXT PRIMARY KEY,
	serialized_envelope BYTEA NOT NULL,
	state               SMALLINT NOT NULL,
	retry_count         INTEGER NOT NULL DEFAULT 0,
	created_ns          BIGINT NOT NULL,
	last_attempt_ns     BIGINT
)`

// stateCode maps wal.State to the events.state SMALLINT encoding.
var stateCode = map[wal.State]int16{
	wal.StatePending:    0,
	wal.StateInFlight:   1,
	wal.StateDelivered:  2,
	wal.StateDeadLetter: 3,
}

// Mirror writes WAL record transitions to a Postgres events table for
// fleet-wide dead-letter visibility. It does not implement wal.Store: it is
// a sink the Agent calls alongside its authoritative filestore, never
// instead of it.
type Mirror struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and ensures the events table exists.
func Open(ctx context.Context, cfg Config) (*Mirror, error) {
	pool, err := pgxpool.New(ctx, cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return &Mirror{pool: pool}, nil
}

// Upsert mirrors the current state of r into the events table.
func (m *Mirror) Upsert(ctx context.Context, r wal.Record) error {
	code, ok := stateCode[r.State]
	if !ok {
		return fmt.Errorf("pgstore: unknown state %q", r.State)
	}

	const q = `
		INSERT INTO events (idempotency_key, serialized_envelope, state, retry_count, created_ns, last_attempt_ns)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			state = EXCLUDED.state,
			retry_count = EXCLUDED.retry_count,
			last_attempt_ns = EXCLUDED.last_attempt_ns
	`
	_, err := m.pool.Exec(ctx, q,
		r.IdempotencyKey, r.SerializedEnvelope, code, r.RetryCount, r.CreatedNS, nullIfZero(r.LastAttemptNS))
	if err != nil {
		return fmt.Errorf("pgstore: upsert %s: %w", r.IdempotencyKey, err)
	}
	return nil
}

// DeadLetterCount returns the current fleet-wide dead-letter backlog for
// this agent's mirrored events, used for cross-host operator dashboards.
func (m *Mirror) DeadLetterCount(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM events WHERE state = $1`
	var n int64
	if err := m.pool.QueryRow(ctx, q, stateCode[wal.StateDeadLetter]).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgstore: count dead letters: %w", err)
	}
	return n, nil
}

// Close closes the underlying connection pool.
func (m *Mirror) Close() error {
	m.pool.Close()
	return nil
}

func nullIfZero(ns uint64) *int64 {
	if ns == 0 {
		return nil
	}
	v := int64(ns)
	return &v
}
