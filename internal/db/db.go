// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schema string

// ConnectAttempts bounds how many pings Open makes before giving up.
const ConnectAttempts = 5

// Open connects to Postgres and waits for it to answer a ping.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := Ping(ctx, conn, ConnectAttempts); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info().Msg("connected to database")
	return conn, nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// Ping retries p with exponential backoff, at most attempts times.
func Ping(ctx context.Context, p pinger, attempts int) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	n := 0
	err := backoff.Retry(func() error {
		n++
		err := p.PingContext(ctx)
		if err != nil {
			log.Warn().Err(err).Int("attempt", n).Msg("database not ready")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx))
	if err != nil {
		return fmt.Errorf("failed to ping DB after %d attempts: %w", n, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db execer) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Msg("schema up to date")
	return nil
}
