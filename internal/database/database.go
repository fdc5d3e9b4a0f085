// Package database opens the PostgreSQL pool behind the postgres storage driver.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config describes the favourites database. URL, when set, wins over the discrete fields.
type Config struct {
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectAttempts bounds the pings made before giving up, so the API can start
	// alongside a database that is still booting. Default: 3
	ConnectAttempts uint64
}

// ConnectionString returns URL or a postgres:// URL assembled from the fields, with
// sslmode defaulting to disable.
func (c Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	q := url.Values{"sslmode": {c.SSLMode}}
	if c.SSLMode == "" {
		q.Set("sslmode", "disable")
	}
	return (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}).String()
}

func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if c.MaxOpenConns > 0 {
		pc.MaxConns = int32(c.MaxOpenConns) //nolint:gosec // small config value
	}
	if c.MaxIdleConns > 0 {
		pc.MinConns = int32(c.MaxIdleConns) //nolint:gosec // small config value
	}
	if c.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = c.ConnMaxLifetime
	}
	return pc, nil
}

// Connect opens a pool and pings it, retrying with exponential backoff until
// ConnectAttempts pings have failed or ctx is done.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 3
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = 0

	err = backoff.Retry(func() error { return pool.Ping(ctx) },
		backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
