package migrate

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is the minimal database surface migrations run against. Both
// database/sql and pgx pools satisfy it through the adapters below.
type Conn interface {
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) error

	// QueryValue runs a query expected to return at most one string.
	// found is false when no row matched.
	QueryValue(ctx context.Context, query string, args ...any) (value string, found bool, err error)
}

type sqlConn struct {
	db *sql.DB
}

// NewSQLConn wraps a database/sql handle.
func NewSQLConn(db *sql.DB) Conn {
	return &sqlConn{db: db}
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

func (c *sqlConn) QueryValue(ctx context.Context, query string, args ...any) (string, bool, error) {
	var value string
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

type poolConn struct {
	pool *pgxpool.Pool
}

// NewPoolConn wraps a pgx connection pool.
func NewPoolConn(pool *pgxpool.Pool) Conn {
	return &poolConn{pool: pool}
}

func (c *poolConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.pool.Exec(ctx, query, args...)
	return err
}

func (c *poolConn) QueryValue(ctx context.Context, query string, args ...any) (string, bool, error) {
	var value string
	err := c.pool.QueryRow(ctx, query, args...).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
