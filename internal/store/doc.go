// Package store provides the concrete source and target adapters behind
// the synchronizer's ports: Postgres via pgx for production, SQLite via
// database/sql for local runs and tests.
package store
