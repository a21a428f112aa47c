package store

import (
	"context"
	"fmt"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/sync"
)

// SyncPostgres manages source and target connections from DSNs for one
// sync run. Connection failures surface here, before any batch runs;
// everything after that is reported through the Result.
func SyncPostgres(ctx context.Context, sourceDSN, targetDSN, sourceSchema, targetSchema string, opts sync.Options) (*sync.Result, error) {
	source, err := OpenPGSource(ctx, sourceDSN, sourceSchema)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	defer source.Close()

	target, err := OpenPGTarget(ctx, targetDSN, targetSchema)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	defer target.Close()

	return sync.Run(ctx, source, target, opts), nil
}

// SyncSQLite runs a sync where a single SQLite database serves as both
// source and target.
func SyncSQLite(ctx context.Context, path string, opts sync.Options) (*sync.Result, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	defer db.Close()

	return sync.Run(ctx, db, db, opts), nil
}
