package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/embed"
	"github.com/astralblue/k3l-fcgraph-embeds/internal/sync"
)

// Default schema names for the production deployment.
const (
	DefaultSourceSchema = "neynarv2"
	DefaultTargetSchema = "public"
)

// PGSource reads casts from a Postgres source database.
type PGSource struct {
	pool   *pgxpool.Pool
	schema string
}

var _ sync.Source = (*PGSource)(nil)

// OpenPGSource connects to the source database. The connection is
// verified before returning so unreachable stores fail here, before any
// sync batch runs.
func OpenPGSource(ctx context.Context, dsn, schema string) (*PGSource, error) {
	if schema == "" {
		schema = DefaultSourceSchema
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping source: %w", err)
	}
	return &PGSource{pool: pool, schema: schema}, nil
}

// Close releases the connection pool.
func (s *PGSource) Close() {
	s.pool.Close()
}

// FetchCasts implements sync.Source. JSONB payloads are decoded by the
// driver: an embeds column holding a JSON array arrives as []any, one
// holding a JSON scalar string arrives as a Go string still needing the
// literal parse.
func (s *PGSource) FetchCasts(ctx context.Context, minUpdatedAt time.Time, offset, limit int) ([]sync.Cast, error) {
	query := fmt.Sprintf(`
		SELECT hash, fid, embeds, updated_at
		FROM %s.casts
		WHERE updated_at >= $1
		ORDER BY updated_at, id
		OFFSET $2 LIMIT $3
	`, s.schema)

	rows, err := s.pool.Query(ctx, query, minUpdatedAt, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query casts: %w", err)
	}
	defer rows.Close()

	var casts []sync.Cast
	for rows.Next() {
		var (
			hashBytes []byte
			fid       int64
			embeds    any
			updatedAt time.Time
		)
		if err := rows.Scan(&hashBytes, &fid, &embeds, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cast: %w", err)
		}
		hash, err := embed.HashFromBytes(hashBytes)
		if err != nil {
			return nil, fmt.Errorf("cast hash: %w", err)
		}
		casts = append(casts, sync.Cast{Hash: hash, FID: fid, Embeds: embeds, UpdatedAt: updatedAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate casts: %w", err)
	}
	return casts, nil
}

// PGTarget writes normalized rows to a Postgres target database.
type PGTarget struct {
	pool   *pgxpool.Pool
	schema string
}

var _ sync.Target = (*PGTarget)(nil)

// OpenPGTarget connects to the target database, verifying the
// connection before returning.
func OpenPGTarget(ctx context.Context, dsn, schema string) (*PGTarget, error) {
	if schema == "" {
		schema = DefaultTargetSchema
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open target: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping target: %w", err)
	}
	return &PGTarget{pool: pool, schema: schema}, nil
}

// Close releases the connection pool.
func (t *PGTarget) Close() {
	t.pool.Close()
}

// Pool returns the underlying pool, for the migrate package.
func (t *PGTarget) Pool() *pgxpool.Pool {
	return t.pool
}

// ReplaceEmbeds implements sync.Target: a single transaction deletes
// every row for the touched cast hashes and bulk-inserts the new ones
// via a pgx batch.
func (t *PGTarget) ReplaceEmbeds(ctx context.Context, hashes []embed.Hash, newRows []sync.Row) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace embeds: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	hashBytes := make([][]byte, len(hashes))
	for i, h := range hashes {
		hashBytes[i] = h.Bytes()
	}
	del := fmt.Sprintf("DELETE FROM %s.cast_embeds WHERE cast_hash = ANY($1)", t.schema)
	if _, err := tx.Exec(ctx, del, hashBytes); err != nil {
		return fmt.Errorf("replace embeds: delete: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s.cast_embeds
		(cast_hash, cast_fid, embed_index, embed_type, url, quoted_cast_hash, quoted_cast_fid, raw_embed_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.schema)

	batch := &pgx.Batch{}
	for _, r := range newRows {
		url, quotedHash, quotedFID := rowVariantValues(r)
		batch.Queue(insert,
			r.CastHash.Bytes(), r.CastFID, r.EmbedIndex, string(r.EmbedType),
			url, quotedHash, quotedFID, r.RawEmbedData,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range newRows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("replace embeds: insert: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("replace embeds: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("replace embeds: commit: %w", err)
	}
	return nil
}
