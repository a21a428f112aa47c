package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/embed"
	"github.com/astralblue/k3l-fcgraph-embeds/internal/sync"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a file-backed store serving both sides of a sync run:
// it implements sync.Source over the casts table and sync.Target over
// the cast_embeds table. Intended for local runs, demos, and the
// integration/conformance test suites.
type SQLite struct {
	db *sql.DB
}

// Interface checks.
var (
	_ sync.Source = (*SQLite)(nil)
	_ sync.Target = (*SQLite)(nil)
)

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and the embedded schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using SQLite methods when available.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// FetchCasts implements sync.Source with (updated_at, id) ordering and
// OFFSET/LIMIT pagination. The embeds column is returned as the stored
// string, still subject to the synchronizer's quote unwrapping.
func (s *SQLite) FetchCasts(ctx context.Context, minUpdatedAt time.Time, offset, limit int) ([]sync.Cast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, fid, embeds, updated_at
		FROM casts
		WHERE updated_at >= ?
		ORDER BY updated_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, minUpdatedAt.UTC(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query casts: %w", err)
	}
	defer rows.Close()

	var casts []sync.Cast
	for rows.Next() {
		var (
			hashBytes []byte
			fid       int64
			embeds    sql.NullString
			updatedAt time.Time
		)
		if err := rows.Scan(&hashBytes, &fid, &embeds, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cast: %w", err)
		}
		hash, err := embed.HashFromBytes(hashBytes)
		if err != nil {
			return nil, fmt.Errorf("cast hash: %w", err)
		}
		c := sync.Cast{Hash: hash, FID: fid, UpdatedAt: updatedAt}
		if embeds.Valid {
			c.Embeds = embeds.String
		}
		casts = append(casts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate casts: %w", err)
	}
	return casts, nil
}

// ReplaceEmbeds implements sync.Target: one transaction deleting every
// row for the touched cast hashes, then inserting the new rows.
func (s *SQLite) ReplaceEmbeds(ctx context.Context, hashes []embed.Hash, newRows []sync.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace embeds: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if len(hashes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hashes)), ",")
		args := make([]any, len(hashes))
		for i, h := range hashes {
			args[i] = h.Bytes()
		}
		del := fmt.Sprintf("DELETE FROM cast_embeds WHERE cast_hash IN (%s)", placeholders)
		if _, err := tx.ExecContext(ctx, del, args...); err != nil {
			return fmt.Errorf("replace embeds: delete: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cast_embeds
		(cast_hash, cast_fid, embed_index, embed_type, url, quoted_cast_hash, quoted_cast_fid, raw_embed_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace embeds: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range newRows {
		url, quotedHash, quotedFID := rowVariantValues(r)
		if _, err := stmt.ExecContext(ctx,
			r.CastHash.Bytes(), r.CastFID, r.EmbedIndex, string(r.EmbedType),
			url, quotedHash, quotedFID, r.RawEmbedData,
		); err != nil {
			return fmt.Errorf("replace embeds: insert row %d for cast %s: %w", r.EmbedIndex, r.CastHash.Hex(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace embeds: commit: %w", err)
	}
	return nil
}

// InsertCast seeds a source cast. Used by local demos and tests.
func (s *SQLite) InsertCast(ctx context.Context, c sync.Cast) error {
	var embeds any
	switch v := c.Embeds.(type) {
	case nil:
		embeds = nil
	case string:
		embeds = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("insert cast: marshal embeds: %w", err)
		}
		embeds = string(data)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO casts (hash, fid, embeds, updated_at)
		VALUES (?, ?, ?, ?)
	`, c.Hash.Bytes(), c.FID, embeds, c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert cast: %w", err)
	}
	return nil
}

// EmbedsForCast returns the normalized rows for one cast hash ordered
// by embed_index. Returns an empty slice when none exist.
func (s *SQLite) EmbedsForCast(ctx context.Context, hash embed.Hash) ([]sync.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cast_hash, cast_fid, embed_index, embed_type, url, quoted_cast_hash, quoted_cast_fid, raw_embed_data
		FROM cast_embeds
		WHERE cast_hash = ?
		ORDER BY embed_index ASC
	`, hash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("query embeds: %w", err)
	}
	defer rows.Close()

	out := []sync.Row{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeds: %w", err)
	}
	return out, nil
}

// AllEmbeds returns every normalized row ordered by (cast_hash,
// embed_index). Used by the conformance harness for snapshots.
func (s *SQLite) AllEmbeds(ctx context.Context) ([]sync.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cast_hash, cast_fid, embed_index, embed_type, url, quoted_cast_hash, quoted_cast_fid, raw_embed_data
		FROM cast_embeds
		ORDER BY cast_hash ASC, embed_index ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeds: %w", err)
	}
	defer rows.Close()

	out := []sync.Row{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeds: %w", err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows) (sync.Row, error) {
	var (
		r          sync.Row
		hashBytes  []byte
		embedType  string
		url        sql.NullString
		quotedHash []byte
		quotedFID  sql.NullInt64
	)
	if err := rows.Scan(&hashBytes, &r.CastFID, &r.EmbedIndex, &embedType, &url, &quotedHash, &quotedFID, &r.RawEmbedData); err != nil {
		return sync.Row{}, fmt.Errorf("scan embed row: %w", err)
	}
	hash, err := embed.HashFromBytes(hashBytes)
	if err != nil {
		return sync.Row{}, fmt.Errorf("embed row cast hash: %w", err)
	}
	r.CastHash = hash
	r.EmbedType = embed.Type(embedType)
	if url.Valid {
		r.URL = url.String
	}
	if quotedHash != nil {
		qh, err := embed.HashFromBytes(quotedHash)
		if err != nil {
			return sync.Row{}, fmt.Errorf("embed row quoted hash: %w", err)
		}
		r.QuotedCastHash = qh
	}
	if quotedFID.Valid {
		r.QuotedCastFID = quotedFID.Int64
	}
	return r, nil
}

// rowVariantValues maps a row's variant fields to nullable column
// values: the other variant's columns are NULL.
func rowVariantValues(r sync.Row) (url, quotedHash, quotedFID any) {
	if r.EmbedType == embed.TypeCastID {
		return nil, r.QuotedCastHash.Bytes(), r.QuotedCastFID
	}
	return r.URL, nil, nil
}
