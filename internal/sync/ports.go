package sync

import (
	"context"
	"time"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/embed"
)

// Cast is one raw source record.
type Cast struct {
	// Hash is the cast content hash.
	Hash embed.Hash

	// FID is the author's numeric identifier.
	FID int64

	// Embeds is the raw embed payload exactly as the source returned it:
	// a decoded JSON value, a string still requiring parsing, or nil when
	// the cast has no embeds.
	Embeds any

	// UpdatedAt is the source-side modification timestamp used as the
	// sync watermark.
	UpdatedAt time.Time
}

// Source is the read side of a sync run.
//
// FetchCasts returns up to limit casts with updated_at >= minUpdatedAt,
// ordered by (updated_at, id) ascending, skipping offset records.
// OFFSET pagination is deliberate: simpler than cursors, with a known
// O(n^2) worst case under concurrent source writes, acceptable for the
// cold, append-mostly workloads this targets.
type Source interface {
	FetchCasts(ctx context.Context, minUpdatedAt time.Time, offset, limit int) ([]Cast, error)
}

// Target is the write side of a sync run.
//
// ReplaceEmbeds must atomically delete every existing normalized row
// whose cast_hash is in hashes and insert the given rows, all in one
// transaction. Callers must not run overlapping syncs against the same
// target schema concurrently; the per-batch transaction is the only
// concurrency boundary provided.
type Target interface {
	ReplaceEmbeds(ctx context.Context, hashes []embed.Hash, rows []Row) error
}

// Row is one normalized embed row bound for the target table.
// The quoted_* and URL fields are meaningful according to EmbedType;
// store adapters persist NULL for the fields of the other variant.
type Row struct {
	CastHash       embed.Hash
	CastFID        int64
	EmbedIndex     int
	EmbedType      embed.Type
	URL            string
	QuotedCastHash embed.Hash
	QuotedCastFID  int64

	// RawEmbedData is the original payload preserved verbatim for audit.
	RawEmbedData string
}

// NewRow converts one parsed embed at the given position into its
// normalized row.
func NewRow(castHash embed.Hash, castFID int64, index int, e embed.Embed, rawData string) Row {
	r := Row{
		CastHash:     castHash,
		CastFID:      castFID,
		EmbedIndex:   index,
		EmbedType:    e.Type(),
		RawEmbedData: rawData,
	}
	if e.CastID != nil {
		r.QuotedCastHash = e.CastID.Hash
		r.QuotedCastFID = e.CastID.FID
	} else {
		r.URL = e.URL
	}
	return r
}
