package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/embed"
)

// DefaultBatchSize is the number of casts fetched per page when the
// caller does not say otherwise.
const DefaultBatchSize = 1000

// Options configures one sync run.
type Options struct {
	// MinUpdatedAt is the inclusive watermark: only casts with
	// updated_at >= MinUpdatedAt are processed.
	MinUpdatedAt time.Time

	// BatchSize is the page size; DefaultBatchSize when <= 0.
	BatchSize int

	// Logger receives per-record warnings and batch errors.
	// Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// NewRunID returns a time-ordered token identifying one sync run.
// Uses github.com/google/uuid for RFC 4122 compliant UUIDs.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Run synchronizes embeds from source casts into normalized target rows.
//
// Batches are processed strictly sequentially. A malformed record never
// aborts its batch: the failure is counted once, described in
// ErrorDetails with the cast hash in hex, and the run continues. A
// fetch failure is terminal: it is recorded once and ends the run. A
// target transaction failure is recorded for its batch without retry;
// re-running the sync is safe because rows are replaced wholesale per
// cast hash.
//
// Run always returns a Result, never an error, for data-quality
// problems. I/O precondition failures (an unreachable store) surface
// when the caller constructs the store adapters, before Run is called.
func Run(ctx context.Context, source Source, target Target, opts Options) *Result {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	result := &Result{RunID: NewRunID()}
	log = log.WithField("run_id", result.RunID)

	offset := 0
	for batchNum := 0; ; batchNum++ {
		casts, err := source.FetchCasts(ctx, opts.MinUpdatedAt, offset, opts.BatchSize)
		if err != nil {
			log.WithError(err).Error("embed sync: fetch failed")
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, fmt.Sprintf("sync error: %v", err))
			return result
		}

		batch := processBatch(ctx, target, casts, log.WithField("batch", batchNum))
		result.merge(batch)

		if batch.CastsProcessed < opts.BatchSize {
			break
		}
		offset += opts.BatchSize
	}

	return result
}

// processBatch parses one page of casts and replaces their normalized
// rows in a single target transaction.
func processBatch(ctx context.Context, target Target, casts []Cast, log logrus.FieldLogger) *Result {
	batch := &Result{CastsProcessed: len(casts)}
	if len(casts) == 0 {
		return batch
	}

	var rows []Row
	seen := map[embed.Hash]bool{}
	var hashes []embed.Hash

	for _, cast := range casts {
		batch.observeUpdatedAt(cast.UpdatedAt)

		raw, rawData := normalizeRaw(cast.Embeds)
		if raw == nil {
			continue
		}

		list, err := embed.Parse(raw)
		if err != nil {
			log.WithField("cast_hash", cast.Hash.Hex()).WithError(err).
				Warn("embed sync: parse failed")
			batch.Errors++
			batch.ErrorDetails = append(batch.ErrorDetails,
				fmt.Sprintf("parse error for cast %s: %v", cast.Hash.Hex(), err))
			continue
		}

		batch.EmbedsExtracted += len(list)
		if len(list) == 0 {
			continue
		}

		if rawData == "" {
			data, err := json.Marshal(raw)
			if err != nil {
				// Raw payloads come from a JSON decoder; this cannot
				// happen for values that parsed above.
				batch.Errors++
				batch.ErrorDetails = append(batch.ErrorDetails,
					fmt.Sprintf("parse error for cast %s: %v", cast.Hash.Hex(), err))
				continue
			}
			rawData = string(data)
		}

		for i, e := range list {
			rows = append(rows, NewRow(cast.Hash, cast.FID, i, e, rawData))
		}
		if !seen[cast.Hash] {
			seen[cast.Hash] = true
			hashes = append(hashes, cast.Hash)
		}
	}

	if len(rows) > 0 {
		if err := target.ReplaceEmbeds(ctx, hashes, rows); err != nil {
			log.WithError(err).Error("embed sync: batch insert failed")
			batch.Errors++
			batch.ErrorDetails = append(batch.ErrorDetails, fmt.Sprintf("insert error: %v", err))
		} else {
			batch.EmbedsInserted = len(rows)
		}
	}

	return batch
}

// normalizeRaw prepares a raw payload for parsing. String payloads that
// arrive wrapped in an outer pair of quotes (an artifact of storage as
// a JSON scalar string) are unwrapped exactly once; the unwrapped text
// is also what gets persisted as raw_embed_data. Returns (nil, "") for
// payloads that are empty before parsing.
func normalizeRaw(raw any) (any, string) {
	switch v := raw.(type) {
	case nil:
		return nil, ""
	case string:
		if v == "" {
			return nil, ""
		}
		s := UnquoteScalar(v)
		return s, s
	case []byte:
		if len(v) == 0 {
			return nil, ""
		}
		s := UnquoteScalar(string(v))
		return s, s
	case []any:
		if len(v) == 0 {
			return nil, ""
		}
		return raw, ""
	case map[string]any:
		// JSONB columns commonly default to '{}'; an empty object means
		// "no embeds", not a malformed payload.
		if len(v) == 0 {
			return nil, ""
		}
		return raw, ""
	default:
		return raw, ""
	}
}

// UnquoteScalar strips exactly one layer of JSON-scalar quoting: when
// the string both starts and ends with a double quote, the outer quotes
// are removed and escaped inner quotes and backslashes are unescaped.
// Anything else passes through untouched. Behavior under double-escaped
// input is pinned by TestUnquoteScalar_ContractForAmbiguousInput until
// the upstream format is clarified.
func UnquoteScalar(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		inner := s[1 : len(s)-1]
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	return s
}
