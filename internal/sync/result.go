package sync

import "time"

// Result accumulates the outcome of one sync invocation.
//
// A Result is owned by a single run and merged across batches by simple
// field addition; MaxUpdatedAt is the pointwise maximum and is the
// caller's next watermark. A zero MaxUpdatedAt means no records were
// seen.
type Result struct {
	// RunID correlates log lines and results for one invocation.
	RunID string `json:"run_id"`

	// CastsProcessed counts casts fetched from the source.
	CastsProcessed int `json:"casts_processed"`

	// EmbedsExtracted counts embeds successfully parsed.
	EmbedsExtracted int `json:"embeds_extracted"`

	// EmbedsInserted counts rows written to the target.
	EmbedsInserted int `json:"embeds_inserted"`

	// Errors counts record- and batch-level failures.
	Errors int `json:"errors"`

	// MaxUpdatedAt is the latest source timestamp processed.
	MaxUpdatedAt time.Time `json:"max_updated_at"`

	// ErrorDetails holds one descriptive message per failure.
	ErrorDetails []string `json:"error_details"`
}

// merge folds a batch result into the run total.
func (r *Result) merge(batch *Result) {
	r.CastsProcessed += batch.CastsProcessed
	r.EmbedsExtracted += batch.EmbedsExtracted
	r.EmbedsInserted += batch.EmbedsInserted
	r.Errors += batch.Errors
	r.ErrorDetails = append(r.ErrorDetails, batch.ErrorDetails...)
	if batch.MaxUpdatedAt.After(r.MaxUpdatedAt) {
		r.MaxUpdatedAt = batch.MaxUpdatedAt
	}
}

func (r *Result) observeUpdatedAt(t time.Time) {
	if t.After(r.MaxUpdatedAt) {
		r.MaxUpdatedAt = t
	}
}
