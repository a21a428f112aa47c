// Package sync drives the batched, watermark-based synchronization of
// raw cast embed payloads from a source store into normalized rows in a
// target store.
//
// The synchronizer is pure orchestration: it pages through source casts
// ordered by updated_at, parses each payload with package embed, and
// replaces the normalized rows for every touched cast hash in a single
// target transaction per batch. Data-quality failures are isolated to
// the record that caused them and reported in the Result; only store
// transport failures end a run early, and even those are reported
// rather than raised.
package sync
