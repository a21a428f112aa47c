// Package harness runs declarative sync scenarios against a throwaway
// SQLite database and snapshots the resulting cast_embeds rows.
//
// A scenario is a YAML file naming a set of source casts with raw embed
// payloads. The harness loads them, runs a full sync pass, and compares
// a canonical JSON snapshot of the normalized rows against a golden
// file. Golden files pin the end-to-end normalization behavior: payload
// parsing, quote unwrapping, error isolation, and row replacement.
package harness
