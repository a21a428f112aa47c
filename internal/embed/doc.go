// Package embed normalizes the heterogeneous, often malformed embed
// payloads carried by cast records into a strict two-variant canonical
// form.
//
// Production payloads arrive as well-formed JSON arrays, as JSON-scalar
// strings wrapping those arrays, as single-quoted literal dumps from a
// dynamically-typed upstream, and with content hashes encoded as 0x hex,
// plain hex, base64, or Node.js Buffer records. Parse accepts all of
// these and produces a List of Embed values, each either an external
// link or a reference to another cast, never both and never neither.
package embed
