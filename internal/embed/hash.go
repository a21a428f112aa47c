package embed

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// HashLen is the exact length of a cast content hash in bytes (160 bits).
const HashLen = 20

// Hash is an opaque fixed-width cast content identifier.
//
// A Hash is always exactly 20 bytes regardless of the encoding it was
// decoded from. It has no lifecycle of its own; it is constructed only
// through ParseHash (or HashFromBytes for already-raw input).
type Hash [HashLen]byte

// Bytes returns the hash as a fresh byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashLen)
	copy(b, h[:])
	return b
}

// Hex returns the hash as lowercase hex without a prefix.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String returns the canonical 0x-prefixed hex form.
func (h Hash) String() string {
	return "0x" + h.Hex()
}

// HashFromBytes constructs a Hash from a raw byte slice.
// Any length other than 20 is an immediate error, never a fallthrough
// to another encoding.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLen {
		return h, newHashLengthError(len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash decodes a content hash from any of the encodings observed in
// production data:
//
//   - raw 20-byte sequences
//   - Node.js Buffer records: {"type": "Buffer", "data": [int, ...]}
//   - "0x"-prefixed hex (canonical)
//   - plain 40-character hex
//   - base64
//
// The encodings share no discriminator besides shape, so string inputs are
// tried in a fixed priority order: 0x-hex, then plain hex when the string
// is exactly 40 characters (falling through on bad digits), then base64.
// A decode that succeeds with a length other than 20 bytes is a length
// error, never a silent truncation.
func ParseHash(value any) (Hash, error) {
	switch v := value.(type) {
	case Hash:
		return v, nil
	case []byte:
		return HashFromBytes(v)
	case string:
		return parseHashString(v)
	case map[string]any:
		return parseBufferRecord(v)
	default:
		return Hash{}, &HashError{
			Code:    ErrCodeHashInvalidType,
			Message: fmt.Sprintf("hash must be bytes, string, or Buffer record, got %T", value),
		}
	}
}

func parseHashString(s string) (Hash, error) {
	// Canonical 0x-prefixed hex first. Bad digits here are a hard error,
	// not a fallthrough.
	if len(s) >= 2 && s[0] == '0' && s[1] == 'x' {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return Hash{}, &HashError{
				Code:    ErrCodeHexFormat,
				Message: fmt.Sprintf("invalid hex format: %s", s),
			}
		}
		return HashFromBytes(b)
	}

	// Plain hex (40 chars = 20 bytes). On bad digits, fall through to the
	// base64 attempt.
	if len(s) == 2*HashLen {
		if b, err := hex.DecodeString(s); err == nil {
			return HashFromBytes(b)
		}
	}

	// Legacy base64. A successful decode of the wrong length is a length
	// error; a failed decode falls through to the final failure.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return HashFromBytes(b)
	}

	return Hash{}, &HashError{
		Code:    ErrCodeHashUnparsable,
		Message: fmt.Sprintf("unable to parse hash from: %s", s),
	}
}

// parseBufferRecord decodes the Node.js Buffer serialization artifact
// {"type": "Buffer", "data": [byte, ...]}.
func parseBufferRecord(m map[string]any) (Hash, error) {
	typ, _ := m["type"].(string)
	data, hasData := m["data"]
	if typ != "Buffer" || !hasData {
		return Hash{}, &HashError{
			Code:    ErrCodeBufferFormat,
			Message: "hash record must be Buffer format with 'data' and 'type' fields",
		}
	}

	values, ok := data.([]any)
	if !ok {
		return Hash{}, &HashError{
			Code:    ErrCodeBufferData,
			Message: fmt.Sprintf("Buffer data must be a list of integers, got %T", data),
		}
	}
	if len(values) != HashLen {
		return Hash{}, newHashLengthError(len(values))
	}

	var h Hash
	for i, v := range values {
		n, ok := asInt(v)
		if !ok {
			return Hash{}, &HashError{
				Code:    ErrCodeBufferData,
				Message: fmt.Sprintf("invalid Buffer data: element %d is %T, want integer", i, v),
			}
		}
		if n < 0 || n > 255 {
			return Hash{}, &HashError{
				Code:    ErrCodeBufferData,
				Message: fmt.Sprintf("invalid Buffer data: byte value %d out of range at index %d", n, i),
			}
		}
		h[i] = byte(n)
	}
	return h, nil
}

// asInt converts the integer representations produced by the JSON decoder
// (float64) and the literal grammar (int64) to an int64.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
