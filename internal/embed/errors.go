package embed

import (
	"errors"
	"fmt"
)

// HashError represents a failure to decode a content hash.
//
// Hash decoding failures are always fatal to the single record being
// parsed, never to a whole sync batch. The Code field lets callers
// distinguish the failure mode without string matching.
type HashError struct {
	// Code identifies the failure category.
	Code HashErrorCode

	// Message is a human-readable description.
	Message string
}

// HashErrorCode categorizes hash decoding failures.
type HashErrorCode string

const (
	// ErrCodeHashLength indicates the decoded value was not exactly 20 bytes.
	ErrCodeHashLength HashErrorCode = "HASH_LENGTH"

	// ErrCodeBufferFormat indicates a structured record that is not a valid
	// Buffer record ({"type": "Buffer", "data": [...]}).
	ErrCodeBufferFormat HashErrorCode = "BUFFER_FORMAT"

	// ErrCodeBufferData indicates a Buffer record whose data is not a list
	// of byte values.
	ErrCodeBufferData HashErrorCode = "BUFFER_DATA"

	// ErrCodeHexFormat indicates malformed hex digits after a 0x prefix.
	ErrCodeHexFormat HashErrorCode = "HEX_FORMAT"

	// ErrCodeHashUnparsable indicates no interpretation of the input yielded
	// a hash.
	ErrCodeHashUnparsable HashErrorCode = "HASH_UNPARSABLE"

	// ErrCodeHashInvalidType indicates the input was not bytes, a string,
	// or a Buffer record.
	ErrCodeHashInvalidType HashErrorCode = "HASH_INVALID_TYPE"
)

// Error implements the error interface.
func (e *HashError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsHashError returns true if the error is any hash decoding failure.
// Uses errors.As to handle wrapped errors.
func IsHashError(err error) bool {
	var he *HashError
	return errors.As(err, &he)
}

// IsHashLengthError returns true if the error is a hash length violation.
// Uses errors.As to handle wrapped errors.
func IsHashLengthError(err error) bool {
	var he *HashError
	if errors.As(err, &he) {
		return he.Code == ErrCodeHashLength
	}
	return false
}

func newHashLengthError(got int) *HashError {
	return &HashError{
		Code:    ErrCodeHashLength,
		Message: fmt.Sprintf("hash must be exactly %d bytes, got %d", HashLen, got),
	}
}

// ShapeError represents an embed invariant violation: both variants
// populated, neither populated, or a malformed list/map shape.
type ShapeError struct {
	Message string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("EMBED_SHAPE: %s", e.Message)
}

// IsShapeError returns true if the error is an embed shape violation.
// Uses errors.As to handle wrapped errors.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// ParseError wraps the root cause of a failed string-payload parse.
// It is returned whenever the input required literal decoding, including
// raw syntax errors from the literal grammar itself.
type ParseError struct {
	// Raw is the input payload, truncated for display.
	Raw string

	// Err is the root cause.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse embeds from %q: %v", truncateRaw(e.Raw), e.Err)
}

// Unwrap returns the root cause for errors.Is/errors.As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError returns true if the error is a string-payload parse failure.
// Uses errors.As to handle wrapped errors.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

const maxRawDisplay = 120

func truncateRaw(s string) string {
	if len(s) <= maxRawDisplay {
		return s
	}
	return s[:maxRawDisplay] + "..."
}
