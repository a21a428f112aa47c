package embed

import (
	"encoding/json"
	"fmt"
)

// Type tags the two embed variants as persisted in the embed_type column.
type Type string

const (
	// TypeURL marks an external link embed.
	TypeURL Type = "url"

	// TypeCastID marks a reference to another cast (a quote).
	TypeCastID Type = "cast_id"
)

// CastID identifies another cast by author FID and content hash.
// Immutable once constructed; the hash is always built via ParseHash.
type CastID struct {
	FID  int64 `json:"fid"`
	Hash Hash  `json:"hash"`
}

// Embed is a tagged union over exactly two variants: an external link
// (URL) or a reference to another cast (CastID).
//
// Invariant: exactly one variant is populated, never both and never
// neither. Construction through New enforces this; the direct
// constructors produce valid values by shape.
type Embed struct {
	URL    string
	CastID *CastID
}

// NewURLEmbed constructs a link embed.
func NewURLEmbed(url string) Embed {
	return Embed{URL: url}
}

// NewCastIDEmbed constructs a quote embed.
func NewCastIDEmbed(fid int64, hash Hash) Embed {
	return Embed{CastID: &CastID{FID: fid, Hash: hash}}
}

// Type returns the variant tag.
func (e Embed) Type() Type {
	if e.CastID != nil {
		return TypeCastID
	}
	return TypeURL
}

// New constructs an Embed from a loosely-typed map.
//
// The reference field is accepted under either spelling, "castId" or
// "cast_id"; camelCase takes precedence when both appear, as it is the
// more common upstream spelling. Exactly one of url (non-null string)
// or the reference field must be present; malformed upstream data
// frequently carries both-null or both-present shapes and those are
// rejected rather than partially accepted.
func New(m map[string]any) (Embed, error) {
	urlVal := m["url"]
	hasURL := urlVal != nil

	// camelCase spelling wins when both appear; explicit nulls are
	// treated as absent.
	castVal := m["castId"]
	if castVal == nil {
		castVal = m["cast_id"]
	}
	hasCast := castVal != nil

	if hasURL == hasCast {
		return Embed{}, &ShapeError{
			Message: "exactly one of 'url' or 'castId' must be provided",
		}
	}

	if hasURL {
		url, ok := urlVal.(string)
		if !ok {
			return Embed{}, &ShapeError{
				Message: fmt.Sprintf("url must be a string, got %T", urlVal),
			}
		}
		return NewURLEmbed(url), nil
	}

	castMap, ok := castVal.(map[string]any)
	if !ok {
		return Embed{}, &ShapeError{
			Message: fmt.Sprintf("castId must be a map, got %T", castVal),
		}
	}

	fid, ok := asInt(castMap["fid"])
	if !ok {
		return Embed{}, &ShapeError{
			Message: fmt.Sprintf("castId.fid must be an integer, got %T", castMap["fid"]),
		}
	}

	hash, err := ParseHash(castMap["hash"])
	if err != nil {
		return Embed{}, fmt.Errorf("castId.hash: %w", err)
	}

	return NewCastIDEmbed(fid, hash), nil
}

// AsMap returns the map representation: {"url": ...} for links,
// {"castId": {"fid": ..., "hash": "0x..."}} for quotes. Re-parsing the
// result through New yields an equal Embed.
func (e Embed) AsMap() map[string]any {
	if e.CastID != nil {
		return map[string]any{
			"castId": map[string]any{
				"fid":  e.CastID.FID,
				"hash": e.CastID.Hash.String(),
			},
		}
	}
	return map[string]any{"url": e.URL}
}

// MarshalJSON serializes the map representation.
func (e Embed) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.AsMap())
}

// UnmarshalJSON parses an embed object, enforcing the variant invariant.
func (e *Embed) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := New(m)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Equal reports whether two embeds carry the same variant and payload.
func (e Embed) Equal(other Embed) bool {
	if e.Type() != other.Type() {
		return false
	}
	if e.CastID != nil {
		return e.CastID.FID == other.CastID.FID && e.CastID.Hash == other.CastID.Hash
	}
	return e.URL == other.URL
}
