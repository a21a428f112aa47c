package embed

import (
	"fmt"
	"strings"
)

// List is an ordered sequence of embeds. Insertion order is display
// order; the position of an embed is its embed_index.
type List []Embed

// Parse converts a raw embeds payload of unknown shape into a List.
//
// Shape detection happens once here, at the edge:
//
//   - nil or an empty/blank string yields an empty list
//   - an already-decoded sequence is validated element by element
//   - any other string is first decoded with the permissive literal
//     grammar, then validated the same way
//
// Errors from the string path are wrapped in *ParseError carrying the
// raw payload; a malformed element aborts the whole parse, never
// producing a partial list.
func Parse(raw any) (List, error) {
	switch v := raw.(type) {
	case nil:
		return List{}, nil
	case List:
		return v, nil
	case []Embed:
		return List(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return List{}, nil
		}
		return parseLiteralString(v)
	case []any:
		return fromValues(v)
	case []map[string]any:
		values := make([]any, len(v))
		for i, m := range v {
			values[i] = m
		}
		return fromValues(values)
	default:
		return nil, &ShapeError{
			Message: fmt.Sprintf("embeds must be a list, string, or null, got %T", raw),
		}
	}
}

func parseLiteralString(s string) (List, error) {
	decoded, err := DecodeLiteral(strings.TrimSpace(s))
	if err != nil {
		return nil, &ParseError{Raw: s, Err: err}
	}
	values, ok := decoded.([]any)
	if !ok {
		return nil, &ParseError{
			Raw: s,
			Err: &ShapeError{Message: fmt.Sprintf("expected list, got %T", decoded)},
		}
	}
	list, err := fromValues(values)
	if err != nil {
		return nil, &ParseError{Raw: s, Err: err}
	}
	return list, nil
}

func fromValues(values []any) (List, error) {
	list := make(List, 0, len(values))
	for i, v := range values {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &ShapeError{
				Message: fmt.Sprintf("expected map in embeds list, got %T at index %d", v, i),
			}
		}
		e, err := New(m)
		if err != nil {
			return nil, fmt.Errorf("embed %d: %w", i, err)
		}
		list = append(list, e)
	}
	return list, nil
}

// AsMaps returns the map representation of every embed, in order.
// Parsing the result yields an equal List.
func (l List) AsMaps() []map[string]any {
	out := make([]map[string]any, len(l))
	for i, e := range l {
		out[i] = e.AsMap()
	}
	return out
}

// Contains reports whether the list holds an equal embed.
func (l List) Contains(e Embed) bool {
	return l.Index(e) >= 0
}

// Index returns the position of the first equal embed, or -1.
func (l List) Index(e Embed) int {
	for i, other := range l {
		if other.Equal(e) {
			return i
		}
	}
	return -1
}

// Count returns the number of equal embeds in the list.
func (l List) Count(e Embed) int {
	n := 0
	for _, other := range l {
		if other.Equal(e) {
			n++
		}
	}
	return n
}

// Equal reports element-wise equality.
func (l List) Equal(other List) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if !l[i].Equal(other[i]) {
			return false
		}
	}
	return true
}
