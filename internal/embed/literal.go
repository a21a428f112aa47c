package embed

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// The source system sometimes serializes an embed array using a
// dynamically-typed language's default object-to-string representation
// (single-quoted keys and values) instead of strict JSON. This file is a
// small recursive-descent parser for that narrow grammar: lists, maps
// with string keys, single- or double-quoted strings, integers, booleans
// (true/True), and null/None. It is deliberately not a general literal
// evaluator and never executes anything.

// SyntaxError reports a malformed literal payload.
type SyntaxError struct {
	// Pos is the byte offset of the failure.
	Pos int

	// Message describes what was expected.
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("literal syntax error at offset %d: %s", e.Pos, e.Message)
}

// DecodeLiteral parses a permissive literal expression into the same value
// shapes the JSON decoder produces: map[string]any, []any, string, int64,
// float64, bool, and nil.
func DecodeLiteral(s string) (any, error) {
	p := &literalParser{input: s}
	p.skipSpace()
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, p.errf("unexpected trailing input")
	}
	return v, nil
}

type literalParser struct {
	input string
	pos   int
}

func (p *literalParser) errf(format string, args ...any) error {
	return &SyntaxError{Pos: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) peek() (byte, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *literalParser) parseValue() (any, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.errf("unexpected end of input")
	}
	switch {
	case c == '[':
		return p.parseList()
	case c == '{':
		return p.parseMap()
	case c == '"' || c == '\'':
		return p.parseString()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return p.parseWord()
	}
}

func (p *literalParser) parseList() (any, error) {
	p.pos++ // consume '['
	var out []any
	p.skipSpace()
	if c, ok := p.peek(); ok && c == ']' {
		p.pos++
		return []any{}, nil
	}
	for {
		p.skipSpace()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errf("unterminated list")
		}
		switch c {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return out, nil
		default:
			return nil, p.errf("expected ',' or ']' in list, got %q", c)
		}
	}
}

func (p *literalParser) parseMap() (any, error) {
	p.pos++ // consume '{'
	out := map[string]any{}
	p.skipSpace()
	if c, ok := p.peek(); ok && c == '}' {
		p.pos++
		return out, nil
	}
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errf("unterminated map")
		}
		if c != '"' && c != '\'' {
			return nil, p.errf("map keys must be quoted strings, got %q", c)
		}
		key, err := p.parseString()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if c, ok := p.peek(); !ok || c != ':' {
			return nil, p.errf("expected ':' after map key %q", key)
		}
		p.pos++
		p.skipSpace()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out[key] = v
		p.skipSpace()
		c, ok = p.peek()
		if !ok {
			return nil, p.errf("unterminated map")
		}
		switch c {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, p.errf("expected ',' or '}' in map, got %q", c)
		}
	}
}

func (p *literalParser) parseString() (string, error) {
	quote := p.input[p.pos]
	p.pos++
	var sb strings.Builder
	for {
		if p.pos >= len(p.input) {
			return "", p.errf("unterminated string")
		}
		c := p.input[p.pos]
		switch c {
		case quote:
			p.pos++
			return sb.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return "", p.errf("unterminated escape sequence")
			}
			esc := p.input[p.pos]
			switch esc {
			case '"', '\'', '\\', '/':
				sb.WriteByte(esc)
				p.pos++
			case 'n':
				sb.WriteByte('\n')
				p.pos++
			case 't':
				sb.WriteByte('\t')
				p.pos++
			case 'r':
				sb.WriteByte('\r')
				p.pos++
			case 'b':
				sb.WriteByte('\b')
				p.pos++
			case 'f':
				sb.WriteByte('\f')
				p.pos++
			case 'u':
				r, err := p.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
			default:
				return "", p.errf("unsupported escape sequence \\%c", esc)
			}
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
}

// parseUnicodeEscape decodes \uXXXX with surrogate pair handling.
// Called with pos on the 'u'.
func (p *literalParser) parseUnicodeEscape() (rune, error) {
	hi, err := p.parseHex4()
	if err != nil {
		return 0, err
	}
	if utf16.IsSurrogate(rune(hi)) {
		if strings.HasPrefix(p.input[p.pos:], `\u`) {
			p.pos += 2
			lo, err := p.parseHex4()
			if err != nil {
				return 0, err
			}
			if r := utf16.DecodeRune(rune(hi), rune(lo)); r != utf8.RuneError {
				return r, nil
			}
		}
		return utf8.RuneError, nil
	}
	return rune(hi), nil
}

// parseHex4 consumes 'u' plus four hex digits.
func (p *literalParser) parseHex4() (uint64, error) {
	p.pos++ // consume 'u'
	if p.pos+4 > len(p.input) {
		return 0, p.errf("truncated \\u escape")
	}
	n, err := strconv.ParseUint(p.input[p.pos:p.pos+4], 16, 32)
	if err != nil {
		return 0, p.errf("invalid \\u escape %q", p.input[p.pos:p.pos+4])
	}
	p.pos += 4
	return n, nil
}

func (p *literalParser) parseNumber() (any, error) {
	start := p.pos
	if c, ok := p.peek(); ok && c == '-' {
		p.pos++
	}
	digits := 0
	isFloat := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c >= '0' && c <= '9':
			digits++
			p.pos++
		case c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-':
			isFloat = true
			p.pos++
		default:
			goto done
		}
	}
done:
	if digits == 0 {
		return nil, p.errf("malformed number")
	}
	text := p.input[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errf("malformed number %q", text)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.errf("malformed number %q", text)
	}
	return n, nil
}

// parseWord handles the bare keywords of both JSON and Python-style
// serializations: true/false/null and True/False/None.
func (p *literalParser) parseWord() (any, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			p.pos++
		} else {
			break
		}
	}
	switch p.input[start:p.pos] {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	case "null", "None":
		return nil, nil
	default:
		p.pos = start
		return nil, p.errf("unexpected character %q", p.input[start])
	}
}
