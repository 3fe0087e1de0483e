// Package params parses the comma-separated key=value argument strings used
// to configure cache policies, e.g. "mode=access_size,ghosts_factor=1.5".
//
// Values may be quoted with single or double quotes, a backslash escapes the
// following rune, and unquoted values may contain the punctuation runes
// common in size annotations and classifier expressions
// (!$%&/()[]{}<>?_-.;:#+*) as well as spaces between tokens.
package params

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// wordRunes are the punctuation runes permitted in unquoted values.
const wordRunes = "!$%&/()[]{}<>?_-.;:#+*"

var (
	// ErrUnknownField is returned when the input names a field that was not
	// declared by the caller.
	ErrUnknownField = errors.New("unknown field")

	// ErrMalformed is returned for inputs violating the key=value grammar.
	ErrMalformed = errors.New("malformed argument string")
)

// Field binds a field name to a setter invoked with the field's raw value.
type Field struct {
	Name string
	Set  func(value string) error
}

// String declares a string-valued field stored into dest.
func String(name string, dest *string) Field {
	return Field{Name: name, Set: func(value string) error {
		*dest = value

		return nil
	}}
}

// Int declares an integer-valued field stored into dest.
func Int(name string, dest *int) Field {
	return Field{Name: name, Set: func(value string) error {
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}

		*dest = v

		return nil
	}}
}

// Int64 declares a 64-bit integer-valued field stored into dest.
func Int64(name string, dest *int64) Field {
	return Field{Name: name, Set: func(value string) error {
		v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}

		*dest = v

		return nil
	}}
}

// Float declares a float-valued field stored into dest.
func Float(name string, dest *float64) Field {
	return Field{Name: name, Set: func(value string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}

		*dest = v

		return nil
	}}
}

// Bool declares a boolean-valued field stored into dest.
func Bool(name string, dest *bool) Field {
	return Field{Name: name, Set: func(value string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}

		*dest = v

		return nil
	}}
}

// Func declares a field handled by an arbitrary conversion function.
func Func(name string, set func(value string) error) Field {
	return Field{Name: name, Set: set}
}

// Parse tokenizes input and applies each key=value pair to the matching
// field. An empty input is valid and applies nothing.
func Parse(input string, fields ...Field) error {
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	lex := &lexer{input: []rune(input)}

	for {
		lex.skipSpace()

		if lex.done() {
			return nil
		}

		name := lex.readName()
		if name == "" {
			return fmt.Errorf("%w: expected field name at offset %d", ErrMalformed, lex.pos)
		}

		lex.skipSpace()

		if !lex.consume('=') {
			return fmt.Errorf("%w: expected '=' after %q", ErrMalformed, name)
		}

		value, err := lex.readValue()
		if err != nil {
			return err
		}

		field, ok := byName[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}

		if err := field.Set(value); err != nil {
			return err
		}

		lex.skipSpace()

		if lex.done() {
			return nil
		}

		if !lex.consume(',') {
			return fmt.Errorf("%w: expected ',' after value of %q", ErrMalformed, name)
		}
	}
}

type lexer struct {
	input []rune
	pos   int
}

func (l *lexer) done() bool {
	return l.pos >= len(l.input)
}

func (l *lexer) skipSpace() {
	for !l.done() && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *lexer) consume(r rune) bool {
	if l.done() || l.input[l.pos] != r {
		return false
	}

	l.pos++

	return true
}

func (l *lexer) readName() string {
	start := l.pos
	for !l.done() && isNameRune(l.input[l.pos]) {
		l.pos++
	}

	return string(l.input[start:l.pos])
}

// readValue reads all tokens up to the next top-level ',' and joins them.
// Quoted segments keep their content verbatim; a backslash escapes the
// following rune inside and outside quotes.
func (l *lexer) readValue() (string, error) {
	var sb strings.Builder

	var pending string // whitespace between tokens, emitted lazily

	for !l.done() {
		r := l.input[l.pos]

		switch {
		case r == ',':
			return sb.String(), nil
		case unicode.IsSpace(r):
			pending += string(r)
			l.pos++
		case r == '\'' || r == '"':
			seg, err := l.readQuoted(r)
			if err != nil {
				return "", err
			}

			sb.WriteString(pending)
			pending = ""
			sb.WriteString(seg)
		case r == '\\':
			l.pos++
			if l.done() {
				return "", fmt.Errorf("%w: dangling escape", ErrMalformed)
			}

			sb.WriteString(pending)
			pending = ""
			sb.WriteRune(l.input[l.pos])
			l.pos++
		case isValueRune(r):
			sb.WriteString(pending)
			pending = ""
			sb.WriteRune(r)
			l.pos++
		default:
			return "", fmt.Errorf("%w: unexpected rune %q in value", ErrMalformed, r)
		}
	}

	return sb.String(), nil
}

func (l *lexer) readQuoted(quote rune) (string, error) {
	l.pos++ // opening quote

	var sb strings.Builder

	for !l.done() {
		r := l.input[l.pos]

		switch r {
		case quote:
			l.pos++

			return sb.String(), nil
		case '\\':
			l.pos++
			if l.done() {
				return "", fmt.Errorf("%w: dangling escape in quoted value", ErrMalformed)
			}

			sb.WriteRune(l.input[l.pos])
			l.pos++
		default:
			sb.WriteRune(r)
			l.pos++
		}
	}

	return "", fmt.Errorf("%w: unterminated quoted value", ErrMalformed)
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isValueRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(wordRunes, r)
}
