// Copyright 2024 Devscast Community.
// Licensed under Apache 2.0, see LICENCE file for details.

package parse

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Escape selects how an embedded quote is escaped inside string and
// identifier literals.
type Escape int

const (
	// EscapeDoubling escapes a quote inside a literal by doubling it. This is
	// the rule used by SQLite and standard SQL.
	EscapeDoubling Escape = iota
	// EscapeBackslash escapes a quote inside a literal with a preceding
	// backslash, as MySQL does by default.
	EscapeBackslash
)

// Error is a lexical error raised while scanning a query. Offset is the byte
// offset of the offending character in the input.
type Error struct {
	Offset int
	reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s near char %d", e.reason, e.Offset)
}

// NewScanner returns a scanner that splits queries into fragments using the
// given quote escape rule.
func NewScanner(escape Escape) *Scanner {
	return &Scanner{escape: escape}
}

type Scanner struct {
	escape Escape
	input  string
	pos    int
	// nextPos is the start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches the
	// end of input.
	char rune
	// prevFragEnd is the value of pos when we last finished a fragment. The
	// text between prevFragEnd and the start of the next parameter marker is
	// emitted as a Bypass fragment.
	prevFragEnd int
	// frags are the output of the scanner. Fragments are added as they are
	// scanned.
	frags []Fragment
}

// ScannedQuery is the result of scanning a query. The fragments are in scan
// order and their concatenated text reproduces the input.
type ScannedQuery struct {
	frags []Fragment
}

// Fragments returns the fragments of the scanned query.
func (sq *ScannedQuery) Fragments() []Fragment {
	return sq.frags
}

// String returns a textual representation of the scanned query for debugging
// and testing purposes.
func (sq *ScannedQuery) String() string {
	var parts []string
	for _, f := range sq.frags {
		parts = append(parts, f.String())
	}
	return "ScannedQuery[" + strings.Join(parts, " ") + "]"
}

// Scan classifies the input query into fragments. Parameter markers inside
// string literals, quoted identifiers, bracketed identifiers and comments are
// not detected. It returns a lexical *Error when the scan cannot advance, the
// only failure this component raises.
func (s *Scanner) Scan(input string) (sq *ScannedQuery, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot scan query: %w", err)
		}
	}()

	s.init(input)

	for s.pos < len(s.input) {
		if ok, err := s.skipStringLiteral(); err != nil {
			return nil, err
		} else if ok {
			continue
		}
		if ok := s.skipBracketedIdentifier(); ok {
			continue
		}
		if ok := s.skipComment(); ok {
			continue
		}
		if ok := s.scanNamed(); ok {
			continue
		}
		if ok := s.scanPositional(); ok {
			continue
		}
		s.advanceChar()
	}
	s.flushBypass()
	return &ScannedQuery{frags: s.frags}, nil
}

// init resets the state of the scanner and sets the input string.
func (s *Scanner) init(input string) {
	s.input = input
	s.pos = 0
	s.nextPos = 0
	s.char = 0
	s.prevFragEnd = 0
	s.frags = []Fragment{}
	s.advanceChar()
}

// advanceChar moves the scanner to the next character in the input.
func (s *Scanner) advanceChar() bool {
	if s.nextPos >= len(s.input) {
		s.char = 0
		s.pos = s.nextPos
		return false
	}
	var size int
	s.char, size = utf8.DecodeRuneInString(s.input[s.nextPos:])
	s.pos = s.nextPos
	s.nextPos += size
	return true
}

// peekChar returns true if the current char equals the one passed as
// parameter.
func (s *Scanner) peekChar(c rune) bool {
	return s.pos < len(s.input) && s.char == c
}

// skipChar jumps over the current char if it matches the char passed as a
// parameter. Returns true in that case, false otherwise.
func (s *Scanner) skipChar(c rune) bool {
	if s.pos < len(s.input) && s.char == c {
		s.advanceChar()
		return true
	}
	return false
}

// add appends a parameter fragment, first emitting the text between the end
// of the previous fragment and start as a Bypass fragment.
func (s *Scanner) add(start int, f Fragment) {
	if s.prevFragEnd != start {
		s.frags = append(s.frags, &Bypass{s.input[s.prevFragEnd:start]})
	}
	s.frags = append(s.frags, f)
	s.prevFragEnd = s.pos
}

// flushBypass emits any trailing unclassified text as a Bypass fragment.
func (s *Scanner) flushBypass() {
	if s.prevFragEnd < len(s.input) {
		s.frags = append(s.frags, &Bypass{s.input[s.prevFragEnd:]})
		s.prevFragEnd = len(s.input)
	}
}

// skipStringLiteral jumps over single quoted, double quoted and backtick
// quoted sections of input, honouring the configured quote escape rule.
func (s *Scanner) skipStringLiteral() (bool, error) {
	c := s.char
	if c != '\'' && c != '"' && c != '`' {
		return false, nil
	}
	start := s.pos
	s.advanceChar()
	for s.pos < len(s.input) {
		if s.escape == EscapeBackslash && s.char == '\\' {
			escPos := s.pos
			s.advanceChar()
			if s.pos >= len(s.input) {
				return false, &Error{Offset: escPos, reason: "missing character after escape"}
			}
			s.advanceChar()
			continue
		}
		if s.char == c {
			s.advanceChar()
			if s.escape == EscapeDoubling && s.peekChar(c) {
				s.advanceChar()
				continue
			}
			return true, nil
		}
		s.advanceChar()
	}
	// Reached end of input without finding the closing quote.
	return false, &Error{Offset: start, reason: "missing right quote in string literal"}
}

// skipBracketedIdentifier jumps over a bracketed identifier such as
// "[col:name]". A bracket immediately preceded by the keyword ARRAY is not an
// identifier, its contents are scanned normally so markers inside ARRAY[:x]
// are detected.
func (s *Scanner) skipBracketedIdentifier() bool {
	if s.char != '[' || s.precededByArrayKeyword() {
		return false
	}
	s.advanceChar()
	for s.pos < len(s.input) {
		if s.skipChar(']') {
			return true
		}
		s.advanceChar()
	}
	// Unterminated bracket, the rest of the input is opaque.
	return true
}

// precededByArrayKeyword reports whether the text immediately before the
// current position is the case-insensitive keyword ARRAY with no intervening
// characters.
func (s *Scanner) precededByArrayKeyword() bool {
	if s.pos < len("array") {
		return false
	}
	kwStart := s.pos - len("array")
	if !strings.EqualFold(s.input[kwStart:s.pos], "array") {
		return false
	}
	if kwStart > 0 {
		r, _ := utf8.DecodeLastRuneInString(s.input[:kwStart])
		if isNameChar(r) {
			return false
		}
	}
	return true
}

// skipComment jumps over line comments ("--" to end of line) and non-nesting
// block comments ("/* ... */"). Reaching end of input is a valid comment end.
func (s *Scanner) skipComment() bool {
	c := s.char
	if c == '-' && strings.HasPrefix(s.input[s.pos:], "--") {
		s.advanceChar()
		s.advanceChar()
		for s.pos < len(s.input) && s.char != '\n' {
			s.advanceChar()
		}
		return true
	}
	if c == '/' && strings.HasPrefix(s.input[s.pos:], "/*") {
		s.advanceChar()
		s.advanceChar()
		for s.pos < len(s.input) {
			if s.skipChar('*') {
				if s.skipChar('/') {
					return true
				}
				continue
			}
			s.advanceChar()
		}
		return true
	}
	return false
}

// scanNamed handles colons. A run of two or more colons is opaque, protecting
// cast syntax such as value::int. A single colon followed by name chars is a
// named parameter marker.
func (s *Scanner) scanNamed() bool {
	if s.char != ':' {
		return false
	}
	start := s.pos
	s.advanceChar()
	if s.peekChar(':') {
		for s.skipChar(':') {
		}
		return true
	}
	if s.pos >= len(s.input) || !isNameChar(s.char) {
		// A bare colon is opaque.
		return true
	}
	nameStart := s.pos
	for s.pos < len(s.input) && isNameChar(s.char) {
		s.advanceChar()
	}
	s.add(start, &NamedParameter{Name: s.input[nameStart:s.pos]})
	return true
}

// scanPositional handles question marks. A run of two or more question marks
// is opaque, so the "??" operators of some dialects are never markers.
func (s *Scanner) scanPositional() bool {
	if s.char != '?' {
		return false
	}
	start := s.pos
	s.advanceChar()
	if s.peekChar('?') {
		for s.skipChar('?') {
		}
		return true
	}
	s.add(start, &PositionalParameter{})
	return true
}

// isNameChar returns true if the given char can be part of a parameter name.
// It returns false otherwise.
func isNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}
