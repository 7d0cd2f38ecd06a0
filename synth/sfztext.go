package synth

import (
	"fmt"
	"strings"

	"github.com/rtsampler/sfzcore/region"
)

// parseSFZText tokenizes the subset of SFZ text needed to drive
// region.Loader's on_header/on_opcode event stream: `<header>` blocks,
// `name=value` (and `nameN=value`) opcodes, `//` and `/* */` comments.
// `#define`/`#include` directives and escaped sample paths are out of
// scope (spec.md leaves the real text parser to the host); a line starting
// with `#` is skipped whole rather than rejected, so a file written for a
// fuller parser still loads with those directives silently ignored.
func parseSFZText(text string) (region.Document, error) {
	l := region.NewLoader()
	s := scanner{src: text}

	for {
		s.skipWhitespaceAndComments()
		if s.atEOF() {
			break
		}
		switch s.peek() {
		case '#':
			s.skipToEOL()
		case '<':
			name, err := s.readHeader()
			if err != nil {
				return region.Document{}, err
			}
			l.OnHeader(headerKindFor(name))
		default:
			name, value, ok := s.readOpcode()
			if !ok {
				s.skipToEOL()
				continue
			}
			l.OnOpcode(name, nil, value)
		}
	}
	return l.Finish(), nil
}

func headerKindFor(name string) region.HeaderKind {
	switch strings.ToLower(name) {
	case "global":
		return region.HeaderGlobal
	case "master":
		return region.HeaderMaster
	case "group":
		return region.HeaderGroup
	case "control":
		return region.HeaderControl
	case "curve":
		return region.HeaderCurve
	case "effect":
		return region.HeaderEffect
	default:
		return region.HeaderRegion
	}
}

// scanner walks the raw SFZ text byte by byte. It never copies the whole
// input; every token is sliced from src.
type scanner struct {
	src string
	pos int
}

func (s *scanner) atEOF() bool  { return s.pos >= len(s.src) }
func (s *scanner) peek() byte   { return s.src[s.pos] }
func (s *scanner) advance() byte {
	c := s.src[s.pos]
	s.pos++
	return c
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (s *scanner) skipWhitespaceAndComments() {
	for !s.atEOF() {
		c := s.peek()
		if isSpace(c) {
			s.pos++
			continue
		}
		if c == '/' && s.pos+1 < len(s.src) {
			if s.src[s.pos+1] == '/' {
				s.skipToEOL()
				continue
			}
			if s.src[s.pos+1] == '*' {
				s.skipBlockComment()
				continue
			}
		}
		return
	}
}

func (s *scanner) skipToEOL() {
	for !s.atEOF() && s.peek() != '\n' {
		s.pos++
	}
}

func (s *scanner) skipBlockComment() {
	s.pos += 2
	for !s.atEOF() {
		if s.peek() == '*' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/' {
			s.pos += 2
			return
		}
		s.pos++
	}
}

// readHeader consumes `<name>` and returns name, positioned just past '>'.
func (s *scanner) readHeader() (string, error) {
	start := s.pos
	s.advance() // '<'
	nameStart := s.pos
	for !s.atEOF() && s.peek() != '>' && s.peek() != '\n' {
		s.pos++
	}
	if s.atEOF() || s.peek() != '>' {
		return "", fmt.Errorf("sfz: unterminated header starting at byte %d", start)
	}
	name := strings.TrimSpace(s.src[nameStart:s.pos])
	s.advance() // '>'
	return name, nil
}

// readOpcode consumes one `name=value` pair on the current line. value
// extraction stops at end of line or at the start of the next opcode/header
// token, mirroring the backtrack-on-lookahead behavior the reference
// sfizz parser uses so an unquoted sample path can contain spaces.
func (s *scanner) readOpcode() (name, value string, ok bool) {
	nameStart := s.pos
	for !s.atEOF() && isIdentChar(s.peek()) {
		s.pos++
	}
	if s.pos == nameStart || s.atEOF() || s.peek() != '=' {
		return "", "", false
	}
	name = s.src[nameStart:s.pos]
	s.advance() // '='

	valueStart := s.pos
	for !s.atEOF() && s.peek() != '\n' {
		if s.peek() == '/' && s.pos+1 < len(s.src) && (s.src[s.pos+1] == '/' || s.src[s.pos+1] == '*') {
			break
		}
		s.pos++
	}
	raw := s.src[valueStart:s.pos]
	value, _ := splitAtNextToken(raw)
	s.pos = valueStart + len(value)
	return name, strings.TrimRight(value, " \t"), true
}

// splitAtNextToken finds the first `<` or an identifier-run-then-`=` inside
// raw, returning the value proper and the remainder to be re-scanned as the
// next token.
func splitAtNextToken(raw string) (value, rest string) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '<' {
			return raw[:i], raw[i:]
		}
		if raw[i] == '=' {
			j := i
			for j > 0 && isIdentChar(raw[j-1]) {
				j--
			}
			for j > 0 && isSpace(raw[j-1]) {
				j--
			}
			return raw[:j], raw[j:]
		}
	}
	return raw, ""
}
