// Copyright 2026 The Cadenza Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package condition

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokName    // bare identifier; rejected by the parser
	tokKeyword // and or not in if else True False None true false null
	tokOp      // == != < <= > >= + - * / % ( ) [ ] { } , :
)

type token struct {
	kind tokenKind
	text string
	pos  int

	// decoded literal payloads
	num   float64
	isInt bool
	ival  int64
	str   string
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true,
	"if": true, "else": true,
	"True": true, "False": true, "None": true,
	"true": true, "false": true, "null": true,
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

// tokens scans the whole input up front. Guard expressions are short, so
// there is no value in lazy scanning.
func (l *lexer) tokens() ([]token, error) {
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case ch >= '0' && ch <= '9', ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		return l.lexNumber()
	case ch == '\'' || ch == '"':
		return l.lexString()
	case isNameStart(rune(ch)):
		return l.lexName()
	}

	// multi-byte operators first
	if l.pos+1 < len(l.input) {
		two := l.input[l.pos : l.pos+2]
		switch two {
		case "==", "!=", "<=", ">=":
			l.pos += 2
			return token{kind: tokOp, text: two, pos: start}, nil
		}
	}

	switch ch {
	case '<', '>', '+', '-', '*', '/', '%', '(', ')', '[', ']', '{', '}', ',', ':':
		l.pos++
		return token{kind: tokOp, text: string(ch), pos: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return token{}, errAt(start, "unexpected character %q", string(r))
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	sawDot, sawExp := false, false
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if isDigit(c) {
			l.pos++
			continue
		}
		if c == '.' && !sawDot && !sawExp {
			sawDot = true
			l.pos++
			continue
		}
		if (c == 'e' || c == 'E') && !sawExp && l.pos > start {
			sawExp = true
			l.pos++
			if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
				l.pos++
			}
			continue
		}
		break
	}
	text := l.input[start:l.pos]
	if !sawDot && !sawExp {
		ival, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return token{kind: tokNumber, text: text, pos: start, isInt: true, ival: ival, num: float64(ival)}, nil
		}
		// fall through to float for out-of-range integers
	}
	fval, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, errAt(start, "invalid number %q", text)
	}
	return token{kind: tokNumber, text: text, pos: start, num: fval}, nil
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	quote := l.input[l.pos]
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == quote {
			l.pos++
			return token{kind: tokString, text: l.input[start:l.pos], pos: start, str: sb.String()}, nil
		}
		if c == '\\' {
			if l.pos+1 >= len(l.input) {
				break
			}
			esc := l.input[l.pos+1]
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			default:
				return token{}, errAt(l.pos, "unsupported escape \\%s", string(esc))
			}
			l.pos += 2
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
	return token{}, errAt(start, "unterminated string literal")
}

func (l *lexer) lexName() (token, error) {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isNamePart(r) {
			break
		}
		l.pos += size
	}
	text := l.input[start:l.pos]
	if keywords[text] {
		return token{kind: tokKeyword, text: text, pos: start}, nil
	}
	return token{kind: tokName, text: text, pos: start}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNamePart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
