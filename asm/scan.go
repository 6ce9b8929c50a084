// This file is part of stack-vm - https://github.com/nic-obert/stack-vm
//
// Copyright 2024 Nic Obert
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

package asm

import (
	"io"
	"strconv"
	"strings"
	"text/scanner"
	"unicode/utf8"
)

// lexer turns an assembly source into a token stream. It is built on
// text/scanner for identifiers and integers; character and string literals
// are scanned by hand because the surface's escape set (notably \0) is not
// Go's. Newlines are significant and surface as tokEOL tokens.
type lexer struct {
	s    scanner.Scanner
	errs *ErrAsm
}

func isIdentRune(ch rune, i int) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || i > 0 && ch >= '0' && ch <= '9'
}

func newLexer(name string, r io.Reader, errs *ErrAsm) *lexer {
	l := &lexer{errs: errs}
	l.s.Init(r)
	l.s.Filename = name
	l.s.Mode = scanner.ScanIdents | scanner.ScanInts
	l.s.Whitespace = 1<<'\t' | 1<<'\r' | 1<<' '
	l.s.IsIdentRune = isIdentRune
	l.s.Error = func(s *scanner.Scanner, msg string) {
		errs.add(s.Pos(), msg)
	}
	return l
}

// tokenize scans the whole source. The returned stream always ends with a
// tokEOL so line-oriented consumers need no special end-of-file handling.
func (l *lexer) tokenize() []token {
	var toks []token
	for {
		tok := l.s.Scan()
		pos := l.s.Position
		switch tok {
		case scanner.EOF:
			toks = append(toks, token{kind: tokEOL, pos: pos})
			return toks
		case '\n':
			toks = append(toks, token{kind: tokEOL, pos: pos})
		case ';':
			// comment to end of line
			for ch := l.s.Peek(); ch != '\n' && ch != scanner.EOF; ch = l.s.Peek() {
				l.s.Next()
			}
		case scanner.Ident:
			toks = append(toks, token{kind: tokIdent, pos: pos, text: l.s.TokenText()})
		case scanner.Int:
			toks = append(toks, l.intToken(pos, l.s.TokenText(), false))
		case '-':
			if ch := l.s.Peek(); ch >= '0' && ch <= '9' {
				if t := l.s.Scan(); t == scanner.Int {
					toks = append(toks, l.intToken(pos, l.s.TokenText(), true))
					continue
				}
				l.errs.add(pos, "malformed negative integer literal")
				continue
			}
			l.errs.add(pos, "unexpected character '-'")
		case '\'':
			toks = append(toks, l.charToken(pos))
		case '"':
			toks = append(toks, l.stringToken(pos))
		case '.':
			toks = append(toks, token{kind: tokDot, pos: pos})
		case '@':
			toks = append(toks, token{kind: tokAt, pos: pos})
		case '%':
			toks = append(toks, token{kind: tokPercent, pos: pos})
		case '!':
			toks = append(toks, token{kind: tokBang, pos: pos})
		case '$':
			toks = append(toks, token{kind: tokDollar, pos: pos})
		default:
			l.errs.add(pos, "invalid token "+strconv.QuoteRune(tok))
		}
	}
}

func (l *lexer) intToken(pos scanner.Position, text string, neg bool) token {
	v, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		l.errs.add(pos, "malformed integer literal "+text)
		return token{kind: tokInt, pos: pos, text: text}
	}
	if neg {
		if v > 1<<63 {
			l.errs.add(pos, "negative literal -"+text+" out of range")
		}
		return token{kind: tokInt, pos: pos, text: text, val: uint64(-int64(v)), neg: true}
	}
	return token{kind: tokInt, pos: pos, text: text, val: v}
}

// quoted reads the body of a quoted literal up to the closing quote,
// handling escape sequences. The opening quote has already been consumed.
func (l *lexer) quoted(pos scanner.Position, quote rune) ([]byte, bool) {
	var b []byte
	var rbuf [utf8.UTFMax]byte
	for {
		ch := l.s.Next()
		switch ch {
		case quote:
			return b, true
		case '\n', scanner.EOF:
			l.errs.add(pos, "unterminated "+literalName(quote))
			return b, false
		case '\\':
			esc := l.s.Next()
			switch esc {
			case '0':
				b = append(b, 0)
			case 'n':
				b = append(b, '\n')
			case 'r':
				b = append(b, '\r')
			case 't':
				b = append(b, '\t')
			case '\\', '\'', '"':
				b = append(b, byte(esc))
			default:
				l.errs.add(l.s.Pos(), "invalid escape sequence \\"+string(esc))
				return b, false
			}
		default:
			n := utf8.EncodeRune(rbuf[:], ch)
			b = append(b, rbuf[:n]...)
		}
	}
}

func literalName(quote rune) string {
	if quote == '\'' {
		return "character literal"
	}
	return "string literal"
}

func (l *lexer) charToken(pos scanner.Position) token {
	b, ok := l.quoted(pos, '\'')
	if ok && len(b) != 1 {
		l.errs.add(pos, "character literal must contain exactly one byte")
	}
	t := token{kind: tokChar, pos: pos, text: "'" + string(b) + "'"}
	if len(b) > 0 {
		t.val = uint64(b[0])
	}
	return t
}

func (l *lexer) stringToken(pos scanner.Position) token {
	b, _ := l.quoted(pos, '"')
	return token{kind: tokString, pos: pos, text: strings.ToValidUTF8(string(b), ""), str: b}
}
