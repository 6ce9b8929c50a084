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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func scan(t *testing.T, src string) ([]token, ErrAsm) {
	t.Helper()
	errs := ErrAsm{}
	toks := newLexer("test", strings.NewReader(src), &errs).tokenize()
	return toks, errs
}

func kinds(toks []token) []tokKind {
	k := make([]tokKind, len(toks))
	for i, t := range toks {
		k[i] = t.kind
	}
	return k
}

func TestLexer_kinds(t *testing.T) {
	toks, errs := scan(t, ".text\n@label\nloadc1 42 $ !m %p\n")
	require.Empty(t, errs)
	require.Equal(t, []tokKind{
		tokDot, tokIdent, tokEOL,
		tokAt, tokIdent, tokEOL,
		tokIdent, tokInt, tokDollar, tokBang, tokIdent, tokPercent, tokIdent, tokEOL,
		tokEOL, // end of input
	}, kinds(toks))
}

func TestLexer_integers(t *testing.T) {
	for _, test := range []struct {
		src string
		val uint64
		neg bool
	}{
		{"42", 42, false},
		{"0x2A", 42, false},
		{"0b101010", 42, false},
		{"-1", ^uint64(0), true},
		{"-128", uint64(0xFFFFFFFFFFFFFF80), true},
		{"18446744073709551615", ^uint64(0), false},
	} {
		toks, errs := scan(t, test.src)
		require.Empty(t, errs, "%s", test.src)
		require.Equal(t, tokInt, toks[0].kind, "%s", test.src)
		require.Equal(t, test.val, toks[0].val, "%s", test.src)
		require.Equal(t, test.neg, toks[0].neg, "%s", test.src)
	}
}

func TestLexer_fits(t *testing.T) {
	toks, _ := scan(t, "255 256 -128 -129")
	require.True(t, toks[0].fits(1))
	require.False(t, toks[1].fits(1))
	require.True(t, toks[2].fits(1))
	require.False(t, toks[3].fits(1))
	require.True(t, toks[3].fits(2))
}

func TestLexer_charLiterals(t *testing.T) {
	for _, test := range []struct {
		src string
		val uint64
	}{
		{`'A'`, 'A'},
		{`'\n'`, '\n'},
		{`'\t'`, '\t'},
		{`'\0'`, 0},
		{`'\\'`, '\\'},
		{`'\''`, '\''},
	} {
		toks, errs := scan(t, test.src)
		require.Empty(t, errs, "%s", test.src)
		require.Equal(t, tokChar, toks[0].kind, "%s", test.src)
		require.Equal(t, test.val, toks[0].val, "%s", test.src)
	}
}

func TestLexer_stringLiterals(t *testing.T) {
	toks, errs := scan(t, `"a\tb\0c\"d"`)
	require.Empty(t, errs)
	require.Equal(t, tokString, toks[0].kind)
	require.Equal(t, []byte("a\tb\x00c\"d"), toks[0].str)
}

func TestLexer_comments(t *testing.T) {
	toks, errs := scan(t, "nop ; this is ignored\nhalt 0")
	require.Empty(t, errs)
	require.Equal(t, []tokKind{
		tokIdent, tokEOL,
		tokIdent, tokInt, tokEOL, // EOF closes the last line
	}, kinds(toks))
}

func TestLexer_positions(t *testing.T) {
	toks, _ := scan(t, "nop\n  loadc1 3")
	require.Equal(t, 1, toks[0].pos.Line)
	require.Equal(t, 1, toks[0].pos.Column)
	loadc := toks[2]
	require.Equal(t, 2, loadc.pos.Line)
	require.Equal(t, 3, loadc.pos.Column)
}

func TestLexer_unterminated(t *testing.T) {
	_, errs := scan(t, `"abc`)
	require.NotEmpty(t, errs)
	require.Contains(t, errs.Error(), "unterminated string literal")

	_, errs = scan(t, "'a\n")
	require.NotEmpty(t, errs)
	require.Contains(t, errs.Error(), "unterminated character literal")
}

func TestPreproc_macroBodiesAreVerbatim(t *testing.T) {
	errs := ErrAsm{}
	pp := newPreproc(&errs, nil)
	toks := newLexer("test", strings.NewReader(
		"%m\nloadc1 1\nloadc1 2\n%endmacro\n!m\n"), &errs).tokenize()
	out := pp.process(toks, ".")
	require.Empty(t, errs)

	var idents []string
	for _, tk := range out {
		if tk.kind == tokIdent {
			idents = append(idents, tk.text)
		}
	}
	require.Equal(t, []string{"loadc1", "loadc1"}, idents)
}

func TestPreproc_unknownDirectiveKeepsInterrupt(t *testing.T) {
	// %interrupt passes through the preprocessor untouched
	errs := ErrAsm{}
	pp := newPreproc(&errs, nil)
	toks := newLexer("test", strings.NewReader("%interrupt 32 h\n"), &errs).tokenize()
	out := pp.process(toks, ".")
	require.Empty(t, errs)
	require.Equal(t, tokPercent, out[0].kind)
	require.Equal(t, "interrupt", out[1].text)
}
