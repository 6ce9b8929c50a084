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
	"fmt"
	"text/scanner"
)

// tokKind classifies a lexical token.
type tokKind int

const (
	tokEOL tokKind = iota
	tokIdent
	tokInt
	tokChar
	tokString
	tokDot     // .  section marker
	tokAt      // @  label definition
	tokPercent // %  macro definition / parameter reference / directive
	tokBang    // !  macro invocation
	tokDollar  // $  current emission position
)

var kindNames = [...]string{
	tokEOL:     "end of line",
	tokIdent:   "identifier",
	tokInt:     "integer",
	tokChar:    "character literal",
	tokString:  "string literal",
	tokDot:     "'.'",
	tokAt:      "'@'",
	tokPercent: "'%'",
	tokBang:    "'!'",
	tokDollar:  "'$'",
}

func (k tokKind) String() string { return kindNames[k] }

// token is a single lexical token with its source location.
type token struct {
	kind tokKind
	pos  scanner.Position
	text string // identifier name or literal text
	val  uint64 // integer or character value, two's complement if negative
	neg  bool   // val was written as a negative literal
	str  []byte // unescaped string bytes, terminating NUL not included
}

func (t token) String() string {
	switch t.kind {
	case tokIdent:
		return t.text
	case tokInt:
		if t.neg {
			return fmt.Sprintf("%d", int64(t.val))
		}
		return fmt.Sprintf("%d", t.val)
	case tokChar, tokString:
		return t.text
	}
	return t.kind.String()
}

// fits reports whether the token's integer value fits in n bytes, honoring
// the sign it was written with.
func (t token) fits(n int) bool {
	if n == 8 {
		return true
	}
	if t.neg {
		v := int64(t.val)
		return v >= -(int64(1)<<(8*n-1)) && v < int64(1)<<(8*n-1)
	}
	return t.val < uint64(1)<<(8*n)
}
