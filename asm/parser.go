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
	"strconv"
	"text/scanner"

	"github.com/nic-obert/stack-vm/vm"
)

// section is a named emission region. Its byte buffer is laid out into the
// final image by pass 2; label-sized holes are zero filled and patched
// through fixups.
type section struct {
	name string
	pos  scanner.Position
	data []byte
	base int // absolute image offset, assigned by pass 2
}

func (s *section) emit(b ...byte) {
	s.data = append(s.data, b...)
}

func (s *section) emitLE(n int, v uint64) {
	for k := 0; k < n; k++ {
		s.data = append(s.data, byte(v>>(8*k)))
	}
}

// labelDef binds a label to a position within a section.
type labelDef struct {
	sec *section
	off int
	pos scanner.Position
}

// fixup is a deferred write of a resolved label offset into an 8-byte
// placeholder at off within sec.
type fixup struct {
	sec   *section
	off   int
	label string
	pos   scanner.Position
}

// intBind records a %interrupt directive: interrupt code -> handler label.
type intBind struct {
	code  byte
	label string
	pos   scanner.Position
}

// parser runs pass 1: it walks the preprocessed token stream and produces
// per-section byte buffers, the label table, the fixup list and the
// interrupt bindings.
type parser struct {
	errs     *ErrAsm
	sections []*section
	secNames map[string]*section
	labels   map[string]labelDef
	fixups   []fixup
	intBinds []intBind
	cur      *section
	anon     int

	// instrStart is the section offset of the line being encoded; $
	// operands resolve to it.
	instrStart int
}

func newParser(errs *ErrAsm) *parser {
	return &parser{
		errs:     errs,
		secNames: make(map[string]*section),
		labels:   make(map[string]labelDef),
	}
}

// parse consumes the whole preprocessed stream, collecting errors as it
// goes so a single run reports as much as possible.
func (p *parser) parse(toks []token) {
	for i := 0; i < len(toks); {
		var line []token
		line, i = nextLine(toks, i)
		if len(line) == 0 {
			continue
		}
		p.parseLine(line)
	}
}

func (p *parser) parseLine(line []token) {
	t := line[0]
	switch t.kind {
	case tokDot:
		p.parseSection(line)

	case tokAt:
		p.parseLabel(line)

	case tokPercent:
		p.parseDirective(line)

	case tokString:
		if !p.inSection(t.pos) {
			return
		}
		if len(line) != 1 {
			p.errs.add(line[1].pos, "unexpected token after string literal")
			return
		}
		// string data always carries its NUL terminator
		p.cur.emit(t.str...)
		p.cur.emit(0)

	case tokIdent:
		p.parseInstruction(line)

	default:
		p.errs.add(t.pos, "unexpected "+t.kind.String()+" at start of line")
	}
}

func (p *parser) inSection(pos scanner.Position) bool {
	if p.cur == nil {
		p.errs.add(pos, "emission outside of a section")
		return false
	}
	return true
}

func (p *parser) parseSection(line []token) {
	if len(line) != 2 || line[1].kind != tokIdent {
		p.errs.add(line[0].pos, "expected a section name after '.'")
		return
	}
	name := line[1].text
	if old, ok := p.secNames[name]; ok {
		p.errs.add(line[1].pos, "section "+name+" redeclared, first declared at "+old.pos.String())
		p.cur = old
		return
	}
	s := &section{name: name, pos: line[1].pos}
	p.secNames[name] = s
	p.sections = append(p.sections, s)
	p.cur = s
}

func (p *parser) parseLabel(line []token) {
	if len(line) != 2 || line[1].kind != tokIdent {
		p.errs.add(line[0].pos, "expected a label name after '@'")
		return
	}
	if !p.inSection(line[0].pos) {
		return
	}
	name := line[1].text
	if old, ok := p.labels[name]; ok {
		p.errs.add(line[1].pos, "label "+name+" redefined, previous definition at "+old.pos.String())
		return
	}
	p.labels[name] = labelDef{sec: p.cur, off: len(p.cur.data), pos: line[1].pos}
}

func (p *parser) parseDirective(line []token) {
	if len(line) < 2 || line[1].kind != tokIdent || line[1].text != "interrupt" {
		p.errs.add(line[0].pos, "unknown directive")
		return
	}
	if len(line) != 4 || line[2].kind != tokInt || line[3].kind != tokIdent {
		p.errs.add(line[0].pos, "%interrupt expects an interrupt code and a handler label")
		return
	}
	if line[2].neg || !line[2].fits(1) {
		p.errs.add(line[2].pos, "interrupt code must fit in one byte")
		return
	}
	p.intBinds = append(p.intBinds, intBind{
		code:  byte(line[2].val),
		label: line[3].text,
		pos:   line[2].pos,
	})
}

// dat directives emit raw little-endian values with no opcode.
var datWidths = map[string]int{"dat1": 1, "dat2": 2, "dat4": 4, "dat8": 8}

func (p *parser) parseInstruction(line []token) {
	t := line[0]
	if !p.inSection(t.pos) {
		return
	}
	if n, ok := datWidths[t.text]; ok {
		p.parseDat(line, n)
		return
	}
	op, ok := vm.LookupOp(t.text)
	if !ok {
		p.errs.add(t.pos, "unknown mnemonic "+t.text)
		return
	}
	p.instrStart = len(p.cur.data)
	p.cur.emit(byte(op))
	ops := line[1:]
	switch op.Arg() {
	case vm.ArgNone:
		p.wantOperands(t, ops, 0)

	case vm.ArgImm1, vm.ArgImm2, vm.ArgImm4, vm.ArgImm8:
		n := op.OperandLen()
		if !p.wantOperands(t, ops, 1) {
			p.cur.emitLE(n, 0)
			return
		}
		p.emitValue(ops[0], n)

	case vm.ArgAddr:
		if !p.wantOperands(t, ops, 1) {
			p.cur.emitLE(8, 0)
			return
		}
		p.emitAddr(ops[0])

	case vm.ArgBind:
		if !p.wantOperands(t, ops, 2) {
			p.cur.emitLE(1, 0)
			p.cur.emitLE(8, 0)
			return
		}
		p.emitValue(ops[0], 1)
		p.emitAddr(ops[1])
	}
}

func (p *parser) parseDat(line []token, n int) {
	p.instrStart = len(p.cur.data)
	if !p.wantOperands(line[0], line[1:], 1) {
		p.cur.emitLE(n, 0)
		return
	}
	if n == 8 {
		p.emitAddr(line[1])
		return
	}
	p.emitValue(line[1], n)
}

func (p *parser) wantOperands(t token, ops []token, n int) bool {
	if len(ops) == n {
		return true
	}
	p.errs.add(t.pos, t.text+" expects "+strconv.Itoa(n)+" operands, got "+strconv.Itoa(len(ops)))
	return false
}

// emitValue emits an n-byte immediate from a constant operand.
func (p *parser) emitValue(t token, n int) {
	switch t.kind {
	case tokInt, tokChar:
		if !t.fits(n) {
			p.errs.add(t.pos, "value "+t.String()+" does not fit in "+strconv.Itoa(n)+" bytes")
		}
		p.cur.emitLE(n, t.val)
	default:
		if n == 8 {
			p.emitAddr(t)
			return
		}
		p.errs.add(t.pos, "expected a constant operand, got "+t.kind.String())
		p.cur.emitLE(n, 0)
	}
}

// emitAddr emits an 8-byte address operand: a constant, a label reference
// recorded as a fixup, or $ for the current instruction address.
func (p *parser) emitAddr(t token) {
	switch t.kind {
	case tokInt, tokChar:
		if t.neg {
			p.errs.add(t.pos, "address operand cannot be negative")
		}
		p.cur.emitLE(8, t.val)
	case tokIdent:
		p.fixups = append(p.fixups, fixup{
			sec:   p.cur,
			off:   len(p.cur.data),
			label: t.text,
			pos:   t.pos,
		})
		p.cur.emitLE(8, 0)
	case tokDollar:
		// bind an internal label to the current instruction
		name := "$" + strconv.Itoa(p.anon)
		p.anon++
		p.labels[name] = labelDef{sec: p.cur, off: p.instrStart, pos: t.pos}
		p.fixups = append(p.fixups, fixup{
			sec:   p.cur,
			off:   len(p.cur.data),
			label: name,
			pos:   t.pos,
		})
		p.cur.emitLE(8, 0)
	default:
		p.errs.add(t.pos, "expected an address operand, got "+t.kind.String())
		p.cur.emitLE(8, 0)
	}
}
