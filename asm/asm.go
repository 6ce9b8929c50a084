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
	"encoding/binary"
	"io"
	"path/filepath"
	"strings"
	"text/scanner"

	"github.com/nic-obert/stack-vm/vm"
)

// entrySection is the name of the section contributing the entry point.
const entrySection = "text"

// entryLabel, when defined inside the entry section, overrides the entry
// section base as the program entry point.
const entryLabel = "main"

// Error is a single assembly error with its source location.
type Error struct {
	Pos scanner.Position
	Msg string
}

func (e Error) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

// ErrAsm is the error type returned by Assemble: the collected assembly
// errors in the order they were detected.
type ErrAsm []Error

func (e ErrAsm) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

func (e *ErrAsm) add(pos scanner.Position, msg string) {
	*e = append(*e, Error{Pos: pos, Msg: msg})
}

func (e ErrAsm) err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

type config struct {
	libPaths  []string
	resolvers []Resolver
}

// Option interface
type Option func(*config)

// LibPaths appends directories to the include library search path. Paths
// from the HIVM_ASM_LIB environment variable are searched after these.
func LibPaths(paths ...string) Option {
	return func(c *config) { c.libPaths = append(c.libPaths, paths...) }
}

// WithResolver appends an include resolver consulted after the filesystem,
// e.g. the embedded standard library.
func WithResolver(r Resolver) Option {
	return func(c *config) { c.resolvers = append(c.resolvers, r) }
}

func (c *config) preproc(errs *ErrAsm) *preproc {
	resolvers := append([]Resolver{&fileResolver{libPaths: c.libPaths}}, c.resolvers...)
	return newPreproc(errs, resolvers)
}

// Assemble compiles the assembly source file at path and returns the
// resulting program image.
//
// The returned error, if not nil, can be cast to an ErrAsm holding every
// collected error with its source location.
func Assemble(path string, opts ...Option) (vm.Image, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	errs := ErrAsm{}
	pp := c.preproc(&errs)
	toks := pp.loadFile(filepath.Base(path), filepath.Dir(path), scanner.Position{Filename: path})
	return assemble(toks, &errs)
}

// AssembleReader compiles assembly read from r. The name parameter names
// the source in error messages; includes are resolved relative to its
// directory.
func AssembleReader(name string, r io.Reader, opts ...Option) (vm.Image, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	errs := ErrAsm{}
	pp := c.preproc(&errs)
	toks := newLexer(name, r, &errs).tokenize()
	toks = pp.process(toks, filepath.Dir(name))
	return assemble(toks, &errs)
}

func assemble(toks []token, errs *ErrAsm) (vm.Image, error) {
	p := newParser(errs)
	p.parse(toks)
	// pass 1 collects as much as it can; do not lay out broken sections
	if err := errs.err(); err != nil {
		return nil, err
	}
	img := layout(p)
	if err := errs.err(); err != nil {
		return nil, err
	}
	return img, nil
}

// layout is pass 2. It assigns every section an absolute base offset in
// the image (header, then the entry section, then the remaining sections
// in declaration order), resolves labels, patches fixups and writes the
// entry header.
func layout(p *parser) vm.Image {
	entry := p.secNames[entrySection]
	if entry == nil {
		// report at the first declared section, if there is one
		var pos scanner.Position
		if len(p.sections) > 0 {
			pos = p.sections[0].pos
		}
		p.errs.add(pos, "missing entry section ."+entrySection)
		return nil
	}

	// %interrupt directives compile into an intbind prologue executed
	// before the program entry point.
	prologue := p.prologue(entry)

	ordered := make([]*section, 0, len(p.sections)+1)
	if prologue != nil {
		ordered = append(ordered, prologue)
	}
	ordered = append(ordered, entry)
	for _, s := range p.sections {
		if s != entry {
			ordered = append(ordered, s)
		}
	}

	off := vm.HeaderSize
	for _, s := range ordered {
		s.base = off
		off += len(s.data)
	}

	img := make(vm.Image, off)
	for _, s := range ordered {
		copy(img[s.base:], s.data)
	}

	for _, f := range p.fixups {
		def, ok := p.labels[f.label]
		if !ok {
			p.errs.add(f.pos, "undefined label "+f.label)
			continue
		}
		binary.LittleEndian.PutUint64(img[f.sec.base+f.off:], uint64(def.sec.base+def.off))
	}

	start := entry.base
	if def, ok := p.labels[entryLabel]; ok && def.sec == entry {
		start = def.sec.base + def.off
	}
	if prologue != nil {
		// the prologue ends with a jump to the real entry point
		binary.LittleEndian.PutUint64(img[prologue.base+len(prologue.data)-8:], uint64(start))
		start = prologue.base
	}
	binary.LittleEndian.PutUint64(img[:vm.HeaderSize], uint64(start))
	return img
}

// prologue builds the internal section holding one intbind per %interrupt
// directive, terminated by a jump into the entry section. Its trailing
// 8 bytes are patched by layout once the entry point is known.
func (p *parser) prologue(entry *section) *section {
	if len(p.intBinds) == 0 {
		return nil
	}
	s := &section{name: "", pos: entry.pos}
	for _, b := range p.intBinds {
		s.emit(byte(vm.OpIntBind), b.code)
		p.fixups = append(p.fixups, fixup{sec: s, off: len(s.data), label: b.label, pos: b.pos})
		s.emitLE(8, 0)
	}
	s.emit(byte(vm.OpJmp))
	s.emitLE(8, 0)
	return s
}
