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
	"os"
	"path/filepath"
	"strconv"
	"text/scanner"

	"github.com/pkg/errors"
)

// maxMacroDepth caps nested macro expansion.
const maxMacroDepth = 64

// LibraryEnv names the environment variable listing additional include
// search paths, separated by the OS path list separator.
const LibraryEnv = "HIVM_ASM_LIB"

// A Resolver locates include files. Resolve returns a key identifying the
// canonical file (used to drop repeated inclusions) and a reader for its
// contents. fromDir is the directory of the including file and takes
// precedence over any library path.
type Resolver interface {
	Resolve(path, fromDir string) (key string, r io.ReadCloser, err error)
}

// fileResolver resolves includes against the including file's directory
// first, then against the configured library paths. Keys are canonical
// absolute paths.
type fileResolver struct {
	libPaths []string
}

func (f *fileResolver) Resolve(path, fromDir string) (string, io.ReadCloser, error) {
	var dirs []string
	if fromDir != "" {
		dirs = append(dirs, fromDir)
	}
	dirs = append(dirs, f.libPaths...)
	dirs = append(dirs, filepath.SplitList(os.Getenv(LibraryEnv))...)
	for _, dir := range dirs {
		full := filepath.Join(dir, path)
		r, err := os.Open(full)
		if err != nil {
			continue
		}
		key, err := filepath.Abs(full)
		if err != nil {
			key = full
		}
		return key, r, nil
	}
	return "", nil, errors.Errorf("include file %q not found", path)
}

// macro is a preprocessor macro: a verbatim token sequence spliced at each
// invocation site, with positional parameters referenced as %0, %1, ... in
// the body.
type macro struct {
	name   string
	pos    scanner.Position
	params int
	body   []token
}

// preproc performs include inlining and macro expansion on the raw token
// stream. Macros share a single namespace across the whole compilation
// unit, includes included.
type preproc struct {
	errs      *ErrAsm
	resolvers []Resolver
	macros    map[string]*macro
	included  map[string]bool
}

func newPreproc(errs *ErrAsm, resolvers []Resolver) *preproc {
	return &preproc{
		errs:      errs,
		resolvers: resolvers,
		macros:    make(map[string]*macro),
		included:  make(map[string]bool),
	}
}

// loadFile tokenizes and preprocesses the file at path (resolved from
// fromDir), returning the expanded token stream. A file already seen under
// its canonical key expands to nothing, so mutually-including files are
// emitted once each.
func (p *preproc) loadFile(path, fromDir string, at scanner.Position) []token {
	var (
		key string
		r   io.ReadCloser
	)
	err := errors.Errorf("include file %q not found", path)
	for _, res := range p.resolvers {
		key, r, err = res.Resolve(path, fromDir)
		if err == nil {
			break
		}
	}
	if err != nil {
		p.errs.add(at, err.Error())
		return nil
	}
	defer r.Close()
	if p.included[key] {
		return nil
	}
	p.included[key] = true

	toks := newLexer(path, r, p.errs).tokenize()
	return p.process(toks, filepath.Dir(key))
}

// process runs the preprocessor over one file's tokens. dir is the file's
// directory, used to resolve its includes.
func (p *preproc) process(toks []token, dir string) []token {
	var out []token
	for i := 0; i < len(toks); {
		line, next := nextLine(toks, i)
		i = next

		switch {
		case len(line) == 0:
			continue

		case line[0].kind == tokPercent && len(line) > 1 &&
			line[1].kind == tokIdent && line[1].text == "endmacro":
			p.errs.add(line[0].pos, "%endmacro outside of a macro definition")

		case line[0].kind == tokPercent && len(line) > 1 &&
			line[1].kind == tokIdent && line[1].text != "interrupt":
			i = p.defineMacro(line, toks, i)

		case line[0].kind == tokIdent && line[0].text == "include":
			if len(line) != 2 || line[1].kind != tokString {
				p.errs.add(line[0].pos, "include expects a quoted file path")
				continue
			}
			out = append(out, p.loadFile(string(line[1].str), dir, line[0].pos)...)

		default:
			out = append(out, p.expand(line, 0)...)
			out = append(out, token{kind: tokEOL, pos: line[len(line)-1].pos})
		}
	}
	return out
}

// nextLine returns the tokens of the line starting at i, without its
// terminating tokEOL, and the index of the following line.
func nextLine(toks []token, i int) ([]token, int) {
	start := i
	for i < len(toks) && toks[i].kind != tokEOL {
		i++
	}
	line := toks[start:i]
	if i < len(toks) {
		i++
	}
	return line, i
}

// defineMacro consumes a %name definition whose header line is line and
// whose body runs from toks[i] to the %endmacro line. It returns the index
// past the body.
func (p *preproc) defineMacro(line []token, toks []token, i int) int {
	name := line[1].text
	m := &macro{name: name, pos: line[0].pos}
	if old, ok := p.macros[name]; ok {
		p.errs.add(line[0].pos, "macro "+name+" redefined, previous definition at "+old.pos.String())
	}
	for _, t := range line[2:] {
		if t.kind != tokIdent {
			p.errs.add(t.pos, "macro parameter must be an identifier")
			continue
		}
		m.params++
	}

	for i < len(toks) {
		body, next := nextLine(toks, i)
		if len(body) >= 2 && body[0].kind == tokPercent &&
			body[1].kind == tokIdent && body[1].text == "endmacro" {
			p.macros[name] = m
			return next
		}
		if len(body) >= 2 && body[0].kind == tokPercent && body[1].kind == tokIdent &&
			body[1].text != "interrupt" {
			p.errs.add(body[0].pos, "macro definitions cannot nest")
		}
		if len(body) > 0 {
			m.body = append(m.body, body...)
			m.body = append(m.body, token{kind: tokEOL, pos: body[len(body)-1].pos})
		}
		i = next
	}
	p.errs.add(m.pos, "missing %endmacro for macro "+name)
	return i
}

// expand rewrites one line, splicing macro bodies at each !name invocation.
// Expansion is recursive up to maxMacroDepth.
func (p *preproc) expand(line []token, depth int) []token {
	var out []token
	for i := 0; i < len(line); i++ {
		t := line[i]
		if t.kind != tokBang {
			out = append(out, t)
			continue
		}
		if i+1 >= len(line) || line[i+1].kind != tokIdent {
			p.errs.add(t.pos, "expected macro name after '!'")
			continue
		}
		name := line[i+1].text
		i++
		m := p.macros[name]
		if m == nil {
			p.errs.add(t.pos, "unknown macro "+name)
			continue
		}
		if depth >= maxMacroDepth {
			p.errs.add(t.pos, "macro recursion overflow expanding "+name)
			continue
		}
		args := line[i+1:]
		if len(args) < m.params {
			p.errs.add(t.pos, "macro "+name+" expects "+strconv.Itoa(m.params)+" arguments")
			continue
		}
		args = args[:m.params]
		i += m.params
		out = append(out, p.expand(substitute(m, args, p.errs), depth+1)...)
	}
	return out
}

// substitute returns a copy of the macro body with %K parameter references
// replaced by the K-th invocation argument.
func substitute(m *macro, args []token, errs *ErrAsm) []token {
	var out []token
	for i := 0; i < len(m.body); i++ {
		t := m.body[i]
		if t.kind == tokPercent && i+1 < len(m.body) && m.body[i+1].kind == tokInt {
			k := int(m.body[i+1].val)
			i++
			if m.body[i].neg || k >= len(args) {
				errs.add(t.pos, "macro "+m.name+" has no parameter %"+strconv.Itoa(k))
				continue
			}
			out = append(out, args[k])
			continue
		}
		out = append(out, t)
	}
	return out
}
