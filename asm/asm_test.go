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

package asm_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nic-obert/stack-vm/asm"
	"github.com/nic-obert/stack-vm/vm"
)

func mustAssemble(t *testing.T, code string, opts ...asm.Option) vm.Image {
	t.Helper()
	img, err := asm.AssembleReader(t.Name(), strings.NewReader(code), opts...)
	require.NoError(t, err)
	return img
}

func TestLayout(t *testing.T) {
	img := mustAssemble(t, `
.text
	loadc1 1
	jmp end
@end
	halt 0
.data
	dat2 0x0102
`)
	var want []byte
	want = binary.LittleEndian.AppendUint64(want, 8) // entry: text base
	want = append(want, byte(vm.OpLoadC1), 1)
	want = append(want, byte(vm.OpJmp))
	want = binary.LittleEndian.AppendUint64(want, 19) // @end: 8 + 2 + 9
	want = append(want, byte(vm.OpHalt), 0)
	want = append(want, 0x02, 0x01)
	require.Equal(t, []byte(want), []byte(img))
}

func TestEntryLabel(t *testing.T) {
	img := mustAssemble(t, ".text\nloadc1 1\n@main\nhalt 0")
	require.Equal(t, uint64(10), img.EntryPoint())
}

func TestEntryDefaultsToSectionBase(t *testing.T) {
	img := mustAssemble(t, ".text\nhalt 0")
	require.Equal(t, uint64(8), img.EntryPoint())
}

func TestDeterminism(t *testing.T) {
	const code = `
.text
	loadc8 msg
	int 6
	halt 0
.data
@msg
	"bytes"
`
	a := mustAssemble(t, code)
	b := mustAssemble(t, code)
	require.Equal(t, a, b, "assembling the same source twice must be byte-identical")
}

func TestStringEmitsNUL(t *testing.T) {
	img := mustAssemble(t, ".text\nhalt 0\n.data\n\"Hi\"")
	require.Equal(t, []byte{'H', 'i', 0}, []byte(img[len(img)-3:]))
}

func TestForwardAndCrossSectionReferences(t *testing.T) {
	img := mustAssemble(t, `
.text
	loadc8 value	; forward reference into a later section
	halt 0
.data
@value
	dat8 after	; reference to a later label in the same section
@after
	dat1 0
`)
	// text: loadc8(9) halt(2) at base 8; data at 19: value holds 27
	require.Equal(t, uint64(19), binary.LittleEndian.Uint64(img[9:]))
	require.Equal(t, uint64(27), binary.LittleEndian.Uint64(img[19:]))
}

func TestDollarOperand(t *testing.T) {
	img := mustAssemble(t, ".text\n@main\njmp $\nhalt 0")
	// jmp at 8 targets itself
	require.Equal(t, uint64(8), binary.LittleEndian.Uint64(img[9:]))
}

func TestMacroParameters(t *testing.T) {
	img := mustAssemble(t, `
%push2 a b
	loadc1 %0
	loadc1 %1
%endmacro
.text
	!push2 3 4
	addi1
	halt 0
`)
	want := []byte{
		byte(vm.OpLoadC1), 3,
		byte(vm.OpLoadC1), 4,
		byte(vm.OpAddI1),
		byte(vm.OpHalt), 0,
	}
	require.Equal(t, want, []byte(img[8:]))
}

func TestNestedMacroInvocation(t *testing.T) {
	img := mustAssemble(t, `
%one
	loadc1 1
%endmacro
%two
	!one
	!one
%endmacro
.text
	!two
	halt 0
`)
	want := []byte{
		byte(vm.OpLoadC1), 1,
		byte(vm.OpLoadC1), 1,
		byte(vm.OpHalt), 0,
	}
	require.Equal(t, want, []byte(img[8:]))
}

// error tests: check that errors carry a location and the expected message
func wantError(t *testing.T, code, msg string) {
	t.Helper()
	img, err := asm.AssembleReader(t.Name(), strings.NewReader(code))
	require.Nil(t, img, "no image may be produced on error")
	require.Error(t, err)
	errs, ok := err.(asm.ErrAsm)
	require.True(t, ok, "error %T is not an ErrAsm", err)
	require.NotEmpty(t, errs)
	require.Contains(t, err.Error(), msg)
	for _, e := range errs {
		require.NotZero(t, e.Pos.Line, "error without a source line: %v", e)
	}
}

func TestAssemble_errors(t *testing.T) {
	for _, test := range []struct {
		name string
		code string
		msg  string
	}{
		{"unknown_mnemonic", ".text\nfrobnicate\nhalt 0", "unknown mnemonic frobnicate"},
		{"undefined_label", ".text\njmp nowhere\nhalt 0", "undefined label nowhere"},
		{"duplicate_label", ".text\n@a\nnop\n@a\nhalt 0", "label a redefined"},
		{"value_too_wide", ".text\nloadc1 300\nhalt 0", "does not fit in 1 bytes"},
		{"outside_section", "loadc1 1", "outside of a section"},
		{"unknown_macro", ".text\n!nope\nhalt 0", "unknown macro nope"},
		{"missing_operand", ".text\nloadc1\nhalt 0", "expects 1 operands"},
		{"excess_operand", ".text\nnop 4\nhalt 0", "expects 0 operands"},
		{"stray_endmacro", ".text\n%endmacro\nhalt 0", "%endmacro outside"},
		{"unterminated_string", ".text\nhalt 0\n.data\n\"oops", "unterminated string"},
		{"wide_char", ".text\nloadc1 'ab'\nhalt 0", "exactly one byte"},
		{"bad_escape", ".text\nloadc1 '\\q'\nhalt 0", "invalid escape"},
		{"negative_address", ".text\njmp -4\nhalt 0", "cannot be negative"},
		{"interrupt_code_wide", "%interrupt 300 foo\n.text\nhalt 0", "fit in one byte"},
		{"no_entry_section", ".data\ndat1 1", "missing entry section"},
		{"macro_redefined", "%m\n%endmacro\n%m\n%endmacro\n.text\nhalt 0", "macro m redefined"},
		{"section_redeclared", ".text\nhalt 0\n.data\n.data", "section data redeclared"},
	} {
		t.Run(test.name, func(t *testing.T) {
			wantError(t, test.code, test.msg)
		})
	}
}

func TestMacroRecursionOverflow(t *testing.T) {
	wantError(t, "%loop\n!loop\n%endmacro\n.text\n!loop\nhalt 0",
		"macro recursion overflow")
}

func TestErrorCollection(t *testing.T) {
	// pass 1 keeps going after an error to report as much as possible
	_, err := asm.AssembleReader(t.Name(), strings.NewReader(
		".text\nbogus1\nbogus2\nhalt 0"))
	require.Error(t, err)
	errs := err.(asm.ErrAsm)
	require.Len(t, errs, 2)
	require.Equal(t, 2, errs[0].Pos.Line)
	require.Equal(t, 3, errs[1].Pos.Line)
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0666))
	}
	return dir
}

func TestInclude(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.asm": "include \"lib.asm\"\n.text\nloadstatic1 five\nhalt 0\n",
		"lib.asm":  ".data\n@five\ndat1 5\n",
	})
	img, err := asm.Assemble(filepath.Join(dir, "main.asm"))
	require.NoError(t, err)
	require.Equal(t, byte(5), img[len(img)-1])
}

func TestInclude_idempotent(t *testing.T) {
	lib := ".data\n@five\ndat1 5\n"
	prog := ".text\nloadstatic1 five\nhalt 0\n"
	once := writeFiles(t, map[string]string{
		"main.asm": "include \"lib.asm\"\n" + prog,
		"lib.asm":  lib,
	})
	twice := writeFiles(t, map[string]string{
		"main.asm": "include \"lib.asm\"\ninclude \"lib.asm\"\n" + prog,
		"lib.asm":  lib,
	})
	a, err := asm.Assemble(filepath.Join(once, "main.asm"))
	require.NoError(t, err)
	b, err := asm.Assemble(filepath.Join(twice, "main.asm"))
	require.NoError(t, err)
	require.Equal(t, a, b, "including the same canonical file twice must be a no-op")
}

func TestInclude_cycle(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.asm": "include \"b.asm\"\n.text\nloadstatic1 five\nhalt 0\n",
		"b.asm": "include \"a.asm\"\n.data\n@five\ndat1 5\n",
	})
	// mutually-including files assemble fine, each emitted once
	img, err := asm.Assemble(filepath.Join(dir, "a.asm"))
	require.NoError(t, err)
	require.Equal(t, byte(5), img[len(img)-1])
}

func TestInclude_missing(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.asm": "include \"gone.asm\"\n.text\nhalt 0\n",
	})
	_, err := asm.Assemble(filepath.Join(dir, "main.asm"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestInclude_libPath(t *testing.T) {
	libDir := writeFiles(t, map[string]string{
		"lib.asm": ".data\n@five\ndat1 5\n",
	})
	dir := writeFiles(t, map[string]string{
		"main.asm": "include \"lib.asm\"\n.text\nloadstatic1 five\nhalt 0\n",
	})
	_, err := asm.Assemble(filepath.Join(dir, "main.asm"))
	require.Error(t, err, "lib.asm is not reachable without the library path")

	img, err := asm.Assemble(filepath.Join(dir, "main.asm"), asm.LibPaths(libDir))
	require.NoError(t, err)
	require.Equal(t, byte(5), img[len(img)-1])
}

func TestInclude_envLibPath(t *testing.T) {
	libDir := writeFiles(t, map[string]string{
		"lib.asm": ".data\n@five\ndat1 5\n",
	})
	dir := writeFiles(t, map[string]string{
		"main.asm": "include \"lib.asm\"\n.text\nloadstatic1 five\nhalt 0\n",
	})
	t.Setenv(asm.LibraryEnv, libDir)
	img, err := asm.Assemble(filepath.Join(dir, "main.asm"))
	require.NoError(t, err)
	require.Equal(t, byte(5), img[len(img)-1])
}

func TestInterruptDirective_prologue(t *testing.T) {
	img := mustAssemble(t, `%interrupt 32 handler
.text
@main
	halt 0
@handler
	ret
`)
	// the prologue opens the image right after the header: one intbind
	// per directive, then a jump to the real entry point
	require.Equal(t, uint64(8), img.EntryPoint())
	require.Equal(t, byte(vm.OpIntBind), img[8])
	require.Equal(t, byte(32), img[9])
	handler := binary.LittleEndian.Uint64(img[10:])
	require.Equal(t, byte(vm.OpRet), img[handler])
	require.Equal(t, byte(vm.OpJmp), img[18])
	main := binary.LittleEndian.Uint64(img[19:])
	require.Equal(t, byte(vm.OpHalt), img[main])
}

func TestBinaryAndHexLiterals(t *testing.T) {
	img := mustAssemble(t, ".text\nloadc1 0b101\nloadc1 0x2A\nhalt 0")
	require.Equal(t, []byte{byte(vm.OpLoadC1), 5, byte(vm.OpLoadC1), 42}, []byte(img[8:12]))
}
