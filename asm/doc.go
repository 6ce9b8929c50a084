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

// Package asm compiles the textual assembly language into program images
// executable by the vm package.
//
// Compilation runs in two passes over a preprocessed token stream. Pass 1
// lays sections out as independent byte buffers, records label definitions
// and emits zero-filled placeholders for label references. Pass 2 assigns
// each section its absolute offset in the image (8-byte entry header, then
// the entry section, then the remaining sections in declaration order),
// resolves every label and patches the placeholders. Errors are collected
// with their source locations and reported together; no image is written
// if any error occurred.
//
// Source surface:
//
// Comments run from ';' to the end of the line. Instructions are
// line-oriented: one instruction, directive, label or data item per line.
//
// Sections are introduced with a dot marker:
//
//	.text		; the entry section
//	.data		; any other name declares a plain data section
//
// The section named "text" must exist and contributes the entry point: the
// label "main", if defined inside it, otherwise its first byte.
//
// Labels are defined with '@' and referenced bare in operand position.
// Forward references are fine. '$' in operand position refers to the
// address of the current instruction:
//
//	@loop
//		jmp $		; loop forever
//
// Mnemonics are size suffixed; the suffix (1, 2, 4 or 8 bytes) picks the
// opcode, e.g. loadc1/loadc2/loadc4/loadc8. Immediate operands are integer
// literals (decimal, 0x hex, 0b binary, optionally negative), character
// literals, or, for 8-byte operands, label references. Address operands
// (jmp, call, jnzc<N>, jzc<N>, loadstatic<N>, vctr) take labels, constants
// or '$'.
//
// Raw data is emitted with dat1/dat2/dat4/dat8, or with a bare string
// literal which always carries a trailing NUL so the string print
// interrupts find their terminator:
//
//	.data
//	@greeting
//		"Hello\n"
//	@answer
//		dat8 42
//
// Character and string literals support the escapes \0 \n \r \t \\ \' \".
//
// Macros are defined with '%' and invoked with '!'. Parameters are
// positional, referenced in the body as %0, %1, ...:
//
//	%inc1 reg
//		!%0
//		load1
//		loadc1 1
//		addi1
//	%endmacro
//
//	!inc1 r0
//
// Invocation splices the body, token substituted, at the call site; macros
// may invoke other macros up to a fixed recursion depth. Definitions do
// not nest. Macros share one namespace across the whole compilation unit.
//
// Includes inline another source file:
//
//	include "string.asm"
//
// The path is resolved against the including file's directory first, then
// the configured library paths (LibPaths option, then the HIVM_ASM_LIB
// environment variable), then any additional resolvers such as the
// embedded standard library. Each canonical file is spliced at most once
// per compilation unit, so files including each other assemble fine.
//
// The %interrupt directive binds an interrupt code to a program-defined
// handler:
//
//	%interrupt 32 on_tick
//
// The bindings compile into an instruction prologue placed before the
// entry point, so the handlers are installed by the time user code runs.
// Handlers are entered with the return address on the stack and must
// terminate with ret.
package asm
