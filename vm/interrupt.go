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

package vm

import (
	"io"
	"strconv"
)

// Built-in interrupt codes. Codes 0-31 are reserved for built-ins; 32-255
// are free for program-defined handlers.
const (
	IntAlloc byte = iota
	IntFree
	IntRealloc
	IntPrintByte
	IntPrintInt
	IntPrintString
	IntPrintStaticString
	IntReadByte
	IntFlush
)

// IntHandler is a Go function bound to an interrupt code.
type IntHandler func(i *Instance) error

// intEntry is an interrupt table slot: either a Go handler or a
// program-space handler address installed by intbind.
type intEntry struct {
	h    IntHandler
	addr int
	prog bool
}

type flusher interface {
	Flush() error
}

// dispatch invokes the handler bound to code. A program-defined handler is
// entered like a call: the return PC is pushed and the handler runs until
// its ret. Dispatching an unbound code traps.
func (i *Instance) dispatch(code byte) error {
	e := &i.ints[code]
	switch {
	case e.prog:
		i.stack.push(8, uint64(i.PC))
		i.PC = e.addr
		return nil
	case e.h != nil:
		return e.h(i)
	default:
		trap(TrapUnboundInterrupt)
		return nil
	}
}

func (i *Instance) bindBuiltins() {
	i.ints[IntAlloc] = intEntry{h: (*Instance).intAlloc}
	i.ints[IntFree] = intEntry{h: (*Instance).intFree}
	i.ints[IntRealloc] = intEntry{h: (*Instance).intRealloc}
	i.ints[IntPrintByte] = intEntry{h: (*Instance).intPrintByte}
	i.ints[IntPrintInt] = intEntry{h: (*Instance).intPrintInt}
	i.ints[IntPrintString] = intEntry{h: (*Instance).intPrintString}
	i.ints[IntPrintStaticString] = intEntry{h: (*Instance).intPrintStaticString}
	i.ints[IntReadByte] = intEntry{h: (*Instance).intReadByte}
	i.ints[IntFlush] = intEntry{h: (*Instance).intFlush}
}

// alloc: ( size8 -- ptr8 ) ptr is 0 on failure.
func (i *Instance) intAlloc() error {
	size := i.stack.pop(8)
	i.stack.push(8, i.alloc.Alloc(size))
	return nil
}

// free: ( ptr8 -- )
func (i *Instance) intFree() error {
	i.alloc.Free(i.stack.pop(8))
	return nil
}

// realloc: ( size8 ptr8 -- ptr8 ) ptr is 0 on failure.
func (i *Instance) intRealloc() error {
	ptr := i.stack.pop(8)
	size := i.stack.pop(8)
	i.stack.push(8, i.alloc.Realloc(ptr, size))
	return nil
}

// print-byte: ( b1 -- ) writes the byte as-is.
func (i *Instance) intPrintByte() error {
	_, err := i.Write([]byte{byte(i.stack.pop(1))})
	return err
}

// print-int: ( v8 -- ) writes the value in decimal.
func (i *Instance) intPrintInt() error {
	_, err := io.WriteString(i, strconv.FormatUint(i.stack.pop(8), 10))
	return err
}

// print-string: ( ptr8 -- ) writes the NUL terminated bytes at a real
// pointer, terminator excluded.
func (i *Instance) intPrintString() error {
	_, err := i.Write(cstringAt(i.stack.pop(8)))
	return err
}

// print-static-string: ( vaddr8 -- ) like print-string but reads program
// space at a virtual address, translating internally.
func (i *Instance) intPrintStaticString() error {
	v := i.stack.pop(8)
	if v >= uint64(len(i.code)) {
		trap(TrapMemoryRange)
	}
	s := i.code[v:]
	for n := 0; n < len(s); n++ {
		if s[n] == 0 {
			s = s[:n]
			break
		}
	}
	_, err := i.Write(s)
	return err
}

// read-byte: ( -- b1 ) pushes the next input byte, or 0 at end of input.
func (i *Instance) intReadByte() error {
	b, err := i.ReadByte()
	if err != nil {
		if err == io.EOF {
			i.stack.push(1, 0)
			return nil
		}
		return err
	}
	i.stack.push(1, uint64(b))
	return nil
}

// flush: ( -- ) flushes the output channel if it is buffered.
func (i *Instance) intFlush() error {
	if f, ok := i.output.(flusher); ok {
		return f.Flush()
	}
	return nil
}
