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
	"unsafe"

	"github.com/pkg/errors"
)

// DefaultStackSize is the operation stack size in bytes used when no
// StackSize option is given. Operands and results are small; large data
// lives on the heap and is passed around by pointer.
const DefaultStackSize = 1024

// Execution states.
const (
	stateReady = iota
	stateRunning
	stateHalted
	stateTrapped
)

// Instance represents a VM instance.
type Instance struct {
	// PC is the program counter: a byte offset into program space.
	PC int

	code     Image
	stack    *opstack
	alloc    Allocator
	ints     [256]intEntry
	input    io.Reader
	output   io.Writer
	safe     bool
	state    int
	exit     byte
	insCount int64
	inBuf    [1]byte
}

// Option interface
type Option func(*Instance) error

// StackSize sets the operation stack size in bytes. The stack cannot be
// resized once execution has started.
func StackSize(size int) Option {
	return func(i *Instance) error {
		if size <= 0 {
			return errors.Errorf("invalid stack size %d", size)
		}
		i.stack = newOpstack(size)
		return nil
	}
}

// Safe selects safe execution: loads and stores that hit the operation
// stack buffer are bounds checked. Optimised mode (the default) elides the
// checks; all other semantics are identical.
func Safe(on bool) Option {
	return func(i *Instance) error { i.safe = on; return nil }
}

// Input pushes r on top of the input stack consumed by the read interrupts.
func Input(r io.Reader) Option {
	return func(i *Instance) error { i.PushInput(r); return nil }
}

// Output sets the writer that the print interrupts write to.
func Output(w io.Writer) Option {
	return func(i *Instance) error { i.output = w; return nil }
}

// WithAllocator sets the host allocator backing the heap interrupts.
func WithAllocator(a Allocator) Option {
	return func(i *Instance) error { i.alloc = a; return nil }
}

// BindIntHandler binds a Go handler to the given interrupt code, replacing
// any built-in or previous binding. Programs can still rebind the code at
// run time with intbind.
func BindIntHandler(code byte, h IntHandler) Option {
	return func(i *Instance) error {
		i.ints[code] = intEntry{h: h}
		return nil
	}
}

// SetOptions sets the provided options.
func (i *Instance) SetOptions(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return err
		}
	}
	return nil
}

// New creates a new VM instance executing the given image. The image must
// carry a valid entry header; the PC is set to the entry point and the
// built-in interrupt handlers are installed before the options are applied.
func New(img Image, opts ...Option) (*Instance, error) {
	if err := img.validate(); err != nil {
		return nil, errors.Wrap(err, "New")
	}
	i := &Instance{
		code:  img,
		PC:    int(img.EntryPoint()),
		alloc: NewAllocator(),
	}
	i.bindBuiltins()
	if err := i.SetOptions(opts...); err != nil {
		return nil, err
	}
	if i.stack == nil {
		i.stack = newOpstack(DefaultStackSize)
	}
	return i, nil
}

// Push pushes an n-byte value. n must be 1, 2, 4 or 8.
func (i *Instance) Push(n int, v uint64) {
	i.stack.push(n, v)
}

// Pop pops an n-byte value. n must be 1, 2, 4 or 8.
func (i *Instance) Pop(n int) uint64 {
	return i.stack.pop(n)
}

// Data returns the occupied portion of the operation stack, top first.
// Value changes are reflected in the instance's stack; re-slicing is not.
func (i *Instance) Data() []byte {
	return i.stack.buf[i.stack.sp:]
}

// Depth returns the number of occupied stack bytes.
func (i *Instance) Depth() int {
	return i.stack.depth()
}

// StackPointer returns the current stack pointer as a real pointer.
func (i *Instance) StackPointer() uint64 {
	return i.stack.spAddr()
}

// StackBase returns the stack base pointer, the empty-stack anchor.
func (i *Instance) StackBase() uint64 {
	return i.stack.sbAddr()
}

// ProgramBase returns the real address of program space. Adding a virtual
// address to it yields the translation performed by vtr.
func (i *Instance) ProgramBase() uint64 {
	return uint64(uintptr(unsafe.Pointer(&i.code[0])))
}

// ExitStatus returns the status passed to the halt instruction. It is only
// meaningful after Run returned nil.
func (i *Instance) ExitStatus() byte {
	return i.exit
}

// Halted reports whether the program executed a halt instruction.
func (i *Instance) Halted() bool {
	return i.state == stateHalted
}

// InstructionCount returns the number of instructions executed so far.
func (i *Instance) InstructionCount() int64 {
	return i.insCount
}

// Write writes to the VM output channel. It is meant for use by custom
// interrupt handlers.
func (i *Instance) Write(p []byte) (int, error) {
	if i.output == nil {
		return len(p), nil
	}
	return i.output.Write(p)
}

// ReadByte reads one byte from the VM input channel. It returns io.EOF when
// the last input reader is exhausted.
func (i *Instance) ReadByte() (byte, error) {
	if i.input == nil {
		return 0, io.EOF
	}
	for {
		n, err := i.input.Read(i.inBuf[:1])
		if n > 0 {
			return i.inBuf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
