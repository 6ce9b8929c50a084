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
	"fmt"

	"github.com/pkg/errors"
)

// TrapKind identifies a fatal execution error.
type TrapKind int

const (
	TrapUnknownOpcode TrapKind = iota
	TrapPCRange
	TrapStackOverflow
	TrapStackUnderflow
	TrapMemoryRange
	TrapUnboundInterrupt
	TrapDivideByZero
)

var trapNames = [...]string{
	TrapUnknownOpcode:    "unknown opcode",
	TrapPCRange:          "program counter out of program space",
	TrapStackOverflow:    "stack overflow",
	TrapStackUnderflow:   "stack underflow",
	TrapMemoryRange:      "memory access out of bounds",
	TrapUnboundInterrupt: "unbound interrupt",
	TrapDivideByZero:     "divide by zero",
}

func (k TrapKind) String() string {
	if int(k) < len(trapNames) {
		return trapNames[k]
	}
	return "unknown trap"
}

// Trap is the error returned by Run when execution terminates abnormally.
// PC is the address of the instruction that trapped.
type Trap struct {
	Kind TrapKind
	PC   int
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap: %v @pc=%d", t.Kind, t.PC)
}

// AsTrap unwraps err down to a *Trap if there is one.
func AsTrap(err error) (*Trap, bool) {
	t, ok := errors.Cause(err).(*Trap)
	return t, ok
}

// trap aborts the current instruction. Run recovers it, fills in the PC and
// returns it as an error.
func trap(k TrapKind) {
	panic(&Trap{Kind: k, PC: -1})
}
