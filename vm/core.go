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

import "github.com/pkg/errors"

// width returns the operand width in bytes of op within its size-suffixed
// family. Families are laid out in opcode order 1, 2, 4, 8.
func width(op, base Opcode) int {
	return 1 << (op - base)
}

// fetch reads n operand bytes at the PC and advances it.
func (i *Instance) fetch(n int) uint64 {
	if i.PC+n > len(i.code) {
		trap(TrapPCRange)
	}
	v := leLoad(i.code[i.PC:], n)
	i.PC += n
	return v
}

// checkMem bounds-checks a generic memory access in safe mode. Accesses
// falling entirely outside the operation stack buffer belong to the heap
// and are delegated to the host OS.
func (i *Instance) checkMem(addr uint64, n int) {
	if !i.safe {
		return
	}
	if _, bad := i.stack.contains(addr, n); bad {
		trap(TrapMemoryRange)
	}
}

// static returns n bytes of program space at a virtual address.
func (i *Instance) static(v uint64, n int) []byte {
	if v > uint64(len(i.code)) || uint64(len(i.code))-v < uint64(n) {
		trap(TrapMemoryRange)
	}
	return i.code[v : v+uint64(n)]
}

// Run executes the program from the current PC until a halt instruction or
// a trap. It returns nil on a clean halt (the status byte is available via
// ExitStatus), the offending Trap on a trap, and the wrapped error when a
// Go interrupt handler fails. A trapped or halted
// instance cannot be run again.
//
// For performance reasons the PC is not advanced in a single place: each
// opcode consumes its own operands, and the jump family overwrites the PC
// outright.
func (i *Instance) Run() (err error) {
	if i.state != stateReady {
		return errors.Errorf("Run: instance is not runnable")
	}
	i.state = stateRunning
	pc := i.PC
	defer func() {
		if e := recover(); e != nil {
			t, ok := e.(*Trap)
			if !ok {
				panic(e)
			}
			t.PC = pc
			i.state = stateTrapped
			err = t
		}
	}()

	s := i.stack
	for {
		pc = i.PC
		if pc >= len(i.code) {
			trap(TrapPCRange)
		}
		op := Opcode(i.code[pc])
		i.PC++
		if !op.Valid() {
			trap(TrapUnknownOpcode)
		}

		switch op {
		case OpNop:

		case OpLoadC1, OpLoadC2, OpLoadC4, OpLoadC8:
			n := width(op, OpLoadC1)
			s.push(n, i.fetch(n))

		case OpLoadStatic1, OpLoadStatic2, OpLoadStatic4, OpLoadStatic8:
			n := width(op, OpLoadStatic1)
			s.push(n, leLoad(i.static(i.fetch(8), n), n))

		case OpLoad1, OpLoad2, OpLoad4, OpLoad8:
			n := width(op, OpLoad1)
			addr := s.pop(8)
			i.checkMem(addr, n)
			s.push(n, ptrLoad(addr, n))

		case OpVtr:
			s.push(8, i.ProgramBase()+s.pop(8))

		case OpVctr:
			s.push(8, i.ProgramBase()+i.fetch(8))

		case OpStore1, OpStore2, OpStore4, OpStore8:
			n := width(op, OpStore1)
			v := s.pop(n)
			addr := s.pop(8)
			i.checkMem(addr, n)
			ptrStore(addr, n, v)

		case OpMemmove1, OpMemmove2, OpMemmove4, OpMemmove8:
			n := width(op, OpMemmove1)
			dst := s.pop(8)
			src := s.pop(8)
			i.checkMem(dst, n)
			i.checkMem(src, n)
			ptrCopy(dst, src, n)

		case OpMemmoveN:
			dst := s.pop(8)
			src := s.pop(8)
			n := int(s.pop(8))
			i.checkMem(dst, n)
			i.checkMem(src, n)
			ptrCopy(dst, src, n)

		case OpDup1, OpDup2, OpDup4, OpDup8:
			s.dup(width(op, OpDup1))

		case OpPop1, OpPop2, OpPop4, OpPop8:
			s.pop(width(op, OpPop1))

		case OpSwap1, OpSwap2, OpSwap4, OpSwap8:
			s.swap(width(op, OpSwap1))

		case OpLoadSP:
			s.push(8, s.spAddr())

		case OpLoadSB:
			s.push(8, s.sbAddr())

		case OpPushPC:
			s.push(8, uint64(i.PC))

		case OpAddI1, OpAddI2, OpAddI4, OpAddI8:
			n := width(op, OpAddI1)
			rhs := s.pop(n)
			lhs := s.pop(n)
			s.push(n, lhs+rhs)

		case OpSubI1, OpSubI2, OpSubI4, OpSubI8:
			n := width(op, OpSubI1)
			rhs := s.pop(n)
			lhs := s.pop(n)
			s.push(n, lhs-rhs)

		case OpMulI1, OpMulI2, OpMulI4, OpMulI8:
			n := width(op, OpMulI1)
			rhs := s.pop(n)
			lhs := s.pop(n)
			s.push(n, lhs*rhs)

		case OpDivI1, OpDivI2, OpDivI4, OpDivI8:
			n := width(op, OpDivI1)
			rhs := s.pop(n)
			lhs := s.pop(n)
			if rhs == 0 {
				trap(TrapDivideByZero)
			}
			s.push(n, uint64(signExtend(lhs, n)/signExtend(rhs, n)))

		case OpDivU1, OpDivU2, OpDivU4, OpDivU8:
			n := width(op, OpDivU1)
			rhs := s.pop(n)
			lhs := s.pop(n)
			if rhs == 0 {
				trap(TrapDivideByZero)
			}
			s.push(n, lhs/rhs)

		case OpModI1, OpModI2, OpModI4, OpModI8:
			n := width(op, OpModI1)
			rhs := s.pop(n)
			lhs := s.pop(n)
			if rhs == 0 {
				trap(TrapDivideByZero)
			}
			s.push(n, uint64(signExtend(lhs, n)%signExtend(rhs, n)))

		case OpModU1, OpModU2, OpModU4, OpModU8:
			n := width(op, OpModU1)
			rhs := s.pop(n)
			lhs := s.pop(n)
			if rhs == 0 {
				trap(TrapDivideByZero)
			}
			s.push(n, lhs%rhs)

		case OpAnd1, OpAnd2, OpAnd4, OpAnd8:
			n := width(op, OpAnd1)
			rhs := s.pop(n)
			s.push(n, s.pop(n)&rhs)

		case OpOr1, OpOr2, OpOr4, OpOr8:
			n := width(op, OpOr1)
			rhs := s.pop(n)
			s.push(n, s.pop(n)|rhs)

		case OpXor1, OpXor2, OpXor4, OpXor8:
			n := width(op, OpXor1)
			rhs := s.pop(n)
			s.push(n, s.pop(n)^rhs)

		case OpNot1, OpNot2, OpNot4, OpNot8:
			n := width(op, OpNot1)
			s.push(n, ^s.pop(n))

		case OpShl1, OpShl2, OpShl4, OpShl8:
			n := width(op, OpShl1)
			rhs := s.pop(n)
			s.push(n, s.pop(n)<<(rhs%uint64(8*n)))

		case OpShr1, OpShr2, OpShr4, OpShr8:
			n := width(op, OpShr1)
			rhs := s.pop(n)
			s.push(n, s.pop(n)>>(rhs%uint64(8*n)))

		case OpJmp:
			i.PC = int(i.fetch(8))

		case OpJnzC1, OpJnzC2, OpJnzC4, OpJnzC8:
			n := width(op, OpJnzC1)
			target := i.fetch(8)
			if s.pop(n) != 0 {
				i.PC = int(target)
			}

		case OpJzC1, OpJzC2, OpJzC4, OpJzC8:
			n := width(op, OpJzC1)
			target := i.fetch(8)
			if s.pop(n) == 0 {
				i.PC = int(target)
			}

		case OpCall:
			target := i.fetch(8)
			s.push(8, uint64(i.PC))
			i.PC = int(target)

		case OpRet:
			i.PC = int(s.pop(8))

		case OpInt:
			if err = i.dispatch(byte(i.fetch(1))); err != nil {
				return errors.Wrapf(err, "interrupt @pc=%d", pc)
			}

		case OpIntr:
			if err = i.dispatch(byte(s.pop(1))); err != nil {
				return errors.Wrapf(err, "interrupt @pc=%d", pc)
			}

		case OpIntBind:
			code := byte(i.fetch(1))
			i.ints[code] = intEntry{addr: int(i.fetch(8)), prog: true}

		case OpHalt:
			i.exit = byte(i.fetch(1))
			i.state = stateHalted
			i.insCount++
			return nil
		}
		i.insCount++
	}
}
