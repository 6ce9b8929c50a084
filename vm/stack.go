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

import "unsafe"

// opstack is the operation stack: a fixed-size byte buffer growing toward
// lower addresses. sp is the offset of the topmost occupied byte; an empty
// stack has sp == len(buf). Pushing decrements sp before writing, popping
// reads then increments. sp always stays within [0, len(buf)]: crossing the
// lower bound is a stack overflow trap, crossing the upper bound an
// underflow trap.
type opstack struct {
	buf []byte
	sp  int
}

func newOpstack(size int) *opstack {
	return &opstack{
		buf: make([]byte, size),
		sp:  size,
	}
}

// base returns the lowest address of the stack buffer as a real pointer.
func (s *opstack) base() uint64 {
	return uint64(uintptr(unsafe.Pointer(&s.buf[0])))
}

// spAddr returns the current stack pointer as a real pointer.
func (s *opstack) spAddr() uint64 {
	return s.base() + uint64(s.sp)
}

// sbAddr returns the stack base pointer: the empty-stack anchor one past the
// highest buffer byte. The first push writes to [sbAddr-N, sbAddr).
func (s *opstack) sbAddr() uint64 {
	return s.base() + uint64(len(s.buf))
}

// depth returns the number of occupied bytes.
func (s *opstack) depth() int {
	return len(s.buf) - s.sp
}

func (s *opstack) push(n int, v uint64) {
	if s.sp < n {
		trap(TrapStackOverflow)
	}
	s.sp -= n
	leStore(s.buf[s.sp:], n, v)
}

func (s *opstack) pop(n int) uint64 {
	if s.sp+n > len(s.buf) {
		trap(TrapStackUnderflow)
	}
	v := leLoad(s.buf[s.sp:], n)
	s.sp += n
	return v
}

// peek reads an n-byte value at off bytes below the top without popping.
func (s *opstack) peek(off, n int) uint64 {
	if s.sp+off+n > len(s.buf) {
		trap(TrapStackUnderflow)
	}
	return leLoad(s.buf[s.sp+off:], n)
}

func (s *opstack) pushBytes(b []byte) {
	if s.sp < len(b) {
		trap(TrapStackOverflow)
	}
	s.sp -= len(b)
	copy(s.buf[s.sp:], b)
}

// popBytes removes the top n bytes. The returned slice aliases the stack
// buffer and is only valid until the next push.
func (s *opstack) popBytes(n int) []byte {
	if s.sp+n > len(s.buf) {
		trap(TrapStackUnderflow)
	}
	b := s.buf[s.sp : s.sp+n]
	s.sp += n
	return b
}

func (s *opstack) dup(n int) {
	s.push(n, s.peek(0, n))
}

// swap exchanges the two topmost n-byte values. Width-exact: the top 2n
// bytes are reinterpreted as two n-byte values.
func (s *opstack) swap(n int) {
	a := s.peek(0, n)
	b := s.peek(n, n)
	leStore(s.buf[s.sp:], n, b)
	leStore(s.buf[s.sp+n:], n, a)
}

// contains reports how [addr, addr+n) relates to the stack buffer:
// fully inside (in), or overlapping its bounds (bad). Addresses entirely
// outside the buffer belong to the heap and cannot be checked.
func (s *opstack) contains(addr uint64, n int) (in, bad bool) {
	lo, hi := s.base(), s.base()+uint64(len(s.buf))
	if addr+uint64(n) <= lo || addr >= hi {
		return false, false
	}
	if addr >= lo && addr+uint64(n) <= hi {
		return true, false
	}
	return false, true
}
