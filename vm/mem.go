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

// Memory access primitives. Real pointers handed to the program are plain
// host addresses and carry no alignment guarantee, so every multi-byte
// access goes byte by byte. Reinterpreting an address as a pointer to a
// wider type is never allowed here.

// leLoad reads an n-byte little-endian value from b.
func leLoad(b []byte, n int) uint64 {
	var v uint64
	for k := 0; k < n; k++ {
		v |= uint64(b[k]) << (8 * k)
	}
	return v
}

// leStore writes an n-byte little-endian value to b.
func leStore(b []byte, n int, v uint64) {
	for k := 0; k < n; k++ {
		b[k] = byte(v >> (8 * k))
	}
}

// memAt exposes n bytes of host memory at a real pointer.
func memAt(addr uint64, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n)
}

// ptrLoad reads an n-byte little-endian value at a real pointer.
func ptrLoad(addr uint64, n int) uint64 {
	return leLoad(memAt(addr, n), n)
}

// ptrStore writes an n-byte little-endian value at a real pointer.
func ptrStore(addr uint64, n int, v uint64) {
	leStore(memAt(addr, n), n, v)
}

// ptrCopy copies n bytes between two real pointers. The regions must not
// overlap.
func ptrCopy(dst, src uint64, n int) {
	copy(memAt(dst, n), memAt(src, n))
}

// cstringAt returns the NUL terminated byte sequence at a real pointer,
// without the terminator.
func cstringAt(addr uint64) []byte {
	var n int
	for *(*byte)(unsafe.Pointer(uintptr(addr) + uintptr(n))) != 0 {
		n++
	}
	return memAt(addr, n)
}

// signExtend interprets the low n bytes of v as a signed value.
func signExtend(v uint64, n int) int64 {
	shift := 64 - 8*n
	return int64(v<<shift) >> shift
}
