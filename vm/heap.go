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

// Allocator is the host allocation boundary. Programs reach it only through
// the alloc/realloc/free interrupts; the VM keeps no per-block metadata of
// its own. Alloc and Realloc return 0 on failure.
type Allocator interface {
	Alloc(size uint64) uint64
	Realloc(ptr, size uint64) uint64
	Free(ptr uint64)
}

// hostAllocator backs heap blocks with Go byte slices, pinned in a map
// keyed by their base address so the garbage collector cannot reclaim them
// while the program holds their real pointers.
type hostAllocator struct {
	blocks map[uint64][]byte
}

// NewAllocator returns the default host allocator.
func NewAllocator() Allocator {
	return &hostAllocator{blocks: make(map[uint64][]byte)}
}

func (a *hostAllocator) Alloc(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	b := make([]byte, size)
	addr := uint64(uintptr(unsafe.Pointer(&b[0])))
	a.blocks[addr] = b
	return addr
}

func (a *hostAllocator) Realloc(ptr, size uint64) uint64 {
	old, ok := a.blocks[ptr]
	if !ok {
		return a.Alloc(size)
	}
	addr := a.Alloc(size)
	if addr != 0 {
		copy(a.blocks[addr], old)
	}
	delete(a.blocks, ptr)
	return addr
}

func (a *hostAllocator) Free(ptr uint64) {
	delete(a.blocks, ptr)
}
