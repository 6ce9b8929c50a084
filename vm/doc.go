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

// Package vm implements a 64-bit stack-based virtual machine executing
// byte-addressed program images produced by the companion asm package.
//
// A VM instance owns three memory regions:
//
//   - program space: the immutable image, prefixed by an 8-byte
//     little-endian entry-offset header. Offsets into it are called
//     virtual addresses.
//   - the operation stack: a fixed-size byte buffer growing toward lower
//     addresses, the sole working memory reachable by programs.
//   - the heap: host-allocated byte blocks obtained through the alloc
//     interrupt and addressed by raw host pointers.
//
// Two kinds of 64-bit pointer values circulate on the stack. Real pointers
// are host addresses, valid for operation-stack and heap bytes; virtual
// pointers are program-space offsets and must be translated with the vtr
// instruction (or the loadstatic/vctr shorthands) before being
// dereferenced. The VM performs no tagging: keeping the two namespaces
// apart is the program's job.
//
// Execution is strictly single-threaded and non-reentrant. Run executes
// from the entry point until a halt instruction or a trap; interrupts are
// synchronous subroutine-like dispatches to either built-in handlers or
// program-defined ones, never asynchronous signals. Custom Go handlers can
// be bound with the BindIntHandler option, which is also how host
// integrations script the VM.
//
// In safe mode (the Safe option) loads and stores that hit the operation
// stack buffer are bounds checked; optimised mode elides those checks and
// leaves stray host addresses to the operating system. Stack overflow and
// underflow trap in both modes. Heap addresses can never be validated and
// an illegal host access terminates the process the hard way.
package vm
