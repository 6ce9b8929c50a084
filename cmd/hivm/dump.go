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

package main

import (
	"fmt"
	"io"

	"github.com/nic-obert/stack-vm/internal/hvi"
	"github.com/nic-obert/stack-vm/vm"
)

// dumpVM writes the VM state to w for post-mortem inspection: PC,
// instruction count and the occupied operation stack bytes, top first.
func dumpVM(i *vm.Instance, w io.Writer) error {
	ew := hvi.NewErrWriter(w)
	fmt.Fprintf(ew, "PC: %d, instructions executed: %d\n", i.PC, i.InstructionCount())
	data := i.Data()
	fmt.Fprintf(ew, "stack (%d bytes, top first):", len(data))
	for n, b := range data {
		if n%16 == 0 {
			fmt.Fprintf(ew, "\n%08x ", i.StackPointer()+uint64(n))
		}
		fmt.Fprintf(ew, " %02x", b)
	}
	fmt.Fprintln(ew)
	return ew.Err
}
