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

package vm_test

import (
	"fmt"
	"os"
	"strings"

	"github.com/nic-obert/stack-vm/asm"
	"github.com/nic-obert/stack-vm/vm"
)

// Assemble a small program and run it against stdout.
func Example() {
	src := `
.text
	loadc8 greeting
	int 6		; print-static-string
	halt 0

.data
@greeting
	"hello, world\n"
`
	img, err := asm.AssembleReader("hello.asm", strings.NewReader(src))
	if err != nil {
		fmt.Println(err)
		return
	}
	i, err := vm.New(img, vm.Output(os.Stdout))
	if err != nil {
		fmt.Println(err)
		return
	}
	if err = i.Run(); err != nil {
		fmt.Println(err)
	}
	// Output:
	// hello, world
}

// Custom interrupt handlers let Go code script the VM: here code 40 is
// bound to a handler summing whatever the program pushed.
func ExampleBindIntHandler() {
	src := ".text\nloadc8 40\nloadc8 2\nint 40\nint 4\nhalt 0"
	img, err := asm.AssembleReader("sum.asm", strings.NewReader(src))
	if err != nil {
		fmt.Println(err)
		return
	}
	i, _ := vm.New(img, vm.Output(os.Stdout),
		vm.BindIntHandler(40, func(i *vm.Instance) error {
			rhs := i.Pop(8)
			lhs := i.Pop(8)
			i.Push(8, lhs+rhs)
			return nil
		}))
	if err = i.Run(); err != nil {
		fmt.Println(err)
	}
	// Output:
	// 42
}
