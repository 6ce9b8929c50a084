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

package hivm_test

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nic-obert/stack-vm/asm"
	"github.com/nic-obert/stack-vm/lang/hivm"
	"github.com/nic-obert/stack-vm/vm"
)

func runLib(t *testing.T, code string) (*vm.Instance, string) {
	t.Helper()
	img, err := asm.AssembleReader(t.Name(), strings.NewReader(code),
		asm.WithResolver(hivm.Stdlib()))
	require.NoError(t, err)
	var out bytes.Buffer
	i, err := vm.New(img, vm.Output(&out))
	require.NoError(t, err)
	require.NoError(t, i.Run())
	return i, out.String()
}

func TestRegisters(t *testing.T) {
	// r0 keeps its value across stack traffic
	code := `include "registers.asm"

.text
@main
	!rsvregs
	!r0
	loadc8 1234
	store8
	loadc8 1
	loadc8 2
	addi8
	pop8
	!r0
	load8
	int 4
	halt 0
`
	_, out := runLib(t, code)
	require.Equal(t, "1234", out)
}

func TestCstrlen(t *testing.T) {
	for _, length := range []int{0, 1, 5, 64} {
		t.Run(strconv.Itoa(length), func(t *testing.T) {
			code := fmt.Sprintf(`include "string.asm"

.text
@main
	!rsvregs
	vctr msg
	call cstrlen
	!r0
	load8
	int 4
	halt 0

.data
@msg
	"%s"
`, strings.Repeat("a", length))
			i, out := runLib(t, code)
			require.Equal(t, strconv.Itoa(length), out)
			// only the register window is left on the stack
			require.Equal(t, 64, i.Depth())
		})
	}
}

func TestMemcpy(t *testing.T) {
	code := `include "string.asm"

.text
@main
	!rsvregs
	loadc8 8
	int 0
	!r2
	swap8
	store8
	loadc8 4
	vctr msg
	!r2
	load8
	call memcpy
	!r2
	load8
	int 5
	halt 0

.data
@msg
	"abc"
`
	_, out := runLib(t, code)
	require.Equal(t, "abc", out)
}
