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

// Package hivm ships the standard assembly library: the pseudo-register
// conventions and the string routines, embedded in the binary and exposed
// to the assembler as an include resolver.
//
// Programs pull the library in with plain includes:
//
//	include "registers.asm"
//	include "string.asm"
//
// provided the assembler was given the Stdlib resolver:
//
//	img, err := asm.Assemble(path, asm.WithResolver(hivm.Stdlib()))
package hivm

import (
	"embed"
	"io"

	"github.com/pkg/errors"
)

//go:embed *.asm
var stdlib embed.FS

type stdlibResolver struct{}

// Stdlib returns an include resolver serving the embedded standard
// assembly library. Chain it after the filesystem with asm.WithResolver so
// files on disk shadow the embedded ones.
func Stdlib() stdlibResolver {
	return stdlibResolver{}
}

func (stdlibResolver) Resolve(path, fromDir string) (string, io.ReadCloser, error) {
	f, err := stdlib.Open(path)
	if err != nil {
		return "", nil, errors.Wrapf(err, "stdlib include %q", path)
	}
	return "hivm:" + path, f, nil
}
