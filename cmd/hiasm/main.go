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

// hiasm assembles a source file into a program image runnable by hivm.
//
// Usage:
//
//	hiasm [-o filename] [-L path] [-v] file.asm
//
//	-L path
//		add path to the include library search path (can be specified
//		multiple times); the HIVM_ASM_LIB environment variable is
//		searched after the -L paths
//	-o filename
//		write the image to filename (default: the input name with the
//		.img extension)
//	-v
//		print the image size and entry point
//
// Assembly errors are reported one per line with their source location;
// no image is written if any error occurred.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nic-obert/stack-vm/asm"
	"github.com/nic-obert/stack-vm/lang/hivm"
)

type pathList []string

func (p *pathList) String() string     { return strings.Join(*p, ",") }
func (p *pathList) Set(s string) error { *p = append(*p, s); return nil }

func outputName(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".img"
}

func main() {
	var libPaths pathList
	var outFileName = flag.String("o", "", "write the image to `filename`")
	var verbose = flag.Bool("v", false, "print the image size and entry point")
	flag.Var(&libPaths, "L", "add `path` to the include library search path")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hiasm [-o filename] [-L path] [-v] file.asm")
		os.Exit(2)
	}
	input := flag.Arg(0)

	img, err := asm.Assemble(input,
		asm.LibPaths(libPaths...),
		asm.WithResolver(hivm.Stdlib()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	out := *outFileName
	if out == "" {
		out = outputName(input)
	}
	if err = img.Save(out); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("%s: %d bytes, entry point %d\n", out, len(img), img.EntryPoint())
	}
}
