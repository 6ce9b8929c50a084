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

// hivm runs a program image produced by hiasm.
//
// Usage:
//
//	hivm [-stack bytes] [-safe] [-debug] [-noraw] [-with filename] file.img
//
//	-debug
//		enable debug diagnostics: full error chains and a VM state
//		dump on abnormal termination
//	-noraw
//		disable raw terminal input
//	-safe
//		bounds check loads and stores hitting the operation stack
//	-stack bytes
//		operation stack size (default 1024)
//	-with filename
//		feed filename to the program as input before stdin (can be
//		specified multiple times)
//
// The process exit status is the status passed to the halt instruction. A
// trap terminates with a diagnostic naming the trap kind and the PC at
// which it occurred, and a non-zero exit status.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/nic-obert/stack-vm/vm"
)

type fileList []string

func (f *fileList) String() string     { return strings.Join(*f, ",") }
func (f *fileList) Set(s string) error { *f = append(*f, s); return nil }

var (
	stackSize = flag.Int("stack", vm.DefaultStackSize, "operation stack size in `bytes`")
	safe      = flag.Bool("safe", false, "bounds check loads and stores hitting the operation stack")
	debug     = flag.Bool("debug", false, "enable debug diagnostics")
	noRawIO   = flag.Bool("noraw", false, "disable raw terminal input")
)

func atExit(i *vm.Instance, err error) {
	if err == nil {
		if i != nil {
			os.Exit(int(i.ExitStatus()))
		}
		os.Exit(0)
	}
	if !*debug {
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\n%+v\n", err)
	if i != nil {
		dumpVM(i, os.Stderr)
	}
	os.Exit(1)
}

func main() {
	var err error
	var i *vm.Instance

	stdout := bufio.NewWriter(os.Stdout)

	defer func() {
		stdout.Flush()
		atExit(i, err)
	}()

	var withFiles fileList
	flag.Var(&withFiles, "with", "feed `filename` to the program as input (can be specified multiple times)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hivm [-stack bytes] [-safe] [-debug] [-noraw] [-with filename] file.img")
		os.Exit(2)
	}

	// switch the terminal to raw mode so the read-byte interrupt sees
	// keystrokes as they happen
	if !*noRawIO && term.IsTerminal(int(os.Stdin.Fd())) {
		if tearDown, e := setRawIO(); e == nil {
			defer tearDown()
		}
	}

	opts := []vm.Option{
		vm.StackSize(*stackSize),
		vm.Safe(*safe),
		vm.Output(stdout),
		vm.Input(os.Stdin),
	}

	// append -with files in reverse order so that they are read in order
	// of appearance on the command line, before stdin.
	for n := len(withFiles) - 1; n >= 0; n-- {
		var f *os.File
		if f, err = os.Open(withFiles[n]); err != nil {
			return
		}
		opts = append(opts, vm.Input(bufio.NewReader(f)))
	}

	var img vm.Image
	if img, err = vm.Load(flag.Arg(0)); err != nil {
		return
	}
	if i, err = vm.New(img, opts...); err != nil {
		return
	}
	err = i.Run()
}
