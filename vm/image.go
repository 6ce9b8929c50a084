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

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// HeaderSize is the length of the image header: a little-endian unsigned
// integer holding the program-space offset of the first instruction.
const HeaderSize = 8

// Image is an executable program image: the 8-byte entry header followed by
// the section payloads laid out at assembly time. At run time it is the
// VM's immutable program space; virtual addresses are offsets into it,
// header included.
type Image []byte

// EntryPoint returns the program-space offset execution starts at.
func (img Image) EntryPoint() uint64 {
	return binary.LittleEndian.Uint64(img[:HeaderSize])
}

// Load reads a program image from a file.
func Load(fileName string) (Image, error) {
	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "Load")
	}
	img := Image(b)
	if err = img.validate(); err != nil {
		return nil, errors.Wrap(err, fileName)
	}
	return img, nil
}

// Save writes the image to a file.
func (img Image) Save(fileName string) error {
	err := os.WriteFile(fileName, img, 0666)
	if err != nil {
		// do not leave a truncated image behind
		os.Remove(fileName)
		return errors.Wrap(err, "Save")
	}
	return nil
}

func (img Image) validate() error {
	if len(img) < HeaderSize {
		return errors.Errorf("image too short: %d bytes, missing entry header", len(img))
	}
	if e := img.EntryPoint(); e > uint64(len(img)) {
		return errors.Errorf("entry point %d beyond program space (%d bytes)", e, len(img))
	}
	return nil
}
