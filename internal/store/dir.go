// Copyright 2015 Google Inc. All Rights Reserved.
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

package store

import (
	"fmt"

	"github.com/tecnicofs/tfs/internal/wire"
)

// Directory entries are packed into the root directory's first data
// block: a NameSize-byte name field followed by a 4-byte little-endian
// inumber (spec.md §3, entity "Directory entry"). An inumber of
// NoBlock marks the slot unused.

func dirEntryOffset(i int) int {
	return i * dirEntrySize
}

func dirEntryInumber(blk *[BlockSize]byte, i int) int32 {
	off := dirEntryOffset(i)
	return wire.Int32(blk[off+wire.NameSize : off+wire.NameSize+4])
}

func putDirEntryInumber(blk *[BlockSize]byte, i int, inumber int32) {
	off := dirEntryOffset(i)
	wire.PutInt32(blk[off+wire.NameSize:off+wire.NameSize+4], inumber)
}

func dirEntryName(blk *[BlockSize]byte, i int) string {
	off := dirEntryOffset(i)
	return wire.Name(blk[off : off+wire.NameSize])
}

func putDirEntryName(blk *[BlockSize]byte, i int, name string) error {
	off := dirEntryOffset(i)
	return wire.PutName(blk[off:off+wire.NameSize], name)
}

// findInDir performs a linear scan over dirInum's first data block for
// name, returning its inumber or NoBlock if absent (spec.md §4.C
// find_in_dir).
func (s *Store) findInDir(dirInum int32, name string) int32 {
	dir := s.inodes.get(dirInum)
	if dir == nil {
		return NoBlock
	}

	dir.mu.RLock()
	defer dir.mu.RUnlock()

	if dir.direct[0] == NoBlock {
		return NoBlock
	}
	blk := s.blocks.get(dir.direct[0])
	for i := 0; i < MaxDirEntries; i++ {
		if dirEntryInumber(blk, i) == NoBlock {
			continue
		}
		if dirEntryName(blk, i) == name {
			return dirEntryInumber(blk, i)
		}
	}
	return NoBlock
}

// addDirEntry places a (name, inumber) pair into the first unused slot
// of dirInum's first data block. It fails if no slot is free or name
// is too long to fit NameSize-1 bytes plus a terminator (spec.md §4.C
// add_dir_entry).
func (s *Store) addDirEntry(dirInum, inumber int32, name string) error {
	if len(name) > wire.NameSize-1 {
		return fmt.Errorf("store: name %q exceeds %d bytes", name, wire.NameSize-1)
	}

	dir := s.inodes.get(dirInum)
	if dir == nil {
		return fmt.Errorf("store: no such directory inode %d", dirInum)
	}

	dir.mu.Lock()
	defer dir.mu.Unlock()

	if dir.direct[0] == NoBlock {
		return fmt.Errorf("store: directory inode %d has no entry block", dirInum)
	}
	blk := s.blocks.get(dir.direct[0])
	for i := 0; i < MaxDirEntries; i++ {
		if dirEntryInumber(blk, i) != NoBlock {
			continue
		}
		if err := putDirEntryName(blk, i, name); err != nil {
			return err
		}
		putDirEntryInumber(blk, i, inumber)
		return nil
	}
	return fmt.Errorf("store: directory inode %d is full", dirInum)
}
