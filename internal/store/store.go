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

// Package store implements the TecnicoFS storage engine: the block
// pool, inode table, root directory, open-file table, and the
// open/close/read/write/copy-out operations that address file
// contents through a direct+indirect block map (spec.md §2 components
// A-E, §4.A-§4.E).
package store

import (
	"fmt"
	"strings"
)

// Store is the in-memory volume. One Store is shared by every session
// of a running server; construction (New) is equivalent to the
// original source's tfs_init: allocate the tables and create the root
// directory at RootDirInum.
type Store struct {
	blocks    *blockPool
	inodes    *inodeTable
	openFiles *openFileTable
}

// New builds an empty volume with a root directory inode at
// RootDirInum, matching tfs_init/root-inode-creation in spec.md §3
// invariant 3.
func New() (*Store, error) {
	s := &Store{
		blocks:    newBlockPool(),
		inodes:    newInodeTable(),
		openFiles: newOpenFileTable(),
	}

	root, err := s.inodes.create(KindDirectory)
	if err != nil {
		return nil, fmt.Errorf("store: creating root directory: %w", err)
	}
	if root != RootDirInum {
		return nil, fmt.Errorf("store: root inode landed at %d, want %d", root, RootDirInum)
	}

	rootInode := s.inodes.get(RootDirInum)
	rootInode.mu.Lock()
	blk, err := s.allocDirBlock()
	if err != nil {
		rootInode.mu.Unlock()
		return nil, err
	}
	rootInode.direct[0] = blk
	rootInode.mu.Unlock()

	return s, nil
}

// allocDirBlock allocates a data block and initializes it as an empty
// directory-entry block (every entry's inumber set to NoBlock),
// matching inode_create's directory pre-allocation in spec.md §4.B.
func (s *Store) allocDirBlock() (int32, error) {
	idx := s.blocks.alloc()
	if idx == NoBlock {
		return NoBlock, fmt.Errorf("store: no free block for directory")
	}
	blk := s.blocks.get(idx)
	for i := 0; i < MaxDirEntries; i++ {
		putDirEntryInumber(blk, i, NoBlock)
	}
	return idx, nil
}

// validPathname mirrors operations.c's valid_pathname: non-empty,
// longer than one character, and rooted.
func validPathname(name string) bool {
	return len(name) > 1 && name[0] == '/'
}

// Lookup resolves name (which must start with "/") to an inumber, or
// -1 if it does not exist. It is the Go analogue of tfs_lookup.
func (s *Store) Lookup(name string) int32 {
	if !validPathname(name) {
		return NoBlock
	}
	return s.findInDir(RootDirInum, strings.TrimPrefix(name, "/"))
}
