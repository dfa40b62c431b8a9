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

import "github.com/tecnicofs/tfs/internal/wire"

// Fixed sizing constants for the storage engine (spec.md §3). Values
// are chosen to keep the in-memory volume small and the indirect-block
// boundary easy to exercise in tests, not to match any particular host
// page size.
const (
	// BlockSize is the size, in bytes, of one data block.
	BlockSize = 1024

	// DirectBlocks is the number of direct block pointers in an inode.
	DirectBlocks = 10

	// blockIndexSize is the on-disk width of one entry in an indirect
	// block: a single little-endian int32 block index.
	blockIndexSize = 4

	// IndirectEntries is the number of block pointers that fit in one
	// indirect-index block.
	IndirectEntries = BlockSize / blockIndexSize

	// InodeCount is the number of inode slots in the table.
	InodeCount = 64

	// BlockCount is the number of data blocks in the pool.
	BlockCount = 1024

	// OpenFileCount is the number of open-file-table slots.
	OpenFileCount = 64

	// RootDirInum is the fixed inumber of the root directory.
	RootDirInum = 0

	// MaxFileSize is the largest a file's size may grow, per spec.md
	// §3 invariant 4.
	MaxFileSize = BlockSize * (DirectBlocks + IndirectEntries)

	// dirEntrySize is the packed on-disk size of one directory entry:
	// a NameSize-byte name field followed by a 4-byte inumber.
	dirEntrySize = wire.NameSize + 4

	// MaxDirEntries is how many directory entries fit in a single data
	// block, matching spec.md §4.C ("the first data block").
	MaxDirEntries = BlockSize / dirEntrySize
)

// Kind distinguishes file inodes from the one directory inode.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)
