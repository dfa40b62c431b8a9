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

	"github.com/jacobsa/syncutil"
)

// inode is the metadata for one file or directory: its kind, size, and
// the direct+indirect block map through which its contents are
// addressed (spec.md §3, entity "Inode").
//
// Every mutation of {size, direct, indirectBlock} or of any block it
// references happens with mu held, so no reader ever observes a torn
// update (spec.md §4.B). Readers take a shared lease (RLock); writers
// an exclusive one (Lock) — the two primitives spec.md §4.B allows
// collapsing into one are here the RLock/Lock pair of a single
// InvariantMutex.
type inode struct {
	mu syncutil.InvariantMutex

	// INVARIANT: size <= MaxFileSize
	kind Kind // GUARDED_BY(mu)

	size int64 // GUARDED_BY(mu)

	// INVARIANT: len(direct) == DirectBlocks
	// INVARIANT: each entry is NoBlock or a valid index into the block pool
	direct [DirectBlocks]int32 // GUARDED_BY(mu)

	// indirectBlock is NoBlock until the file's contents first spill
	// past the direct blocks, at which point it names a data block
	// holding IndirectEntries further block indices, themselves
	// initialized to NoBlock.
	indirectBlock int32 // GUARDED_BY(mu)

	free bool // GUARDED_BY(mu); true if this slot is not currently allocated
}

func newInode() *inode {
	in := &inode{free: true}
	in.mu = syncutil.NewInvariantMutex(in.checkInvariants)
	return in
}

func (in *inode) checkInvariants() {
	if in.free {
		return
	}
	if in.size < 0 || in.size > MaxFileSize {
		panic(fmt.Sprintf("inode: size %d out of range", in.size))
	}
}

// reset re-initializes a slot for (re-)allocation: size 0, every
// direct pointer and the indirect pointer set to NoBlock, matching
// inode_create's initialization in spec.md §4.B.
//
// EXCLUSIVE_LOCKS_REQUIRED(in.mu)
func (in *inode) reset(kind Kind) {
	in.kind = kind
	in.size = 0
	for i := range in.direct {
		in.direct[i] = NoBlock
	}
	in.indirectBlock = NoBlock
	in.free = false
}
