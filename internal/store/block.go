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

// NoBlock is the sentinel stored in a direct/indirect slot meaning
// "unallocated", matching the original source's use of -1.
const NoBlock int32 = -1

// blockPool is a fixed array of BlockSize-byte data blocks with a free
// list. Allocation order is unspecified by spec.md §4.A; this picks
// the lowest-numbered free block.
type blockPool struct {
	mu syncutil.InvariantMutex

	blocks [BlockCount][BlockSize]byte // GUARDED_BY(mu)
	free   [BlockCount]bool           // GUARDED_BY(mu); true means available
	nfree  int                        // GUARDED_BY(mu)
}

func newBlockPool() *blockPool {
	bp := &blockPool{}
	for i := range bp.free {
		bp.free[i] = true
	}
	bp.nfree = BlockCount
	bp.mu = syncutil.NewInvariantMutex(bp.checkInvariants)
	return bp
}

func (bp *blockPool) checkInvariants() {
	n := 0
	for _, f := range bp.free {
		if f {
			n++
		}
	}
	if n != bp.nfree {
		panic(fmt.Sprintf("blockPool: nfree mismatch: tracked %d, counted %d", bp.nfree, n))
	}
}

// alloc returns the index of a newly-reserved block, or NoBlock if the
// pool is exhausted.
func (bp *blockPool) alloc() int32 {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for i, f := range bp.free {
		if f {
			bp.free[i] = false
			bp.nfree--
			for j := range bp.blocks[i] {
				bp.blocks[i][j] = 0
			}
			return int32(i)
		}
	}
	return NoBlock
}

// freeBlock releases a previously-allocated block. Freeing an already-free
// block is an error, matching spec.md §4.A.
func (bp *blockPool) freeBlock(index int32) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if index < 0 || int(index) >= BlockCount {
		return fmt.Errorf("store: block index %d out of range", index)
	}
	if bp.free[index] {
		return fmt.Errorf("store: block %d already free", index)
	}
	bp.free[index] = true
	bp.nfree++
	return nil
}

// get returns a reference to the BlockSize-byte region for index. The
// caller must hold whatever lock protects the inode that owns the
// block (the block pool's own mutex only protects the free list).
func (bp *blockPool) get(index int32) *[BlockSize]byte {
	return &bp.blocks[index]
}
