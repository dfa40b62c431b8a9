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

// ErrNoFreeInode is returned by inodeTable.create when every slot is
// taken.
var ErrNoFreeInode = fmt.Errorf("store: no free inode slot")

// inodeTable is the fixed array of inode slots (spec.md §4.B). Slot
// allocation is serialized by mu; once a slot is handed out, its
// contents are protected by the slot's own inode.mu instead, per the
// session → open-file → inode → block-pool lock ordering of spec.md
// §5 (create holds the table lock while it locks and initializes a
// free slot; no other method holds it while touching a slot's data).
type inodeTable struct {
	mu syncutil.InvariantMutex

	slots [InodeCount]*inode // GUARDED_BY(mu) for allocation bookkeeping only
}

func newInodeTable() *inodeTable {
	t := &inodeTable{}
	for i := range t.slots {
		t.slots[i] = newInode()
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *inodeTable) checkInvariants() {
	for i, in := range t.slots {
		if in == nil {
			panic(fmt.Sprintf("inodeTable: nil slot %d", i))
		}
	}
}

// create allocates a free slot, initializes it as kind, and returns
// its inumber.
func (t *inodeTable) create(kind Kind) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, in := range t.slots {
		in.mu.Lock()
		if in.free {
			in.reset(kind)
			in.mu.Unlock()
			return int32(i), nil
		}
		in.mu.Unlock()
	}
	return NoBlock, ErrNoFreeInode
}

// get returns the inode for inumber, or nil if it is out of range or
// not currently allocated. The caller is responsible for locking the
// returned inode before touching it.
func (t *inodeTable) get(inumber int32) *inode {
	if inumber < 0 || int(inumber) >= InodeCount {
		return nil
	}
	in := t.slots[inumber]
	in.mu.Lock()
	free := in.free
	in.mu.Unlock()
	if free {
		return nil
	}
	return in
}

// delete frees inumber's slot. Used only by tfs_open's
// create-then-add-directory-entry rollback (spec.md §4.E step 3: "If
// the directory is full, delete the just-created inode and fail") —
// there is no user-facing delete operation (spec.md §1 non-goals).
func (t *inodeTable) delete(inumber int32) {
	in := t.get(inumber)
	if in == nil {
		return
	}
	in.mu.Lock()
	in.free = true
	in.mu.Unlock()
}
