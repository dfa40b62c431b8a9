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

// ErrNoFreeHandle is returned by openFileTable.open when every slot is
// in use (spec.md §4.D: opening does not roll back the inode it just
// created or truncated if the table is exhausted).
var ErrNoFreeHandle = fmt.Errorf("store: no free open-file slot")

// openFileEntry is one live open-file-table slot: the inumber it
// addresses and the byte offset the next read or write starts from
// (spec.md §3, entity "Open file table entry"). Offset is advanced by
// every read/write and is private to this handle — two handles on the
// same inumber keep independent offsets.
type openFileEntry struct {
	mu syncutil.InvariantMutex

	inumber int32 // GUARDED_BY(mu)
	offset  int64 // GUARDED_BY(mu)
	free    bool  // GUARDED_BY(mu)
}

func newOpenFileEntry() *openFileEntry {
	e := &openFileEntry{free: true}
	e.mu = syncutil.NewInvariantMutex(e.checkInvariants)
	return e
}

func (e *openFileEntry) checkInvariants() {
	if e.free {
		return
	}
	if e.offset < 0 {
		panic(fmt.Sprintf("openFileEntry: negative offset %d", e.offset))
	}
}

// openFileTable is the fixed array of open-file-table slots shared by
// every session (spec.md §4.D). Its own mutex only serializes handle
// allocation; once handed out, a slot's offset is protected by the
// slot's own mutex, matching the session → open-file → inode → block
// pool lock order of spec.md §5.
type openFileTable struct {
	mu syncutil.InvariantMutex

	slots [OpenFileCount]*openFileEntry // GUARDED_BY(mu) for allocation bookkeeping only
}

func newOpenFileTable() *openFileTable {
	t := &openFileTable{}
	for i := range t.slots {
		t.slots[i] = newOpenFileEntry()
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *openFileTable) checkInvariants() {
	for i, e := range t.slots {
		if e == nil {
			panic(fmt.Sprintf("openFileTable: nil slot %d", i))
		}
	}
}

// open reserves a free slot for inumber, with its offset set to the
// given value (Store.Open passes 0 normally, the inode's current size
// if the handle was opened with OAppend), and returns its handle.
func (t *openFileTable) open(inumber int32, offset int64) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.slots {
		e.mu.Lock()
		if e.free {
			e.inumber = inumber
			e.offset = offset
			e.free = false
			e.mu.Unlock()
			return int32(i), nil
		}
		e.mu.Unlock()
	}
	return NoBlock, ErrNoFreeHandle
}

// get returns the entry for handle, or nil if it is out of range. The
// entry is returned whether or not its slot is currently allocated;
// the caller must lock it and check free before touching it.
func (t *openFileTable) get(handle int32) *openFileEntry {
	if handle < 0 || int(handle) >= OpenFileCount {
		return nil
	}
	return t.slots[handle]
}

// close releases handle's slot. Returns an error if handle does not
// name a currently-open entry, matching tfs_close's EBADF-equivalent
// failure mode.
func (t *openFileTable) close(handle int32) error {
	e := t.get(handle)
	if e == nil {
		return fmt.Errorf("store: invalid handle %d", handle)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.free {
		return fmt.Errorf("store: handle %d is not open", handle)
	}
	e.free = true
	return nil
}
