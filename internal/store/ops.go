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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/detailyang/go-fallocate"
	"github.com/tecnicofs/tfs/internal/wire"
)

func indirectEntry(blk *[BlockSize]byte, i int) int32 {
	off := i * blockIndexSize
	return wire.Int32(blk[off : off+blockIndexSize])
}

func putIndirectEntry(blk *[BlockSize]byte, i int, v int32) {
	off := i * blockIndexSize
	wire.PutInt32(blk[off:off+blockIndexSize], v)
}

// freeDataBlocks releases every block an inode addresses, direct and
// indirect, and resets its block map, matching data_blocks_free. The
// caller must hold in.mu.
//
// EXCLUSIVE_LOCKS_REQUIRED(in.mu)
func (s *Store) freeDataBlocks(in *inode) error {
	for i, idx := range in.direct {
		if idx == NoBlock {
			continue
		}
		if err := s.blocks.freeBlock(idx); err != nil {
			return err
		}
		in.direct[i] = NoBlock
	}
	if in.indirectBlock != NoBlock {
		blk := s.blocks.get(in.indirectBlock)
		for i := 0; i < IndirectEntries; i++ {
			idx := indirectEntry(blk, i)
			if idx == NoBlock {
				continue
			}
			if err := s.blocks.freeBlock(idx); err != nil {
				return err
			}
		}
		if err := s.blocks.freeBlock(in.indirectBlock); err != nil {
			return err
		}
		in.indirectBlock = NoBlock
	}
	return nil
}

// Open resolves or creates name according to flags and returns a fresh
// open-file handle, the Go analogue of tfs_open (spec.md §4.E).
//
// If the open-file table is exhausted after a successful creation, the
// new inode and directory entry are NOT rolled back (spec.md §4.D) —
// matching the original source's own documented simplification.
func (s *Store) Open(name string, flags int32) (int32, error) {
	if !validPathname(name) {
		return NoBlock, fmt.Errorf("store: invalid path %q", name)
	}
	bareName := strings.TrimPrefix(name, "/")

	inum := s.Lookup(name)
	var offset int64

	if inum >= 0 {
		in := s.inodes.get(inum)
		if in == nil {
			return NoBlock, fmt.Errorf("store: dangling directory entry for %q", name)
		}
		in.mu.Lock()
		if flags&wire.OTrunc != 0 && in.size > 0 {
			if err := s.freeDataBlocks(in); err != nil {
				in.mu.Unlock()
				return NoBlock, err
			}
			in.size = 0
		}
		if flags&wire.OAppend != 0 {
			offset = in.size
		} else {
			offset = 0
		}
		in.mu.Unlock()
	} else if flags&wire.OCreat != 0 {
		newInum, err := s.inodes.create(KindFile)
		if err != nil {
			return NoBlock, err
		}
		if err := s.addDirEntry(RootDirInum, newInum, bareName); err != nil {
			s.inodes.delete(newInum)
			return NoBlock, err
		}
		inum = newInum
		offset = 0
	} else {
		return NoBlock, fmt.Errorf("store: %q does not exist", name)
	}

	return s.openFiles.open(inum, offset)
}

// Close releases handle, the Go analogue of tfs_close.
func (s *Store) Close(handle int32) error {
	return s.openFiles.close(handle)
}

// Write appends data at handle's current offset, growing the file's
// direct and (if needed) indirect block map, and advances the offset
// by however many bytes were actually written (spec.md §4.E). A
// request that would cross MaxFileSize is silently clamped rather than
// rejected, matching tfs_write.
//
// If block allocation fails partway through, whatever bytes already
// landed in already-allocated blocks stay written — there is no
// rollback of a partial write, matching the original source.
func (s *Store) Write(handle int32, data []byte) (int64, error) {
	entry := s.openFiles.get(handle)
	if entry == nil {
		return 0, fmt.Errorf("store: invalid handle %d", handle)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.free {
		return 0, fmt.Errorf("store: invalid handle %d", handle)
	}

	in := s.inodes.get(entry.inumber)
	if in == nil {
		return 0, fmt.Errorf("store: dangling inode for handle %d", handle)
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	toWrite := int64(len(data))
	if entry.offset+toWrite > MaxFileSize {
		toWrite = MaxFileSize - entry.offset
	}
	if toWrite <= 0 {
		return 0, nil
	}

	remaining := data[:toWrite]
	off := entry.offset

	for len(remaining) > 0 && off < int64(DirectBlocks)*BlockSize {
		directIdx := int(off / BlockSize)
		inBlock := off % BlockSize

		if in.direct[directIdx] == NoBlock {
			idx := s.blocks.alloc()
			if idx == NoBlock {
				written := toWrite - int64(len(remaining))
				s.advanceAfterWrite(entry, in, written)
				return written, fmt.Errorf("store: no free block")
			}
			in.direct[directIdx] = idx
		}

		blk := s.blocks.get(in.direct[directIdx])
		n := copy(blk[inBlock:], remaining)
		remaining = remaining[n:]
		off += int64(n)
	}

	if len(remaining) > 0 {
		if in.indirectBlock == NoBlock {
			idx := s.blocks.alloc()
			if idx == NoBlock {
				written := toWrite - int64(len(remaining))
				s.advanceAfterWrite(entry, in, written)
				return written, fmt.Errorf("store: no free block for indirect index")
			}
			in.indirectBlock = idx
			indBlk := s.blocks.get(idx)
			for i := 0; i < IndirectEntries; i++ {
				putIndirectEntry(indBlk, i, NoBlock)
			}
		}
		indBlk := s.blocks.get(in.indirectBlock)

		for len(remaining) > 0 {
			indirectOff := off - int64(DirectBlocks)*BlockSize
			entryIdx := int(indirectOff / BlockSize)
			inBlock := indirectOff % BlockSize
			if entryIdx >= IndirectEntries {
				break
			}

			if indirectEntry(indBlk, entryIdx) == NoBlock {
				idx := s.blocks.alloc()
				if idx == NoBlock {
					written := toWrite - int64(len(remaining))
					s.advanceAfterWrite(entry, in, written)
					return written, fmt.Errorf("store: no free block")
				}
				putIndirectEntry(indBlk, entryIdx, idx)
			}

			blk := s.blocks.get(indirectEntry(indBlk, entryIdx))
			n := copy(blk[inBlock:], remaining)
			remaining = remaining[n:]
			off += int64(n)
		}
	}

	written := toWrite - int64(len(remaining))
	s.advanceAfterWrite(entry, in, written)
	return written, nil
}

// EXCLUSIVE_LOCKS_REQUIRED(entry.mu)
// EXCLUSIVE_LOCKS_REQUIRED(in.mu)
func (s *Store) advanceAfterWrite(entry *openFileEntry, in *inode, written int64) {
	entry.offset += written
	if entry.offset > in.size {
		in.size = entry.offset
	}
}

// Read copies up to len(buf) bytes starting at handle's current
// offset, stopping at the inode's size, and advances the offset by
// however many bytes were copied (spec.md §4.E, tfs_read).
func (s *Store) Read(handle int32, buf []byte) (int64, error) {
	entry := s.openFiles.get(handle)
	if entry == nil {
		return 0, fmt.Errorf("store: invalid handle %d", handle)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.free {
		return 0, fmt.Errorf("store: invalid handle %d", handle)
	}

	in := s.inodes.get(entry.inumber)
	if in == nil {
		return 0, fmt.Errorf("store: dangling inode for handle %d", handle)
	}
	in.mu.RLock()
	defer in.mu.RUnlock()

	n, err := s.readAt(in, entry.offset, buf)
	entry.offset += n
	return n, err
}

// readAt copies up to len(dst) bytes of in's contents starting at off,
// clamped to in.size.
//
// SHARED_LOCKS_REQUIRED(in.mu)
func (s *Store) readAt(in *inode, off int64, dst []byte) (int64, error) {
	toRead := in.size - off
	if toRead < 0 {
		toRead = 0
	}
	if toRead > int64(len(dst)) {
		toRead = int64(len(dst))
	}
	if toRead == 0 {
		return 0, nil
	}

	out := dst[:toRead]
	cur := off

	for len(out) > 0 && cur < int64(DirectBlocks)*BlockSize {
		directIdx := int(cur / BlockSize)
		inBlock := cur % BlockSize
		if in.direct[directIdx] == NoBlock {
			return toRead - int64(len(out)), fmt.Errorf("store: read of unallocated block")
		}
		blk := s.blocks.get(in.direct[directIdx])
		n := copy(out, blk[inBlock:])
		out = out[n:]
		cur += int64(n)
	}

	if len(out) > 0 {
		if in.indirectBlock == NoBlock {
			return toRead - int64(len(out)), fmt.Errorf("store: read of unallocated indirect block")
		}
		indBlk := s.blocks.get(in.indirectBlock)
		for len(out) > 0 {
			indirectOff := cur - int64(DirectBlocks)*BlockSize
			entryIdx := int(indirectOff / BlockSize)
			inBlock := indirectOff % BlockSize
			if entryIdx >= IndirectEntries || indirectEntry(indBlk, entryIdx) == NoBlock {
				return toRead - int64(len(out)), fmt.Errorf("store: read of unallocated block")
			}
			blk := s.blocks.get(indirectEntry(indBlk, entryIdx))
			n := copy(out, blk[inBlock:])
			out = out[n:]
			cur += int64(n)
		}
	}

	return toRead, nil
}

// CopyToExternalFS opens sourcePath within the volume and copies its
// entire contents, byte for byte, to destPath on the host file system,
// the Go analogue of tfs_copy_to_external_fs. Unlike the original
// source's fprintf-based copy (which truncates at the first embedded
// NUL byte), this writes the raw bytes, so binary files round-trip
// correctly.
func (s *Store) CopyToExternalFS(sourcePath, destPath string) error {
	if dir := filepath.Dir(destPath); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("store: destination directory %q: %w", dir, err)
		}
	}

	handle, err := s.Open(sourcePath, 0)
	if err != nil {
		return err
	}
	defer s.Close(handle)

	entry := s.openFiles.get(handle)
	entry.mu.Lock()
	in := s.inodes.get(entry.inumber)
	in.mu.RLock()
	size := in.size - entry.offset
	in.mu.RUnlock()
	entry.mu.Unlock()

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer dest.Close()

	if size > 0 {
		if err := fallocate.Fallocate(dest, 0, size); err != nil {
			// Not every destination file system supports fallocate;
			// the copy still proceeds without preallocation.
		}
	}

	buf := make([]byte, BlockSize)
	var copied int64
	for copied < size {
		want := int64(len(buf))
		if remaining := size - copied; remaining < want {
			want = remaining
		}
		n, err := s.Read(handle, buf[:want])
		if n > 0 {
			if _, werr := dest.Write(buf[:n]); werr != nil {
				return werr
			}
			copied += n
		}
		if err != nil && err != io.EOF {
			return err
		}
		if n == 0 {
			break
		}
	}
	return nil
}
