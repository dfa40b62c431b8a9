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

// Package transport provides the named-pipe plumbing the session layer
// is built on: creating a named pipe (FIFO), and reading/writing byte
// counts that tolerate short reads/writes and
// EINTR, the way the original tfs_server.c's read_function and
// write_function do, but as explicit loops rather than tail recursion
// (see spec.md §9).
package transport

import (
	"errors"
	"io"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// CreatePipe removes any existing file at path and creates a fresh
// named pipe (FIFO) there with mode 0666, mirroring the original
// server's unlink-then-mkfifo startup sequence.
func CreatePipe(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return unix.Mkfifo(path, 0666)
}

// ReadFull reads exactly len(buf) bytes from r into buf, looping over
// short reads and retrying on EINTR. It returns io.EOF only if zero
// bytes were read before the stream closed (the dispatcher interprets
// that as "no client currently holds the pipe open for writing" and
// reopens it); any other premature close is reported as
// io.ErrUnexpectedEOF.
func ReadFull(r io.Reader, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			if isEINTR(err) {
				continue
			}
			if err == io.EOF {
				if read == 0 {
					return io.EOF
				}
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

// WriteFull writes all of buf to w, looping over short writes and
// retrying on EINTR.
func WriteFull(w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		written += n
		if err != nil {
			if isEINTR(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func isEINTR(err error) bool {
	return errors.Is(err, syscall.EINTR)
}
