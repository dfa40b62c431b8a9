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

// Package session implements the TecnicoFS session multiplexer: a
// fixed pool of session slots, one dedicated worker goroutine and
// single-slot mailbox per slot, the dispatcher that reads the shared
// server pipe and fans requests out to them, and the
// SHUTDOWN_AFTER_ALL_CLOSED coordinator.
package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/jacobsa/syncutil"
	"github.com/tecnicofs/tfs/internal/store"
)

// Count is the number of session slots, fixed for the process
// lifetime (spec.md §3, SESSION_COUNT).
const Count = 20

// freeSlot is the sentinel session id meaning "no session assigned",
// matching tfs_server.c's own FREE/ALL_TAKEN overload of -1.
const freeSlot = -1

// slot is one session-table entry: a client response channel paired
// with the mailbox and worker goroutine bound to it for the server's
// entire lifetime (spec.md §4.F, §4.G).
//
// taken and client are set in two steps, mirroring tfs_server.c: the
// dispatcher marks a slot TAKEN at MOUNT time (reserving the id)
// before the owning worker has dialed the client's pipe and recorded
// it as client, so "taken && client == nil" is a normal transient
// state, not a bug.
type slot struct {
	mailbox *mailbox

	mu     syncutil.InvariantMutex
	client io.WriteCloser // GUARDED_BY(mu); nil until MOUNT completes or after release
	taken  bool           // GUARDED_BY(mu)
}

func newSlot() *slot {
	s := &slot{mailbox: newMailbox()}
	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s
}

func (s *slot) checkInvariants() {
	if !s.taken && s.client != nil {
		panic("session: free slot still holds a client channel")
	}
}

// Server ties the storage engine to the session table: it owns every
// slot's mailbox and worker, and is the single owned value the
// original source's process-wide sessions/threads/cond_prod/cond_cons
// arrays collapse into (spec.md §7, "Global mutable state").
type Server struct {
	store *store.Store
	dial  func(path string) (io.WriteCloser, error)

	slots [Count]*slot

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	wg           sync.WaitGroup
}

// NewServer constructs a Server over fs, using dial to open a client's
// response pipe for writing. cmd/tfsserver passes a dial func that
// opens the named pipe with os.OpenFile; tests substitute an in-memory
// one.
func NewServer(fs *store.Store, dial func(path string) (io.WriteCloser, error)) *Server {
	srv := &Server{
		store:      fs,
		dial:       dial,
		shutdownCh: make(chan struct{}),
	}
	for i := range srv.slots {
		srv.slots[i] = newSlot()
	}
	return srv
}

// Start spawns the Count worker goroutines, one bound to each session
// slot for the remainder of the process (spec.md §4.G). It returns
// immediately; callers feed requests to sessions via Dispatch.
func (srv *Server) Start() {
	for i := range srv.slots {
		srv.wg.Add(1)
		go func(id int) {
			defer srv.wg.Done()
			srv.runWorker(int32(id))
		}(i)
	}
}

// Wait blocks until every worker goroutine has returned, which happens
// only after Shutdown closes every mailbox.
func (srv *Server) Wait() {
	srv.wg.Wait()
}

// allocate scans for the first FREE slot, marks it TAKEN, and returns
// its index, or freeSlot if none is available (spec.md §4.F
// allocate). The client channel itself is dialed and recorded later,
// by the worker's handleMount, once it has dequeued the MOUNT request
// this reservation precedes.
func (srv *Server) allocate() int32 {
	for i, s := range srv.slots {
		s.mu.Lock()
		if !s.taken {
			s.taken = true
			s.mu.Unlock()
			return int32(i)
		}
		s.mu.Unlock()
	}
	return freeSlot
}

// release marks id FREE again and closes its client channel, the Go
// analogue of tfs_server.c's unmount. Safe to call more than once.
func (srv *Server) release(id int32) {
	s := srv.slotFor(id)
	if s == nil {
		return
	}
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.taken = false
	s.mu.Unlock()

	if client != nil {
		client.Close()
	}
}

func (srv *Server) slotFor(id int32) *slot {
	if id < 0 || int(id) >= Count {
		return nil
	}
	return srv.slots[id]
}

// sendTo writes resp to id's client channel. On failure it performs
// the implicit unmount spec.md §4.H/§8 scenario 6 describes: the slot
// is released so a future MOUNT can reuse it.
func (srv *Server) sendTo(id int32, resp []byte) error {
	s := srv.slotFor(id)
	if s == nil {
		return fmt.Errorf("session: no such session %d", id)
	}
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return fmt.Errorf("session: %d is not mounted", id)
	}

	if _, err := client.Write(resp); err != nil {
		srv.release(id)
		return err
	}
	return nil
}
