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

package session

import "sync"

// request is one decoded frame handed from the dispatcher to a
// session's worker. body is everything after the opcode byte, starting
// with the session id for every opcode but MOUNT; for WRITE it also
// holds the payload the dispatcher already read off the pipe.
type request struct {
	op   byte
	body []byte
}

// mailbox is the single-slot handoff between the dispatcher goroutine
// (the producer) and one session's worker goroutine (the consumer),
// the Go analogue of tfs_server.c's per-session buffer plus its two
// condition variables. At most one request is ever in flight per
// session, because the dispatcher blocks on producerMayWrite before
// placing the next one.
//
// Lock ordering: mailbox.mu is always the innermost lock taken by the
// dispatcher and outermost lock taken by the worker; neither ever
// holds a store lock while blocked on a mailbox condition.
type mailbox struct {
	mu sync.Mutex

	producerMayWrite *sync.Cond // signaled by the worker once it has drained req
	consumerMayRead  *sync.Cond // signaled by the dispatcher once it has filled req

	writing bool // true: slot holds a request the worker hasn't consumed yet
	req     request
	closed  bool // true once the session has shut down; wakes both sides for good
}

func newMailbox() *mailbox {
	m := &mailbox{writing: false}
	m.producerMayWrite = sync.NewCond(&m.mu)
	m.consumerMayRead = sync.NewCond(&m.mu)
	return m
}

// put blocks until the slot is empty (or the mailbox is closed), then
// places req and wakes the worker. Returns false if the mailbox was
// closed before the slot could be filled.
func (m *mailbox) put(req request) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.writing && !m.closed {
		m.producerMayWrite.Wait()
	}
	if m.closed {
		return false
	}

	m.req = req
	m.writing = true
	m.consumerMayRead.Signal()
	return true
}

// take blocks until a request is available (or the mailbox is
// closed), then returns it and frees the slot. The second return
// value is false once the mailbox has been closed and no further
// request will ever arrive.
func (m *mailbox) take() (request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.writing && !m.closed {
		m.consumerMayRead.Wait()
	}
	if !m.writing && m.closed {
		return request{}, false
	}

	req := m.req
	m.req = request{}
	m.writing = false
	m.producerMayWrite.Signal()
	return req, true
}

// close wakes any goroutine blocked in put or take so the worker and
// dispatcher can both notice the session is gone and return.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.producerMayWrite.Broadcast()
	m.consumerMayRead.Broadcast()
}
