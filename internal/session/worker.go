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

import (
	"context"

	"github.com/jacobsa/reqtrace"
	"github.com/jacobsa/timeutil"
	tfs "github.com/tecnicofs/tfs"
	"github.com/tecnicofs/tfs/internal/wire"
)

// clock timestamps the per-request log line written when reqtrace is
// enabled; it is a package variable set to the real clock.
var clock timeutil.Clock = timeutil.RealClock()

// runWorker is the body of the goroutine permanently bound to session
// id. It blocks on its mailbox, executes each request against the
// storage engine, and writes the encoded response to the session's
// client channel, exactly mirroring tfs_server.c's work()/process()
// pair (spec.md §4.G).
func (srv *Server) runWorker(id int32) {
	mb := srv.slots[id].mailbox

	for {
		req, ok := mb.take()
		if !ok {
			return
		}

		if reqtrace.Enabled() {
			var report reqtrace.ReportFunc
			_, report = reqtrace.StartSpan(context.Background(), wire.OpCode(req.op).String())
			start := clock.Now()
			srv.process(id, req)
			report(nil)
			tfs.Logger().Printf("session %d: %s took %s", id, wire.OpCode(req.op), clock.Now().Sub(start))
			continue
		}

		srv.process(id, req)
	}
}

// process executes one already-mailboxed request and writes its
// response, matching process() in the original source's dispatch
// table.
func (srv *Server) process(id int32, req request) {
	switch wire.OpCode(req.op) {
	case wire.OpMount:
		srv.handleMount(id, req)
	case wire.OpUnmount:
		srv.release(id)
	case wire.OpOpen:
		srv.handleOpen(id, req)
	case wire.OpClose:
		srv.handleClose(id, req)
	case wire.OpWrite:
		srv.handleWrite(id, req)
	case wire.OpRead:
		srv.handleRead(id, req)
	case wire.OpShutdownAfterAllClosed:
		srv.handleShutdown(id, req)
	default:
		tfs.Logger().Printf("session %d: unknown opcode %d", id, req.op)
	}
}

func (srv *Server) handleMount(id int32, req request) {
	mreq, err := wire.DecodeMountRequest(req.body)
	if err != nil {
		tfs.Logger().Printf("session %d: decoding MOUNT: %v", id, err)
		srv.release(id)
		return
	}

	client, err := srv.dial(mreq.ClientPipe)
	if err != nil {
		tfs.Logger().Printf("session %d: opening client pipe %q: %v", id, mreq.ClientPipe, err)
		srv.release(id)
		return
	}

	s := srv.slots[id]
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	if err := srv.sendTo(id, wire.EncodeInt32Response(id)); err != nil {
		tfs.Logger().Printf("session %d: answering MOUNT: %v", id, err)
	}
}

func (srv *Server) handleOpen(id int32, req request) {
	oreq, err := wire.DecodeOpenRequest(req.body)
	if err != nil {
		tfs.Logger().Printf("session %d: decoding OPEN: %v", id, err)
		return
	}

	handle, err := srv.store.Open(oreq.Name, oreq.Flags)
	if err != nil {
		handle = -1
	}
	if err := srv.sendTo(id, wire.EncodeInt32Response(handle)); err != nil {
		tfs.Logger().Printf("session %d: answering OPEN: %v", id, err)
	}
}

func (srv *Server) handleClose(id int32, req request) {
	creq, err := wire.DecodeCloseRequest(req.body)
	if err != nil {
		tfs.Logger().Printf("session %d: decoding CLOSE: %v", id, err)
		return
	}

	status := int32(0)
	if err := srv.store.Close(creq.Handle); err != nil {
		status = -1
	}
	if err := srv.sendTo(id, wire.EncodeInt32Response(status)); err != nil {
		tfs.Logger().Printf("session %d: answering CLOSE: %v", id, err)
	}
}

func (srv *Server) handleWrite(id int32, req request) {
	sessionID, handle, _, err := wire.DecodeWriteRequestHeader(req.body)
	if err != nil {
		tfs.Logger().Printf("session %d: decoding WRITE: %v", id, err)
		return
	}
	_ = sessionID // carried on the wire for symmetry; id is authoritative

	data := req.body[wire.WriteRequestFixed:]

	n, err := srv.store.Write(handle, data)
	result := n
	if err != nil && n == 0 {
		result = -1
	}
	if err := srv.sendTo(id, wire.EncodeInt64Response(result)); err != nil {
		tfs.Logger().Printf("session %d: answering WRITE: %v", id, err)
	}
}

func (srv *Server) handleRead(id int32, req request) {
	rreq, err := wire.DecodeReadRequest(req.body)
	if err != nil {
		tfs.Logger().Printf("session %d: decoding READ: %v", id, err)
		return
	}

	buf := make([]byte, rreq.Len)
	n, err := srv.store.Read(rreq.Handle, buf)
	if err != nil && n == 0 {
		if sendErr := srv.sendTo(id, wire.EncodeInt64Response(-1)); sendErr != nil {
			tfs.Logger().Printf("session %d: answering READ: %v", id, sendErr)
		}
		return
	}

	if err := srv.sendTo(id, wire.EncodeInt64Response(n)); err != nil {
		tfs.Logger().Printf("session %d: answering READ length: %v", id, err)
		return
	}
	if err := srv.sendTo(id, buf[:n]); err != nil {
		tfs.Logger().Printf("session %d: answering READ payload: %v", id, err)
	}
}

func (srv *Server) handleShutdown(id int32, req request) {
	status := int32(0)
	if err := srv.sendTo(id, wire.EncodeInt32Response(status)); err != nil {
		tfs.Logger().Printf("session %d: answering SHUTDOWN_AFTER_ALL_CLOSED: %v", id, err)
	}
	srv.Shutdown()
}
