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
	"errors"
	"io"

	"github.com/tecnicofs/tfs/internal/transport"
	"github.com/tecnicofs/tfs/internal/wire"
	tfs "github.com/tecnicofs/tfs"
)

// Dispatch runs the single dispatcher loop against pipe: it decodes
// one opcode byte at a time, reads whatever fixed-width fields that
// opcode carries, and hands the assembled request to the right
// session's mailbox (spec.md §4.H). It returns when pipe reports a
// clean EOF and the caller's reopen loop (see cmd/tfsserver) decides
// not to call it again, or when Shutdown has been triggered.
//
// Dispatch never itself runs file operations; that is entirely the
// worker's job. A slow operation on one session stalls the other
// sessions only when a further request for that same session finds
// its mailbox slot still full, since put then blocks Dispatch until
// the worker takes the queued request.
func (srv *Server) Dispatch(pipe io.Reader) error {
	opcode := make([]byte, 1)

	for {
		select {
		case <-srv.shutdownCh:
			return nil
		default:
		}

		if err := transport.ReadFull(pipe, opcode); err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return err
		}

		op := wire.OpCode(opcode[0])
		if op == 0 {
			continue
		}

		if op == wire.OpMount {
			if err := srv.dispatchMount(pipe); err != nil {
				return err
			}
			continue
		}

		if err := srv.dispatchToSession(pipe, op); err != nil {
			return err
		}
	}
}

// dispatchMount reads a MOUNT frame's fixed-width body, allocates a
// session, and either delivers MOUNT to the new session's mailbox or
// (if every slot is taken) opens the client's pipe transiently just
// long enough to report ALL_TAKEN, per spec.md §8 scenario 1.
func (srv *Server) dispatchMount(pipe io.Reader) error {
	body := make([]byte, wire.MountRequestSize)
	if err := transport.ReadFull(pipe, body); err != nil {
		return err
	}

	mreq, err := wire.DecodeMountRequest(body)
	if err != nil {
		tfs.Logger().Printf("dispatcher: decoding MOUNT: %v", err)
		return nil
	}

	id := srv.allocate()
	if id == freeSlot {
		client, err := srv.dial(mreq.ClientPipe)
		if err != nil {
			tfs.Logger().Printf("dispatcher: opening client pipe for ALL_TAKEN: %v", err)
			return nil
		}
		defer client.Close()
		if _, err := client.Write(wire.EncodeInt32Response(wire.AllTaken)); err != nil {
			tfs.Logger().Printf("dispatcher: writing ALL_TAKEN: %v", err)
		}
		return nil
	}

	srv.slots[id].mailbox.put(request{op: byte(wire.OpMount), body: body})
	return nil
}

// dispatchToSession reads the session id every non-MOUNT opcode
// carries first, then the rest of that opcode's fixed-width fields
// (and, for WRITE, its variable-length payload), and delivers the
// whole frame to that session's mailbox.
func (srv *Server) dispatchToSession(pipe io.Reader, op wire.OpCode) error {
	sessionID := make([]byte, wire.SessionIDSize)
	if err := transport.ReadFull(pipe, sessionID); err != nil {
		return err
	}
	id := wire.Int32(sessionID)

	var rest []byte
	switch op {
	case wire.OpUnmount:
		rest = nil
	case wire.OpOpen:
		rest = make([]byte, wire.OpenRequestFixed-wire.SessionIDSize)
		if err := transport.ReadFull(pipe, rest); err != nil {
			return err
		}
	case wire.OpClose:
		rest = make([]byte, wire.CloseRequestSize-wire.SessionIDSize)
		if err := transport.ReadFull(pipe, rest); err != nil {
			return err
		}
	case wire.OpWrite:
		header := make([]byte, wire.WriteRequestFixed-wire.SessionIDSize)
		if err := transport.ReadFull(pipe, header); err != nil {
			return err
		}
		length := wire.Int64(header[wire.HandleSize:])
		payload := make([]byte, length)
		if err := transport.ReadFull(pipe, payload); err != nil {
			return err
		}
		rest = append(header, payload...)
	case wire.OpRead:
		rest = make([]byte, wire.ReadRequestSize-wire.SessionIDSize)
		if err := transport.ReadFull(pipe, rest); err != nil {
			return err
		}
	case wire.OpShutdownAfterAllClosed:
		rest = nil
	default:
		tfs.Logger().Printf("dispatcher: unknown opcode %d", op)
		return nil
	}

	s := srv.slotFor(id)
	if s == nil {
		tfs.Logger().Printf("dispatcher: unknown session %d for opcode %d", id, op)
		return nil
	}

	body := append(sessionID, rest...)
	s.mailbox.put(request{op: byte(op), body: body})
	return nil
}
