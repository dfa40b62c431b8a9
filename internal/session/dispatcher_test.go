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
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tecnicofs/tfs/internal/wire"
)

func mountFrame(clientPipe string) []byte {
	body, err := wire.EncodeMountRequest(wire.MountRequest{ClientPipe: clientPipe})
	if err != nil {
		panic(err)
	}
	return append([]byte{byte(wire.OpMount)}, body...)
}

// TestDispatchMountQueuesRequestOnFreshSession feeds a single MOUNT
// frame through Dispatch (without running any workers) and checks that
// dispatchMount allocated a session slot and handed the decoded request
// to its mailbox, rather than answering inline.
func TestDispatchMountQueuesRequestOnFreshSession(t *testing.T) {
	srv, _ := newTestServer()

	pipe := bytes.NewReader(mountFrame("/tmp/client-0"))
	err := srv.Dispatch(pipe)
	assert.ErrorIs(t, err, io.EOF)

	req, ok := srv.slots[0].mailbox.take()
	require.True(t, ok)
	assert.Equal(t, byte(wire.OpMount), req.op)

	mreq, err := wire.DecodeMountRequest(req.body)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/client-0", mreq.ClientPipe)
}

// TestDispatchMountReportsAllTakenWhenFull exhausts every session slot
// up front, then checks that a further MOUNT is answered directly on a
// transiently-dialed client rather than being queued.
func TestDispatchMountReportsAllTakenWhenFull(t *testing.T) {
	srv, _ := newTestServer()
	for i := 0; i < Count; i++ {
		require.NotEqual(t, int32(freeSlot), srv.allocate())
	}

	var dialedPath string
	client := &fakeClient{}
	srv.dial = func(path string) (io.WriteCloser, error) {
		dialedPath = path
		return client, nil
	}

	pipe := bytes.NewReader(mountFrame("/tmp/client-overflow"))
	err := srv.Dispatch(pipe)
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "/tmp/client-overflow", dialedPath)
	require.Len(t, client.writes, 1)
	got, err := wire.DecodeInt32Response(client.writes[0])
	require.NoError(t, err)
	assert.Equal(t, wire.AllTaken, got)
	assert.True(t, client.closed, "the transient ALL_TAKEN connection should be closed")
}

// TestDispatchToSessionReadsCloseFrame checks the dispatcher reads
// exactly CloseRequestSize-SessionIDSize bytes after the session id for
// a CLOSE frame and reassembles them in the order DecodeCloseRequest
// expects.
func TestDispatchToSessionReadsCloseFrame(t *testing.T) {
	srv, _ := newTestServer()
	id := srv.allocate()
	require.NotEqual(t, int32(freeSlot), id)

	frame := append([]byte{byte(wire.OpClose)}, wire.EncodeCloseRequest(wire.CloseRequest{SessionID: id, Handle: 7})...)
	pipe := bytes.NewReader(frame)

	err := srv.Dispatch(pipe)
	assert.ErrorIs(t, err, io.EOF)

	req, ok := srv.slots[id].mailbox.take()
	require.True(t, ok)
	creq, err := wire.DecodeCloseRequest(req.body)
	require.NoError(t, err)
	assert.Equal(t, int32(7), creq.Handle)
}

// TestDispatchToSessionReadsWriteFrameWithPayload checks that the
// dispatcher reads the WRITE header, learns the payload length from it,
// and then reads exactly that many additional bytes.
func TestDispatchToSessionReadsWriteFrameWithPayload(t *testing.T) {
	srv, _ := newTestServer()
	id := srv.allocate()
	require.NotEqual(t, int32(freeSlot), id)

	payload := []byte("some file contents")
	header := wire.EncodeWriteRequestHeader(id, 3, int64(len(payload)))
	frame := append([]byte{byte(wire.OpWrite)}, header...)
	frame = append(frame, payload...)

	// Trailing bytes belonging to a second, unrelated frame must be
	// left untouched.
	frame = append(frame, mountFrame("/tmp/client-next")...)

	pipe := bytes.NewReader(frame)
	err := srv.Dispatch(pipe)
	assert.ErrorIs(t, err, io.EOF)

	req, ok := srv.slots[id].mailbox.take()
	require.True(t, ok)
	sessionID, handle, length, err := wire.DecodeWriteRequestHeader(req.body)
	require.NoError(t, err)
	assert.Equal(t, id, sessionID)
	assert.Equal(t, int32(3), handle)
	assert.Equal(t, int64(len(payload)), length)
	assert.Equal(t, payload, req.body[wire.WriteRequestFixed:])
}

// TestDispatchToSessionUnknownSessionIsIgnored checks that an opcode
// naming a session id that was never allocated does not error the
// dispatch loop — it is logged and skipped.
func TestDispatchToSessionUnknownSessionIsIgnored(t *testing.T) {
	srv, _ := newTestServer()

	frame := append([]byte{byte(wire.OpClose)}, wire.EncodeCloseRequest(wire.CloseRequest{SessionID: 999, Handle: 1})...)
	pipe := bytes.NewReader(frame)

	err := srv.Dispatch(pipe)
	assert.ErrorIs(t, err, io.EOF)
}
