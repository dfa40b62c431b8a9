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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tecnicofs/tfs/internal/store"
	"github.com/tecnicofs/tfs/internal/wire"
)

// chanClient is an io.WriteCloser whose writes land on a channel, so a
// test can wait for a worker goroutine's response without polling.
type chanClient struct {
	writes chan []byte
	closed chan struct{}
}

func newChanClient() *chanClient {
	return &chanClient{
		writes: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *chanClient) Write(p []byte) (int, error) {
	buf := append([]byte(nil), p...)
	c.writes <- buf
	return len(p), nil
}

func (c *chanClient) Close() error {
	close(c.closed)
	return nil
}

func recvWrite(t *testing.T, c *chanClient) []byte {
	t.Helper()
	select {
	case b := <-c.writes:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a response")
		return nil
	}
}

// TestEndToEndMountOpenWriteReadCloseUnmount drives a full session
// lifecycle through Dispatch and a live worker pool, the way
// cmd/tfsserver's reopen loop and a real client would, but with an
// in-memory pipe and a recording client in place of named pipes.
func TestEndToEndMountOpenWriteReadCloseUnmount(t *testing.T) {
	fs, err := store.New()
	require.NoError(t, err)

	client := newChanClient()
	dial := func(path string) (io.WriteCloser, error) { return client, nil }

	srv := NewServer(fs, dial)
	srv.Start()
	defer func() {
		srv.Shutdown()
		srv.Wait()
	}()

	var frames [][]byte
	frames = append(frames, mountFrame("/tmp/fake-client"))

	const sessionID = int32(0) // the first MOUNT on a fresh server always lands on slot 0

	openBody, err := wire.EncodeOpenRequest(wire.OpenRequest{SessionID: sessionID, Name: "/greeting", Flags: wire.OCreat})
	require.NoError(t, err)
	frames = append(frames, append([]byte{byte(wire.OpOpen)}, openBody...))

	const handle = int32(0) // the first Open on a fresh store always lands on slot 0

	payload := []byte("hello, tecnicofs")
	writeHeader := wire.EncodeWriteRequestHeader(sessionID, handle, int64(len(payload)))
	writeFrame := append([]byte{byte(wire.OpWrite)}, writeHeader...)
	writeFrame = append(writeFrame, payload...)
	frames = append(frames, writeFrame)

	// WRITE leaves handle's offset at the end of the file, so read back
	// through a second handle opened at offset 0.
	reopenBody, err := wire.EncodeOpenRequest(wire.OpenRequest{SessionID: sessionID, Name: "/greeting", Flags: 0})
	require.NoError(t, err)
	frames = append(frames, append([]byte{byte(wire.OpOpen)}, reopenBody...))

	const readHandle = int32(1) // slot 0 is still held by handle

	readBody := wire.EncodeReadRequest(wire.ReadRequest{SessionID: sessionID, Handle: readHandle, Len: int64(len(payload))})
	frames = append(frames, append([]byte{byte(wire.OpRead)}, readBody...))

	closeBody := wire.EncodeCloseRequest(wire.CloseRequest{SessionID: sessionID, Handle: handle})
	frames = append(frames, append([]byte{byte(wire.OpClose)}, closeBody...))

	frames = append(frames, wire.EncodeSessionIDFrame(wire.OpUnmount, sessionID))

	var stream bytes.Buffer
	for _, f := range frames {
		stream.Write(f)
	}

	dispatchErr := srv.Dispatch(&stream)
	assert.ErrorIs(t, dispatchErr, io.EOF)

	mountResp, err := wire.DecodeInt32Response(recvWrite(t, client))
	require.NoError(t, err)
	assert.Equal(t, sessionID, mountResp)

	openResp, err := wire.DecodeInt32Response(recvWrite(t, client))
	require.NoError(t, err)
	assert.Equal(t, handle, openResp)

	writeResp, err := wire.DecodeInt64Response(recvWrite(t, client))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), writeResp)

	reopenResp, err := wire.DecodeInt32Response(recvWrite(t, client))
	require.NoError(t, err)
	assert.Equal(t, readHandle, reopenResp)

	readLen, err := wire.DecodeInt64Response(recvWrite(t, client))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), readLen)

	readPayload := recvWrite(t, client)
	assert.Equal(t, payload, readPayload)

	closeResp, err := wire.DecodeInt32Response(recvWrite(t, client))
	require.NoError(t, err)
	assert.Equal(t, int32(0), closeResp)

	select {
	case <-client.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("UNMOUNT never closed the client channel")
	}
}
