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

// Package tfsclient is a thin client library for the TecnicoFS wire
// protocol, the Go analogue of tecnicofs_client_api.c: a session holds
// the two named-pipe file descriptors (the shared server pipe and its
// own private client pipe) and round-trips one request at a time.
package tfsclient

import (
	"fmt"
	"os"

	"github.com/tecnicofs/tfs/internal/transport"
	"github.com/tecnicofs/tfs/internal/wire"
)

// Client is one mounted session. It is not safe for concurrent use by
// multiple goroutines, matching the single-threaded assumption baked
// into tecnicofs_client_api.c's process-wide session_id/fcli/fserv
// globals.
type Client struct {
	clientPipePath string
	server         *os.File
	client         *os.File
	sessionID      int32
}

// Mount opens serverPipePath (which a running server must already have
// created), creates clientPipePath as a fresh named pipe for the
// server's responses, and performs the MOUNT handshake. It returns
// ErrAllSessionsTaken if the server has no free session slot.
func Mount(clientPipePath, serverPipePath string) (*Client, error) {
	server, err := os.OpenFile(serverPipePath, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("tfsclient: opening server pipe: %w", err)
	}

	if err := transport.CreatePipe(clientPipePath); err != nil {
		server.Close()
		return nil, fmt.Errorf("tfsclient: creating client pipe: %w", err)
	}

	body, err := wire.EncodeMountRequest(wire.MountRequest{ClientPipe: clientPipePath})
	if err != nil {
		server.Close()
		return nil, err
	}
	if err := transport.WriteFull(server, append([]byte{byte(wire.OpMount)}, body...)); err != nil {
		server.Close()
		return nil, fmt.Errorf("tfsclient: writing MOUNT: %w", err)
	}

	client, err := os.OpenFile(clientPipePath, os.O_RDONLY, 0)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("tfsclient: opening client pipe: %w", err)
	}

	resp := make([]byte, 4)
	if err := transport.ReadFull(client, resp); err != nil {
		server.Close()
		client.Close()
		return nil, fmt.Errorf("tfsclient: reading MOUNT response: %w", err)
	}
	sessionID, _ := wire.DecodeInt32Response(resp)
	if sessionID == wire.AllTaken {
		server.Close()
		client.Close()
		return nil, ErrAllSessionsTaken
	}

	return &Client{
		clientPipePath: clientPipePath,
		server:         server,
		client:         client,
		sessionID:      sessionID,
	}, nil
}

// ErrAllSessionsTaken is returned by Mount when the server reports
// ALL_TAKEN.
var ErrAllSessionsTaken = fmt.Errorf("tfsclient: server has no free session slot")

// Unmount sends UNMOUNT, closes both pipe descriptors, and removes the
// client's named pipe from the file system.
func (c *Client) Unmount() error {
	frame := wire.EncodeSessionIDFrame(wire.OpUnmount, c.sessionID)
	err := transport.WriteFull(c.server, frame)

	c.server.Close()
	c.client.Close()
	os.Remove(c.clientPipePath)

	return err
}

// Open resolves or creates name per flags and returns a handle, or an
// error if the server reported failure.
func (c *Client) Open(name string, flags int32) (int32, error) {
	body, err := wire.EncodeOpenRequest(wire.OpenRequest{SessionID: c.sessionID, Name: name, Flags: flags})
	if err != nil {
		return -1, err
	}
	if err := transport.WriteFull(c.server, append([]byte{byte(wire.OpOpen)}, body...)); err != nil {
		return -1, err
	}

	resp := make([]byte, 4)
	if err := transport.ReadFull(c.client, resp); err != nil {
		return -1, err
	}
	handle, _ := wire.DecodeInt32Response(resp)
	if handle < 0 {
		return -1, fmt.Errorf("tfsclient: open %q failed", name)
	}
	return handle, nil
}

// Close releases handle.
func (c *Client) Close(handle int32) error {
	body := wire.EncodeCloseRequest(wire.CloseRequest{SessionID: c.sessionID, Handle: handle})
	if err := transport.WriteFull(c.server, append([]byte{byte(wire.OpClose)}, body...)); err != nil {
		return err
	}

	resp := make([]byte, 4)
	if err := transport.ReadFull(c.client, resp); err != nil {
		return err
	}
	status, _ := wire.DecodeInt32Response(resp)
	if status != 0 {
		return fmt.Errorf("tfsclient: close %d failed", handle)
	}
	return nil
}

// Write writes data at handle's current offset, returning however many
// bytes the server reports were actually written.
func (c *Client) Write(handle int32, data []byte) (int64, error) {
	header := wire.EncodeWriteRequestHeader(c.sessionID, handle, int64(len(data)))
	frame := append([]byte{byte(wire.OpWrite)}, header...)
	frame = append(frame, data...)
	if err := transport.WriteFull(c.server, frame); err != nil {
		return 0, err
	}

	resp := make([]byte, 8)
	if err := transport.ReadFull(c.client, resp); err != nil {
		return 0, err
	}
	n, _ := wire.DecodeInt64Response(resp)
	if n < 0 {
		return 0, fmt.Errorf("tfsclient: write to handle %d failed", handle)
	}
	return n, nil
}

// Read fills buf (up to len(buf) bytes) from handle's current offset.
func (c *Client) Read(handle int32, buf []byte) (int64, error) {
	req := wire.EncodeReadRequest(wire.ReadRequest{SessionID: c.sessionID, Handle: handle, Len: int64(len(buf))})
	if err := transport.WriteFull(c.server, append([]byte{byte(wire.OpRead)}, req...)); err != nil {
		return 0, err
	}

	resp := make([]byte, 8)
	if err := transport.ReadFull(c.client, resp); err != nil {
		return 0, err
	}
	n, _ := wire.DecodeInt64Response(resp)
	if n < 0 {
		return 0, fmt.Errorf("tfsclient: read from handle %d failed", handle)
	}
	if n == 0 {
		return 0, nil
	}
	if err := transport.ReadFull(c.client, buf[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// ShutdownAfterAllClosed sends SHUTDOWN_AFTER_ALL_CLOSED and waits for
// the status. The server answers 0 at once and then stops every
// session's worker; it does not wait for files that are still open to
// be closed first.
func (c *Client) ShutdownAfterAllClosed() error {
	frame := wire.EncodeSessionIDFrame(wire.OpShutdownAfterAllClosed, c.sessionID)
	if err := transport.WriteFull(c.server, frame); err != nil {
		return err
	}

	resp := make([]byte, 4)
	if err := transport.ReadFull(c.client, resp); err != nil {
		return err
	}
	status, _ := wire.DecodeInt32Response(resp)
	if status != 0 {
		return fmt.Errorf("tfsclient: shutdown request failed")
	}
	return nil
}
