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

package tfsclient_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tecnicofs/tfs/internal/session"
	"github.com/tecnicofs/tfs/internal/store"
	"github.com/tecnicofs/tfs/internal/transport"
	"github.com/tecnicofs/tfs/internal/wire"
	"github.com/tecnicofs/tfs/pkg/tfsclient"
)

// TestClientEndToEndOverRealNamedPipes drives pkg/tfsclient against a
// live internal/session.Server over real FIFOs, standing in for what a
// cmd/tfsserver process and a mounted client process would actually
// exchange.
func TestClientEndToEndOverRealNamedPipes(t *testing.T) {
	dir, err := os.MkdirTemp("", "tfs-client-e2e")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	serverPipePath := filepath.Join(dir, "server")
	clientPipePath := filepath.Join(dir, "client")

	fs, err := store.New()
	require.NoError(t, err)

	dial := func(path string) (io.WriteCloser, error) {
		return os.OpenFile(path, os.O_WRONLY, 0)
	}
	srv := session.NewServer(fs, dial)
	srv.Start()
	defer func() {
		srv.Shutdown()
		srv.Wait()
	}()

	require.NoError(t, transport.CreatePipe(serverPipePath))

	serverDone := make(chan error, 1)
	go func() {
		pipe, err := os.OpenFile(serverPipePath, os.O_RDONLY, 0)
		if err != nil {
			serverDone <- err
			return
		}
		defer pipe.Close()

		err = srv.Dispatch(pipe)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		serverDone <- err
	}()

	client, err := tfsclient.Mount(clientPipePath, serverPipePath)
	require.NoError(t, err)

	handle, err := client.Open("/greeting", wire.OCreat)
	require.NoError(t, err)

	payload := []byte("hello from a real named pipe")
	n, err := client.Write(handle, payload)
	require.NoError(t, err)
	require.EqualValues(t, len(payload), n)

	buf := make([]byte, len(payload)+10)
	seekClient, err := tfsclient.Mount(filepath.Join(dir, "client-2"), serverPipePath)
	require.NoError(t, err)

	readHandle, err := client.Open("/greeting", 0)
	require.NoError(t, err)
	n, err = client.Read(readHandle, buf)
	require.NoError(t, err)
	require.EqualValues(t, len(payload), n)
	require.Equal(t, payload, buf[:n])

	require.NoError(t, client.Close(handle))
	require.NoError(t, client.Close(readHandle))

	_, err = seekClient.Open("/greeting", 0)
	require.NoError(t, err, "a second, independently-mounted session should see the same volume")

	// Every session's server-pipe descriptor must close before the
	// dispatcher's read end of the FIFO sees EOF and Dispatch returns.
	require.NoError(t, seekClient.Unmount())
	require.NoError(t, client.Unmount())

	if err := <-serverDone; err != nil {
		t.Fatalf("dispatcher loop: %v", err)
	}
}
