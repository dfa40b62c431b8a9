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

package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/grailbio/base/shutdown"
	tfs "github.com/tecnicofs/tfs"
	"github.com/tecnicofs/tfs/internal/session"
	"github.com/tecnicofs/tfs/internal/store"
	"github.com/tecnicofs/tfs/internal/transport"
)

func main() {
	flag.Parse()

	pipePath := flag.Arg(0)
	if pipePath == "" {
		log.Fatalf("Please specify the pathname of the server's pipe.")
	}

	fs, err := store.New()
	if err != nil {
		log.Fatalf("initializing storage: %v", err)
	}

	dial := func(path string) (io.WriteCloser, error) {
		return os.OpenFile(path, os.O_WRONLY, 0)
	}
	srv := session.NewServer(fs, dial)
	srv.Start()

	shutdown.Register(func() {
		srv.Shutdown()
		srv.Wait()
	})
	shutdown.Register(func() {
		os.Remove(pipePath)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		shutdown.Run()
		os.Exit(0)
	}()

	if err := transport.CreatePipe(pipePath); err != nil {
		log.Fatalf("creating server pipe: %v", err)
	}

	log.Printf("TecnicoFS server listening on %s", pipePath)

	for {
		pipe, err := os.OpenFile(pipePath, os.O_RDONLY, 0)
		if err != nil {
			log.Fatalf("opening server pipe: %v", err)
		}

		err = srv.Dispatch(pipe)
		pipe.Close()

		select {
		case <-srv.Done():
			srv.Wait()
			os.Remove(pipePath)
			return
		default:
		}

		if errors.Is(err, io.EOF) {
			continue
		}
		if err != nil {
			tfs.Logger().Printf("dispatch loop: %v", err)
		}
	}
}
