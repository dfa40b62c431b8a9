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

// Package tfs is the root of the TecnicoFS module: an in-memory,
// single-volume file system exposed to client processes over a named
// pipe.
//
// The primary elements of interest are:
//
//   - internal/store, the storage engine: a block pool, an inode
//     table, the root directory, and an open-file table addressed
//     through a direct-plus-indirect block map.
//
//   - internal/session, the session layer: one mailbox and worker
//     goroutine per mounted client, and the dispatcher that reads the
//     server's named pipe and fans frames out to them.
//
//   - pkg/tfsclient, a thin client library that speaks the same wire
//     protocol from the other end of the pipe.
//
//   - cmd/tfsserver, the server binary.
package tfs
