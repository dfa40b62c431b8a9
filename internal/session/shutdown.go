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

// Shutdown is the Go analogue of tfs_server.c's
// shutdown_after_all_closed(): it closes every mailbox, waking any
// worker blocked waiting for its next request so each one returns
// (spec.md §4.J, §8 scenario 5 — sessions mid-request finish that
// request and answer it before the mailbox close is observed, because
// the worker only checks for shutdown between requests). It is safe
// to call more than once; only the first call has any effect.
func (srv *Server) Shutdown() {
	srv.shutdownOnce.Do(func() {
		close(srv.shutdownCh)
		for _, s := range srv.slots {
			s.mailbox.close()
		}
	})
}

// Done reports whether Shutdown has been called.
func (srv *Server) Done() <-chan struct{} {
	return srv.shutdownCh
}
