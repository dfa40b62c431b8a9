// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package tfs

import "errors"

// Sentinel errors naming the server's session-level failure modes. No
// package of this module returns them. None of them crosses the wire:
// every client-visible failure is the single int32/int64 -1 the
// protocol already reserves for "the call failed" (spec.md §6).
var (
	ErrAllSessionsTaken = errors.New("tfs: no free session slot")
	ErrSessionClosed    = errors.New("tfs: session is no longer mounted")
	ErrShuttingDown     = errors.New("tfs: server is shutting down")
)
