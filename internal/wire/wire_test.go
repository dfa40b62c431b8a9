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

package wire

import (
	"bytes"
	"testing"
)

func TestPutNameThenNameRoundTrips(t *testing.T) {
	buf := make([]byte, NameSize)
	if err := PutName(buf, "/some/file"); err != nil {
		t.Fatalf("PutName: %v", err)
	}
	if got := Name(buf); got != "/some/file" {
		t.Errorf("Name = %q, want %q", got, "/some/file")
	}
}

func TestPutNameZeroPadsTheRemainder(t *testing.T) {
	buf := bytes.Repeat([]byte{0xff}, NameSize)
	if err := PutName(buf, "abc"); err != nil {
		t.Fatalf("PutName: %v", err)
	}
	for i := 3; i < NameSize; i++ {
		if buf[i] != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, buf[i])
		}
	}
}

func TestPutNameRejectsOverlongNames(t *testing.T) {
	buf := make([]byte, NameSize)
	name := bytes.Repeat([]byte{'x'}, NameSize)
	if err := PutName(buf, string(name)); err == nil {
		t.Fatal("expected an error for a NameSize-byte name (no room for a NUL)")
	}
}

func TestPutNameRejectsShortBuffers(t *testing.T) {
	buf := make([]byte, NameSize-1)
	if err := PutName(buf, "x"); err != ErrShortField {
		t.Fatalf("err = %v, want ErrShortField", err)
	}
}

func TestNameStopsAtFirstNUL(t *testing.T) {
	buf := make([]byte, NameSize)
	copy(buf, "abc\x00garbage-after-nul")
	if got := Name(buf); got != "abc" {
		t.Errorf("Name = %q, want %q", got, "abc")
	}
}

func TestInt32RoundTrips(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 1<<31 - 1, -(1 << 30)} {
		buf := make([]byte, 4)
		PutInt32(buf, v)
		if got := Int32(buf); got != v {
			t.Errorf("Int32(PutInt32(%d)) = %d", v, got)
		}
	}
}

func TestInt64RoundTrips(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1 << 40, -(1 << 40)} {
		buf := make([]byte, 8)
		PutInt64(buf, v)
		if got := Int64(buf); got != v {
			t.Errorf("Int64(PutInt64(%d)) = %d", v, got)
		}
	}
}

func TestMountRequestRoundTrips(t *testing.T) {
	want := MountRequest{ClientPipe: "/tmp/client-42"}
	body, err := EncodeMountRequest(want)
	if err != nil {
		t.Fatalf("EncodeMountRequest: %v", err)
	}
	if len(body) != MountRequestSize {
		t.Fatalf("len(body) = %d, want %d", len(body), MountRequestSize)
	}
	got, err := DecodeMountRequest(body)
	if err != nil {
		t.Fatalf("DecodeMountRequest: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestOpenRequestRoundTrips(t *testing.T) {
	want := OpenRequest{SessionID: 3, Name: "/foo/bar", Flags: OCreat | OTrunc}
	body, err := EncodeOpenRequest(want)
	if err != nil {
		t.Fatalf("EncodeOpenRequest: %v", err)
	}
	if len(body) != OpenRequestFixed {
		t.Fatalf("len(body) = %d, want %d", len(body), OpenRequestFixed)
	}
	got, err := DecodeOpenRequest(body)
	if err != nil {
		t.Fatalf("DecodeOpenRequest: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCloseRequestRoundTrips(t *testing.T) {
	want := CloseRequest{SessionID: 9, Handle: 12}
	body := EncodeCloseRequest(want)
	if len(body) != CloseRequestSize {
		t.Fatalf("len(body) = %d, want %d", len(body), CloseRequestSize)
	}
	got, err := DecodeCloseRequest(body)
	if err != nil {
		t.Fatalf("DecodeCloseRequest: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestWriteRequestHeaderRoundTrips(t *testing.T) {
	header := EncodeWriteRequestHeader(5, 6, 1000)
	if len(header) != WriteRequestFixed {
		t.Fatalf("len(header) = %d, want %d", len(header), WriteRequestFixed)
	}
	sid, handle, length, err := DecodeWriteRequestHeader(header)
	if err != nil {
		t.Fatalf("DecodeWriteRequestHeader: %v", err)
	}
	if sid != 5 || handle != 6 || length != 1000 {
		t.Errorf("got (%d, %d, %d), want (5, 6, 1000)", sid, handle, length)
	}
}

func TestReadRequestRoundTrips(t *testing.T) {
	want := ReadRequest{SessionID: 1, Handle: 2, Len: 512}
	body := EncodeReadRequest(want)
	if len(body) != ReadRequestSize {
		t.Fatalf("len(body) = %d, want %d", len(body), ReadRequestSize)
	}
	got, err := DecodeReadRequest(body)
	if err != nil {
		t.Fatalf("DecodeReadRequest: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestInt32ResponseRoundTrips(t *testing.T) {
	body := EncodeInt32Response(AllTaken)
	got, err := DecodeInt32Response(body)
	if err != nil {
		t.Fatalf("DecodeInt32Response: %v", err)
	}
	if got != AllTaken {
		t.Errorf("got %d, want %d", got, AllTaken)
	}
}

func TestInt64ResponseRoundTrips(t *testing.T) {
	body := EncodeInt64Response(-1)
	got, err := DecodeInt64Response(body)
	if err != nil {
		t.Fatalf("DecodeInt64Response: %v", err)
	}
	if got != -1 {
		t.Errorf("got %d, want -1", got)
	}
}

func TestEncodeSessionIDFrameIncludesTheOpcode(t *testing.T) {
	frame := EncodeSessionIDFrame(OpUnmount, 4)
	if len(frame) != 1+SessionIDSize {
		t.Fatalf("len(frame) = %d, want %d", len(frame), 1+SessionIDSize)
	}
	if OpCode(frame[0]) != OpUnmount {
		t.Errorf("frame[0] = %d, want OpUnmount", frame[0])
	}
	if got := Int32(frame[1:]); got != 4 {
		t.Errorf("session id = %d, want 4", got)
	}
}

func TestOpCodeString(t *testing.T) {
	cases := map[OpCode]string{
		OpMount:                  "MOUNT",
		OpUnmount:                "UNMOUNT",
		OpOpen:                   "OPEN",
		OpClose:                  "CLOSE",
		OpWrite:                  "WRITE",
		OpRead:                   "READ",
		OpShutdownAfterAllClosed: "SHUTDOWN_AFTER_ALL_CLOSED",
		OpCode(99):               "UNKNOWN",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("OpCode(%d).String() = %q, want %q", byte(op), got, want)
		}
	}
}

func TestShortBodiesReturnErrShortField(t *testing.T) {
	if _, err := DecodeMountRequest(make([]byte, NameSize-1)); err != ErrShortField {
		t.Errorf("DecodeMountRequest: got %v, want ErrShortField", err)
	}
	if _, err := DecodeOpenRequest(make([]byte, OpenRequestFixed-1)); err != ErrShortField {
		t.Errorf("DecodeOpenRequest: got %v, want ErrShortField", err)
	}
	if _, err := DecodeCloseRequest(make([]byte, CloseRequestSize-1)); err != ErrShortField {
		t.Errorf("DecodeCloseRequest: got %v, want ErrShortField", err)
	}
	if _, err := DecodeReadRequest(make([]byte, ReadRequestSize-1)); err != ErrShortField {
		t.Errorf("DecodeReadRequest: got %v, want ErrShortField", err)
	}
	if _, _, _, err := DecodeWriteRequestHeader(make([]byte, WriteRequestFixed-1)); err != ErrShortField {
		t.Errorf("DecodeWriteRequestHeader: got %v, want ErrShortField", err)
	}
	if _, err := DecodeInt32Response(make([]byte, 3)); err != ErrShortField {
		t.Errorf("DecodeInt32Response: got %v, want ErrShortField", err)
	}
	if _, err := DecodeInt64Response(make([]byte, 7)); err != ErrShortField {
		t.Errorf("DecodeInt64Response: got %v, want ErrShortField", err)
	}
}
