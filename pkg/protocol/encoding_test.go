// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
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

package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadArray(t *testing.T) {
	w := newByteWriter(32)
	w.Int32(3)
	w.Int32(10)
	w.Int32(20)
	w.Int32(30)
	w.write([]byte{0xde, 0xad})

	r := newByteReader(w.Bytes())
	items, err := readArray(r, (*byteReader).Int32)
	if err != nil {
		t.Fatalf("readArray: %v", err)
	}
	if len(items) != 3 || items[0] != 10 || items[1] != 20 || items[2] != 30 {
		t.Fatalf("unexpected items: %v", items)
	}
	if r.remaining() != 2 {
		t.Fatalf("unexpected remainder: %d", r.remaining())
	}
}

func TestReadArrayZeroCount(t *testing.T) {
	w := newByteWriter(16)
	w.Int32(0)
	w.write([]byte{0x01, 0x02, 0x03})

	r := newByteReader(w.Bytes())
	items, err := readArray(r, (*byteReader).Int32)
	if err != nil {
		t.Fatalf("readArray: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty array, got %v", items)
	}
	if r.remaining() != 3 {
		t.Fatalf("unexpected remainder: %d", r.remaining())
	}
}

func TestReadArrayNegativeCount(t *testing.T) {
	w := newByteWriter(16)
	w.Int32(-1)
	w.write([]byte{0x01})

	r := newByteReader(w.Bytes())
	items, err := readArray(r, (*byteReader).Int32)
	if err != nil {
		t.Fatalf("readArray: %v", err)
	}
	if len(items) != 0 || r.remaining() != 1 {
		t.Fatalf("unexpected result: %v remainder %d", items, r.remaining())
	}
}

func TestReadArrayExhausted(t *testing.T) {
	w := newByteWriter(16)
	w.Int32(5)
	w.Int32(1)

	r := newByteReader(w.Bytes())
	if _, err := readArray(r, (*byteReader).Int32); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestSizedBytesRoundTrip(t *testing.T) {
	for _, in := range [][]byte{nil, {}, []byte("k"), []byte("some bytes")} {
		w := newByteWriter(16)
		w.SizedBytes(in)
		r := newByteReader(w.Bytes())
		out, err := r.SizedBytes()
		if err != nil {
			t.Fatalf("SizedBytes(%q): %v", in, err)
		}
		if !bytes.Equal(out, in) && len(out)+len(in) != 0 {
			t.Fatalf("round trip mismatch: %q vs %q", in, out)
		}
		if r.remaining() != 0 {
			t.Fatalf("unexpected remainder: %d", r.remaining())
		}
	}
}

func TestSizedBytesEmptyUsesSentinel(t *testing.T) {
	w := newByteWriter(4)
	w.SizedBytes(nil)
	if !bytes.Equal(w.Bytes(), []byte{0xff, 0xff, 0xff, 0xff}) {
		t.Fatalf("expected -1 sentinel, got % x", w.Bytes())
	}
}

func TestSizedBytesDoesNotAlias(t *testing.T) {
	w := newByteWriter(16)
	w.SizedBytes([]byte("abc"))
	src := w.Bytes()

	r := newByteReader(src)
	out, err := r.SizedBytes()
	if err != nil {
		t.Fatalf("SizedBytes: %v", err)
	}
	src[4] = 'z'
	if string(out) != "abc" {
		t.Fatalf("decoded bytes alias the source buffer: %q", out)
	}
}

func TestSizedBytesTruncated(t *testing.T) {
	w := newByteWriter(8)
	w.Int32(100)
	w.write([]byte("short"))
	r := newByteReader(w.Bytes())
	if _, err := r.SizedBytes(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestStringEmptySentinel(t *testing.T) {
	w := newByteWriter(2)
	w.String("")
	if !bytes.Equal(w.Bytes(), []byte{0xff, 0xff}) {
		t.Fatalf("expected -1 sentinel, got % x", w.Bytes())
	}
	r := newByteReader(w.Bytes())
	s, err := r.String()
	if err != nil || s != "" {
		t.Fatalf("unexpected decode: %q %v", s, err)
	}
}

func TestIntReadersBigEndian(t *testing.T) {
	r := newByteReader([]byte{
		0x01, 0x02,
		0xff, 0xfe, 0xff, 0xff,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00,
		0x80, 0x00, 0x00, 0x01,
	})
	i16, err := r.Int16()
	if err != nil || i16 != 0x0102 {
		t.Fatalf("Int16: %d %v", i16, err)
	}
	i32, err := r.Int32()
	if err != nil || i32 != -65537 {
		t.Fatalf("Int32: %d %v", i32, err)
	}
	i64, err := r.Int64()
	if err != nil || i64 != 256 {
		t.Fatalf("Int64: %d %v", i64, err)
	}
	u32, err := r.Uint32()
	if err != nil || u32 != 0x80000001 {
		t.Fatalf("Uint32: %d %v", u32, err)
	}
	if _, err := r.Int8(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated at end of buffer, got %v", err)
	}
}
