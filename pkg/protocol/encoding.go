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
	"encoding/binary"
	"fmt"
)

type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(b []byte) *byteReader {
	return &byteReader{buf: b}
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *byteReader) read(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("%w: need %d have %d", ErrTruncated, n, r.remaining())
	}
	start := r.pos
	r.pos += n
	return r.buf[start:r.pos], nil
}

func (r *byteReader) Int8() (int8, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (r *byteReader) Uint8() (uint8, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) Int16() (int16, error) {
	b, err := r.read(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (r *byteReader) Uint16() (uint16, error) {
	b, err := r.read(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) Int32() (int32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *byteReader) Uint32() (uint32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) Int64() (int64, error) {
	b, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *byteReader) Uint64() (uint64, error) {
	b, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// String reads a 16-bit length-prefixed string. Length -1 decodes to "".
func (r *byteReader) String() (string, error) {
	l, err := r.Int16()
	if err != nil {
		return "", err
	}
	if l == -1 {
		return "", nil
	}
	if l < 0 {
		return "", fmt.Errorf("invalid string length: %d", l)
	}
	b, err := r.read(int(l))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SizedBytes reads a 32-bit length-prefixed byte string. Length -1 decodes to
// empty. The returned slice is copied out and never aliases the source buffer.
func (r *byteReader) SizedBytes() ([]byte, error) {
	length, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if length == -1 {
		return nil, nil
	}
	if length < 0 {
		return nil, fmt.Errorf("invalid bytes length %d", length)
	}
	b, err := r.read(int(length))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// readArray reads a 4-byte signed element count and applies item that many
// times. A count of zero or less yields an empty slice with the cursor left
// just past the count field.
func readArray[T any](r *byteReader, item func(*byteReader) (T, error)) ([]T, error) {
	count, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}
	out := make([]T, 0, count)
	for i := int32(0); i < count; i++ {
		v, err := item(r)
		if err != nil {
			return nil, fmt.Errorf("array item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

type byteWriter struct {
	buf []byte
}

func newByteWriter(capacity int) *byteWriter {
	return &byteWriter{buf: make([]byte, 0, capacity)}
}

func (w *byteWriter) write(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *byteWriter) Int8(v int8) {
	w.write([]byte{byte(v)})
}

func (w *byteWriter) Uint8(v uint8) {
	w.write([]byte{v})
}

func (w *byteWriter) Int16(v int16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(v))
	w.write(tmp[:])
}

func (w *byteWriter) Int32(v int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	w.write(tmp[:])
}

func (w *byteWriter) Uint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.write(tmp[:])
}

func (w *byteWriter) Int64(v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	w.write(tmp[:])
}

// String writes a 16-bit length-prefixed string. Empty strings encode as the
// -1 absent sentinel.
func (w *byteWriter) String(v string) {
	if v == "" {
		w.Int16(-1)
		return
	}
	if len(v) > 0x7fff {
		panic("string too long")
	}
	w.Int16(int16(len(v)))
	w.write([]byte(v))
}

// SizedBytes writes a 32-bit length-prefixed byte string. Empty input encodes
// as the -1 absent sentinel.
func (w *byteWriter) SizedBytes(b []byte) {
	if len(b) == 0 {
		w.Int32(-1)
		return
	}
	w.Int32(int32(len(b)))
	w.write(b)
}

func (w *byteWriter) Bytes() []byte {
	return w.buf
}
