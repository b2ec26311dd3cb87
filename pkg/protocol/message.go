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
	"fmt"
	"hash/crc32"
)

// Message is one record in a message set. For produce requests only Key and
// Value are consulted; Offset, CRC, Magic and Attributes are filled in by the
// encoder. Decoded messages carry every field as read off the wire.
type Message struct {
	Offset     int64
	CRC        uint32
	Magic      uint8
	Attributes uint8
	Key        []byte
	Value      []byte
}

// offset[8] + size[4] preceding every message in a set
const messageSetEntryHeaderLen = 12

func encodeMessage(m Message) []byte {
	body := newByteWriter(10 + len(m.Key) + len(m.Value))
	body.Uint8(MagicByte)
	body.Uint8(CompressionNone)
	body.SizedBytes(m.Key)
	body.SizedBytes(m.Value)
	b := body.Bytes()

	w := newByteWriter(4 + len(b))
	w.Uint32(crc32.ChecksumIEEE(b))
	w.write(b)
	return w.Bytes()
}

// EncodeMessageSet renders messages as a concatenation of classic message-set
// entries. The per-entry offset is a placeholder the broker never inspects.
func EncodeMessageSet(msgs []Message) []byte {
	w := newByteWriter(64)
	for _, m := range msgs {
		mb := encodeMessage(m)
		w.Int64(0)
		w.Int32(int32(len(mb)))
		w.write(mb)
	}
	return w.Bytes()
}

func parseMessage(b []byte) (Message, error) {
	r := newByteReader(b)
	crc, err := r.Uint32()
	if err != nil {
		return Message{}, fmt.Errorf("read message crc: %w", err)
	}
	magic, err := r.Uint8()
	if err != nil {
		return Message{}, fmt.Errorf("read message magic byte: %w", err)
	}
	attributes, err := r.Uint8()
	if err != nil {
		return Message{}, fmt.Errorf("read message attributes: %w", err)
	}
	key, err := r.SizedBytes()
	if err != nil {
		return Message{}, fmt.Errorf("read message key: %w", err)
	}
	value, err := r.SizedBytes()
	if err != nil {
		return Message{}, fmt.Errorf("read message value: %w", err)
	}
	return Message{
		CRC:        crc,
		Magic:      magic,
		Attributes: attributes,
		Key:        key,
		Value:      value,
	}, nil
}

// ParseMessageSet walks a fetched message set and returns the parsed messages
// in wire order together with the offset of the last complete message.
//
// Byte-limited fetches may truncate the final record; a partial trailing
// record after at least one complete message is silently dropped. A non-empty
// set that is too short to hold even one record fails with
// ErrFetchSizeTooSmall so the caller can retry with a larger byte budget
// instead of mistaking the condition for "no data". An empty set returns
// (0, nil, nil).
func ParseMessageSet(b []byte) (int64, []Message, error) {
	r := newByteReader(b)
	var msgs []Message
	var lastOffset int64
	for r.remaining() > 0 {
		if r.remaining() < messageSetEntryHeaderLen {
			break
		}
		offset, err := r.Int64()
		if err != nil {
			return 0, nil, err
		}
		size, err := r.Int32()
		if err != nil {
			return 0, nil, err
		}
		if size < 0 {
			return 0, nil, fmt.Errorf("invalid message size %d", size)
		}
		if int(size) > r.remaining() {
			break
		}
		raw, err := r.read(int(size))
		if err != nil {
			return 0, nil, err
		}
		m, err := parseMessage(raw)
		if err != nil {
			return 0, nil, err
		}
		m.Offset = offset
		msgs = append(msgs, m)
		lastOffset = offset
	}
	if len(msgs) == 0 {
		if len(b) == 0 {
			return 0, nil, nil
		}
		return 0, nil, ErrFetchSizeTooSmall
	}
	return lastOffset, msgs, nil
}
