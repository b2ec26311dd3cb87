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

// PendingMap tracks in-flight requests: correlation id to the api key the
// request was sent with. The caller inserts an entry when a request goes out;
// Consume removes it once the matching response has been sliced off the
// stream. The map is owned and serialized by the connection session that
// created it.
type PendingMap map[int32]int16

// Decoded is one demultiplexed response in wire arrival order.
type Decoded struct {
	CorrelationID int32
	Response      Response
}

// Consume splits buf into complete response frames, correlates each frame to
// its pending request and decodes it. It returns the unconsumed tail (which
// the caller must prepend to the next chunk read from the transport) and the
// decoded responses in the order their frames appeared in buf.
//
// A correlation id missing from pending means the stream is desynchronized:
// Consume fails with ErrStreamDesync and the connection must be torn down.
// Decode failures are reported after the offending frame and its pending
// entry have been consumed; if the failure is ErrFetchSizeTooSmall the stream
// itself is still intact and only the originating fetch needs to be retried
// with a larger byte budget. Any other failure is structural and fatal for
// the connection.
func Consume(buf []byte, pending PendingMap) ([]byte, []Decoded, error) {
	var decoded []Decoded
	for {
		if len(buf) < 4 {
			return buf, decoded, nil
		}
		size := int32(binary.BigEndian.Uint32(buf[:4]))
		if size < 0 {
			return buf, decoded, fmt.Errorf("invalid frame length %d", size)
		}
		if len(buf) < int(size)+4 {
			return buf, decoded, nil
		}
		payload := buf[4 : 4+size]
		buf = buf[4+size:]

		r := newByteReader(payload)
		correlationID, err := r.Int32()
		if err != nil {
			return buf, decoded, fmt.Errorf("read correlation id: %w", err)
		}
		apiKey, ok := pending[correlationID]
		if !ok {
			return buf, decoded, fmt.Errorf("%w: correlation id %d", ErrStreamDesync, correlationID)
		}
		delete(pending, correlationID)

		resp, err := DecodeResponse(apiKey, payload[4:])
		if err != nil {
			return buf, decoded, fmt.Errorf("decode %s response for correlation id %d: %w",
				APIName(apiKey), correlationID, err)
		}
		decoded = append(decoded, Decoded{CorrelationID: correlationID, Response: resp})
	}
}
