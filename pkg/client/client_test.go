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

package client

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/novaquill/kafwire/pkg/config"
	"github.com/novaquill/kafwire/pkg/protocol"
)

// fakeBroker accepts one connection and answers each request with the payload
// built by respond. The response payload is the frame body without the size
// prefix, so respond prepends the correlation id itself.
type fakeBroker struct {
	t        *testing.T
	ln       net.Listener
	requests chan *protocol.RequestHeader
	frames   chan []byte
}

func newFakeBroker(t *testing.T, respond func(h *protocol.RequestHeader, payload []byte) []byte) *fakeBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := &fakeBroker{
		t:        t,
		ln:       ln,
		requests: make(chan *protocol.RequestHeader, 16),
		frames:   make(chan []byte, 16),
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			frame, err := protocol.ReadFrame(conn)
			if err != nil {
				return
			}
			h, _, err := protocol.ParseRequestHeader(frame.Payload)
			if err != nil {
				t.Errorf("parse request header: %v", err)
				return
			}
			b.requests <- h
			b.frames <- frame.Payload
			if out := respond(h, frame.Payload); out != nil {
				if err := protocol.WriteFrame(conn, out); err != nil {
					return
				}
			}
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return b
}

func (b *fakeBroker) addr() string { return b.ln.Addr().String() }

func appendInt16(buf []byte, v int16) []byte {
	return binary.BigEndian.AppendUint16(buf, uint16(v))
}

func appendInt32(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

func appendInt64(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v))
}

func appendString(buf []byte, s string) []byte {
	buf = appendInt16(buf, int16(len(s)))
	return append(buf, s...)
}

// emptyMetadataBody is a decodable metadata response with no brokers and no
// topics.
func emptyMetadataBody() []byte {
	body := appendInt32(nil, 0)
	return appendInt32(body, 0)
}

func metadataBodyOneBroker() []byte {
	body := appendInt32(nil, 1)
	body = appendInt32(body, 7)
	body = appendString(body, "broker-7")
	body = appendInt32(body, 9092)
	body = appendInt32(body, 1)
	body = appendInt16(body, 0)
	body = appendString(body, "events")
	body = appendInt32(body, 0)
	return body
}

// fetchBody builds a single-partition fetch response whose message set is the
// raw setBytes.
func fetchBody(topic string, errCode int16, hwm int64, setBytes []byte) []byte {
	body := appendInt32(nil, 1)
	body = appendString(body, topic)
	body = appendInt32(body, 1)
	body = appendInt32(body, 0)
	body = appendInt16(body, errCode)
	body = appendInt64(body, hwm)
	body = appendInt32(body, int32(len(setBytes)))
	return append(body, setBytes...)
}

func testConfig(addr string) config.Config {
	cfg := config.Default()
	cfg.BrokerAddr = addr
	cfg.ClientID = "test-client"
	cfg.RequestTimeoutMs = 2000
	cfg.FetchMaxBytes = 64
	cfg.FetchMaxBytesCap = 256
	return cfg
}

func dialTest(t *testing.T, b *fakeBroker) *Conn {
	t.Helper()
	conn, err := Dial(context.Background(), testConfig(b.addr()), slog.Default())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMetadataRoundTrip(t *testing.T) {
	b := newFakeBroker(t, func(h *protocol.RequestHeader, _ []byte) []byte {
		if h.APIKey != protocol.APIKeyMetadata {
			t.Errorf("api key = %d, want %d", h.APIKey, protocol.APIKeyMetadata)
		}
		return append(appendInt32(nil, h.CorrelationID), metadataBodyOneBroker()...)
	})
	conn := dialTest(t, b)

	meta, err := conn.Metadata(context.Background(), "events")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if len(meta.Brokers) != 1 || meta.Brokers[0].NodeID != 7 {
		t.Fatalf("brokers = %+v", meta.Brokers)
	}
	if len(meta.Topics) != 1 || meta.Topics[0].Name != "events" {
		t.Fatalf("topics = %+v", meta.Topics)
	}

	h := <-b.requests
	if h.ClientID != "test-client" {
		t.Fatalf("client id = %q", h.ClientID)
	}
}

func TestCorrelationIDsIncrease(t *testing.T) {
	b := newFakeBroker(t, func(h *protocol.RequestHeader, _ []byte) []byte {
		return append(appendInt32(nil, h.CorrelationID), emptyMetadataBody()...)
	})
	conn := dialTest(t, b)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := conn.Metadata(ctx); err != nil {
			t.Fatalf("metadata %d: %v", i, err)
		}
	}
	var last int32
	for i := 0; i < 3; i++ {
		h := <-b.requests
		if h.CorrelationID <= last {
			t.Fatalf("correlation id %d after %d", h.CorrelationID, last)
		}
		last = h.CorrelationID
	}
}

func TestFetchRetriesWithDoubledBudget(t *testing.T) {
	// MaxBytes is the last field of a v0 fetch request body.
	requestMaxBytes := func(payload []byte) int32 {
		return int32(binary.BigEndian.Uint32(payload[len(payload)-4:]))
	}

	set := protocol.EncodeMessageSet([]protocol.Message{{Value: []byte("payload")}})
	calls := 0
	b := newFakeBroker(t, func(h *protocol.RequestHeader, _ []byte) []byte {
		calls++
		if calls == 1 {
			// partial set: one truncated record, no message fits
			return append(appendInt32(nil, h.CorrelationID), fetchBody("events", 0, 10, set[:8])...)
		}
		return append(appendInt32(nil, h.CorrelationID), fetchBody("events", 0, 10, set)...)
	})
	conn := dialTest(t, b)

	resp, err := conn.Fetch(context.Background(), "events", 0, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := len(resp.Topics[0].Partitions[0].Messages); got != 1 {
		t.Fatalf("messages = %d, want 1", got)
	}

	<-b.requests
	first := <-b.frames
	<-b.requests
	second := <-b.frames
	if got, want := requestMaxBytes(first), int32(64); got != want {
		t.Fatalf("first max bytes = %d, want %d", got, want)
	}
	if got, want := requestMaxBytes(second), int32(128); got != want {
		t.Fatalf("second max bytes = %d, want %d", got, want)
	}
}

func TestFetchBudgetCapStopsRetrying(t *testing.T) {
	set := protocol.EncodeMessageSet([]protocol.Message{{Value: []byte("payload")}})
	calls := 0
	b := newFakeBroker(t, func(h *protocol.RequestHeader, _ []byte) []byte {
		calls++
		return append(appendInt32(nil, h.CorrelationID), fetchBody("events", 0, 10, set[:8])...)
	})
	conn := dialTest(t, b)

	_, err := conn.Fetch(context.Background(), "events", 0, 0)
	if !errors.Is(err, protocol.ErrFetchSizeTooSmall) {
		t.Fatalf("err = %v, want ErrFetchSizeTooSmall", err)
	}
	// 64 -> 128 -> 256, then the cap stops the loop
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestUnknownCorrelationIDPoisonsConn(t *testing.T) {
	b := newFakeBroker(t, func(h *protocol.RequestHeader, _ []byte) []byte {
		return append(appendInt32(nil, h.CorrelationID+100), emptyMetadataBody()...)
	})
	conn := dialTest(t, b)

	ctx := context.Background()
	if _, err := conn.Metadata(ctx); !errors.Is(err, protocol.ErrStreamDesync) {
		t.Fatalf("err = %v, want ErrStreamDesync", err)
	}
	if _, err := conn.Metadata(ctx); !errors.Is(err, ErrConnBroken) {
		t.Fatalf("second call err = %v, want ErrConnBroken", err)
	}
}

func TestRequestTimeout(t *testing.T) {
	b := newFakeBroker(t, func(*protocol.RequestHeader, []byte) []byte {
		return nil // never answer
	})
	cfg := testConfig(b.addr())
	cfg.RequestTimeoutMs = 50
	conn, err := Dial(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	start := time.Now()
	if _, err := conn.Metadata(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timed out after %v", elapsed)
	}
}

func TestDialGeneratesClientID(t *testing.T) {
	b := newFakeBroker(t, func(h *protocol.RequestHeader, _ []byte) []byte {
		return append(appendInt32(nil, h.CorrelationID), emptyMetadataBody()...)
	})
	cfg := testConfig(b.addr())
	cfg.ClientID = ""
	conn, err := Dial(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if conn.ClientID() == "" {
		t.Fatal("client id not generated")
	}
}
