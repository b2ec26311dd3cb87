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

// Package client runs one broker connection session on top of the protocol
// codec: it allocates correlation ids, owns the pending-request map, writes
// request frames and feeds raw transport bytes through the stream
// demultiplexer.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novaquill/kafwire/pkg/config"
	"github.com/novaquill/kafwire/pkg/metrics"
	"github.com/novaquill/kafwire/pkg/protocol"
)

const readChunkSize = 32 * 1024

// ErrConnBroken is returned for every call after a fatal stream error. The
// caller must discard the connection and dial again.
var ErrConnBroken = errors.New("connection broken")

// Conn is one client session on a single broker connection. All calls are
// serialized: the pending map and read buffer are touched by at most one
// round trip at a time.
type Conn struct {
	cfg    config.Config
	logger *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	pending protocol.PendingMap
	rxbuf   []byte
	nextID  int32
	broken  error
}

// Dial connects to cfg.BrokerAddr and returns a ready session. A missing
// client id gets a generated one so brokers can tell sessions apart in their
// request logs.
func Dial(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "kafwire-" + uuid.NewString()[:8]
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.BrokerAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.BrokerAddr, err)
	}
	metrics.ConnectsTotal.Inc()
	logger.Debug("connected", "addr", cfg.BrokerAddr, "client_id", cfg.ClientID)
	return &Conn{
		cfg:     cfg,
		logger:  logger.With("component", "client"),
		conn:    conn,
		pending: make(protocol.PendingMap),
	}, nil
}

// ClientID returns the identifier sent in every request header.
func (c *Conn) ClientID() string {
	return c.cfg.ClientID
}

// Close tears down the underlying connection. In-flight state is discarded;
// responses to abandoned correlation ids are never seen again.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken == nil {
		c.broken = ErrConnBroken
	}
	return c.conn.Close()
}

// Metadata requests cluster metadata. No topics means all topics.
func (c *Conn) Metadata(ctx context.Context, topics ...string) (*protocol.MetadataResponse, error) {
	resp, err := c.roundTrip(ctx, &protocol.MetadataRequest{Topics: topics})
	if err != nil {
		return nil, err
	}
	meta, ok := resp.(*protocol.MetadataResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", resp)
	}
	for _, topic := range meta.Topics {
		observeServerError(topic.Err)
		for _, p := range topic.Partitions {
			observeServerError(p.Err)
		}
	}
	return meta, nil
}

// Produce appends messages per req and returns the broker's per-partition
// acknowledgements.
func (c *Conn) Produce(ctx context.Context, req *protocol.ProduceRequest) (*protocol.ProduceResponse, error) {
	if req.Acks == 0 {
		req.Acks = c.cfg.Acks
	}
	if req.TimeoutMs == 0 {
		req.TimeoutMs = c.cfg.ProduceTimeoutMs
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	produce, ok := resp.(*protocol.ProduceResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", resp)
	}
	for _, topic := range produce.Topics {
		for _, o := range topic.Offsets {
			observeServerError(o.Err)
		}
	}
	return produce, nil
}

// Offsets looks up partition offsets. time -1 asks for the latest offset,
// -2 for the earliest.
func (c *Conn) Offsets(ctx context.Context, topic string, partition int32, time int64, maxOffsets int32) (*protocol.OffsetResponse, error) {
	resp, err := c.roundTrip(ctx, &protocol.OffsetRequest{
		Topic:      topic,
		Partition:  partition,
		Time:       time,
		MaxOffsets: maxOffsets,
	})
	if err != nil {
		return nil, err
	}
	offsets, ok := resp.(*protocol.OffsetResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", resp)
	}
	for _, t := range offsets.Topics {
		for _, p := range t.Partitions {
			observeServerError(p.Err)
		}
	}
	return offsets, nil
}

// Fetch reads messages starting at offset. When the configured byte budget is
// too small to hold even one message, the fetch is retried with a doubled
// budget up to fetch_max_bytes_cap.
func (c *Conn) Fetch(ctx context.Context, topic string, partition int32, offset int64) (*protocol.FetchResponse, error) {
	maxBytes := c.cfg.FetchMaxBytes
	for {
		resp, err := c.roundTrip(ctx, &protocol.FetchRequest{
			MaxWaitMs: c.cfg.FetchMaxWaitMs,
			MinBytes:  c.cfg.FetchMinBytes,
			Topic:     topic,
			Partition: partition,
			Offset:    offset,
			MaxBytes:  maxBytes,
		})
		if err == nil {
			fetch, ok := resp.(*protocol.FetchResponse)
			if !ok {
				return nil, fmt.Errorf("unexpected response type %T", resp)
			}
			for _, t := range fetch.Topics {
				for _, p := range t.Partitions {
					observeServerError(p.Err)
				}
			}
			return fetch, nil
		}
		if !errors.Is(err, protocol.ErrFetchSizeTooSmall) {
			return nil, err
		}
		if maxBytes >= c.cfg.FetchMaxBytesCap {
			return nil, fmt.Errorf("fetch %s/%d at offset %d: budget cap %d reached: %w",
				topic, partition, offset, c.cfg.FetchMaxBytesCap, err)
		}
		maxBytes *= 2
		if maxBytes > c.cfg.FetchMaxBytesCap {
			maxBytes = c.cfg.FetchMaxBytesCap
		}
		metrics.FetchRetriesTotal.Inc()
		c.logger.Debug("retrying fetch with larger byte budget",
			"topic", topic, "partition", partition, "max_bytes", maxBytes)
	}
}

func (c *Conn) roundTrip(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnBroken, c.broken)
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.cfg.RequestTimeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(c.cfg.RequestTimeoutMs) * time.Millisecond)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	c.nextID++
	id := c.nextID
	frame, err := protocol.EncodeRequest(id, c.cfg.ClientID, req)
	if err != nil {
		return nil, err
	}

	c.pending[id] = req.APIKey()
	if _, err := c.conn.Write(frame); err != nil {
		delete(c.pending, id)
		c.broken = err
		return nil, fmt.Errorf("write request: %w", err)
	}
	metrics.RequestsTotal.WithLabelValues(protocol.APIName(req.APIKey())).Inc()
	metrics.BytesSent.Add(float64(len(frame)))

	chunk := make([]byte, readChunkSize)
	for {
		remainder, decoded, err := protocol.Consume(c.rxbuf, c.pending)
		c.rxbuf = remainder
		for _, d := range decoded {
			metrics.ResponsesTotal.WithLabelValues(protocol.APIName(d.Response.APIKey())).Inc()
			if d.CorrelationID == id {
				return d.Response, nil
			}
			// stale response to a correlation id nobody waits on anymore
			c.logger.Warn("dropping unawaited response", "correlation_id", d.CorrelationID)
		}
		if err != nil {
			if errors.Is(err, protocol.ErrFetchSizeTooSmall) {
				// frame boundaries held; only the originating fetch failed
				return nil, err
			}
			metrics.DecodeErrorsTotal.Inc()
			c.broken = err
			return nil, err
		}

		n, rerr := c.conn.Read(chunk)
		if n > 0 {
			c.rxbuf = append(c.rxbuf, chunk[:n]...)
			metrics.BytesReceived.Add(float64(n))
		}
		if rerr != nil && n == 0 {
			delete(c.pending, id)
			c.broken = rerr
			return nil, fmt.Errorf("read response: %w", rerr)
		}
	}
}

func observeServerError(kind protocol.ErrorKind) {
	if kind.IsError() {
		metrics.ServerErrorsTotal.WithLabelValues(kind.String()).Inc()
	}
}
