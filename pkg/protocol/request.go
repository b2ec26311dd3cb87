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

// RequestHeader is the fixed preamble of every encoded request.
type RequestHeader struct {
	APIKey        int16
	APIVersion    int16
	CorrelationID int32
	ClientID      string
}

// Request is implemented by the four concrete request kinds.
type Request interface {
	APIKey() int16
}

// MetadataRequest asks for cluster metadata. Empty Topics means "all topics".
type MetadataRequest struct {
	Topics []string
}

func (MetadataRequest) APIKey() int16 { return APIKeyMetadata }

// ProduceRequest appends messages to one or more topic partitions. Topics and
// partitions are ordered slices so the encoded bytes are deterministic.
type ProduceRequest struct {
	Acks      int16
	TimeoutMs int32
	Topics    []ProduceTopic
}

type ProduceTopic struct {
	Name       string
	Partitions []ProducePartition
}

type ProducePartition struct {
	Partition int32
	Messages  []Message
}

func (ProduceRequest) APIKey() int16 { return APIKeyProduce }

// OffsetRequest looks up offsets for a single topic partition.
type OffsetRequest struct {
	Topic      string
	Partition  int32
	Time       int64
	MaxOffsets int32
}

func (OffsetRequest) APIKey() int16 { return APIKeyOffsets }

// FetchRequest reads messages from a single topic partition.
type FetchRequest struct {
	MaxWaitMs int32
	MinBytes  int32
	Topic     string
	Partition int32
	Offset    int64
	MaxBytes  int32
}

func (FetchRequest) APIKey() int16 { return APIKeyFetch }

// EncodeRequest renders a complete request frame: the 4-byte size prefix, the
// header (api key, protocol version, correlation id, client id) and the
// type-specific body.
func EncodeRequest(correlationID int32, clientID string, req Request) ([]byte, error) {
	body := newByteWriter(64)
	switch r := req.(type) {
	case *MetadataRequest:
		encodeMetadataBody(body, r)
	case *ProduceRequest:
		encodeProduceBody(body, r)
	case *OffsetRequest:
		encodeOffsetBody(body, r)
	case *FetchRequest:
		encodeFetchBody(body, r)
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}

	w := newByteWriter(14 + len(clientID) + len(body.Bytes()))
	w.Int16(req.APIKey())
	w.Int16(APIVersion)
	w.Int32(correlationID)
	w.String(clientID)
	w.write(body.Bytes())

	payload := w.Bytes()
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)
	return frame, nil
}

func encodeMetadataBody(w *byteWriter, r *MetadataRequest) {
	if len(r.Topics) == 0 {
		// count 0 plus a -1 string sentinel, which the broker reads as
		// "all topics"
		w.Int32(0)
		w.Int16(-1)
		return
	}
	w.Int32(int32(len(r.Topics)))
	for _, topic := range r.Topics {
		w.String(topic)
	}
}

func encodeProduceBody(w *byteWriter, r *ProduceRequest) {
	w.Int16(r.Acks)
	w.Int32(r.TimeoutMs)
	w.Int32(int32(len(r.Topics)))
	for _, topic := range r.Topics {
		w.String(topic.Name)
		w.Int32(int32(len(topic.Partitions)))
		for _, p := range topic.Partitions {
			w.Int32(p.Partition)
			set := EncodeMessageSet(p.Messages)
			w.Int32(int32(len(set)))
			w.write(set)
		}
	}
}

func encodeOffsetBody(w *byteWriter, r *OffsetRequest) {
	w.Int32(ReplicaNone)
	w.Int32(1)
	w.String(r.Topic)
	w.Int32(1)
	w.Int32(r.Partition)
	w.Int64(r.Time)
	w.Int32(r.MaxOffsets)
}

func encodeFetchBody(w *byteWriter, r *FetchRequest) {
	w.Int32(ReplicaNone)
	w.Int32(r.MaxWaitMs)
	w.Int32(r.MinBytes)
	w.Int32(1)
	w.String(r.Topic)
	w.Int32(1)
	w.Int32(r.Partition)
	w.Int64(r.Offset)
	w.Int32(r.MaxBytes)
}

// ParseRequestHeader decodes the header of an encoded request payload (the
// frame contents after the size prefix) and returns a reader positioned at
// the body. Used by test brokers to identify what a client sent.
func ParseRequestHeader(b []byte) (*RequestHeader, *byteReader, error) {
	reader := newByteReader(b)
	apiKey, err := reader.Int16()
	if err != nil {
		return nil, nil, fmt.Errorf("read api key: %w", err)
	}
	version, err := reader.Int16()
	if err != nil {
		return nil, nil, fmt.Errorf("read api version: %w", err)
	}
	correlationID, err := reader.Int32()
	if err != nil {
		return nil, nil, fmt.Errorf("read correlation id: %w", err)
	}
	clientID, err := reader.String()
	if err != nil {
		return nil, nil, fmt.Errorf("read client id: %w", err)
	}
	return &RequestHeader{
		APIKey:        apiKey,
		APIVersion:    version,
		CorrelationID: correlationID,
		ClientID:      clientID,
	}, reader, nil
}
