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

import "fmt"

// Response is implemented by the four concrete response kinds.
type Response interface {
	APIKey() int16
}

// BrokerMetadata identifies one broker node.
type BrokerMetadata struct {
	NodeID int32
	Host   string
	Port   int32
}

// PartitionMetadata describes one partition of a topic. LeaderID -1 means the
// partition currently has no leader.
type PartitionMetadata struct {
	Err      ErrorKind
	ID       int32
	LeaderID int32
	Replicas []int32
	ISR      []int32
}

type TopicMetadata struct {
	Err        ErrorKind
	Name       string
	Partitions []PartitionMetadata
}

type MetadataResponse struct {
	Brokers []BrokerMetadata
	Topics  []TopicMetadata
}

func (*MetadataResponse) APIKey() int16 { return APIKeyMetadata }

type ProducePartitionResult struct {
	Partition int32
	Err       ErrorKind
	Offset    int64
}

type ProduceTopicResult struct {
	Name    string
	Offsets []ProducePartitionResult
}

type ProduceResponse struct {
	Topics []ProduceTopicResult
}

func (*ProduceResponse) APIKey() int16 { return APIKeyProduce }

type OffsetPartitionResult struct {
	Partition int32
	Err       ErrorKind
	Offsets   []int64
}

type OffsetTopicResult struct {
	Name       string
	Partitions []OffsetPartitionResult
}

type OffsetResponse struct {
	Topics []OffsetTopicResult
}

func (*OffsetResponse) APIKey() int16 { return APIKeyOffsets }

// FetchPartitionResult carries the messages fetched from one partition.
// LastOffset is the offset of the last complete message in the returned set,
// or zero when the set was empty.
type FetchPartitionResult struct {
	Partition     int32
	Err           ErrorKind
	HighWatermark int64
	LastOffset    int64
	Messages      []Message
}

type FetchTopicResult struct {
	Name       string
	Partitions []FetchPartitionResult
}

type FetchResponse struct {
	Topics []FetchTopicResult
}

func (*FetchResponse) APIKey() int16 { return APIKeyFetch }

// DecodeResponse parses a response body (the frame contents after the
// correlation id) for the given api key.
func DecodeResponse(apiKey int16, body []byte) (Response, error) {
	r := newByteReader(body)
	switch apiKey {
	case APIKeyMetadata:
		return decodeMetadataResponse(r)
	case APIKeyProduce:
		return decodeProduceResponse(r)
	case APIKeyOffsets:
		return decodeOffsetResponse(r)
	case APIKeyFetch:
		return decodeFetchResponse(r)
	default:
		return nil, fmt.Errorf("unsupported api key %d", apiKey)
	}
}

func decodeMetadataResponse(r *byteReader) (*MetadataResponse, error) {
	brokers, err := readArray(r, readBrokerMetadata)
	if err != nil {
		return nil, fmt.Errorf("read brokers: %w", err)
	}
	topics, err := readArray(r, readTopicMetadata)
	if err != nil {
		return nil, fmt.Errorf("read topics: %w", err)
	}
	return &MetadataResponse{Brokers: brokers, Topics: topics}, nil
}

func readBrokerMetadata(r *byteReader) (BrokerMetadata, error) {
	nodeID, err := r.Int32()
	if err != nil {
		return BrokerMetadata{}, fmt.Errorf("read broker node id: %w", err)
	}
	host, err := r.String()
	if err != nil {
		return BrokerMetadata{}, fmt.Errorf("read broker host: %w", err)
	}
	port, err := r.Int32()
	if err != nil {
		return BrokerMetadata{}, fmt.Errorf("read broker port: %w", err)
	}
	return BrokerMetadata{NodeID: nodeID, Host: host, Port: port}, nil
}

func readTopicMetadata(r *byteReader) (TopicMetadata, error) {
	code, err := r.Int16()
	if err != nil {
		return TopicMetadata{}, fmt.Errorf("read topic error code: %w", err)
	}
	name, err := r.String()
	if err != nil {
		return TopicMetadata{}, fmt.Errorf("read topic name: %w", err)
	}
	partitions, err := readArray(r, readPartitionMetadata)
	if err != nil {
		return TopicMetadata{}, fmt.Errorf("read topic partitions: %w", err)
	}
	return TopicMetadata{Err: ToErrorKind(code), Name: name, Partitions: partitions}, nil
}

func readPartitionMetadata(r *byteReader) (PartitionMetadata, error) {
	code, err := r.Int16()
	if err != nil {
		return PartitionMetadata{}, fmt.Errorf("read partition error code: %w", err)
	}
	id, err := r.Int32()
	if err != nil {
		return PartitionMetadata{}, fmt.Errorf("read partition id: %w", err)
	}
	leaderID, err := r.Int32()
	if err != nil {
		return PartitionMetadata{}, fmt.Errorf("read partition leader: %w", err)
	}
	replicas, err := readArray(r, (*byteReader).Int32)
	if err != nil {
		return PartitionMetadata{}, fmt.Errorf("read partition replicas: %w", err)
	}
	isr, err := readArray(r, (*byteReader).Int32)
	if err != nil {
		return PartitionMetadata{}, fmt.Errorf("read partition isr: %w", err)
	}
	return PartitionMetadata{
		Err:      ToErrorKind(code),
		ID:       id,
		LeaderID: leaderID,
		Replicas: replicas,
		ISR:      isr,
	}, nil
}

func decodeProduceResponse(r *byteReader) (*ProduceResponse, error) {
	topics, err := readArray(r, readProduceTopicResult)
	if err != nil {
		return nil, fmt.Errorf("read produce topics: %w", err)
	}
	return &ProduceResponse{Topics: topics}, nil
}

func readProduceTopicResult(r *byteReader) (ProduceTopicResult, error) {
	name, err := r.String()
	if err != nil {
		return ProduceTopicResult{}, fmt.Errorf("read produce topic name: %w", err)
	}
	offsets, err := readArray(r, readProducePartitionResult)
	if err != nil {
		return ProduceTopicResult{}, fmt.Errorf("read produce offsets: %w", err)
	}
	return ProduceTopicResult{Name: name, Offsets: offsets}, nil
}

func readProducePartitionResult(r *byteReader) (ProducePartitionResult, error) {
	partition, err := r.Int32()
	if err != nil {
		return ProducePartitionResult{}, fmt.Errorf("read produce partition: %w", err)
	}
	code, err := r.Int16()
	if err != nil {
		return ProducePartitionResult{}, fmt.Errorf("read produce error code: %w", err)
	}
	offset, err := r.Int64()
	if err != nil {
		return ProducePartitionResult{}, fmt.Errorf("read produce offset: %w", err)
	}
	return ProducePartitionResult{Partition: partition, Err: ToErrorKind(code), Offset: offset}, nil
}

func decodeOffsetResponse(r *byteReader) (*OffsetResponse, error) {
	topics, err := readArray(r, readOffsetTopicResult)
	if err != nil {
		return nil, fmt.Errorf("read offset topics: %w", err)
	}
	return &OffsetResponse{Topics: topics}, nil
}

func readOffsetTopicResult(r *byteReader) (OffsetTopicResult, error) {
	name, err := r.String()
	if err != nil {
		return OffsetTopicResult{}, fmt.Errorf("read offset topic name: %w", err)
	}
	partitions, err := readArray(r, readOffsetPartitionResult)
	if err != nil {
		return OffsetTopicResult{}, fmt.Errorf("read offset partitions: %w", err)
	}
	return OffsetTopicResult{Name: name, Partitions: partitions}, nil
}

func readOffsetPartitionResult(r *byteReader) (OffsetPartitionResult, error) {
	partition, err := r.Int32()
	if err != nil {
		return OffsetPartitionResult{}, fmt.Errorf("read offset partition: %w", err)
	}
	code, err := r.Int16()
	if err != nil {
		return OffsetPartitionResult{}, fmt.Errorf("read offset error code: %w", err)
	}
	offsets, err := readArray(r, (*byteReader).Int64)
	if err != nil {
		return OffsetPartitionResult{}, fmt.Errorf("read offsets: %w", err)
	}
	return OffsetPartitionResult{Partition: partition, Err: ToErrorKind(code), Offsets: offsets}, nil
}

func decodeFetchResponse(r *byteReader) (*FetchResponse, error) {
	topics, err := readArray(r, readFetchTopicResult)
	if err != nil {
		return nil, fmt.Errorf("read fetch topics: %w", err)
	}
	return &FetchResponse{Topics: topics}, nil
}

func readFetchTopicResult(r *byteReader) (FetchTopicResult, error) {
	name, err := r.String()
	if err != nil {
		return FetchTopicResult{}, fmt.Errorf("read fetch topic name: %w", err)
	}
	partitions, err := readArray(r, readFetchPartitionResult)
	if err != nil {
		return FetchTopicResult{}, fmt.Errorf("read fetch partitions: %w", err)
	}
	return FetchTopicResult{Name: name, Partitions: partitions}, nil
}

func readFetchPartitionResult(r *byteReader) (FetchPartitionResult, error) {
	partition, err := r.Int32()
	if err != nil {
		return FetchPartitionResult{}, fmt.Errorf("read fetch partition: %w", err)
	}
	code, err := r.Int16()
	if err != nil {
		return FetchPartitionResult{}, fmt.Errorf("read fetch error code: %w", err)
	}
	highWatermark, err := r.Int64()
	if err != nil {
		return FetchPartitionResult{}, fmt.Errorf("read fetch high watermark: %w", err)
	}
	setSize, err := r.Int32()
	if err != nil {
		return FetchPartitionResult{}, fmt.Errorf("read fetch message set size: %w", err)
	}
	if setSize < 0 {
		return FetchPartitionResult{}, fmt.Errorf("invalid message set size %d", setSize)
	}
	raw, err := r.read(int(setSize))
	if err != nil {
		return FetchPartitionResult{}, fmt.Errorf("read fetch message set: %w", err)
	}
	lastOffset, msgs, err := ParseMessageSet(raw)
	if err != nil {
		return FetchPartitionResult{}, err
	}
	return FetchPartitionResult{
		Partition:     partition,
		Err:           ToErrorKind(code),
		HighWatermark: highWatermark,
		LastOffset:    lastOffset,
		Messages:      msgs,
	}, nil
}
