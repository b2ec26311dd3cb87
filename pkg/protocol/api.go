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

// Package protocol implements the classic (version 0) Kafka wire protocol for
// the client side: framed request encoding, framed response decoding, server
// error code translation, and demultiplexing of interleaved in-flight
// responses arriving on one byte stream.
package protocol

// API keys of the four classic-protocol calls this client speaks.
const (
	APIKeyProduce  int16 = 0
	APIKeyFetch    int16 = 1
	APIKeyOffsets  int16 = 2
	APIKeyMetadata int16 = 3
)

// APIVersion is the single protocol version spoken on every request.
const APIVersion int16 = 0

// Fixed wire constants.
const (
	// MagicByte is the message format version tag written into every message.
	MagicByte uint8 = 1
	// CompressionNone is the only compression attribute this codec emits.
	CompressionNone uint8 = 0
	// ReplicaNone marks offset and fetch requests as coming from a consumer
	// rather than a replica broker.
	ReplicaNone int32 = -1
)

// APIName returns a human-readable name for an API key, for logs and metrics.
func APIName(apiKey int16) string {
	switch apiKey {
	case APIKeyProduce:
		return "produce"
	case APIKeyFetch:
		return "fetch"
	case APIKeyOffsets:
		return "offsets"
	case APIKeyMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}
