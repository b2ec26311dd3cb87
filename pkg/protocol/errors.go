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
	"errors"
	"fmt"
	"math"
)

// Codec-level failure sentinels. ErrTruncated and ErrStreamDesync are fatal
// for the owning connection: byte-stream position can no longer be trusted.
// ErrFetchSizeTooSmall is recoverable; the originating fetch should be retried
// with a larger byte budget.
var (
	ErrTruncated         = errors.New("truncated buffer")
	ErrStreamDesync      = errors.New("correlation id not pending on stream")
	ErrFetchSizeTooSmall = errors.New("fetch byte budget too small for a single message")
)

// ErrorKind is the semantic translation of a server-reported status code.
// Named kinds cover the codes the classic protocol defines; codes in (0,256)
// without a name keep their raw value, and everything else collapses to
// UnknownError. Server codes are handed to the caller as data, never as Go
// errors: the caller decides retryability.
type ErrorKind int16

const (
	NoError                         ErrorKind = 0
	OffsetOutOfRange                ErrorKind = 1
	InvalidMessage                  ErrorKind = 2
	UnknownTopicOrPartition         ErrorKind = 3
	InvalidMessageSize              ErrorKind = 4
	LeaderNotAvailable              ErrorKind = 5
	NotLeaderForPartition           ErrorKind = 6
	RequestTimedOut                 ErrorKind = 7
	BrokerNotAvailable              ErrorKind = 8
	ReplicaNotAvailable             ErrorKind = 9
	MessageSizeTooLarge             ErrorKind = 10
	StaleControllerEpoch            ErrorKind = 11
	OffsetMetadataTooLarge          ErrorKind = 12
	OffsetsLoadInProgress           ErrorKind = 14
	ConsumerCoordinatorNotAvailable ErrorKind = 15
	NotCoordinatorForConsumer       ErrorKind = 16
	UnexpectedServerError           ErrorKind = -1
	UnknownError                    ErrorKind = math.MinInt16
)

// ToErrorKind maps a wire status code to its ErrorKind. Code 13 has no name
// in the protocol table and stays a bare numbered code, as does any other
// unnamed code in (0,256).
func ToErrorKind(code int16) ErrorKind {
	switch {
	case code == 0:
		return NoError
	case code == -1:
		return UnexpectedServerError
	case code > 0 && code < 256:
		return ErrorKind(code)
	default:
		return UnknownError
	}
}

// IsError reports whether the kind represents a server-side failure.
func (k ErrorKind) IsError() bool {
	return k != NoError
}

func (k ErrorKind) String() string {
	switch k {
	case NoError:
		return "no error"
	case OffsetOutOfRange:
		return "offset out of range"
	case InvalidMessage:
		return "invalid message"
	case UnknownTopicOrPartition:
		return "unknown topic or partition"
	case InvalidMessageSize:
		return "invalid message size"
	case LeaderNotAvailable:
		return "leader not available"
	case NotLeaderForPartition:
		return "not leader for partition"
	case RequestTimedOut:
		return "request timed out"
	case BrokerNotAvailable:
		return "broker not available"
	case ReplicaNotAvailable:
		return "replica not available"
	case MessageSizeTooLarge:
		return "message size too large"
	case StaleControllerEpoch:
		return "stale controller epoch"
	case OffsetMetadataTooLarge:
		return "offset metadata too large"
	case OffsetsLoadInProgress:
		return "offsets load in progress"
	case ConsumerCoordinatorNotAvailable:
		return "consumer coordinator not available"
	case NotCoordinatorForConsumer:
		return "not coordinator for consumer"
	case UnexpectedServerError:
		return "unexpected server error"
	case UnknownError:
		return "unknown error code"
	default:
		return fmt.Sprintf("server error code %d", int16(k))
	}
}
