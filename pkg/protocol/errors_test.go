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

import "testing"

func TestToErrorKind(t *testing.T) {
	cases := []struct {
		code int16
		want ErrorKind
	}{
		{0, NoError},
		{-1, UnexpectedServerError},
		{1, OffsetOutOfRange},
		{3, UnknownTopicOrPartition},
		{5, LeaderNotAvailable},
		{7, RequestTimedOut},
		{12, OffsetMetadataTooLarge},
		{14, OffsetsLoadInProgress},
		{16, NotCoordinatorForConsumer},
		{13, ErrorKind(13)},
		{250, ErrorKind(250)},
		{-5, UnknownError},
		{256, UnknownError},
		{1024, UnknownError},
	}
	for _, c := range cases {
		if got := ToErrorKind(c.code); got != c.want {
			t.Fatalf("ToErrorKind(%d) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestErrorKindIsError(t *testing.T) {
	if NoError.IsError() {
		t.Fatal("NoError must not be an error")
	}
	for _, k := range []ErrorKind{UnexpectedServerError, LeaderNotAvailable, ErrorKind(250), UnknownError} {
		if !k.IsError() {
			t.Fatalf("%v must be an error", k)
		}
	}
}

func TestErrorKindString(t *testing.T) {
	if s := RequestTimedOut.String(); s != "request timed out" {
		t.Fatalf("unexpected string: %q", s)
	}
	// code 13 has no mnemonic and reports its raw number
	if s := ErrorKind(13).String(); s != "server error code 13" {
		t.Fatalf("unexpected string for code 13: %q", s)
	}
	if s := UnknownError.String(); s != "unknown error code" {
		t.Fatalf("unexpected string: %q", s)
	}
}
