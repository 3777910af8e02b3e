// Copyright 2026 CERN
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

package rpcwire

import (
	"github.com/pkg/errors"

	gogoproto "github.com/gogo/protobuf/proto"
)

// SplitFrame separates one complete RPC frame (as reassembled by the
// framer) into its header and body messages. On the wire each is itself a
// varint-length-prefixed protobuf message: RequestHeader/ResponseHeader
// followed by the method-specific request/response message. Cell blocks
// (a third, optional segment the real protocol uses to carry KeyValues
// outside the protobuf encoding, when the client negotiates it) are not
// modeled here and are ignored if present after body.
func SplitFrame(frame []byte) (header, body []byte, err error) {
	hLen, n := gogoproto.DecodeVarint(frame)
	if n == 0 {
		return nil, nil, errors.WithStack(ErrTruncated)
	}
	i := n
	if uint64(len(frame)-i) < hLen {
		return nil, nil, errors.WithStack(ErrTruncated)
	}
	header = frame[i : i+int(hLen)]
	i += int(hLen)

	if i == len(frame) {
		// No body message (e.g. a response whose call raised before any
		// param was written).
		return header, nil, nil
	}

	bLen, n := gogoproto.DecodeVarint(frame[i:])
	if n == 0 {
		return nil, nil, errors.WithStack(ErrTruncated)
	}
	i += n
	if uint64(len(frame)-i) < bLen {
		return nil, nil, errors.WithStack(ErrTruncated)
	}
	body = frame[i : i+int(bLen)]

	return header, body, nil
}
