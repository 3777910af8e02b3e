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

// Package rpcwire decodes the HBase RegionServer RPC wire format: a pure
// function from (header bytes, body bytes[, request lookup]) to a parsed
// event. The decoder is intentionally partial — no SASL negotiation, no
// cellblock or compression codecs — covering only the plaintext
// RequestHeader/ResponseHeader and per-method body messages a RegionServer
// exchanges with its clients.
//
// The field walker below is a minimal hand-written protobuf wire reader
// rather than a full reflection-based unmarshaler, because no generated Go
// types exist for HBase's RPC/Client protos here; it reuses gogo/protobuf's
// varint codec for the low-level integer decoding instead of reimplementing
// it from scratch.
package rpcwire

import (
	"github.com/pkg/errors"

	gogoproto "github.com/gogo/protobuf/proto"
)

// Protobuf wire types, per the protocol buffers encoding spec.
const (
	wireVarint    = 0
	wireFixed64   = 1
	wireBytes     = 2
	wireStartGrp  = 3
	wireEndGrp    = 4
	wireFixed32   = 5
)

// ErrTruncated is returned when a field walker runs out of bytes mid-field.
var ErrTruncated = errors.New("rpcwire: truncated protobuf field")

// ErrInvalidProtobuf marks a decode failure caused by malformed protobuf
// bytes rather than a framing bug or an I/O error. The pipeline swallows
// this class silently (traffic this observer doesn't fully understand is
// expected on a live network) while logging any other decoder error at
// WARN.
var ErrInvalidProtobuf = errors.New("rpcwire: invalid protobuf")

// field is one decoded (tag, payload) pair from a fieldWalker pass.
type field struct {
	num  int
	wire int
	// raw holds the length-delimited payload for wireBytes; u64 holds the
	// value of a wireVarint field. Fixed32/fixed64 values are skipped and
	// not recorded.
	raw []byte
	u64 uint64
}

// walkFields decodes buf as a flat sequence of protobuf fields and invokes fn
// for each one; fn returns false to stop early. Group wire types (legacy
// proto2 groups) are not supported by this RPC dialect and are rejected.
func walkFields(buf []byte, fn func(f field) (cont bool, err error)) error {
	i := 0
	for i < len(buf) {
		tag, n := gogoproto.DecodeVarint(buf[i:])
		if n == 0 {
			return errors.WithStack(ErrTruncated)
		}
		i += n

		wireType := int(tag & 0x7)
		fieldNum := int(tag >> 3)

		var f field
		f.num = fieldNum
		f.wire = wireType

		switch wireType {
		case wireVarint:
			v, vn := gogoproto.DecodeVarint(buf[i:])
			if vn == 0 {
				return errors.WithStack(ErrTruncated)
			}
			i += vn
			f.u64 = v
		case wireFixed64:
			if len(buf)-i < 8 {
				return errors.WithStack(ErrTruncated)
			}
			i += 8
		case wireBytes:
			l, ln := gogoproto.DecodeVarint(buf[i:])
			if ln == 0 {
				return errors.WithStack(ErrTruncated)
			}
			i += ln
			if uint64(len(buf)-i) < l {
				return errors.WithStack(ErrTruncated)
			}
			f.raw = buf[i : i+int(l)]
			i += int(l)
		case wireFixed32:
			if len(buf)-i < 4 {
				return errors.WithStack(ErrTruncated)
			}
			i += 4
		default:
			return errors.Wrapf(ErrInvalidProtobuf, "unsupported wire type %d", wireType)
		}

		cont, err := fn(f)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// varintField looks up the first occurrence of field number want as a
// varint, returning (value, true) if present.
func varintField(buf []byte, want int) (uint64, bool, error) {
	var (
		val   uint64
		found bool
	)
	err := walkFields(buf, func(f field) (bool, error) {
		if f.num == want && f.wire == wireVarint {
			val = f.u64
			found = true
			return false, nil
		}
		return true, nil
	})
	return val, found, err
}

// bytesField looks up the first occurrence of field number want as a
// length-delimited payload, returning (payload, true) if present.
func bytesField(buf []byte, want int) ([]byte, bool, error) {
	var (
		val   []byte
		found bool
	)
	err := walkFields(buf, func(f field) (bool, error) {
		if f.num == want && f.wire == wireBytes {
			val = f.raw
			found = true
			return false, nil
		}
		return true, nil
	})
	return val, found, err
}

// repeatedBytesFields collects every occurrence of field number want as a
// length-delimited payload, in wire order.
func repeatedBytesFields(buf []byte, want int) ([][]byte, error) {
	var out [][]byte
	err := walkFields(buf, func(f field) (bool, error) {
		if f.num == want && f.wire == wireBytes {
			out = append(out, f.raw)
		}
		return true, nil
	})
	return out, err
}
