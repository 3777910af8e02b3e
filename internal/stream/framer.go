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

// Package stream implements the stateful core of the pipeline: the frame
// reassembler, the call table, the scanner lifecycle tracker, and the state
// evictor that bounds their combined memory. Every type here is mutated by
// a single goroutine — the capture loop driving frames through in order —
// so none of it is safe for concurrent use; state is a struct of owned maps
// mutated in place, not a set of independently lockable stores.
package stream

import (
	"encoding/binary"
	"time"

	"github.com/cerndb/hbase-packet-inspector/internal/model"
)

// maxFrameLength rejects a frame-length prefix implausibly large for any
// real HBase RPC frame — a sign the 4-byte length was read from a
// mis-aligned offset rather than an actual frame boundary.
const maxFrameLength = 1 << 30

// Framer reassembles length-prefixed RPC frames split across TCP segments,
// keyed by ClientKey. At most one FragmentBuffer exists per ClientKey: a
// connection carries one RPC frame at a time on the wire, so there is never
// a second in-flight reassembly to track concurrently.
type Framer struct {
	buffers map[model.ClientKey]*model.FragmentBuffer
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{buffers: make(map[model.ClientKey]*model.FragmentBuffer)}
}

// Buffers exposes the underlying map for the evictor, which walks all
// stateful containers uniformly.
func (f *Framer) Buffers() map[model.ClientKey]*model.FragmentBuffer {
	return f.buffers
}

// Discard drops the FragmentBuffer for client, if any. Used when a decode
// error invalidates the in-flight frame for that client, so the next bytes
// observed start a fresh reassembly instead of being appended to
// now-meaningless state.
func (f *Framer) Discard(client model.ClientKey) {
	delete(f.buffers, client)
}

// Ingest feeds one payload for client and returns a complete RPC frame if
// one was assembled.
func (f *Framer) Ingest(client model.ClientKey, payload []byte, ts time.Time) (frame []byte, ok bool) {
	buf, exists := f.buffers[client]
	if !exists {
		return f.ingestFresh(client, payload, ts)
	}
	return f.ingestContinuation(client, buf, payload, ts)
}

func (f *Framer) ingestFresh(client model.ClientKey, payload []byte, ts time.Time) ([]byte, bool) {
	var n uint32
	if len(payload) >= 4 {
		n = binary.BigEndian.Uint32(payload[:4])
	}
	// Fewer than 4 bytes available: treat N as 0, which fails the check
	// below and is dropped the same as any other bad length prefix.

	if n == 0 || n >= maxFrameLength {
		// Not a plausible frame-length prefix: not the start of an RPC
		// frame. Silently drop without touching state.
		return nil, false
	}

	rest := payload[4:]
	if uint32(len(rest)) >= n {
		return rest[:n], true
	}

	remains := n - uint32(len(rest))
	acc := make([]byte, len(rest))
	copy(acc, rest)

	f.buffers[client] = &model.FragmentBuffer{
		LastTs:      ts,
		Accumulator: acc,
		Total:       n,
		Remains:     remains,
	}
	return nil, false
}

func (f *Framer) ingestContinuation(client model.ClientKey, buf *model.FragmentBuffer, payload []byte, ts time.Time) ([]byte, bool) {
	take := len(payload)
	if uint32(take) > buf.Remains {
		take = int(buf.Remains)
	}

	buf.Accumulator = append(buf.Accumulator, payload[:take]...)
	buf.Remains -= uint32(take)

	if buf.Remains == 0 {
		delete(f.buffers, client)
		return buf.Accumulator, true
	}

	buf.LastTs = ts
	return nil, false
}
