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

package capture

import "errors"

// ErrTimeout is returned by Source.Next when no packet arrived within the
// handle's read timeout. The capture loop treats it as a retry signal, not
// a failure.
var ErrTimeout = errors.New("capture: read timeout")

// Stats reports capture-handle counters, as surfaced by the underlying pcap
// handle.
type Stats struct {
	Received uint64
	Dropped  uint64
}

// Source is the capture-handle boundary the capture loop drives. Next
// returns (Frame{}, false, ErrTimeout) on a read timeout, (Frame{}, false,
// io.EOF) at end of an offline capture, (Frame{}, false, nil) for a packet
// that carries no TCP payload, and (frame, true, nil) otherwise.
type Source interface {
	Next() (Frame, bool, error)
	Stats() Stats
	Close() error
}
