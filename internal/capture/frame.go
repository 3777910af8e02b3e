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

// Package capture is the packet-view boundary: it normalizes whatever the
// capture source (live NIC or offline file) hands back into the
// {src, dst, length, payload} shape the stream package consumes, and
// discards anything that is not an IPv4/IPv6 TCP segment with a payload.
// Whether a frame touches a configured HBase port is checked by the caller
// through HasPort and ToServer.
package capture

import (
	"time"

	"github.com/dreadl0ck/gopacket"
	"github.com/dreadl0ck/gopacket/layers"
)

// Frame is the normalized view of one captured packet.
type Frame struct {
	SrcAddr string
	SrcPort uint16
	DstAddr string
	DstPort uint16
	Payload []byte
	Ts      time.Time
}

// Normalize extracts a Frame from pkt, returning ok=false if pkt carries no
// IPv4/IPv6+TCP payload. The HBase port filter itself is applied by the
// caller, which knows the configured port set; Normalize only strips
// packets that aren't TCP at all.
func Normalize(pkt gopacket.Packet) (Frame, bool) {
	netLayer := pkt.NetworkLayer()
	transLayer := pkt.TransportLayer()
	if netLayer == nil || transLayer == nil {
		return Frame{}, false
	}

	tcp, ok := transLayer.(*layers.TCP)
	if !ok {
		return Frame{}, false
	}

	payload := tcp.LayerPayload()
	if len(payload) == 0 {
		return Frame{}, false
	}

	flow := netLayer.NetworkFlow()
	src, dst := flow.Endpoints()

	return Frame{
		SrcAddr: src.String(),
		SrcPort: uint16(tcp.SrcPort),
		DstAddr: dst.String(),
		DstPort: uint16(tcp.DstPort),
		Payload: payload,
		Ts:      pkt.Metadata().Timestamp,
	}, true
}

// HasPort reports whether either endpoint of f is in ports.
func (f Frame) HasPort(ports map[int]struct{}) bool {
	_, srcOK := ports[int(f.SrcPort)]
	_, dstOK := ports[int(f.DstPort)]
	return srcOK || dstOK
}

// ToServer reports whether f is addressed to one of ports — i.e. it is an
// inbound (client→server) frame.
func (f Frame) ToServer(ports map[int]struct{}) bool {
	_, ok := ports[int(f.DstPort)]
	return ok
}
