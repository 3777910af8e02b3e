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

import (
	"fmt"
	"io"
	"time"

	"github.com/dreadl0ck/gopacket"
	"github.com/dreadl0ck/gopacket/pcap"
	"github.com/pkg/errors"
)

// snaplen is large enough to capture a full HBase RPC frame header plus a
// typical row key without truncation; non-promiscuous mode and a 1s read
// timeout keep the handle well-behaved on a shared NIC.
const (
	snaplen     = 65536
	readTimeout = time.Second
	promiscuous = false
)

// liveSource drives a live pcap.Handle.
type liveSource struct {
	handle *pcap.Handle
	pkts   *gopacket.PacketSource
}

// OpenLive opens iface for live capture, restricted to traffic touching any
// port in ports via a BPF filter of the form "port P1 or port P2 ...".
func OpenLive(iface string, ports []int) (Source, error) {
	handle, err := pcap.OpenLive(iface, snaplen, promiscuous, readTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "open live capture on %s", iface)
	}

	if err := handle.SetBPFFilter(bpfPortFilter(ports)); err != nil {
		handle.Close()
		return nil, errors.Wrap(err, "set BPF filter")
	}

	return &liveSource{
		handle: handle,
		pkts:   gopacket.NewPacketSource(handle, handle.LinkType()),
	}, nil
}

func bpfPortFilter(ports []int) string {
	filter := ""
	for i, p := range ports {
		if i > 0 {
			filter += " or "
		}
		filter += fmt.Sprintf("port %d", p)
	}
	return filter
}

// Next implements Source.
func (s *liveSource) Next() (Frame, bool, error) {
	pkt, err := s.pkts.NextPacket()
	if err == pcap.NextErrorTimeoutExpired {
		return Frame{}, false, ErrTimeout
	}
	if err == io.EOF {
		return Frame{}, false, io.EOF
	}
	if err != nil {
		return Frame{}, false, errors.Wrap(err, "read next packet")
	}

	f, ok := Normalize(pkt)
	return f, ok, nil
}

// Stats implements Source.
func (s *liveSource) Stats() Stats {
	st, err := s.handle.Stats()
	if err != nil {
		return Stats{}
	}
	return Stats{Received: uint64(st.PacketsReceived), Dropped: uint64(st.PacketsDropped)}
}

// Close implements Source.
func (s *liveSource) Close() error {
	s.handle.Close()
	return nil
}
