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
	"io"

	"github.com/dreadl0ck/gopacket"
	"github.com/dreadl0ck/gopacket/pcap"
	"github.com/pkg/errors"
)

// offlineSource reads a single capture file to completion. MultiSource
// chains several of these for the multi-capture-file CLI case.
type offlineSource struct {
	handle *pcap.Handle
	pkts   *gopacket.PacketSource
}

// OpenOffline opens path for replay.
func OpenOffline(path string) (Source, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture file %s", path)
	}
	return &offlineSource{
		handle: handle,
		pkts:   gopacket.NewPacketSource(handle, handle.LinkType()),
	}, nil
}

// Next implements Source.
func (s *offlineSource) Next() (Frame, bool, error) {
	pkt, err := s.pkts.NextPacket()
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
func (s *offlineSource) Stats() Stats {
	st, err := s.handle.Stats()
	if err != nil {
		return Stats{}
	}
	return Stats{Received: uint64(st.PacketsReceived), Dropped: uint64(st.PacketsDropped)}
}

// Close implements Source.
func (s *offlineSource) Close() error {
	s.handle.Close()
	return nil
}

// MultiSource chains several offline sources, presenting them to the
// capture loop as a single Source — used when the CLI is given more than
// one capture file.
type MultiSource struct {
	paths   []string
	idx     int
	current Source
}

// OpenOfflineMulti opens the first of paths; subsequent files are opened
// lazily as each one is exhausted.
func OpenOfflineMulti(paths []string) (*MultiSource, error) {
	if len(paths) == 0 {
		return nil, errors.New("no capture files given")
	}
	first, err := OpenOffline(paths[0])
	if err != nil {
		return nil, err
	}
	return &MultiSource{paths: paths, idx: 0, current: first}, nil
}

// Next implements Source, advancing to the next file on EOF.
func (m *MultiSource) Next() (Frame, bool, error) {
	for {
		f, ok, err := m.current.Next()
		if err != io.EOF {
			return f, ok, err
		}

		m.current.Close()
		m.idx++
		if m.idx >= len(m.paths) {
			return Frame{}, false, io.EOF
		}

		next, openErr := OpenOffline(m.paths[m.idx])
		if openErr != nil {
			return Frame{}, false, openErr
		}
		m.current = next
	}
}

// Stats implements Source.
func (m *MultiSource) Stats() Stats { return m.current.Stats() }

// Close implements Source.
func (m *MultiSource) Close() error { return m.current.Close() }
