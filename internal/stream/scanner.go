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

package stream

import "github.com/cerndb/hbase-packet-inspector/internal/model"

// ScannerTracker runs the scanner lifecycle state machine against each
// event whose method is one of open-scanner, next-rows, close-scanner or
// small-scan: a server-side scan cursor is opened by one call, paged
// through by zero or more next-rows calls, and eventually closed — either
// explicitly or implicitly, in the small-scan case. It owns the
// PendingScan and ScannerRecord containers.
type ScannerTracker struct {
	pending  map[model.CallKey]*model.PendingScan
	scanners map[model.ScannerID]*model.ScannerRecord
}

// NewScannerTracker returns an empty ScannerTracker.
func NewScannerTracker() *ScannerTracker {
	return &ScannerTracker{
		pending:  make(map[model.CallKey]*model.PendingScan),
		scanners: make(map[model.ScannerID]*model.ScannerRecord),
	}
}

// PendingEntries exposes the underlying map for the evictor.
func (s *ScannerTracker) PendingEntries() map[model.CallKey]*model.PendingScan {
	return s.pending
}

// ScannerEntries exposes the underlying map for the evictor.
func (s *ScannerTracker) ScannerEntries() map[model.ScannerID]*model.ScannerRecord {
	return s.scanners
}

// Open reports whether scanner id is currently tracked.
func (s *ScannerTracker) Open(id model.ScannerID) bool {
	_, ok := s.scanners[id]
	return ok
}

// Process applies the scanner lifecycle transitions to ev, mutating ev in
// place to merge region info or the originating request's fields where the
// lifecycle state calls for it. ev.Table/ev.Region/ev.Scanner must already
// be set from the decoder's output before calling Process.
func (s *ScannerTracker) Process(ev *model.Event) {
	key := model.CallKey{Client: ev.Client, CallID: ev.CallID}

	switch {
	case ev.Inbound && (ev.Method == "open-scanner" || ev.Method == "small-scan"):
		// Stash the request so the matching response can promote it: the
		// scanner id is minted server-side and only appears in the response.
		s.pending[key] = &model.PendingScan{
			Table:     ev.Table,
			Region:    ev.Region,
			RequestTs: ev.Ts,
		}

	case !ev.Inbound && ev.Method == "open-scanner":
		// Mint a ScannerRecord from the pending request and merge its
		// fields into the response event.
		if p, ok := s.pending[key]; ok {
			delete(s.pending, key)
			ev.Table, ev.Region = p.Table, p.Region
			if ev.Scanner != nil {
				s.scanners[*ev.Scanner] = &model.ScannerRecord{
					Table:  p.Table,
					Region: p.Region,
					LastTs: ev.Ts,
				}
			}
		}

	case ev.Method == "next-rows":
		// Refresh the scanner's ts and merge table/region. A missing
		// ScannerRecord (the open was never observed, e.g. capture started
		// mid-scan) leaves those fields empty; the event is still emitted.
		if ev.Scanner != nil {
			if rec, ok := s.scanners[*ev.Scanner]; ok {
				rec.LastTs = ev.Ts
				ev.Table, ev.Region = rec.Table, rec.Region
			}
		}

	case ev.Inbound && ev.Method == "close-scanner":
		// The scanner is closed; drop its ScannerRecord.
		if ev.Scanner != nil {
			delete(s.scanners, *ev.Scanner)
		}

	case !ev.Inbound && ev.Method == "small-scan":
		// The response closes the scanner implicitly — a small scan never
		// returns a scanner id to page through, so no ScannerRecord is ever
		// created for one. Merge the pending request's fields into the
		// event.
		if p, ok := s.pending[key]; ok {
			delete(s.pending, key)
			ev.Table, ev.Region = p.Table, p.Region
		}

	default:
		// No tracked transition for this (method, direction) combination.
	}
}
