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

// CallTable stores the most recently seen inbound request per
// (client, call_id), used to correlate the matching outbound response.
// call_id is per-connection and reused across connections, so the
// ClientKey in the composite key disambiguates it.
type CallTable struct {
	calls map[model.CallKey]*model.CallRecord
}

// NewCallTable returns an empty CallTable.
func NewCallTable() *CallTable {
	return &CallTable{calls: make(map[model.CallKey]*model.CallRecord)}
}

// Entries exposes the underlying map for the evictor.
func (t *CallTable) Entries() map[model.CallKey]*model.CallRecord {
	return t.calls
}

// Put installs or overwrites the CallRecord for key. A RegionServer never
// reuses a call_id on the same connection before the first call completes,
// so overwriting is the correct behavior for a stray duplicate rather than
// something that needs guarding against.
func (t *CallTable) Put(key model.CallKey, rec *model.CallRecord) {
	t.calls[key] = rec
}

// Get returns the CallRecord for key without removing it, so the decoder's
// request_lookup can consult it while deciding how to parse a response body.
func (t *CallTable) Get(key model.CallKey) (*model.CallRecord, bool) {
	rec, ok := t.calls[key]
	return rec, ok
}

// Remove deletes the CallRecord for key. Called once the matching outbound
// response has been produced, so a given call_id is correlated at most
// once.
func (t *CallTable) Remove(key model.CallKey) {
	delete(t.calls, key)
}
