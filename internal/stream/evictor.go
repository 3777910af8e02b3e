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

import (
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/cerndb/hbase-packet-inspector/internal/config"
	"github.com/cerndb/hbase-packet-inspector/internal/logging"
	"github.com/cerndb/hbase-packet-inspector/internal/metrics"
	"github.com/cerndb/hbase-packet-inspector/internal/model"
)

// State bundles the four stateful containers an Evictor sweeps. It is also
// the natural home for wiring the pipeline and the capture loop to a single
// set of maps, so it is defined here rather than duplicated per caller.
type State struct {
	Framer   *Framer
	Calls    *CallTable
	Scanners *ScannerTracker
}

// NewState constructs the empty container set the pipeline mutates.
func NewState() *State {
	return &State{
		Framer:   NewFramer(),
		Calls:    NewCallTable(),
		Scanners: NewScannerTracker(),
	}
}

// Evictor bounds memory by sweeping State's containers on a cadence driven
// by the capture loop. Two independent passes run: an age sweep that drops
// anything older than AgeLimit, and a memory sweep that trims
// FragmentBuffers (the only container with nonzero ExpectedMemory) once
// their combined size exceeds half of the effective memory budget.
type Evictor struct {
	cfg *config.Config
}

// NewEvictor returns an Evictor configured from cfg.
func NewEvictor(cfg *config.Config) *Evictor {
	return &Evictor{cfg: cfg}
}

// Sweep runs both passes against st at time now.
func (e *Evictor) Sweep(st *State, now time.Time) {
	cutoff := now.Add(-e.cfg.AgeLimit)

	dropped := 0
	dropped += ageSweep(st.Framer.Buffers(), cutoff)
	dropped += ageSweep(st.Calls.Entries(), cutoff)
	dropped += ageSweep(st.Scanners.PendingEntries(), cutoff)
	dropped += ageSweep(st.Scanners.ScannerEntries(), cutoff)

	memBefore, memDropped := e.memorySweep(st.Framer.Buffers())

	if dropped > 0 {
		metrics.EvictedTotal.WithLabelValues("age").Add(float64(dropped))
		logging.EvictLog.Info("expired aged state",
			zap.Int("count", dropped),
			zap.Duration("age_limit", e.cfg.AgeLimit),
		)
	}
	if memDropped > 0 {
		metrics.EvictedTotal.WithLabelValues("memory").Add(float64(memDropped))
		memAfter := fragmentBytes(st.Framer.Buffers())
		logging.EvictLog.Info("trimmed fragment buffers over memory budget",
			zap.Int("count", memDropped),
			zap.String("before", humanize.Bytes(uint64(memBefore))),
			zap.String("after", humanize.Bytes(uint64(memAfter))),
			zap.String("budget", humanize.Bytes(uint64(e.cfg.EffectiveMemoryBudget()))),
		)
	}

	metrics.ScannersOpen.Set(float64(len(st.Scanners.ScannerEntries())))
}

// ageSweep deletes every entry in m whose Ts() is strictly before cutoff and
// returns the number of entries removed. It is generic over any map keyed
// by a comparable type whose values implement model.Aged, so the framer's
// ClientKey map, the call table's CallKey map and the scanner tracker's two
// maps can all be swept with one implementation.
func ageSweep[K comparable, V model.Aged](m map[K]V, cutoff time.Time) int {
	n := 0
	for k, v := range m {
		if v.Ts().Before(cutoff) {
			delete(m, k)
			n++
		}
	}
	return n
}

// memorySweep drops the largest FragmentBuffers first — the further a
// client is behind on a multi-segment frame, the more memory it is holding
// hostage — until the total falls back under half of the effective memory
// budget (Config.EffectiveMemoryBudget). It
// returns the total size before trimming and the number of buffers
// dropped.
func (e *Evictor) memorySweep(buffers map[model.ClientKey]*model.FragmentBuffer) (beforeBytes, dropped int) {
	budget := e.cfg.EffectiveMemoryBudget() / 2
	total := fragmentBytes(buffers)
	beforeBytes = total
	if int64(total) <= budget {
		return beforeBytes, 0
	}

	type entry struct {
		key  model.ClientKey
		size int
	}
	entries := make([]entry, 0, len(buffers))
	for k, v := range buffers {
		entries = append(entries, entry{k, v.ExpectedMemory()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].size > entries[j].size })

	for _, ent := range entries {
		if int64(total) <= budget {
			break
		}
		delete(buffers, ent.key)
		total -= ent.size
		dropped++
	}
	return beforeBytes, dropped
}

func fragmentBytes(buffers map[model.ClientKey]*model.FragmentBuffer) int {
	total := 0
	for _, v := range buffers {
		total += v.ExpectedMemory()
	}
	return total
}
