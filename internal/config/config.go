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

// Package config holds the tunables shared across the capture loop, the
// framer, and the state evictor. There is no config file — every field is
// populated from CLI flags in cmd/hbpi.
package config

import (
	"math"
	"runtime/debug"
	"time"
)

// DefaultPorts lists the well-known HBase RegionServer RPC ports.
var DefaultPorts = []int{16020, 60020}

// Config bundles the knobs for a single capture run.
type Config struct {
	// Ports is the set of HBase RegionServer ports; a packet is processed
	// only if either endpoint's port is a member.
	Ports []int

	// Interface is the NIC to capture live from. Empty if reading from
	// capture files instead.
	Interface string

	// CaptureFiles is one or more offline pcap files to read in sequence.
	CaptureFiles []string

	// CountLimit stops the capture loop after this many packets have been
	// seen. Zero means unlimited.
	CountLimit uint64

	// Duration stops the capture loop once a packet's capture timestamp is
	// this far past the first packet's. Zero means unlimited.
	Duration time.Duration

	// KafkaServers and KafkaTopic select the message-queue sink; both must
	// be set to enable it. Empty means the tabular sink is used instead.
	KafkaServers []string
	KafkaTopic   string

	// SQLitePath is the destination file for the tabular sink.
	SQLitePath string

	// Verbose switches zap from production (JSON, info level) to a
	// console-friendly development encoder at debug level.
	Verbose bool

	// MetricsAddr, if non-empty, serves /metrics on this address.
	MetricsAddr string

	// AgeLimit is the maximum age a stateful entry may reach before the
	// evictor drops it regardless of memory pressure.
	AgeLimit time.Duration

	// MemoryBudgetBytes bounds total expected_memory(state); eviction keeps
	// the running total under half of this. Used as a fallback when the Go
	// runtime reports no configured memory limit.
	MemoryBudgetBytes int64

	// EvictEveryPackets and EvictEveryWall set how often (in packets seen,
	// or wall-clock, whichever comes first) the capture loop invokes the
	// evictor.
	EvictEveryPackets uint64
	EvictEveryWall    time.Duration
}

// Default returns a reasonable configuration for a standalone run: a 120s
// age limit, a 512MiB fallback memory budget, and a 2s/10000-packet
// progress-and-evict cadence.
func Default() *Config {
	return &Config{
		Ports:             append([]int(nil), DefaultPorts...),
		SQLitePath:        "hbase-traffic.db",
		AgeLimit:          120 * time.Second,
		MemoryBudgetBytes: 512 * 1024 * 1024,
		EvictEveryPackets: 10000,
		EvictEveryWall:    2 * time.Second,
	}
}

// EffectiveMemoryBudget resolves the process's memory ceiling for a Go
// runtime, which has no direct equivalent of a JVM-style configured heap
// limit. If a limit has been set via GOMEMLIMIT or debug.SetMemoryLimit,
// that value is used; otherwise MemoryBudgetBytes is the fallback.
func (c *Config) EffectiveMemoryBudget() int64 {
	limit := debug.SetMemoryLimit(-1) // reads without changing it
	if limit > 0 && limit != math.MaxInt64 {
		return limit
	}
	return c.MemoryBudgetBytes
}

// PortSet returns Ports as a lookup set.
func (c *Config) PortSet() map[int]struct{} {
	s := make(map[int]struct{}, len(c.Ports))
	for _, p := range c.Ports {
		s[p] = struct{}{}
	}
	return s
}
