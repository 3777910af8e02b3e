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

// Package metrics exposes the prometheus counters for this pipeline: packet
// and event throughput, scanner lifecycle, and eviction activity, plus the
// optional /metrics HTTP endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PacketsSeen counts packets handed to the pipeline by the capture
	// source, before the port filter.
	PacketsSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hbpi_packets_seen_total",
		Help: "Total packets read from the capture source.",
	})

	// PacketsDropped counts packets discarded by the HBase port filter.
	// Payloads the framer drops for a malformed frame-length prefix are not
	// counted here.
	PacketsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hbpi_packets_dropped_total",
		Help: "Total packets dropped before framing because neither port is an HBase port.",
	})

	// EventsEmitted counts events handed to the sink, labeled by method.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hbpi_events_emitted_total",
		Help: "Total events emitted to the sink, by RPC method.",
	}, []string{"method", "inbound"})

	// ScannersOpen is a gauge of live ScannerRecord entries.
	ScannersOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hbpi_scanners_open",
		Help: "Number of ScannerRecord entries currently tracked.",
	})

	// EvictedTotal counts state objects dropped by the evictor, labeled by
	// the reason (age or memory).
	EvictedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hbpi_evicted_total",
		Help: "Total state objects removed by the evictor.",
	}, []string{"reason"})

	// FramerDiscards counts decode failures other than malformed protobuf;
	// each one discards the client's FragmentBuffer, if it has one.
	FramerDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hbpi_framer_discards_total",
		Help: "Total non-protobuf decode errors that reset a client's framer state.",
	})

	// SinkErrors counts sink write failures surfaced to the caller.
	SinkErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hbpi_sink_errors_total",
		Help: "Total sink write failures.",
	})
)

// Serve starts an HTTP server exposing /metrics on addr. The caller owns the
// returned server's lifetime (Shutdown/Close).
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	return srv
}
