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

// Package captureloop drives a single capture run: it pulls frames from a
// capture.Source, feeds them through a stream.Pipeline, and periodically
// reports progress and invokes the state evictor.
package captureloop

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cerndb/hbase-packet-inspector/internal/capture"
	"github.com/cerndb/hbase-packet-inspector/internal/config"
	"github.com/cerndb/hbase-packet-inspector/internal/logging"
	"github.com/cerndb/hbase-packet-inspector/internal/stream"
)

// retryDelay bounds cancellation latency after a capture-read timeout: long
// enough not to busy-loop waiting on an idle interface, short enough that a
// cancellation signal is noticed quickly.
const retryDelay = 100 * time.Millisecond

// Loop drives a single capture run to completion or cancellation.
type Loop struct {
	Source   capture.Source
	Pipeline *stream.Pipeline
	Evictor  *stream.Evictor
	Cfg      *config.Config
}

// New wires a Loop from its collaborators.
func New(src capture.Source, pipeline *stream.Pipeline, evictor *stream.Evictor, cfg *config.Config) *Loop {
	return &Loop{Source: src, Pipeline: pipeline, Evictor: evictor, Cfg: cfg}
}

// Run drives the capture loop until ctx is cancelled, the source reaches
// EOF, or the configured count/duration limit is reached.
func (l *Loop) Run(ctx context.Context) error {
	var (
		firstTs    time.Time
		seen       uint64
		prevSeen   uint64
		prevReport = time.Now()
	)

loop:
	for {
		select {
		case <-ctx.Done():
			logging.CaptureLog.Info("capture cancelled", zap.Uint64("packets_seen", seen))
			break loop
		default:
		}

		frame, ok, err := l.Source.Next()
		if err == io.EOF {
			break
		}
		if err == capture.ErrTimeout {
			select {
			case <-ctx.Done():
				logging.CaptureLog.Info("capture cancelled", zap.Uint64("packets_seen", seen))
				break loop
			case <-time.After(retryDelay):
			}
			continue
		}
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if firstTs.IsZero() {
			firstTs = frame.Ts
		}

		if procErr := l.Pipeline.Process(frame); procErr != nil {
			return procErr
		}
		seen++

		now := time.Now()
		if now.Sub(prevReport) >= l.Cfg.EvictEveryWall || seen-prevSeen >= l.Cfg.EvictEveryPackets {
			logging.CaptureLog.Info("progress",
				zap.Uint64("packets_seen", seen),
				zap.Duration("elapsed", frame.Ts.Sub(firstTs)),
			)
			l.Evictor.Sweep(l.Pipeline.State, frame.Ts)
			prevReport = now
			prevSeen = seen
		}

		if l.Cfg.CountLimit > 0 && seen >= l.Cfg.CountLimit {
			break
		}
		if l.Cfg.Duration > 0 && !firstTs.IsZero() && frame.Ts.Sub(firstTs) >= l.Cfg.Duration {
			break
		}
	}

	st := l.Source.Stats()
	logging.CaptureLog.Info("capture finished",
		zap.Uint64("packets_seen", seen),
		zap.Uint64("packets_received", st.Received),
		zap.Uint64("packets_dropped", st.Dropped),
	)
	return nil
}
