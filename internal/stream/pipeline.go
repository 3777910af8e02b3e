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
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cerndb/hbase-packet-inspector/internal/capture"
	"github.com/cerndb/hbase-packet-inspector/internal/logging"
	"github.com/cerndb/hbase-packet-inspector/internal/metrics"
	"github.com/cerndb/hbase-packet-inspector/internal/model"
	"github.com/cerndb/hbase-packet-inspector/internal/rpcwire"
	"github.com/cerndb/hbase-packet-inspector/internal/sink"
)

// Pipeline is the per-packet decode chain: it derives direction and
// ClientKey, runs the framer, decodes completed frames, installs/consumes
// CallRecords, drives the scanner tracker and hands the resulting event to
// a Sink.
type Pipeline struct {
	State   *State
	Decoder rpcwire.Decoder
	Sink    sink.Sink
	Ports   map[int]struct{}
}

// NewPipeline wires a fresh Pipeline around st.
func NewPipeline(st *State, dec rpcwire.Decoder, snk sink.Sink, ports map[int]struct{}) *Pipeline {
	return &Pipeline{State: st, Decoder: dec, Sink: snk, Ports: ports}
}

// Process runs one captured frame through the pipeline. It never returns an
// error for events already emitted; a sink write failure is the only error
// this returns, since it's the one failure mode the caller can't already
// have discovered for itself by inspecting the packet.
func (p *Pipeline) Process(f capture.Frame) error {
	metrics.PacketsSeen.Inc()

	if !f.HasPort(p.Ports) {
		metrics.PacketsDropped.Inc()
		return nil
	}

	inbound := f.ToServer(p.Ports)

	var client, server model.ClientKey
	if inbound {
		client = model.ClientKey{Addr: f.SrcAddr, Port: f.SrcPort}
		server = model.ClientKey{Addr: f.DstAddr, Port: f.DstPort}
	} else {
		client = model.ClientKey{Addr: f.DstAddr, Port: f.DstPort}
		server = model.ClientKey{Addr: f.SrcAddr, Port: f.SrcPort}
	}

	frame, ok := p.State.Framer.Ingest(client, f.Payload, f.Ts)
	if !ok {
		return nil
	}

	ev, err := p.decode(client, server, inbound, frame, f.Ts)
	if err != nil {
		p.handleDecodeError(client, err)
		return nil
	}
	if ev == nil {
		return nil
	}

	return p.emit(ev)
}

func (p *Pipeline) decode(client, server model.ClientKey, inbound bool, frame []byte, ts time.Time) (*model.Event, error) {
	header, body, err := rpcwire.SplitFrame(frame)
	if err != nil {
		return nil, err
	}

	key := model.CallKey{Client: client}

	if inbound {
		parsed, err := p.Decoder.DecodeRequest(header, body)
		if err != nil {
			return nil, err
		}
		key.CallID = parsed.CallID

		rec := &model.CallRecord{
			Method:    parsed.Method,
			Table:     parsed.Table,
			Region:    parsed.Region,
			RequestTs: ts,
			Actions:   parsed.Actions,
		}
		p.State.Calls.Put(key, rec)

		ev := parsedToEvent(parsed, inbound, ts, server, client, len(frame))
		p.State.Scanners.Process(ev)
		return ev, nil
	}

	lookup := func(callID uint32) (*model.CallRecord, bool) {
		return p.State.Calls.Get(model.CallKey{Client: client, CallID: callID})
	}

	parsed, err := p.Decoder.DecodeResponse(header, body, lookup)
	if err != nil {
		return nil, err
	}
	key.CallID = parsed.CallID

	ev := parsedToEvent(parsed, inbound, ts, server, client, len(frame))

	if call, found := p.State.Calls.Get(key); found {
		elapsed := ts.Sub(call.RequestTs).Milliseconds()
		ev.ElapsedMS = &elapsed
		if ev.Table == "" {
			ev.Table = call.Table
		}
		if ev.Region == "" {
			ev.Region = call.Region
		}
		p.State.Calls.Remove(key)
	}

	p.State.Scanners.Process(ev)
	return ev, nil
}

func parsedToEvent(parsed *rpcwire.Parsed, inbound bool, ts time.Time, server, client model.ClientKey, size int) *model.Event {
	return &model.Event{
		Method:  parsed.Method,
		CallID:  parsed.CallID,
		Inbound: inbound,
		Ts:      ts,
		Server:  server,
		Client:  client,
		Size:    size,
		Table:   parsed.Table,
		Region:  parsed.Region,
		Row:     parsed.Row,
		Cells:   parsed.Cells,
		Scanner: parsed.Scanner,
		Error:   parsed.Error,
		Actions: parsed.Actions,
	}
}

// handleDecodeError swallows ErrInvalidProtobuf silently and logs anything
// else at WARN; either way the client's FragmentBuffer is discarded so the
// next frame starts clean instead of being parsed against stale state.
func (p *Pipeline) handleDecodeError(client model.ClientKey, err error) {
	p.State.Framer.Discard(client)

	if errors.Is(err, rpcwire.ErrInvalidProtobuf) {
		return
	}

	metrics.FramerDiscards.Inc()
	logging.StreamLog.Warn("discarding client state after decode error",
		zap.String("client", client.Addr),
		zap.Error(err),
	)
}

func (p *Pipeline) emit(ev *model.Event) error {
	metrics.EventsEmitted.WithLabelValues(ev.Method, boolLabel(ev.Inbound)).Inc()
	if err := sink.Dispatch(p.Sink, ev); err != nil {
		return err
	}
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
