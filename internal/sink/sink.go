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

// Package sink implements the two concrete emitters this observer ships
// with: an in-process tabular store and a message-queue producer. Both
// implement Sink so the capture loop is indifferent to which one it was
// handed.
package sink

import "github.com/cerndb/hbase-packet-inspector/internal/model"

// Sink consumes emitted events. Emit is called once per top-level event;
// EmitSub is called once per sub-action of a multi event whose batch size
// is greater than one.
type Sink interface {
	Emit(ev *model.Event) error
	EmitSub(parent *model.Event, action model.Action) error
	Close() error
}

// Dispatch applies HBase's multi batching rule and forwards ev (and any
// sub-events) to s: a batch of zero or one actions is folded into the
// top-level event (there's nothing to break out), while a batch of two or
// more is emitted as a parent event plus one EmitSub call per action.
// Every other method's events are forwarded unchanged via Emit.
func Dispatch(s Sink, ev *model.Event) error {
	batch := len(ev.Actions)

	switch {
	case batch == 0:
		return s.Emit(ev)

	case batch == 1:
		a := ev.Actions[0]
		if ev.Table == "" {
			ev.Table = a.Table
		}
		if ev.Region == "" {
			ev.Region = a.Region
		}
		if ev.Row == "" {
			ev.Row = a.Row
		}
		if ev.Cells == nil {
			ev.Cells = a.Cells
		}
		return s.Emit(ev)

	default:
		if ev.Cells == nil {
			var total int32
			var any bool
			for _, a := range ev.Actions {
				if a.Cells != nil {
					total += *a.Cells
					any = true
				}
			}
			if any {
				ev.Cells = &total
			}
		}
		if err := s.Emit(ev); err != nil {
			return err
		}
		for _, a := range ev.Actions {
			if err := s.EmitSub(ev, a); err != nil {
				return err
			}
		}
		return nil
	}
}
