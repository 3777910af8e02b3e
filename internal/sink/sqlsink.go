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

package sink

import (
	"database/sql"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cerndb/hbase-packet-inspector/internal/logging"
	"github.com/cerndb/hbase-packet-inspector/internal/metrics"
	"github.com/cerndb/hbase-packet-inspector/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	method TEXT, call_id INTEGER, ts DATETIME,
	server TEXT, client TEXT, size INTEGER,
	"table" TEXT, region TEXT, row TEXT
);
CREATE TABLE IF NOT EXISTS responses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	method TEXT, call_id INTEGER, ts DATETIME,
	server TEXT, client TEXT, size INTEGER,
	"table" TEXT, region TEXT, row TEXT,
	cells INTEGER, scanner INTEGER, elapsed_ms INTEGER, error TEXT
);
CREATE TABLE IF NOT EXISTS actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_call_id INTEGER, client TEXT,
	method TEXT, "table" TEXT, region TEXT, row TEXT, cells INTEGER
);
CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_call_id INTEGER, client TEXT, port INTEGER,
	method TEXT, cells INTEGER
);
`

// SQLSink inserts events into a local SQLite file, split across four
// tables: requests and responses for top-level events, and actions/results
// for the per-action rows a multi call unpacks into.
type SQLSink struct {
	db *sql.DB
}

// OpenSQLSink creates (or opens) the database at path and ensures schema.
func OpenSQLSink(path string) (*SQLSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite sink %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create sqlite schema")
	}
	return &SQLSink{db: db}, nil
}

// Emit implements Sink, routing inbound events to requests and outbound
// events to responses.
func (s *SQLSink) Emit(ev *model.Event) error {
	var err error
	if ev.Inbound {
		_, err = s.db.Exec(
			`INSERT INTO requests (method, call_id, ts, server, client, size, "table", region, row)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.Method, ev.CallID, ev.Ts, ev.Server.Addr, ev.Client.Addr, ev.Size,
			ev.Table, ev.Region, ev.Row,
		)
	} else {
		var scanner *uint64
		if ev.Scanner != nil {
			v := uint64(*ev.Scanner)
			scanner = &v
		}
		_, err = s.db.Exec(
			`INSERT INTO responses (method, call_id, ts, server, client, size, "table", region, row, cells, scanner, elapsed_ms, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.Method, ev.CallID, ev.Ts, ev.Server.Addr, ev.Client.Addr, ev.Size,
			ev.Table, ev.Region, ev.Row, ev.Cells, scanner, ev.ElapsedMS, ev.Error,
		)
	}
	if err != nil {
		metrics.SinkErrors.Inc()
		logging.SinkLog.Warn("sqlite insert failed", zap.Error(err))
		return errors.Wrap(err, "sqlite insert")
	}
	return nil
}

// EmitSub implements Sink, recording one per-action row in both actions
// (the request-side sub-action) and results (the response-side cell count).
func (s *SQLSink) EmitSub(parent *model.Event, action model.Action) error {
	_, err := s.db.Exec(
		`INSERT INTO actions (parent_call_id, client, method, "table", region, row, cells)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		parent.CallID, parent.Client.Addr, action.Method, action.Table, action.Region, action.Row, action.Cells,
	)
	if err != nil {
		metrics.SinkErrors.Inc()
		return errors.Wrap(err, "sqlite action insert")
	}

	_, err = s.db.Exec(
		`INSERT INTO results (parent_call_id, client, port, method, cells)
		 VALUES (?, ?, ?, ?, ?)`,
		parent.CallID, parent.Client.Addr, parent.Client.Port, action.Method, action.Cells,
	)
	if err != nil {
		metrics.SinkErrors.Inc()
		return errors.Wrap(err, "sqlite result insert")
	}
	return nil
}

// Close implements Sink.
func (s *SQLSink) Close() error {
	return s.db.Close()
}
