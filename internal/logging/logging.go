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

// Package logging provides the package-scoped zap loggers used throughout
// the pipeline: one named logger per subsystem, all built off a shared
// base configuration.
package logging

import (
	"go.uber.org/zap"
)

var (
	base *zap.Logger

	// CaptureLog covers the capture loop: progress, stats, cancellation.
	CaptureLog *zap.Logger

	// StreamLog covers the framer, call table and scanner tracker.
	StreamLog *zap.Logger

	// EvictLog covers the state evictor.
	EvictLog *zap.Logger

	// SinkLog covers the tabular and Kafka sinks.
	SinkLog *zap.Logger
)

func init() {
	// A safe default so packages that only import logging for side effects
	// in tests never dereference a nil logger.
	Init(false)
}

// Init (re)configures the global loggers. Verbose selects a human-readable
// development console encoder at debug level; otherwise JSON at info level.
func Init(verbose bool) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	l, err := cfg.Build()
	if err != nil {
		// Logging construction failing means the process cannot observe
		// itself; there is nothing safer to do than panic during startup.
		panic(err)
	}

	base = l
	CaptureLog = base.Named("capture")
	StreamLog = base.Named("stream")
	EvictLog = base.Named("evict")
	SinkLog = base.Named("sink")
}

// Sync flushes any buffered log entries. Call once at process shutdown.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
