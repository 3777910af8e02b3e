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

// Command hbpi observes HBase RegionServer RPC traffic on the wire and
// reports per-call table/region attribution, elapsed time and scanner
// lifecycle to a tabular store or a Kafka topic.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cerndb/hbase-packet-inspector/internal/capture"
	"github.com/cerndb/hbase-packet-inspector/internal/config"
	"github.com/cerndb/hbase-packet-inspector/internal/captureloop"
	"github.com/cerndb/hbase-packet-inspector/internal/logging"
	"github.com/cerndb/hbase-packet-inspector/internal/metrics"
	"github.com/cerndb/hbase-packet-inspector/internal/rpcwire"
	"github.com/cerndb/hbase-packet-inspector/internal/sink"
	"github.com/cerndb/hbase-packet-inspector/internal/stream"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	var (
		ports    []int
		kafka    string
		verbose  bool
		duration int
	)

	cmd := &cobra.Command{
		Use:           "hbpi [capture-file ...]",
		Short:         "Passively observe HBase RegionServer RPC traffic",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Verbose = verbose
			if len(ports) > 0 {
				cfg.Ports = ports
			}
			cfg.Duration = time.Duration(duration) * time.Second
			cfg.CaptureFiles = args

			if kafka != "" {
				servers, topic, err := parseKafkaFlag(kafka)
				if err != nil {
					return err
				}
				cfg.KafkaServers = servers
				cfg.KafkaTopic = topic
			}

			return run(cfg)
		},
	}

	cmd.Flags().IntSliceVar(&ports, "port", nil, "HBase RegionServer port(s) to observe (default 16020,60020)")
	cmd.Flags().Uint64Var(&cfg.CountLimit, "count", 0, "Stop after this many packets (0 = unlimited)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Stop after this many seconds of capture (0 = unlimited)")
	cmd.Flags().StringVar(&cfg.Interface, "interface", "", "Network interface to capture live from")
	cmd.Flags().StringVar(&kafka, "kafka", "", "Kafka sink as servers/topic, e.g. broker1:9092,broker2:9092/hbase-rpc")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (development) logging")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&cfg.SQLitePath, "db", cfg.SQLitePath, "SQLite file for the tabular sink")

	return cmd
}

func parseKafkaFlag(v string) (servers []string, topic string, err error) {
	idx := strings.LastIndex(v, "/")
	if idx < 0 {
		return nil, "", fmt.Errorf("--kafka must be servers/topic, got %q", v)
	}
	servers = strings.Split(v[:idx], ",")
	topic = v[idx+1:]
	if topic == "" {
		return nil, "", fmt.Errorf("--kafka topic must not be empty")
	}
	return servers, topic, nil
}

func run(cfg *config.Config) error {
	logging.Init(cfg.Verbose)
	defer logging.Sync()

	if cfg.Interface == "" && len(cfg.CaptureFiles) == 0 {
		return fmt.Errorf("specify --interface for live capture or at least one capture file")
	}

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	snk, err := openSink(cfg)
	if err != nil {
		return err
	}
	defer snk.Close()

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer srv.Close()
	}

	st := stream.NewState()
	pipeline := stream.NewPipeline(st, rpcwire.NewHBaseDecoder(), snk, cfg.PortSet())
	evictor := stream.NewEvictor(cfg)
	loop := captureloop.New(src, pipeline, evictor, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return loop.Run(ctx)
}

func openSource(cfg *config.Config) (capture.Source, error) {
	if cfg.Interface != "" {
		return capture.OpenLive(cfg.Interface, cfg.Ports)
	}
	return capture.OpenOfflineMulti(cfg.CaptureFiles)
}

func openSink(cfg *config.Config) (sink.Sink, error) {
	if len(cfg.KafkaServers) > 0 {
		return sink.OpenKafkaSink(cfg.KafkaServers, cfg.KafkaTopic), nil
	}
	return sink.OpenSQLSink(cfg.SQLitePath)
}
