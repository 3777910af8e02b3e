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
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cerndb/hbase-packet-inspector/internal/logging"
	"github.com/cerndb/hbase-packet-inspector/internal/metrics"
	"github.com/cerndb/hbase-packet-inspector/internal/model"
)

// KafkaSink serializes events as JSON and produces them to a topic.
type KafkaSink struct {
	writer *kafka.Writer
}

// OpenKafkaSink returns a sink producing to topic on the given brokers.
func OpenKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Emit implements Sink.
func (k *KafkaSink) Emit(ev *model.Event) error {
	return k.produce(ev)
}

// EmitSub implements Sink. The sub-action is flattened to an Event-shaped
// record with the parent's client/call_id copied down.
func (k *KafkaSink) EmitSub(parent *model.Event, action model.Action) error {
	sub := &model.Event{
		Method:  action.Method,
		CallID:  parent.CallID,
		Inbound: parent.Inbound,
		Ts:      parent.Ts,
		Server:  parent.Server,
		Client:  parent.Client,
		Table:   action.Table,
		Region:  action.Region,
		Row:     action.Row,
		Cells:   action.Cells,
	}
	return k.produce(sub)
}

func (k *KafkaSink) produce(ev *model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	err = k.writer.WriteMessages(context.Background(), kafka.Message{Value: payload})
	if err != nil {
		metrics.SinkErrors.Inc()
		logging.SinkLog.Warn("kafka write failed", zap.Error(err))
		return errors.Wrap(err, "kafka write")
	}
	return nil
}

// Close implements Sink.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
