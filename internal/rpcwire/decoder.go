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

package rpcwire

import "github.com/cerndb/hbase-packet-inspector/internal/model"

// Parsed is the decoder's output: a partial event carrying only what the
// decoder itself can determine from the header and body bytes. The stream
// package fills in client/server/ts/size/inbound before handing the result
// to the sink.
type Parsed struct {
	Method  string
	CallID  uint32
	Table   string
	Region  string
	Row     string
	Cells   *int32
	Scanner *model.ScannerID
	Error   string
	Actions []model.Action
}

// RequestLookup is supplied by the caller (the call table) so DecodeResponse
// can find the originating request — the response body's schema depends on
// the request method, which only the request side carries.
type RequestLookup func(callID uint32) (*model.CallRecord, bool)

// Decoder turns one RPC frame's header and body bytes into a Parsed event.
// header and body are the raw protobuf-encoded RequestHeader/ResponseHeader
// and the method-specific body message that follow it on the wire.
type Decoder interface {
	DecodeRequest(header, body []byte) (*Parsed, error)
	DecodeResponse(header, body []byte, lookup RequestLookup) (*Parsed, error)
}
