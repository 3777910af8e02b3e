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

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/cerndb/hbase-packet-inspector/internal/model"
)

// Protobuf field numbers for the subset of the HBase RPC/Client protocol
// this decoder understands. These mirror the upstream RPCProtos.proto and
// Client.proto field layouts; SASL negotiation, the connection preamble and
// ConnectionHeader frames are deliberately not modeled, nor are
// cellblock-carried cells or compression codecs.
const (
	fieldReqHeaderCallID     = 1
	fieldReqHeaderMethodName = 3

	fieldRespHeaderCallID    = 1
	fieldRespHeaderException = 2
	fieldExceptionClassName  = 1

	fieldRegionSpecifierValue = 2

	fieldGetRow = 1

	fieldGetRequestRegion = 1
	fieldGetRequestGet    = 2

	fieldGetResponseResult = 1

	fieldResultCell                = 1
	fieldResultAssociatedCellCount = 4

	fieldScanRequestRegion       = 1
	fieldScanRequestScannerID    = 3
	fieldScanRequestCloseScanner = 5

	fieldScanResponseScannerID = 2
	fieldScanResponseResults   = 5

	fieldMutationRow        = 1
	fieldMutationMutateType = 2

	fieldMutateRequestRegion   = 1
	fieldMutateRequestMutation = 2

	fieldMutateResponseResult = 1

	fieldActionMutation = 2
	fieldActionGet      = 3

	fieldRegionActionRegion = 1
	fieldRegionActionAction = 3

	fieldMultiRequestRegionAction = 1

	fieldResultOrExceptionResult = 2

	fieldRegionActionResultResultOrException = 1

	fieldMultiResponseRegionActionResult = 1
)

var mutationTypeNames = map[uint64]string{
	0: "append",
	1: "increment",
	2: "put",
	3: "delete",
}

// methodNamePattern rejects anything that isn't a bare RPC method name —
// RegionServer method names are always a single run of letters ("Get",
// "Scan", "Mutate", "Multi"), so a header that doesn't match this is a sign
// the frame was mis-split rather than a legitimate call.
var methodNamePattern = regexp.MustCompile(`^[A-Za-z]+$`)

// HBaseDecoder implements Decoder against the HBase RegionServer RPC wire
// format.
type HBaseDecoder struct{}

// NewHBaseDecoder returns the concrete decoder used by the capture loop.
func NewHBaseDecoder() *HBaseDecoder { return &HBaseDecoder{} }

// DecodeRequest implements Decoder.
func (d *HBaseDecoder) DecodeRequest(header, body []byte) (*Parsed, error) {
	callID64, _, err := varintField(header, fieldReqHeaderCallID)
	if err != nil {
		return nil, errors.Wrap(err, "decode request header call_id")
	}

	rawMethod, ok, err := bytesField(header, fieldReqHeaderMethodName)
	if err != nil {
		return nil, errors.Wrap(err, "decode request header method_name")
	}
	if !ok {
		return nil, errors.Wrap(ErrInvalidProtobuf, "request header missing method_name")
	}

	method := string(rawMethod)
	if !methodNamePattern.MatchString(method) {
		return nil, errors.Errorf("invalid method name: %q", method)
	}
	method = strings.ToLower(method)

	p := &Parsed{Method: method, CallID: uint32(callID64)}

	switch method {
	case "get":
		if err := decodeGetRequest(body, p); err != nil {
			return nil, err
		}
	case "scan":
		if err := decodeScanRequest(body, p); err != nil {
			return nil, err
		}
	case "mutate":
		if err := decodeMutateRequest(body, p); err != nil {
			return nil, err
		}
	case "multi":
		if err := decodeMultiRequest(body, p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// DecodeResponse implements Decoder. The response body's schema depends on
// the originating request's method, which is why lookup is required. An
// unmatched call_id — the request was never seen, e.g. this observer
// started mid-connection — yields method=unknown with no further body
// decoding.
func (d *HBaseDecoder) DecodeResponse(header, body []byte, lookup RequestLookup) (*Parsed, error) {
	callID64, _, err := varintField(header, fieldRespHeaderCallID)
	if err != nil {
		return nil, errors.Wrap(err, "decode response header call_id")
	}

	p := &Parsed{Method: "unknown", CallID: uint32(callID64)}

	if exc, ok, err := bytesField(header, fieldRespHeaderException); err != nil {
		return nil, errors.Wrap(err, "decode response exception")
	} else if ok {
		name, has, err := bytesField(exc, fieldExceptionClassName)
		if err != nil {
			return nil, errors.Wrap(err, "decode exception class name")
		}
		if has {
			p.Error = string(name)
		}
	}

	call, found := lookup(p.CallID)
	if !found {
		return p, nil
	}
	p.Method = call.Method

	switch call.Method {
	case "get":
		if err := decodeGetResponse(body, p); err != nil {
			return nil, err
		}
	case "open-scanner", "next-rows", "close-scanner", "small-scan":
		if err := decodeScanResponse(body, p); err != nil {
			return nil, err
		}
	case "mutate":
		if err := decodeMutateResponse(body, p); err != nil {
			return nil, err
		}
	case "multi":
		if err := decodeMultiResponse(body, p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// splitRegionName extracts the table name from an HBase region name, which
// is encoded as "tableName,startKey,regionId.encodedName.". Absent a comma,
// the whole value is treated as the region identifier with no table.
func splitRegionName(raw []byte) (table, region string) {
	region = string(raw)
	if idx := strings.IndexByte(region, ','); idx >= 0 {
		table = region[:idx]
	}
	return table, region
}

func regionInfo(body []byte, field int, p *Parsed) error {
	spec, ok, err := bytesField(body, field)
	if err != nil || !ok {
		return err
	}
	value, ok, err := bytesField(spec, fieldRegionSpecifierValue)
	if err != nil || !ok {
		return err
	}
	p.Table, p.Region = splitRegionName(value)
	return nil
}

func decodeGetRequest(body []byte, p *Parsed) error {
	if err := regionInfo(body, fieldGetRequestRegion, p); err != nil {
		return errors.Wrap(err, "decode get region")
	}
	get, ok, err := bytesField(body, fieldGetRequestGet)
	if err != nil {
		return errors.Wrap(err, "decode get message")
	}
	if ok {
		if row, ok, err := bytesField(get, fieldGetRow); err != nil {
			return errors.Wrap(err, "decode get row")
		} else if ok {
			p.Row = string(row)
		}
	}
	return nil
}

func resultCellCount(result []byte) (int32, error) {
	if count, ok, err := varintField(result, fieldResultAssociatedCellCount); err != nil {
		return 0, err
	} else if ok {
		return int32(count), nil
	}
	cells, err := repeatedBytesFields(result, fieldResultCell)
	if err != nil {
		return 0, err
	}
	return int32(len(cells)), nil
}

func decodeGetResponse(body []byte, p *Parsed) error {
	result, ok, err := bytesField(body, fieldGetResponseResult)
	if err != nil {
		return errors.Wrap(err, "decode get response result")
	}
	if !ok {
		return nil
	}
	n, err := resultCellCount(result)
	if err != nil {
		return errors.Wrap(err, "decode get response cell count")
	}
	p.Cells = &n
	return nil
}

// decodeScanRequest classifies the scan sub-method from the two boolean
// facts a ScanRequest carries: whether scanner_id is present, and whether
// close_scanner is set. No scanner_id means this call is opening a new
// scanner; scanner_id plus close_scanner means it's closing one; scanner_id
// without close_scanner means it's paging through an existing one;
// scanner_id absent but close_scanner set is HBase's "small scan" shorthand
// (open, read, and close in one round trip).
func decodeScanRequest(body []byte, p *Parsed) error {
	if err := regionInfo(body, fieldScanRequestRegion, p); err != nil {
		return errors.Wrap(err, "decode scan region")
	}

	scannerID, hasScannerID, err := varintField(body, fieldScanRequestScannerID)
	if err != nil {
		return errors.Wrap(err, "decode scan scanner_id")
	}

	closeVal, hasClose, err := varintField(body, fieldScanRequestCloseScanner)
	if err != nil {
		return errors.Wrap(err, "decode scan close_scanner")
	}
	closeFlag := hasClose && closeVal != 0

	switch {
	case !hasScannerID && !closeFlag:
		p.Method = "open-scanner"
	case !hasScannerID && closeFlag:
		p.Method = "small-scan"
	case hasScannerID && closeFlag:
		p.Method = "close-scanner"
	default:
		p.Method = "next-rows"
	}

	if hasScannerID {
		sid := model.ScannerID(scannerID)
		p.Scanner = &sid
	}

	return nil
}

func decodeScanResponse(body []byte, p *Parsed) error {
	if scannerID, ok, err := varintField(body, fieldScanResponseScannerID); err != nil {
		return errors.Wrap(err, "decode scan response scanner_id")
	} else if ok {
		sid := model.ScannerID(scannerID)
		p.Scanner = &sid
	}

	results, err := repeatedBytesFields(body, fieldScanResponseResults)
	if err != nil {
		return errors.Wrap(err, "decode scan response results")
	}

	var total int32
	for _, r := range results {
		n, err := resultCellCount(r)
		if err != nil {
			return errors.Wrap(err, "decode scan response cell count")
		}
		total += n
	}
	if len(results) > 0 {
		p.Cells = &total
	}
	return nil
}

func decodeMutateRequest(body []byte, p *Parsed) error {
	if err := regionInfo(body, fieldMutateRequestRegion, p); err != nil {
		return errors.Wrap(err, "decode mutate region")
	}
	mut, ok, err := bytesField(body, fieldMutateRequestMutation)
	if err != nil {
		return errors.Wrap(err, "decode mutation message")
	}
	if ok {
		if row, ok, err := bytesField(mut, fieldMutationRow); err != nil {
			return errors.Wrap(err, "decode mutation row")
		} else if ok {
			p.Row = string(row)
		}
	}
	return nil
}

func decodeMutateResponse(body []byte, p *Parsed) error {
	result, ok, err := bytesField(body, fieldMutateResponseResult)
	if err != nil {
		return errors.Wrap(err, "decode mutate response result")
	}
	if !ok {
		return nil
	}
	n, err := resultCellCount(result)
	if err != nil {
		return errors.Wrap(err, "decode mutate response cell count")
	}
	p.Cells = &n
	return nil
}

func decodeAction(raw []byte) (model.Action, error) {
	var a model.Action

	if mut, ok, err := bytesField(raw, fieldActionMutation); err != nil {
		return a, err
	} else if ok {
		if row, ok, err := bytesField(mut, fieldMutationRow); err != nil {
			return a, err
		} else if ok {
			a.Row = string(row)
		}
		if mt, ok, err := varintField(mut, fieldMutationMutateType); err != nil {
			return a, err
		} else if ok {
			a.Method = mutationTypeNames[mt]
		}
		return a, nil
	}

	if get, ok, err := bytesField(raw, fieldActionGet); err != nil {
		return a, err
	} else if ok {
		a.Method = "get"
		if row, ok, err := bytesField(get, fieldGetRow); err != nil {
			return a, err
		} else if ok {
			a.Row = string(row)
		}
	}

	return a, nil
}

func decodeMultiRequest(body []byte, p *Parsed) error {
	regionActions, err := repeatedBytesFields(body, fieldMultiRequestRegionAction)
	if err != nil {
		return errors.Wrap(err, "decode multi region actions")
	}

	var actions []model.Action
	for _, ra := range regionActions {
		var table, region string
		if spec, ok, err := bytesField(ra, fieldRegionActionRegion); err != nil {
			return errors.Wrap(err, "decode multi region specifier")
		} else if ok {
			if value, ok, err := bytesField(spec, fieldRegionSpecifierValue); err != nil {
				return errors.Wrap(err, "decode multi region value")
			} else if ok {
				table, region = splitRegionName(value)
			}
		}

		rawActions, err := repeatedBytesFields(ra, fieldRegionActionAction)
		if err != nil {
			return errors.Wrap(err, "decode multi actions")
		}
		for _, raw := range rawActions {
			a, err := decodeAction(raw)
			if err != nil {
				return errors.Wrap(err, "decode multi action")
			}
			a.Table, a.Region = table, region
			actions = append(actions, a)
		}
	}

	p.Actions = actions
	if len(actions) > 0 {
		p.Table, p.Region = actions[0].Table, actions[0].Region
		p.Row = actions[0].Row
	}

	return nil
}

func decodeMultiResponse(body []byte, p *Parsed) error {
	regionResults, err := repeatedBytesFields(body, fieldMultiResponseRegionActionResult)
	if err != nil {
		return errors.Wrap(err, "decode multi response region results")
	}

	var actions []model.Action
	for _, rr := range regionResults {
		resultsOrExc, err := repeatedBytesFields(rr, fieldRegionActionResultResultOrException)
		if err != nil {
			return errors.Wrap(err, "decode multi response results")
		}
		for _, roe := range resultsOrExc {
			var a model.Action
			if result, ok, err := bytesField(roe, fieldResultOrExceptionResult); err != nil {
				return errors.Wrap(err, "decode multi response result")
			} else if ok {
				n, err := resultCellCount(result)
				if err != nil {
					return errors.Wrap(err, "decode multi response cell count")
				}
				a.Cells = &n
			}
			actions = append(actions, a)
		}
	}

	p.Actions = actions

	var total int32
	var any bool
	for _, a := range actions {
		if a.Cells != nil {
			total += *a.Cells
			any = true
		}
	}
	if any {
		p.Cells = &total
	}

	return nil
}
