package rpcwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerndb/hbase-packet-inspector/internal/model"
)

func requestHeader(callID uint64, method string) []byte {
	var h []byte
	h = putVarintField(h, fieldReqHeaderCallID, callID)
	h = putBytesField(h, fieldReqHeaderMethodName, []byte(method))
	return h
}

func responseHeader(callID uint64) []byte {
	return putVarintField(nil, fieldRespHeaderCallID, callID)
}

func TestDecodeGetRequestResponse(t *testing.T) {
	d := NewHBaseDecoder()

	var getMsg []byte
	getMsg = putBytesField(getMsg, fieldGetRow, []byte("k"))

	var body []byte
	body = putBytesField(body, fieldGetRequestRegion, regionSpecifier("T1,,1.abc."))
	body = putBytesField(body, fieldGetRequestGet, getMsg)

	req, err := d.DecodeRequest(requestHeader(1, "Get"), body)
	require.NoError(t, err)
	assert.Equal(t, "get", req.Method)
	assert.Equal(t, uint32(1), req.CallID)
	assert.Equal(t, "T1", req.Table)
	assert.Equal(t, "k", req.Row)

	calls := map[uint32]*model.CallRecord{1: {Method: "get"}}
	lookup := func(id uint32) (*model.CallRecord, bool) { c, ok := calls[id]; return c, ok }

	var result []byte
	result = putVarintField(result, fieldResultAssociatedCellCount, 3)

	var respBody []byte
	respBody = putBytesField(respBody, fieldGetResponseResult, result)

	resp, err := d.DecodeResponse(responseHeader(1), respBody, lookup)
	require.NoError(t, err)
	assert.Equal(t, "get", resp.Method)
	require.NotNil(t, resp.Cells)
	assert.EqualValues(t, 3, *resp.Cells)
}

func TestDecodeScanSubMethodClassification(t *testing.T) {
	d := NewHBaseDecoder()

	cases := []struct {
		name         string
		hasScanner   bool
		closeScanner bool
		want         string
	}{
		{"open", false, false, "open-scanner"},
		{"small", false, true, "small-scan"},
		{"close", true, true, "close-scanner"},
		{"next", true, false, "next-rows"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var body []byte
			body = putBytesField(body, fieldScanRequestRegion, regionSpecifier("T1,,1.abc."))
			if c.hasScanner {
				body = putVarintField(body, fieldScanRequestScannerID, 42)
			}
			if c.closeScanner {
				body = putVarintField(body, fieldScanRequestCloseScanner, 1)
			}

			req, err := d.DecodeRequest(requestHeader(1, "Scan"), body)
			require.NoError(t, err)
			assert.Equal(t, c.want, req.Method)
		})
	}
}

func TestDecodeMutateRequest(t *testing.T) {
	d := NewHBaseDecoder()

	var mut []byte
	mut = putBytesField(mut, fieldMutationRow, []byte("k2"))
	mut = putVarintField(mut, fieldMutationMutateType, 2) // put

	var body []byte
	body = putBytesField(body, fieldMutateRequestRegion, regionSpecifier("T2,,1.def."))
	body = putBytesField(body, fieldMutateRequestMutation, mut)

	req, err := d.DecodeRequest(requestHeader(5, "Mutate"), body)
	require.NoError(t, err)
	assert.Equal(t, "mutate", req.Method)
	assert.Equal(t, "T2", req.Table)
	assert.Equal(t, "k2", req.Row)
}

// A multi request carrying 2 actions (a get and a mutate) against a
// response with 2 per-action results.
func TestDecodeMultiRequestResponse(t *testing.T) {
	d := NewHBaseDecoder()

	var getAction []byte
	var get []byte
	get = putBytesField(get, fieldGetRow, []byte("k1"))
	getAction = putBytesField(getAction, fieldActionGet, get)

	var mut []byte
	mut = putBytesField(mut, fieldMutationRow, []byte("k2"))
	mut = putVarintField(mut, fieldMutationMutateType, 2)
	var putAction []byte
	putAction = putBytesField(putAction, fieldActionMutation, mut)

	var regionAction []byte
	regionAction = putBytesField(regionAction, fieldRegionActionRegion, regionSpecifier("T3,,1.ghi."))
	regionAction = putBytesField(regionAction, fieldRegionActionAction, getAction)
	regionAction = putBytesField(regionAction, fieldRegionActionAction, putAction)

	var body []byte
	body = putBytesField(body, fieldMultiRequestRegionAction, regionAction)

	req, err := d.DecodeRequest(requestHeader(9, "Multi"), body)
	require.NoError(t, err)
	assert.Equal(t, "multi", req.Method)
	require.Len(t, req.Actions, 2)
	assert.Equal(t, "get", req.Actions[0].Method)
	assert.Equal(t, "put", req.Actions[1].Method)

	calls := map[uint32]*model.CallRecord{9: {Method: "multi"}}
	lookup := func(id uint32) (*model.CallRecord, bool) { c, ok := calls[id]; return c, ok }

	result1 := putVarintField(nil, fieldResultAssociatedCellCount, 4)
	result2 := putVarintField(nil, fieldResultAssociatedCellCount, 2)

	roe1 := putBytesField(nil, fieldResultOrExceptionResult, result1)
	roe2 := putBytesField(nil, fieldResultOrExceptionResult, result2)

	var regionResult []byte
	regionResult = putBytesField(regionResult, fieldRegionActionResultResultOrException, roe1)
	regionResult = putBytesField(regionResult, fieldRegionActionResultResultOrException, roe2)

	var respBody []byte
	respBody = putBytesField(respBody, fieldMultiResponseRegionActionResult, regionResult)

	resp, err := d.DecodeResponse(responseHeader(9), respBody, lookup)
	require.NoError(t, err)
	require.Len(t, resp.Actions, 2)
	require.NotNil(t, resp.Cells)
	assert.EqualValues(t, 6, *resp.Cells)
}

// Scenario: B2, a response with no matching CallRecord.
func TestDecodeResponseUnknownCallID(t *testing.T) {
	d := NewHBaseDecoder()
	lookup := func(uint32) (*model.CallRecord, bool) { return nil, false }

	resp, err := d.DecodeResponse(responseHeader(123), nil, lookup)
	require.NoError(t, err)
	assert.Equal(t, "unknown", resp.Method)
}

func TestSplitRegionName(t *testing.T) {
	table, region := splitRegionName([]byte("myTable,rowkey,162834923.abcdef0123."))
	assert.Equal(t, "myTable", table)
	assert.Equal(t, "myTable,rowkey,162834923.abcdef0123.", region)

	table, region = splitRegionName([]byte("no-comma-region"))
	assert.Equal(t, "", table)
	assert.Equal(t, "no-comma-region", region)
}
