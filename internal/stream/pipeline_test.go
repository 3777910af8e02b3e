package stream

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerndb/hbase-packet-inspector/internal/capture"
	"github.com/cerndb/hbase-packet-inspector/internal/model"
	"github.com/cerndb/hbase-packet-inspector/internal/rpcwire"
)

type recordingSink struct {
	events []*model.Event
	subs   []model.Action
}

func (r *recordingSink) Emit(ev *model.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) EmitSub(_ *model.Event, a model.Action) error {
	r.subs = append(r.subs, a)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func encodeVarintLen(n int) []byte {
	var buf []byte
	v := uint64(n)
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func subMessage(num int, v []byte) []byte {
	buf := []byte{byte(num<<3 | 2)}
	buf = append(buf, encodeVarintLen(len(v))...)
	return append(buf, v...)
}

func varintSub(num int, v uint64) []byte {
	buf := []byte{byte(num << 3)}
	return append(buf, encodeVarintLen(int(v))...)
}

// buildFrame assembles a length-prefixed RPC frame from a header message and
// an optional body message, in the varint-delimited shape rpcwire.SplitFrame
// expects.
func buildFrame(header, body []byte) []byte {
	payload := append(encodeVarintLen(len(header)), header...)
	if body != nil {
		payload = append(payload, encodeVarintLen(len(body))...)
		payload = append(payload, body...)
	}
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

func getRequestHeader(callID uint64) []byte {
	h := varintSub(1, callID)                    // call_id
	h = append(h, subMessage(3, []byte("Get"))...) // method_name
	return h
}

func getRequestBody(table, row string) []byte {
	region := subMessage(2, []byte(table+",,1.x."))
	get := subMessage(1, []byte(row))
	body := subMessage(1, region)
	body = append(body, subMessage(2, get)...)
	return body
}

func respHeader(callID uint64) []byte {
	return varintSub(1, callID)
}

func getResponseBody(cells uint64) []byte {
	result := varintSub(4, cells)
	return subMessage(1, result)
}

// TestPipelineSingleGet drives a single Get request/response pair through
// the pipeline and checks the correlated response event.
func TestPipelineSingleGet(t *testing.T) {
	st := NewState()
	snk := &recordingSink{}
	ports := map[int]struct{}{16020: {}}
	p := NewPipeline(st, rpcwire.NewHBaseDecoder(), snk, ports)

	reqFrame := buildFrame(getRequestHeader(1), getRequestBody("T1", "k"))
	inbound := capture.Frame{
		SrcAddr: "10.0.0.1", SrcPort: 5555,
		DstAddr: "10.0.0.2", DstPort: 16020,
		Payload: reqFrame, Ts: time.UnixMilli(1000),
	}
	require.NoError(t, p.Process(inbound))

	respFrame := buildFrame(respHeader(1), getResponseBody(3))
	outbound := capture.Frame{
		SrcAddr: "10.0.0.2", SrcPort: 16020,
		DstAddr: "10.0.0.1", DstPort: 5555,
		Payload: respFrame, Ts: time.UnixMilli(1005),
	}
	require.NoError(t, p.Process(outbound))

	require.Len(t, snk.events, 2)
	resp := snk.events[1]
	assert.Equal(t, "get", resp.Method)
	require.NotNil(t, resp.Cells)
	assert.EqualValues(t, 3, *resp.Cells)
	assert.Equal(t, "T1", resp.Table)
	require.NotNil(t, resp.ElapsedMS)
	assert.EqualValues(t, 5, *resp.ElapsedMS)
}

// TestPipelineInvalidPrefix checks that a frame whose length prefix exceeds
// the maximum frame size is dropped without panicking the pipeline.
func TestPipelineInvalidPrefix(t *testing.T) {
	st := NewState()
	snk := &recordingSink{}
	ports := map[int]struct{}{16020: {}}
	p := NewPipeline(st, rpcwire.NewHBaseDecoder(), snk, ports)

	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload, 0xFFFFFFFF)

	f := capture.Frame{
		SrcAddr: "10.0.0.1", SrcPort: 5555,
		DstAddr: "10.0.0.2", DstPort: 16020,
		Payload: payload, Ts: time.Now(),
	}
	require.NoError(t, p.Process(f))
	assert.Empty(t, snk.events)
	assert.Empty(t, st.Framer.Buffers())
}

func TestPipelineDropsNonHBasePorts(t *testing.T) {
	st := NewState()
	snk := &recordingSink{}
	ports := map[int]struct{}{16020: {}}
	p := NewPipeline(st, rpcwire.NewHBaseDecoder(), snk, ports)

	f := capture.Frame{
		SrcAddr: "10.0.0.1", SrcPort: 5555,
		DstAddr: "10.0.0.2", DstPort: 80,
		Payload: buildFrame(getRequestHeader(1), getRequestBody("T1", "k")),
		Ts:      time.Now(),
	}
	require.NoError(t, p.Process(f))
	assert.Empty(t, snk.events)
}
