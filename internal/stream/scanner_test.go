package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerndb/hbase-packet-inspector/internal/model"
)

// TestScannerLifecycle drives a scanner through open, next-rows, and close
// and checks table/region propagation at each step.
func TestScannerLifecycle(t *testing.T) {
	st := NewScannerTracker()
	client := model.ClientKey{Addr: "10.0.0.1", Port: 5555}
	sid := model.ScannerID(42)

	open := &model.Event{Method: "open-scanner", CallID: 1, Inbound: true, Client: client,
		Table: "T1", Region: "R1", Ts: time.Unix(3, 0)}
	st.Process(open)

	openResp := &model.Event{Method: "open-scanner", CallID: 1, Inbound: false, Client: client,
		Scanner: &sid, Ts: time.Unix(3, 1*int64(time.Millisecond))}
	st.Process(openResp)
	require.True(t, st.Open(sid))
	assert.Equal(t, "T1", openResp.Table)
	assert.Equal(t, "R1", openResp.Region)

	next := &model.Event{Method: "next-rows", CallID: 2, Inbound: true, Client: client, Scanner: &sid}
	st.Process(next)
	assert.Equal(t, "T1", next.Table)
	assert.Equal(t, "R1", next.Region)

	nextResp := &model.Event{Method: "next-rows", CallID: 2, Inbound: false, Client: client, Scanner: &sid}
	st.Process(nextResp)
	assert.Equal(t, "T1", nextResp.Table)

	close := &model.Event{Method: "close-scanner", CallID: 3, Inbound: true, Client: client, Scanner: &sid}
	st.Process(close)
	assert.False(t, st.Open(sid))
}

func TestScannerSmallScan(t *testing.T) {
	st := NewScannerTracker()
	client := model.ClientKey{Addr: "10.0.0.1", Port: 5555}

	req := &model.Event{Method: "small-scan", CallID: 9, Inbound: true, Client: client, Table: "T9", Region: "R9"}
	st.Process(req)
	require.Len(t, st.PendingEntries(), 1)

	resp := &model.Event{Method: "small-scan", CallID: 9, Inbound: false, Client: client}
	st.Process(resp)
	assert.Equal(t, "T9", resp.Table)
	assert.Empty(t, st.PendingEntries())
	// No ScannerRecord is ever minted for a small scan (preserved open question).
	assert.Empty(t, st.ScannerEntries())
}

func TestScannerNextRowsUnknownScanner(t *testing.T) {
	st := NewScannerTracker()
	client := model.ClientKey{Addr: "10.0.0.1", Port: 5555}
	sid := model.ScannerID(999)

	ev := &model.Event{Method: "next-rows", CallID: 1, Inbound: true, Client: client, Scanner: &sid}
	assert.NotPanics(t, func() { st.Process(ev) })
	assert.Empty(t, ev.Table)
	assert.Empty(t, ev.Region)
}
