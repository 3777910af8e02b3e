package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerndb/hbase-packet-inspector/internal/model"
)

type fakeSink struct {
	emitted []*model.Event
	subs    []model.Action
}

func (f *fakeSink) Emit(ev *model.Event) error {
	f.emitted = append(f.emitted, ev)
	return nil
}

func (f *fakeSink) EmitSub(_ *model.Event, a model.Action) error {
	f.subs = append(f.subs, a)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func cellsOf(n int32) *int32 { return &n }

func TestDispatchNoActions(t *testing.T) {
	s := &fakeSink{}
	ev := &model.Event{Method: "get"}
	require.NoError(t, Dispatch(s, ev))
	assert.Len(t, s.emitted, 1)
	assert.Empty(t, s.subs)
}

func TestDispatchSingleActionMergesIntoTopLevel(t *testing.T) {
	s := &fakeSink{}
	ev := &model.Event{
		Method:  "multi",
		Actions: []model.Action{{Method: "get", Table: "T1", Row: "k", Cells: cellsOf(5)}},
	}
	require.NoError(t, Dispatch(s, ev))
	require.Len(t, s.emitted, 1)
	assert.Equal(t, "T1", s.emitted[0].Table)
	assert.Equal(t, "k", s.emitted[0].Row)
	require.NotNil(t, s.emitted[0].Cells)
	assert.EqualValues(t, 5, *s.emitted[0].Cells)
	assert.Empty(t, s.subs)
}

// batch=2: cells summed across actions, each action also emitted via
// EmitSub.
func TestDispatchMultiActionsSumsCellsAndEmitsSub(t *testing.T) {
	s := &fakeSink{}
	ev := &model.Event{
		Method: "multi",
		Actions: []model.Action{
			{Method: "get", Cells: cellsOf(4)},
			{Method: "put", Cells: cellsOf(2)},
		},
	}
	require.NoError(t, Dispatch(s, ev))
	require.Len(t, s.emitted, 1)
	require.NotNil(t, s.emitted[0].Cells)
	assert.EqualValues(t, 6, *s.emitted[0].Cells)
	assert.Len(t, s.subs, 2)
}

func TestDispatchDoesNotOverwriteExplicitCells(t *testing.T) {
	s := &fakeSink{}
	ev := &model.Event{
		Method: "multi",
		Cells:  cellsOf(99),
		Actions: []model.Action{
			{Cells: cellsOf(4)},
			{Cells: cellsOf(2)},
		},
	}
	require.NoError(t, Dispatch(s, ev))
	assert.EqualValues(t, 99, *s.emitted[0].Cells)
}
