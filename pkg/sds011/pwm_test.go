package sds011

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testTimer struct {
	started   bool
	captures  []Channel
	resets    int
	polarity  map[Channel]Polarity
	registers map[Channel]uint32
}

func newTestTimer() *testTimer {
	return &testTimer{
		polarity:  make(map[Channel]Polarity),
		registers: make(map[Channel]uint32),
	}
}

func (t *testTimer) Start() error                       { t.started = true; return nil }
func (t *testTimer) StartCapture(ch Channel) error      { t.captures = append(t.captures, ch); return nil }
func (t *testTimer) ResetCounter()                      { t.resets++ }
func (t *testTimer) SetPolarity(ch Channel, p Polarity) { t.polarity[ch] = p }
func (t *testTimer) Compare(ch Channel) uint32          { return t.registers[ch] }

const (
	testPM25Ch Channel = 2
	testPM10Ch Channel = 1
)

func TestEdgeSequencer(t *testing.T) {
	timer := newTestTimer()
	store := &Store{}
	q := NewEdgeSequencer(store, timer, testPM25Ch, testPM10Ch)
	require.NoError(t, q.Initialize())
	require.True(t, timer.started)
	require.Equal(t, []Channel{testPM10Ch}, timer.captures)

	for i := 0; i < 3; i++ {
		require.Equal(t, AwaitRisingEdge, q.State())
		q.OnEdgeCaptured()
		require.Equal(t, AwaitFirstFallingEdge, q.State())
		require.Equal(t, FallingEdge, timer.polarity[testPM10Ch])
		require.Equal(t, i+1, timer.resets)

		q.OnEdgeCaptured()
		require.Equal(t, AwaitSecondFallingEdge, q.State())
		_, seq := store.Snapshot()
		require.Equal(t, uint32(i), seq, "no partial update")

		timer.registers[testPM10Ch] = 502
		timer.registers[testPM25Ch] = 302
		q.OnEdgeCaptured()
		require.Equal(t, AwaitRisingEdge, q.State())
		require.Equal(t, RisingEdge, timer.polarity[testPM10Ch])
		require.Equal(t, Measurement{PM25: 300, PM10: 500}, store.Load())
		_, seq = store.Snapshot()
		require.Equal(t, uint32(i+1), seq)
	}
}

func TestCaptured(t *testing.T) {
	testCases := []struct {
		in     uint32
		expect uint16
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, 1},
		{1002, 1000},
		{0xffff + 2, 0xffff},
		{0xffff + 3, 0xffff},
		{0xffffffff, 0xffff},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expect, captured(tc.in), "captured(%d)", tc.in)
	}
}

func TestEdgeStateString(t *testing.T) {
	require.Equal(t, "await-rising", AwaitRisingEdge.String())
	require.Equal(t, "await-second-falling", AwaitSecondFallingEdge.String())
	require.Equal(t, AwaitRisingEdge, AwaitSecondFallingEdge.next())
}
