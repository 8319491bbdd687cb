package sds011

import (
	"github.com/golang/glog"
)

// Channel identifies a timer capture channel.
type Channel uint32

// Polarity is the edge a capture channel triggers on.
type Polarity int

// Polarities
const (
	RisingEdge Polarity = iota
	FallingEdge
)

func (p Polarity) String() string {
	if p == FallingEdge {
		return "falling"
	}
	return "rising"
}

// CaptureTimer is the timer peripheral used in PWM mode.
type CaptureTimer interface {
	// Start starts the free-running counter.
	Start() error
	// StartCapture enables capture interrupts on ch.
	StartCapture(ch Channel) error
	// ResetCounter sets the counter to zero.
	ResetCounter()
	// SetPolarity selects the edge ch captures on.
	SetPolarity(ch Channel, p Polarity)
	// Compare reads the capture/compare register of ch.
	Compare(ch Channel) uint32
}

// CaptureOffset is subtracted from captured values to compensate the
// latency of the capture pipeline.
const CaptureOffset = 2

// EdgeState is the state of EdgeSequencer.
type EdgeState int

// Edge states, cyclic.
const (
	AwaitRisingEdge EdgeState = iota
	AwaitFirstFallingEdge
	AwaitSecondFallingEdge
)

func (s EdgeState) String() string {
	switch s {
	case AwaitRisingEdge:
		return "await-rising"
	case AwaitFirstFallingEdge:
		return "await-first-falling"
	case AwaitSecondFallingEdge:
		return "await-second-falling"
	}
	return "invalid"
}

func (s EdgeState) next() EdgeState {
	if s == AwaitSecondFallingEdge {
		return AwaitRisingEdge
	}
	return s + 1
}

// EdgeSequencer decodes PWM pulse widths from edge captures.
// OnEdgeCaptured must not be called concurrently.
type EdgeSequencer struct {
	Timer  CaptureTimer
	PM25Ch Channel
	PM10Ch Channel

	store *Store
	state EdgeState
}

// NewEdgeSequencer creates an EdgeSequencer.
func NewEdgeSequencer(store *Store, timer CaptureTimer, pm25Ch, pm10Ch Channel) *EdgeSequencer {
	return &EdgeSequencer{
		Timer:  timer,
		PM25Ch: pm25Ch,
		PM10Ch: pm10Ch,
		store:  store,
	}
}

// Store returns the measurement store.
func (q *EdgeSequencer) Store() *Store {
	return q.store
}

// State returns the current state.
func (q *EdgeSequencer) State() EdgeState {
	return q.state
}

// Initialize starts the time base and capture on the PM10 channel.
func (q *EdgeSequencer) Initialize() error {
	q.state = AwaitRisingEdge
	if err := q.Timer.Start(); err != nil {
		return err
	}
	return q.Timer.StartCapture(q.PM10Ch)
}

// OnEdgeCaptured advances the sequencer on a capture event.
func (q *EdgeSequencer) OnEdgeCaptured() {
	switch q.state {
	case AwaitRisingEdge:
		q.Timer.ResetCounter()
		q.Timer.SetPolarity(q.PM10Ch, FallingEdge)
		q.startCapture(q.PM10Ch)
	case AwaitFirstFallingEdge:
	case AwaitSecondFallingEdge:
		q.Timer.SetPolarity(q.PM10Ch, RisingEdge)
		m := Measurement{
			PM10: captured(q.Timer.Compare(q.PM10Ch)),
			PM25: captured(q.Timer.Compare(q.PM25Ch)),
		}
		q.store.Update(m)
		glog.V(2).Infof("sds011: pwm PM2.5=%d PM10=%d", m.PM25, m.PM10)
		q.startCapture(q.PM10Ch)
		q.startCapture(q.PM25Ch)
	}
	q.state = q.state.next()
}

func (q *EdgeSequencer) startCapture(ch Channel) {
	if err := q.Timer.StartCapture(ch); err != nil {
		glog.V(2).Infof("sds011: start capture %d: %v", ch, err)
	}
}

// captured removes CaptureOffset, saturating at both ends of uint16.
func captured(v uint32) uint16 {
	if v < CaptureOffset {
		return 0
	}
	v -= CaptureOffset
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}
