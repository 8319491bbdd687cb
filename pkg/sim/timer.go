package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robotalks/sds011.go/pkg/sds011"
)

// ErrNotStarted indicates the timer isn't started.
var ErrNotStarted = errors.New("timer not started")

// EdgeHandler receives capture events.
type EdgeHandler interface {
	OnEdgeCaptured()
}

// DefaultPWMPeriod is the PWM cycle of the sensor.
const DefaultPWMPeriod = 1004 * time.Millisecond

// Timer emulates a capture timer watching both PWM lines.
// Edges are reported on the PM10 channel only when its polarity matches.
type Timer struct {
	PM25Ch  sds011.Channel
	PM10Ch  sds011.Channel
	Period  time.Duration
	Reading ReadingFunc
	Handler EdgeHandler

	started  bool
	counter  uint32
	polarity map[sds011.Channel]sds011.Polarity
	enabled  map[sds011.Channel]bool
	compare  map[sds011.Channel]uint32
	lock     sync.Mutex
}

// NewTimer creates a Timer.
func NewTimer(pm25Ch, pm10Ch sds011.Channel) *Timer {
	return &Timer{
		PM25Ch:   pm25Ch,
		PM10Ch:   pm10Ch,
		Period:   DefaultPWMPeriod,
		polarity: make(map[sds011.Channel]sds011.Polarity),
		enabled:  make(map[sds011.Channel]bool),
		compare:  make(map[sds011.Channel]uint32),
	}
}

// Start implements sds011.CaptureTimer.
func (t *Timer) Start() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.started = true
	return nil
}

// StartCapture implements sds011.CaptureTimer.
func (t *Timer) StartCapture(ch sds011.Channel) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.started {
		return ErrNotStarted
	}
	t.enabled[ch] = true
	return nil
}

// ResetCounter implements sds011.CaptureTimer.
func (t *Timer) ResetCounter() {
	t.lock.Lock()
	t.counter = 0
	t.lock.Unlock()
}

// SetPolarity implements sds011.CaptureTimer.
func (t *Timer) SetPolarity(ch sds011.Channel, p sds011.Polarity) {
	t.lock.Lock()
	t.polarity[ch] = p
	t.lock.Unlock()
}

// Compare implements sds011.CaptureTimer.
func (t *Timer) Compare(ch sds011.Channel) uint32 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.compare[ch]
}

// Counter returns the counter value.
func (t *Timer) Counter() uint32 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.counter
}

// Pulse emulates one PWM cycle where the lines stay high for pm25 and
// pm10 ticks (plus the capture offset). It returns the number of edges
// delivered to h.
func (t *Timer) Pulse(h EdgeHandler, pm25, pm10 uint32) int {
	edges := 0
	if t.edge(sds011.RisingEdge, 0, nil) {
		h.OnEdgeCaptured()
		edges++
	}
	short, long := pm25, pm10
	if short > long {
		short, long = long, short
	}
	if t.edge(sds011.FallingEdge, short+sds011.CaptureOffset, nil) {
		h.OnEdgeCaptured()
		edges++
	}
	if t.edge(sds011.FallingEdge, long+sds011.CaptureOffset, func() {
		t.compare[t.PM25Ch] = pm25 + sds011.CaptureOffset
		t.compare[t.PM10Ch] = pm10 + sds011.CaptureOffset
	}) {
		h.OnEdgeCaptured()
		edges++
	}
	return edges
}

func (t *Timer) edge(p sds011.Polarity, at uint32, latch func()) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if at > t.counter {
		t.counter = at
	}
	if !t.started || !t.enabled[t.PM10Ch] || t.polarity[t.PM10Ch] != p {
		return false
	}
	if latch != nil {
		latch()
	}
	return true
}

// Run pulses every Period with values from Reading until ctx is done.
// Raw values are in 0.1 µg/m³, the PWM output is in whole µg/m³.
func (t *Timer) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if h := t.Handler; h != nil {
				pm25, pm10 := t.Reading()
				t.Pulse(h, uint32(pm25/10), uint32(pm10/10))
			}
		}
	}
}
