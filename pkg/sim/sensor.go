// Package sim provides a simulated SDS011 for running without hardware.
package sim

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sds011.go/pkg/sds011"
)

// ReadingFunc produces raw values in 0.1 µg/m³.
type ReadingFunc func() (pm25Raw, pm10Raw uint16)

// RandomReading produces readings wandering around base values.
func RandomReading(pm25Raw, pm10Raw uint16) ReadingFunc {
	return func() (uint16, uint16) {
		return jitter(pm25Raw), jitter(pm10Raw)
	}
}

func jitter(v uint16) uint16 {
	d := int(v)/10 + 1
	n := int(v) + rand.Intn(2*d+1) - d
	if n < 0 {
		n = 0
	}
	return uint16(n)
}

// Sensor emulates the sensor side of a serial link.
// It is an io.ReadWriteCloser to be wrapped by uart.Port.
type Sensor struct {
	DeviceID uint16
	// Interval is the report interval in continuous mode.
	Interval time.Duration
	// Minute is the unit of working periods.
	Minute time.Duration
	// ReadTimeout makes Read return (0, io.EOF) after the duration like an
	// idle serial line, 0 blocks.
	ReadTimeout time.Duration
	Reading     ReadingFunc

	period  uint8
	asleep  bool
	cmdBuf  []byte
	lock    sync.Mutex
	outCh   chan []byte
	pending []byte
	closeCh chan struct{}
	closed  sync.Once
}

// NewSensor creates a simulated sensor.
func NewSensor(reading ReadingFunc) *Sensor {
	return &Sensor{
		DeviceID: 0x1234,
		Interval: time.Second,
		Minute:   time.Minute,
		Reading:  reading,
		outCh:    make(chan []byte, 16),
		closeCh:  make(chan struct{}),
	}
}

// State returns the working period and whether the sensor sleeps.
func (s *Sensor) State() (period uint8, asleep bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.period, s.asleep
}

// Run emits measurement frames until ctx is done.
func (s *Sensor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	var elapsed time.Duration
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closeCh:
			return nil
		case <-ticker.C:
			elapsed += s.Interval
			period, asleep := s.State()
			if asleep {
				elapsed = 0
				continue
			}
			if due := time.Duration(period) * s.Minute; elapsed < due {
				continue
			}
			elapsed = 0
			s.emitMeasurement()
		}
	}
}

// Read implements io.Reader.
func (s *Sensor) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		var timeout <-chan time.Time
		if s.ReadTimeout > 0 {
			timeout = time.After(s.ReadTimeout)
		}
		select {
		case s.pending = <-s.outCh:
		case <-timeout:
			return 0, io.EOF
		case <-s.closeCh:
			return 0, io.ErrClosedPipe
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write implements io.Writer, consuming commands.
func (s *Sensor) Write(p []byte) (int, error) {
	select {
	case <-s.closeCh:
		return 0, io.ErrClosedPipe
	default:
	}
	for _, b := range p {
		s.consume(b)
	}
	return len(p), nil
}

// Close implements io.Closer.
func (s *Sensor) Close() error {
	s.closed.Do(func() { close(s.closeCh) })
	return nil
}

func (s *Sensor) consume(b byte) {
	if len(s.cmdBuf) == 0 {
		switch b {
		case sds011.FrameHeader:
			s.cmdBuf = append(s.cmdBuf, b)
		case sds011.WakeByte:
			s.wake()
		}
		return
	}
	s.cmdBuf = append(s.cmdBuf, b)
	if len(s.cmdBuf) < sds011.CommandFrameSize {
		return
	}
	f, ok := sds011.DecodeCommand(s.cmdBuf)
	s.cmdBuf = s.cmdBuf[:0]
	if !ok {
		glog.V(2).Info("sim: bad command frame")
		return
	}
	s.handleCommand(f)
}

func (s *Sensor) handleCommand(f sds011.CommandFrame) {
	s.lock.Lock()
	switch f.Command {
	case sds011.CommandWorkingPeriod:
		if f.Sub == 1 {
			s.period = f.Data[0]
			if s.period > sds011.MaxWorkingPeriod {
				s.period = sds011.MaxWorkingPeriod
			}
		}
		period := s.period
		s.lock.Unlock()
		s.emitReply(f.Command, f.Sub, period)
		return
	case sds011.CommandSleepWork:
		if f.Sub == 1 {
			s.asleep = f.Data[0] == 0
		}
		work := byte(1)
		if s.asleep {
			work = 0
		}
		s.lock.Unlock()
		s.emitReply(f.Command, f.Sub, work)
		return
	}
	s.lock.Unlock()
}

func (s *Sensor) wake() {
	s.lock.Lock()
	wasAsleep := s.asleep
	s.asleep = false
	s.lock.Unlock()
	if wasAsleep {
		s.emitMeasurement()
	}
}

func (s *Sensor) emitMeasurement() {
	pm25, pm10 := s.Reading()
	s.emit(sds011.EncodeMeasurement(pm25, pm10, s.DeviceID))
}

func (s *Sensor) emitReply(command, sub, value byte) {
	s.emit(sds011.EncodeReply(sds011.Reply{
		Type:     command,
		Data:     [3]byte{sub, value, 0},
		DeviceID: s.DeviceID,
	}))
}

func (s *Sensor) emit(frame []byte) {
	select {
	case s.outCh <- frame:
	case <-s.closeCh:
	default:
		glog.V(2).Info("sim: output full, frame lost")
	}
}
