package sds011

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// ReceiveHandler is called when an armed receive completes.
type ReceiveHandler interface {
	OnBytesReceived(buf []byte)
}

// OnBytesReceivedFunc is func type of ReceiveHandler.
type OnBytesReceivedFunc func([]byte)

// OnBytesReceived implements ReceiveHandler.
func (f OnBytesReceivedFunc) OnBytesReceived(buf []byte) {
	f(buf)
}

// Transport is the byte level link to the sensor.
type Transport interface {
	// Transmit sends p and blocks until done or timeout expires.
	// It returns ErrTimeout (possibly wrapped) on timeout.
	Transmit(p []byte, timeout time.Duration) error
	// Receive arms one asynchronous delivery of exactly len(buf) bytes
	// into buf. h is invoked once buf is filled.
	Receive(buf []byte, h ReceiveHandler) error
}

// Default transmit timeouts.
const (
	DefaultCommandTimeout = 20 * time.Millisecond
	DefaultWakeTimeout    = 10 * time.Millisecond
)

// SessionStats counts frames and commands handled by a Session.
type SessionStats struct {
	Accepted     uint64
	Dropped      uint64
	Replies      uint64
	SendFailures uint64
}

type attachedTransport struct {
	Transport
}

// Session bridges a Transport and the frame codec.
type Session struct {
	CommandTimeout time.Duration
	WakeTimeout    time.Duration

	store     *Store
	transport atomic.Pointer[attachedTransport]
	buf       [FrameSize]byte
	lock      sync.Mutex // serializes commands

	accepted     atomic.Uint64
	dropped      atomic.Uint64
	replies      atomic.Uint64
	sendFailures atomic.Uint64
	deviceID     atomic.Uint32 // bit 16 set once known
	lastReply    atomic.Uint64 // bit 63 set once known
}

// NewSession creates a Session writing into store.
func NewSession(store *Store) *Session {
	return &Session{
		CommandTimeout: DefaultCommandTimeout,
		WakeTimeout:    DefaultWakeTimeout,
		store:          store,
	}
}

// Store returns the measurement store.
func (s *Session) Store() *Store {
	return s.store
}

// Initialize attaches the transport, switches the sensor to continuous
// mode and arms the first receive. The returned error reflects the
// initial command only.
func (s *Session) Initialize(t Transport) error {
	s.transport.Store(&attachedTransport{Transport: t})
	err := s.SetWorkingPeriod(0)
	s.arm()
	return err
}

// OnBytesReceived implements ReceiveHandler. It always re-arms the
// receive, whatever the frame contains.
func (s *Session) OnBytesReceived(buf []byte) {
	if f, ok := DecodeFrame(buf); ok {
		m := f.Measurement()
		s.store.Update(m)
		s.accepted.Add(1)
		s.deviceID.Store(uint32(f.DeviceID) | 1<<16)
		glog.V(2).Infof("sds011: PM2.5=%d PM10=%d (device %04x)", m.PM25, m.PM10, f.DeviceID)
	} else if r, ok := DecodeReply(buf); ok {
		s.replies.Add(1)
		s.lastReply.Store(packReply(r))
		glog.V(2).Infof("sds011: reply type=%02x data=% x", r.Type, r.Data)
	} else {
		s.dropped.Add(1)
		glog.V(3).Infof("sds011: drop frame % x", buf)
	}
	s.arm()
}

// SetWorkingPeriod sets the working period in minutes, see
// EncodeSetWorkingPeriod.
func (s *Session) SetWorkingPeriod(period uint8) error {
	return s.send("set-working-period", EncodeSetWorkingPeriod(period), s.CommandTimeout)
}

// SetSleepMode puts the sensor to sleep.
func (s *Session) SetSleepMode() error {
	return s.send("sleep", EncodeSleepCommand(), s.CommandTimeout)
}

// WakeUp sends the wake probe and arms one receive for the sensor's
// acknowledgment.
func (s *Session) WakeUp() error {
	if err := s.send("wake", EncodeWakeByte(), s.WakeTimeout); err != nil {
		return err
	}
	s.arm()
	return nil
}

// Stats returns the counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Accepted:     s.accepted.Load(),
		Dropped:      s.dropped.Load(),
		Replies:      s.replies.Load(),
		SendFailures: s.sendFailures.Load(),
	}
}

// DeviceID returns the device ID seen in the last valid measurement frame.
func (s *Session) DeviceID() (uint16, bool) {
	v := s.deviceID.Load()
	return uint16(v), v&(1<<16) != 0
}

// LastReply returns the last reply frame received.
func (s *Session) LastReply() (Reply, bool) {
	v := s.lastReply.Load()
	if v&(1<<63) == 0 {
		return Reply{}, false
	}
	return Reply{
		Type:     byte(v),
		Data:     [3]byte{byte(v >> 8), byte(v >> 16), byte(v >> 24)},
		DeviceID: uint16(v >> 32),
	}, true
}

func packReply(r Reply) uint64 {
	return uint64(r.Type) |
		uint64(r.Data[0])<<8 | uint64(r.Data[1])<<16 | uint64(r.Data[2])<<24 |
		uint64(r.DeviceID)<<32 | 1<<63
}

func (s *Session) send(name string, p []byte, timeout time.Duration) error {
	t := s.attached()
	if t == nil {
		return &CommandError{Command: name, Status: SendFailed, Err: ErrNotInitialized}
	}
	s.lock.Lock()
	err := t.Transmit(p, timeout)
	s.lock.Unlock()
	if err != nil {
		s.sendFailures.Add(1)
		cmdErr := &CommandError{Command: name, Status: StatusOf(err), Err: err}
		glog.Warningf("sds011: %v", cmdErr)
		return cmdErr
	}
	glog.V(2).Infof("sds011: sent %s", name)
	return nil
}

// arm requests the next frame. A receive already pending is fine.
func (s *Session) arm() {
	t := s.attached()
	if t == nil {
		return
	}
	if err := t.Receive(s.buf[:], s); err != nil {
		glog.V(2).Infof("sds011: arm receive: %v", err)
	}
}

func (s *Session) attached() Transport {
	if a := s.transport.Load(); a != nil {
		return a.Transport
	}
	return nil
}
