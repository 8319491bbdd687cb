// Package uart implements sds011.Transport over a serial port.
package uart

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/sds011.go/pkg/framework"
	"github.com/robotalks/sds011.go/pkg/sds011"
)

var (
	// ErrBusy indicates a receive is already armed.
	ErrBusy = errors.New("receive already armed")
	// ErrEmptyBuffer indicates a receive with nothing to fill.
	ErrEmptyBuffer = errors.New("empty receive buffer")
)

// DefaultFrameTimeout is the longest gap allowed inside a frame.
const DefaultFrameTimeout = 100 * time.Millisecond

// Port delivers frames from an io.ReadWriter to armed receives.
// Incoming bytes are aligned on the frame header, bytes arriving while
// nothing is armed are dropped.
type Port struct {
	ReadWriter   io.ReadWriter
	Name         string
	FrameTimeout time.Duration
	ReadTimeout  bool // set to true if ReadWriter already supports timeout with Read

	pending   *request
	recvLen   int
	closed    atomic.Bool
	lock      sync.Mutex
	writeLock sync.Mutex
}

type request struct {
	buf     []byte
	handler sds011.ReceiveHandler
}

// NewPort creates a Port.
func NewPort(rw io.ReadWriter) *Port {
	return &Port{
		ReadWriter:   rw,
		Name:         "uart",
		FrameTimeout: DefaultFrameTimeout,
	}
}

// Transmit implements sds011.Transport.
func (p *Port) Transmit(data []byte, timeout time.Duration) error {
	return fx.RunWithTimeout(timeout, sds011.ErrTimeout, func() error {
		p.writeLock.Lock()
		defer p.writeLock.Unlock()
		n, err := p.ReadWriter.Write(data)
		if err == nil && n < len(data) {
			err = io.ErrShortWrite
		}
		return err
	})
}

// Receive implements sds011.Transport.
func (p *Port) Receive(buf []byte, h sds011.ReceiveHandler) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.pending != nil {
		return ErrBusy
	}
	p.pending = &request{buf: buf, handler: h}
	return nil
}

// Armed tells if a receive is pending.
func (p *Port) Armed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.pending != nil
}

// Close implements io.Closer, closing the underlying ReadWriter once.
func (p *Port) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Run reads from the port until ctx is done, the port is closed or
// reading fails. The port is closed when Run returns.
func (p *Port) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p, func() error {
		if p.ReadTimeout {
			return p.runWithReadTimeout(ctx)
		}
		return p.runBlocking(ctx)
	})
}

func (p *Port) runBlocking(ctx context.Context) error {
	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.readLoop(subCtx, chunkCh, errCh)
	var gapTimer <-chan time.Time
	for {
		select {
		case chunk := <-chunkCh:
			p.feed(chunk)
			if p.receiving() {
				gapTimer = time.After(p.frameTimeout())
			} else {
				gapTimer = nil
			}
		case <-gapTimer:
			gapTimer = nil
			p.timeout()
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Port) runWithReadTimeout(ctx context.Context) error {
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := p.ReadWriter.Read(buf)
		if n > 0 {
			p.feed(buf[:n])
		}
		switch {
		case err == nil:
		case p.closed.Load():
			return err
		case err == io.EOF || os.IsTimeout(err):
			// serial ports report an idle line as EOF
		default:
			return err
		}
		if n == 0 {
			p.timeout()
		}
	}
}

func (p *Port) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	buf := make([]byte, 64)
	for {
		n, err := p.ReadWriter.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		select {
		case chunkCh <- chunk:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Port) frameTimeout() time.Duration {
	if p.FrameTimeout > 0 {
		return p.FrameTimeout
	}
	return DefaultFrameTimeout
}

func (p *Port) receiving() bool {
	return p.recvLen > 0
}

// timeout discards a partially received frame.
func (p *Port) timeout() {
	if p.recvLen > 0 {
		glog.V(3).Infof("%s: discard partial frame (%d bytes)", p.Name, p.recvLen)
		p.recvLen = 0
	}
}

func (p *Port) feed(data []byte) {
	for _, b := range data {
		p.lock.Lock()
		req := p.pending
		p.lock.Unlock()
		if req == nil {
			p.recvLen = 0
			continue
		}
		if p.recvLen == 0 && b != sds011.FrameHeader {
			continue
		}
		req.buf[p.recvLen] = b
		p.recvLen++
		if p.recvLen < len(req.buf) {
			continue
		}
		p.recvLen = 0
		p.lock.Lock()
		p.pending = nil
		p.lock.Unlock()
		// the handler usually re-arms.
		req.handler.OnBytesReceived(req.buf)
	}
}
