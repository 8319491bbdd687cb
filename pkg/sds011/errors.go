package sds011

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates the transport didn't complete in time.
	ErrTimeout = errors.New("timeout")
	// ErrUnsupported indicates the operation is not available in current mode.
	ErrUnsupported = errors.New("unsupported in current mode")
	// ErrNotInitialized indicates no transport is attached yet.
	ErrNotInitialized = errors.New("not initialized")
)

// SendStatus classifies the result of a transmission.
type SendStatus int

const (
	// SendOK means the bytes were sent.
	SendOK SendStatus = iota
	// SendTimedOut means the transport didn't finish in time.
	SendTimedOut
	// SendFailed means the transport reported an error.
	SendFailed
)

func (s SendStatus) String() string {
	switch s {
	case SendOK:
		return "ok"
	case SendTimedOut:
		return "timeout"
	default:
		return "error"
	}
}

// StatusOf classifies an error returned by Transport.Transmit.
func StatusOf(err error) SendStatus {
	switch {
	case err == nil:
		return SendOK
	case errors.Is(err, ErrTimeout):
		return SendTimedOut
	default:
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			return cmdErr.Status
		}
		return SendFailed
	}
}

// CommandError is returned when a command can't be delivered.
type CommandError struct {
	Command string
	Status  SendStatus
	Err     error
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: send %s: %v", e.Command, e.Status, e.Err)
}

// Unwrap returns the transport error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
