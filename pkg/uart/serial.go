package uart

import (
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Config defines the serial port settings.
type Config struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultBaud is the sensor's fixed baud rate.
const DefaultBaud = 9600

// Open opens a serial port, 8N1.
func Open(c Config) (*Port, error) {
	baud := c.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	sp, err := serial.OpenPort(&serial.Config{
		Name:        c.Name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: c.ReadTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %q", c.Name)
	}
	p := NewPort(sp)
	p.Name = c.Name
	p.ReadTimeout = c.ReadTimeout > 0
	return p, nil
}
