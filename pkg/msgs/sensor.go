package msgs

import (
	"time"

	"github.com/robotalks/sds011.go/pkg/sds011"
)

// NewReading creates a Reading of a measurement taken from sensor.
func NewReading(sensor *sds011.Sensor, m sds011.Measurement, seq uint32) *Reading {
	reading := &Reading{
		Pm25:      uint32(m.PM25),
		Pm10:      uint32(m.PM10),
		Sequence:  seq,
		Timestamp: time.Now().UnixNano() / int64(time.Millisecond),
	}
	if s := sensor.Session(); s != nil {
		if id, ok := s.DeviceID(); ok {
			reading.DeviceId = uint32(id)
		}
	}
	return reading
}

// ReadingOf returns the latest Reading of sensor.
func ReadingOf(sensor *sds011.Sensor) *Reading {
	m, seq := sensor.Store.Snapshot()
	return NewReading(sensor, m, seq)
}

// StatusOf returns the Status of sensor.
func StatusOf(sensor *sds011.Sensor) *Status {
	status := &Status{
		Mode:    sensor.Mode().String(),
		Reading: ReadingOf(sensor),
	}
	if s := sensor.Session(); s != nil {
		stats := s.Stats()
		status.Accepted = stats.Accepted
		status.Dropped = stats.Dropped
		status.Replies = stats.Replies
		status.SendFailures = stats.SendFailures
	}
	return status
}
