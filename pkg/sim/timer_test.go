package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sds011.go/pkg/sds011"
)

const (
	pm25Ch sds011.Channel = 1
	pm10Ch sds011.Channel = 2
)

func TestTimerNotStarted(t *testing.T) {
	tm := NewTimer(pm25Ch, pm10Ch)
	require.Equal(t, ErrNotStarted, tm.StartCapture(pm10Ch))
	sensor := sds011.NewPWMSensor(tm, pm25Ch, pm10Ch)
	require.Zero(t, tm.Pulse(sensor.Sequencer(), 1, 2))
}

func TestTimerDrivesSequencer(t *testing.T) {
	tm := NewTimer(pm25Ch, pm10Ch)
	sensor := sds011.NewPWMSensor(tm, pm25Ch, pm10Ch)
	require.NoError(t, sensor.Initialize())

	require.Equal(t, 3, tm.Pulse(sensor.Sequencer(), 30, 55))
	require.Equal(t, sds011.Measurement{PM25: 30, PM10: 55}, sensor.Measurement())
	require.Equal(t, sds011.AwaitRisingEdge, sensor.Sequencer().State())

	require.Equal(t, 3, tm.Pulse(sensor.Sequencer(), 80, 12))
	require.Equal(t, sds011.Measurement{PM25: 80, PM10: 12}, sensor.Measurement())
	require.Equal(t, uint32(82), tm.Counter())
}

func TestTimerRun(t *testing.T) {
	tm := NewTimer(pm25Ch, pm10Ch)
	tm.Period = 5 * time.Millisecond
	tm.Reading = fixedReading(250, 400)
	sensor := sds011.NewPWMSensor(tm, pm25Ch, pm10Ch)
	require.NoError(t, sensor.Initialize())
	tm.Handler = sensor.Sequencer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tm.Run(ctx) }()
	require.Eventually(t, func() bool {
		return sensor.Measurement() == sds011.Measurement{PM25: 25, PM10: 40}
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.Equal(t, context.Canceled, <-done)
}
