package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/sds011.go/pkg/sds011"
)

type testTransport struct {
	sendErr error
}

func (t *testTransport) Transmit(p []byte, timeout time.Duration) error { return t.sendErr }

func (t *testTransport) Receive(buf []byte, h sds011.ReceiveHandler) error { return nil }

func TestSensorMetrics(t *testing.T) {
	reg := NewRegistry()
	sensor := sds011.NewUARTSensor(&testTransport{})
	m := NewSensorMetrics(reg, sensor)

	sensor.Store.Update(sds011.Measurement{PM25: 12, PM10: 34})
	require.Equal(t, float64(12), testutil.ToFloat64(m.PM25))
	require.Equal(t, float64(34), testutil.ToFloat64(m.PM10))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Updates))

	sensor.Session().OnBytesReceived(make([]byte, sds011.FrameSize))
	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, "sds011_pm25 12")
	require.Contains(t, body, "sds011_frames_dropped_total 1")
	require.True(t, strings.Contains(body, "go_goroutines"))
}

func TestInstrumentCommander(t *testing.T) {
	tr := &testTransport{}
	sensor := sds011.NewUARTSensor(tr)
	require.NoError(t, sensor.Initialize())
	m := NewSensorMetrics(NewRegistry(), sensor)
	c := m.InstrumentCommander(sensor)

	require.NoError(t, c.SetWorkingPeriod(1))
	require.NoError(t, c.WakeUp())
	tr.sendErr = sds011.ErrTimeout
	require.Error(t, c.SetSleepMode())

	require.Equal(t, float64(1), testutil.ToFloat64(m.Commands.WithLabelValues("set-working-period", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Commands.WithLabelValues("wake", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Commands.WithLabelValues("sleep", "timeout")))

	pwm := sds011.NewPWMSensor(nil, 1, 2)
	pm := NewSensorMetrics(NewRegistry(), pwm)
	require.Equal(t, sds011.ErrUnsupported, pm.InstrumentCommander(pwm).WakeUp())
	require.Equal(t, float64(1), testutil.ToFloat64(pm.Commands.WithLabelValues("wake", "unsupported")))
}
