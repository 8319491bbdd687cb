package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/sds011.go/pkg/msgs"
	"github.com/robotalks/sds011.go/pkg/sds011"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testTransport struct {
	sent    [][]byte
	sendErr error
}

func (t *testTransport) Transmit(p []byte, timeout time.Duration) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, append([]byte(nil), p...))
	return nil
}

func (t *testTransport) Receive(buf []byte, h sds011.ReceiveHandler) error { return nil }

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func newUARTServer(t *testing.T) (*Server, *testTransport) {
	tr := &testTransport{}
	sensor := sds011.NewUARTSensor(tr)
	require.NoError(t, sensor.Initialize())
	tr.sent = nil
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("sds011_pm25 0\n"))
	})
	return New(":0", sensor, sensor, metrics), tr
}

func TestHealthzAndMetrics(t *testing.T) {
	s, _ := newUARTServer(t)
	rr := do(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())

	rr = do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "sds011_pm25")
}

func TestGetReading(t *testing.T) {
	s, _ := newUARTServer(t)
	s.Sensor.Session().OnBytesReceived(sds011.EncodeMeasurement(300, 600, 0x0a0b))
	rr := do(s, http.MethodGet, "/v1/reading", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var reading msgs.Reading
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reading))
	require.Equal(t, uint32(30), reading.Pm25)
	require.Equal(t, uint32(60), reading.Pm10)
	require.Equal(t, uint32(1), reading.Sequence)
	require.Equal(t, uint32(0x0a0b), reading.DeviceId)

	rr = do(s, http.MethodGet, "/v1/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var status msgs.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, "uart", status.Mode)
	require.Equal(t, uint64(1), status.Accepted)
}

func TestCommands(t *testing.T) {
	s, tr := newUARTServer(t)
	testCases := []struct {
		path string
		body string
		code int
		sent []byte
	}{
		{"/v1/working-period", `{"period":5}`, http.StatusOK, sds011.EncodeSetWorkingPeriod(5)},
		{"/v1/working-period", `{"period":0}`, http.StatusOK, sds011.EncodeSetWorkingPeriod(0)},
		{"/v1/working-period", `{"period":200}`, http.StatusOK, sds011.EncodeSetWorkingPeriod(30)},
		{"/v1/working-period", `{"period":300}`, http.StatusBadRequest, nil},
		{"/v1/working-period", `{}`, http.StatusBadRequest, nil},
		{"/v1/sleep", "", http.StatusOK, sds011.EncodeSleepCommand()},
		{"/v1/wake", "", http.StatusOK, sds011.EncodeWakeByte()},
	}
	for _, tc := range testCases {
		t.Run(tc.path+tc.body, func(t *testing.T) {
			tr.sent = nil
			rr := do(s, http.MethodPost, tc.path, tc.body)
			require.Equal(t, tc.code, rr.Code, rr.Body.String())
			if tc.sent == nil {
				require.Empty(t, tr.sent)
			} else {
				require.Equal(t, [][]byte{tc.sent}, tr.sent)
			}
		})
	}
}

func TestCommandErrors(t *testing.T) {
	s, tr := newUARTServer(t)
	tr.sendErr = sds011.ErrTimeout
	rr := do(s, http.MethodPost, "/v1/sleep", "")
	require.Equal(t, http.StatusGatewayTimeout, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"timeout"`)

	tr.sendErr = errors.New("broken")
	rr = do(s, http.MethodPost, "/v1/wake", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)

	pwm := sds011.NewPWMSensor(nil, 1, 2)
	s = New(":0", pwm, pwm, nil)
	rr = do(s, http.MethodPost, "/v1/wake", "")
	require.Equal(t, http.StatusNotImplemented, rr.Code)
	rr = do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	uninit := sds011.NewUARTSensor(nil)
	s = New(":0", uninit, uninit, nil)
	rr = do(s, http.MethodPost, "/v1/sleep", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStream(t *testing.T) {
	s, _ := newUARTServer(t)
	s.StreamInterval = 5 * time.Millisecond
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/stream", "", "http://localhost/")
	require.NoError(t, err)
	defer conn.Close()

	s.Sensor.Store.Update(sds011.Measurement{PM25: 7, PM10: 8})
	var reading msgs.Reading
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, websocket.JSON.Receive(conn, &reading))
	require.Equal(t, uint32(7), reading.Pm25)
	require.Equal(t, uint32(8), reading.Pm10)

	s.Sensor.Store.Update(sds011.Measurement{PM25: 9, PM10: 10})
	require.NoError(t, websocket.JSON.Receive(conn, &reading))
	require.Equal(t, uint32(9), reading.Pm25)
	require.Equal(t, uint32(2), reading.Sequence)
}
