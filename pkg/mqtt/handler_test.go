package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/robotalks/sds011.go/pkg/msgs"
	"github.com/robotalks/sds011.go/pkg/sds011"
)

type testTransport struct {
	lock    sync.Mutex
	sent    [][]byte
	sendErr error
}

func (t *testTransport) Transmit(p []byte, timeout time.Duration) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, append([]byte(nil), p...))
	return nil
}

func (t *testTransport) Receive(buf []byte, h sds011.ReceiveHandler) error {
	return nil
}

func (t *testTransport) lastSent() []byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.sent) == 0 {
		return nil
	}
	return t.sent[len(t.sent)-1]
}

func startHandler(t *testing.T, q *Queue, broker *fakeBroker, sensor *sds011.Sensor) context.CancelFunc {
	h := &CommandHandler{
		Queue:     q,
		ID:        "s1",
		Commander: sensor,
		Status: func() *msgs.Status {
			return &msgs.Status{Mode: sensor.Mode().String()}
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	require.Eventually(t, func() bool { return broker.subscribed("s1/cmd") }, time.Second, time.Millisecond)
	return cancel
}

func TestCommandRoundTrip(t *testing.T) {
	broker := newFakeBroker()
	q := &Queue{Client: broker}
	tr := &testTransport{}
	sensor := sds011.NewUARTSensor(tr)
	require.NoError(t, sensor.Initialize())
	cancel := startHandler(t, q, broker, sensor)
	defer cancel()

	c := NewClient(q, "s1")
	defer c.Close()
	ctx := context.Background()

	reply, err := c.Do(ctx, &msgs.SetWorkingPeriod{Period: 300})
	require.NoError(t, err)
	require.IsType(t, &msgs.CommandOK{}, reply)
	require.Equal(t, sds011.EncodeSetWorkingPeriod(30), tr.lastSent())

	_, err = c.Do(ctx, &msgs.SetSleepMode{})
	require.NoError(t, err)
	require.Equal(t, sds011.EncodeSleepCommand(), tr.lastSent())

	_, err = c.Do(ctx, &msgs.WakeUp{})
	require.NoError(t, err)
	require.Equal(t, []byte{sds011.WakeByte}, tr.lastSent())

	reply, err = c.Do(ctx, &msgs.StatusQuery{})
	require.NoError(t, err)
	require.Equal(t, "uart", reply.(*msgs.Status).Mode)

	tr.sendErr = sds011.ErrTimeout
	_, err = c.Do(ctx, &msgs.SetSleepMode{})
	var cmdErr *msgs.CommandErr
	require.True(t, errors.As(err, &cmdErr))
	require.Equal(t, sds011.SendTimedOut.String(), cmdErr.Status)

	replies := broker.publications("s1/reply")
	require.Len(t, replies, 5)
	for i, p := range replies {
		typed, err := msgs.DecodeTyped(p.payload)
		require.NoError(t, err)
		require.Equal(t, uint32(i+1), typed.Sequence)
	}
}

func TestCommandUnsupported(t *testing.T) {
	broker := newFakeBroker()
	q := &Queue{Client: broker}
	sensor := sds011.NewPWMSensor(nil, 1, 2)
	h := &CommandHandler{Queue: q, ID: "s1", Commander: sensor}

	typed, err := msgs.TypedFrom(&msgs.WakeUp{})
	require.NoError(t, err)
	reply := h.Execute(typed)
	require.Equal(t, sds011.ErrUnsupported.Error(), reply.(*msgs.CommandErr).Message)

	typed, err = msgs.TypedFrom(&msgs.StatusQuery{})
	require.NoError(t, err)
	reply = h.Execute(typed)
	require.Equal(t, msgs.ErrUnsupportedCommand.Error(), reply.(*msgs.CommandErr).Message)

	typed, err = msgs.TypedFrom(&msgs.Reading{})
	require.NoError(t, err)
	reply = h.Execute(typed)
	require.Equal(t, msgs.ErrUnsupportedCommand.Error(), reply.(*msgs.CommandErr).Message)
}

func TestClientExpiration(t *testing.T) {
	broker := newFakeBroker()
	q := &Queue{Client: broker}
	c := NewClient(q, "s1")
	c.Expiration = 10 * time.Millisecond
	_, err := c.Do(context.Background(), &msgs.WakeUp{})
	require.Equal(t, context.DeadlineExceeded, err)
	require.Empty(t, c.pending)
	require.Len(t, broker.publications("s1/cmd"), 1)
}

func TestReporter(t *testing.T) {
	broker := newFakeBroker()
	q := &Queue{Client: broker, TopicPrefix: "air/"}
	sensor := sds011.NewUARTSensor(&testTransport{})
	r := NewReporter(q, "s1", sensor)
	r.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	c := NewClient(q, "s1")
	defer c.Close()
	var watched []*msgs.Reading
	var watchedIDs []string
	c.Watch("+", func(id string, reading *msgs.Reading) {
		watchedIDs = append(watchedIDs, id)
		watched = append(watched, reading)
	})

	require.False(t, r.Poll(), "nothing measured yet")
	sensor.Store.Update(sds011.Measurement{PM25: 12, PM10: 34})
	require.True(t, r.Poll())
	require.False(t, r.Poll(), "same sequence")
	sensor.Store.Update(sds011.Measurement{PM25: 13, PM10: 35})
	require.False(t, r.Poll(), "rate limited")

	require.Len(t, watched, 1)
	require.Equal(t, []string{"s1"}, watchedIDs)
	require.Equal(t, uint32(12), watched[0].Pm25)
	require.Equal(t, uint32(34), watched[0].Pm10)
	require.Equal(t, uint32(1), watched[0].Sequence)

	metas := broker.publications("air/s1/meta")
	require.Len(t, metas, 1)
	require.True(t, metas[0].retain)
	require.Contains(t, string(metas[0].payload), `"mode":"uart"`)
}

func TestReporterRun(t *testing.T) {
	broker := newFakeBroker()
	q := &Queue{Client: broker}
	sensor := sds011.NewUARTSensor(&testTransport{})
	r := NewReporter(q, "s1", sensor)
	r.Interval = time.Millisecond
	r.Limiter = rate.NewLimiter(rate.Inf, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	sensor.Store.Update(sds011.Measurement{PM25: 1, PM10: 2})
	require.Eventually(t, func() bool {
		return len(broker.publications("s1/reading")) == 1
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	metas := broker.publications("s1/meta")
	require.True(t, len(metas) >= 2)
	require.Empty(t, metas[len(metas)-1].payload, "meta cleared on exit")
}
