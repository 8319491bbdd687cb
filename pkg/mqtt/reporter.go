package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/glog"
	"golang.org/x/time/rate"

	"github.com/robotalks/sds011.go/pkg/msgs"
	"github.com/robotalks/sds011.go/pkg/sds011"
)

// Meta is published retained on <id>/meta while the sensor is online.
type Meta struct {
	ID       string `json:"id"`
	Mode     string `json:"mode"`
	DeviceID string `json:"device_id,omitempty"`
	Since    int64  `json:"since"`
}

// Default reporter settings.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultReportBurst  = 1
)

// DefaultReportLimit is the default max report rate.
var DefaultReportLimit = rate.Every(time.Second)

// NewSensorQueue creates the Queue used by a sensor. The will clears the
// retained meta when the connection drops.
func NewSensorQueue(brokerURL, id string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+Topic(id, TopicMeta), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("sds011:" + id)
	}
	return NewQueue(opts, topicPrefix), nil
}

// Reporter publishes readings from the store when it changes.
type Reporter struct {
	Queue    *Queue
	ID       string
	Sensor   *sds011.Sensor
	Interval time.Duration
	Limiter  *rate.Limiter

	since   time.Time
	lastSeq uint32
	seq     uint32
}

// NewReporter creates a Reporter.
func NewReporter(q *Queue, id string, sensor *sds011.Sensor) *Reporter {
	return &Reporter{
		Queue:    q,
		ID:       id,
		Sensor:   sensor,
		Interval: DefaultPollInterval,
		Limiter:  rate.NewLimiter(DefaultReportLimit, DefaultReportBurst),
		since:    time.Now(),
	}
}

// Meta returns the current meta.
func (r *Reporter) Meta() Meta {
	meta := Meta{ID: r.ID, Mode: r.Sensor.Mode().String(), Since: r.since.Unix()}
	if s := r.Sensor.Session(); s != nil {
		if id, ok := s.DeviceID(); ok {
			meta.DeviceID = deviceIDString(id)
		}
	}
	return meta
}

// PublishMeta publishes the retained meta.
func (r *Reporter) PublishMeta() {
	data, err := json.Marshal(r.Meta())
	if err != nil {
		panic(err)
	}
	r.Queue.PubWith(Topic(r.ID, TopicMeta), data, 1, true)
}

// Run implements Runnable.
func (r *Reporter) Run(ctx context.Context) error {
	r.PublishMeta()
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Queue.PubWith(Topic(r.ID, TopicMeta), nil, 1, true)
			return nil
		case <-ticker.C:
			r.Poll()
		}
	}
}

// Poll publishes the latest measurement if it's new and the rate allows.
// It returns true if a reading is published.
func (r *Reporter) Poll() bool {
	m, seq := r.Sensor.Store.Snapshot()
	if seq == r.lastSeq || !r.Limiter.Allow() {
		return false
	}
	if r.lastSeq == 0 && seq > 0 {
		// first reading carries the device ID, refresh meta.
		r.PublishMeta()
	}
	r.lastSeq = seq
	r.seq++
	if err := r.Queue.PubMsg(Topic(r.ID, TopicReading), msgs.NewReading(r.Sensor, m, seq), r.seq); err != nil {
		glog.Errorf("publish reading: %v", err)
		return false
	}
	return true
}

func deviceIDString(id uint16) string {
	return fmt.Sprintf("%04x", id)
}
