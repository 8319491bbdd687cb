// Package metrics exports sensor measurements and counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/sds011.go/pkg/sds011"
)

// NewRegistry creates a registry with Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler exposing reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// SensorMetrics are metrics of one sensor.
type SensorMetrics struct {
	PM25     prometheus.GaugeFunc
	PM10     prometheus.GaugeFunc
	Updates  prometheus.CounterFunc
	Commands *prometheus.CounterVec // labels: command, status
}

// NewSensorMetrics registers metrics reading from sensor. In UART mode the
// session counters are exported too.
func NewSensorMetrics(reg prometheus.Registerer, sensor *sds011.Sensor) *SensorMetrics {
	store := sensor.Store
	m := &SensorMetrics{
		PM25: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sds011_pm25",
			Help: "Latest PM2.5 concentration in µg/m³.",
		}, func() float64 { return float64(store.PM25()) }),
		PM10: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sds011_pm10",
			Help: "Latest PM10 concentration in µg/m³.",
		}, func() float64 { return float64(store.PM10()) }),
		Updates: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "sds011_updates_total",
			Help: "Measurements stored.",
		}, func() float64 {
			_, seq := store.Snapshot()
			return float64(seq)
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sds011_command_total",
			Help: "Commands sent to the sensor by result.",
		}, []string{"command", "status"}),
	}
	reg.MustRegister(m.PM25, m.PM10, m.Updates, m.Commands)
	if session := sensor.Session(); session != nil {
		frames := func(name, help string, get func(sds011.SessionStats) uint64) prometheus.Collector {
			return prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: name,
				Help: help,
			}, func() float64 { return float64(get(session.Stats())) })
		}
		reg.MustRegister(
			frames("sds011_frames_accepted_total", "Valid measurement frames.",
				func(s sds011.SessionStats) uint64 { return s.Accepted }),
			frames("sds011_frames_dropped_total", "Malformed frames.",
				func(s sds011.SessionStats) uint64 { return s.Dropped }),
			frames("sds011_frames_reply_total", "Command reply frames.",
				func(s sds011.SessionStats) uint64 { return s.Replies }),
		)
	}
	return m
}

// Commander counts commands passed to the wrapped Commander.
type Commander struct {
	sds011.Commander
	Counter *prometheus.CounterVec
}

// InstrumentCommander wraps c.
func (m *SensorMetrics) InstrumentCommander(c sds011.Commander) *Commander {
	return &Commander{Commander: c, Counter: m.Commands}
}

func (c *Commander) observe(command string, err error) error {
	status := sds011.StatusOf(err).String()
	if errors.Is(err, sds011.ErrUnsupported) {
		status = "unsupported"
	}
	c.Counter.WithLabelValues(command, status).Inc()
	return err
}

// SetWorkingPeriod implements sds011.Commander.
func (c *Commander) SetWorkingPeriod(period uint8) error {
	return c.observe("set-working-period", c.Commander.SetWorkingPeriod(period))
}

// SetSleepMode implements sds011.Commander.
func (c *Commander) SetSleepMode() error {
	return c.observe("sleep", c.Commander.SetSleepMode())
}

// WakeUp implements sds011.Commander.
func (c *Commander) WakeUp() error {
	return c.observe("wake", c.Commander.WakeUp())
}
