package daemon

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	fx "github.com/robotalks/sds011.go/pkg/framework"
	"github.com/robotalks/sds011.go/pkg/httpapi"
	"github.com/robotalks/sds011.go/pkg/metrics"
	"github.com/robotalks/sds011.go/pkg/msgs"
	"github.com/robotalks/sds011.go/pkg/mqtt"
	"github.com/robotalks/sds011.go/pkg/sds011"
	"github.com/robotalks/sds011.go/pkg/sim"
	"github.com/robotalks/sds011.go/pkg/uart"
)

// DefaultConnectTimeout limits waiting for the MQTT broker on start.
const DefaultConnectTimeout = 5 * time.Second

// Daemon runs a sensor and the services exposing it.
type Daemon struct {
	Config    *Config
	Sensor    *sds011.Sensor
	Commander sds011.Commander
	Registry  *prometheus.Registry
	Metrics   *metrics.SensorMetrics
	Port      *uart.Port
	Queue     *mqtt.Queue
	Reporter  *mqtt.Reporter
	HTTP      *httpapi.Server

	runnables []fx.Runnable
	closers   []io.Closer
}

// NewDaemon creates a Daemon from config.
func (c *Config) NewDaemon() (*Daemon, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	d := &Daemon{Config: c, Registry: metrics.NewRegistry()}
	var err error
	if c.Mode == sds011.ModePWM.String() {
		err = d.setupPWM()
	} else {
		err = d.setupUART()
	}
	if err != nil {
		return nil, err
	}
	d.Metrics = metrics.NewSensorMetrics(d.Registry, d.Sensor)
	d.Commander = d.Metrics.InstrumentCommander(d.Sensor)

	if c.MQTTBrokerURL != "" {
		if err := d.setupMQTT(); err != nil {
			d.Close()
			return nil, err
		}
	}
	if c.HTTPAddr != "" {
		d.HTTP = httpapi.New(c.HTTPAddr, d.Sensor, d.Commander, metrics.Handler(d.Registry))
		d.add("http", d.HTTP)
	}
	return d, nil
}

// MustNewDaemon creates Daemon and fails on error.
func (c *Config) MustNewDaemon() *Daemon {
	d, err := c.NewDaemon()
	if err != nil {
		log.Fatalln(err)
	}
	return d
}

func (d *Daemon) add(name string, r fx.Runnable) {
	d.runnables = append(d.runnables, fx.NamedRun(name, r))
}

func (d *Daemon) reading() sim.ReadingFunc {
	return sim.RandomReading(d.Config.Sim.PM25, d.Config.Sim.PM10)
}

func (d *Daemon) setupUART() error {
	c := d.Config
	if c.Device == DeviceSim {
		s := sim.NewSensor(d.reading())
		s.Interval = c.Sim.Interval
		s.Minute = c.Sim.Minute
		s.ReadTimeout = c.ReadTimeout
		d.Port = uart.NewPort(s)
		d.Port.Name = DeviceSim
		d.Port.ReadTimeout = c.ReadTimeout > 0
		d.add("sim", fx.RunFunc(s.Run))
	} else {
		port, err := uart.Open(uart.Config{Name: c.Device, Baud: c.Baud, ReadTimeout: c.ReadTimeout})
		if err != nil {
			return err
		}
		d.Port = port
	}
	if c.FrameTimeout > 0 {
		d.Port.FrameTimeout = c.FrameTimeout
	}
	d.closers = append(d.closers, d.Port)
	d.add("uart", d.Port)

	d.Sensor = sds011.NewUARTSensor(d.Port)
	session := d.Sensor.Session()
	session.CommandTimeout = c.CommandTimeout
	session.WakeTimeout = c.WakeTimeout
	return nil
}

func (d *Daemon) setupPWM() error {
	c := d.Config
	pm25Ch, pm10Ch := sds011.Channel(c.PM25Channel), sds011.Channel(c.PM10Channel)
	timer := sim.NewTimer(pm25Ch, pm10Ch)
	timer.Reading = d.reading()
	if c.Sim.Interval > 0 {
		timer.Period = c.Sim.Interval
	}
	d.Sensor = sds011.NewPWMSensor(timer, pm25Ch, pm10Ch)
	timer.Handler = d.Sensor.Sequencer()
	d.add("pwm", fx.RunFunc(timer.Run))
	return nil
}

func (d *Daemon) setupMQTT() error {
	c := d.Config
	q, err := mqtt.NewSensorQueue(c.MQTTBrokerURL, c.ID)
	if err != nil {
		return errors.Wrap(err, "mqtt")
	}
	d.Queue = q
	d.Reporter = mqtt.NewReporter(q, c.ID, d.Sensor)
	if c.ReportInterval > 0 {
		d.Reporter.Limiter = rate.NewLimiter(rate.Every(c.ReportInterval), 1)
	}
	q.OnConnect = func(*mqtt.Queue) { d.Reporter.PublishMeta() }
	handler := &mqtt.CommandHandler{
		Queue:     q,
		ID:        c.ID,
		Commander: d.Commander,
		Status:    func() *msgs.Status { return msgs.StatusOf(d.Sensor) },
	}
	d.add("mqtt-reporter", d.Reporter)
	d.add("mqtt-commands", handler)
	return nil
}

// Initialize initializes the sensor and applies the working period.
// A failed command is logged, the sensor keeps receiving.
func (d *Daemon) Initialize() {
	if err := d.Sensor.Initialize(); err != nil {
		glog.Warningf("initialize %s sensor: %v", d.Sensor.Mode(), err)
	}
	if p := d.Config.WorkingPeriod; p > 0 && d.Sensor.Mode() == sds011.ModeUART {
		if err := d.Commander.SetWorkingPeriod(uint8(p)); err != nil {
			glog.Warningf("set working period: %v", err)
		}
	}
}

// Run runs all components until ctx is done or any fails.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Close()
	if d.Queue != nil {
		token := d.Queue.Connect()
		if !token.WaitTimeout(DefaultConnectTimeout) {
			glog.Warningf("mqtt connect: %v", sds011.ErrTimeout)
		} else if err := token.Error(); err != nil {
			return errors.Wrap(err, "mqtt connect")
		}
	}
	runner := fx.NewRunnerWith(ctx).StopOnError()
	// the transport must be reading before commands are sent.
	runner.Go(d.runnables...)
	d.Initialize()
	return runner.Wait()
}

// Close releases the resources.
func (d *Daemon) Close() error {
	var errs fx.AggregatedError
	for _, c := range d.closers {
		errs.Add(c.Close())
	}
	if d.Queue != nil {
		errs.Add(d.Queue.Close())
	}
	d.closers, d.Queue = nil, nil
	return errs.Err()
}
