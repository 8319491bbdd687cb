// Package daemon wires a sensor with its transports and services.
package daemon

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/sds011.go/pkg/sds011"
)

// DeviceSim selects the simulated sensor instead of a serial device.
const DeviceSim = "sim"

// SimConfig configures the simulated sensor.
type SimConfig struct {
	// PM25 and PM10 are the base raw values in 0.1 µg/m³.
	PM25     uint16        `yaml:"pm25"`
	PM10     uint16        `yaml:"pm10"`
	Interval time.Duration `yaml:"interval"`
	Minute   time.Duration `yaml:"minute"`
}

// Config defines daemon options.
type Config struct {
	// ID names the sensor in MQTT topics.
	ID string `yaml:"id"`
	// Mode is uart or pwm.
	Mode string `yaml:"mode"`
	// Device is the serial device, or "sim".
	Device         string        `yaml:"device"`
	Baud           int           `yaml:"baud"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	FrameTimeout   time.Duration `yaml:"frame_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	WakeTimeout    time.Duration `yaml:"wake_timeout"`
	// WorkingPeriod is applied after initialization when positive.
	WorkingPeriod int `yaml:"working_period"`

	PM25Channel uint32 `yaml:"pm25_channel"`
	PM10Channel uint32 `yaml:"pm10_channel"`

	// MQTTBrokerURL specifies the MQTT broker to use, empty disables MQTT.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL  string        `yaml:"mqtt"`
	ReportInterval time.Duration `yaml:"report_interval"`

	// HTTPAddr is the listen address of the HTTP API, empty disables it.
	HTTPAddr string `yaml:"http"`

	Sim SimConfig `yaml:"sim"`
}

var (
	defaultConfig = Config{
		Mode:           sds011.ModeUART.String(),
		Device:         "/dev/ttyUSB0",
		Baud:           9600,
		ReadTimeout:    500 * time.Millisecond,
		FrameTimeout:   100 * time.Millisecond,
		CommandTimeout: sds011.DefaultCommandTimeout,
		WakeTimeout:    sds011.DefaultWakeTimeout,
		PM25Channel:    1,
		PM10Channel:    2,
		ReportInterval: time.Second,
		HTTPAddr:       ":8011",
		Sim: SimConfig{
			PM25:     125,
			PM10:     210,
			Interval: time.Second,
			Minute:   time.Minute,
		},
	}
	configFile string
)

func init() {
	if val := os.Getenv("SDS011_DEVICE"); val != "" {
		defaultConfig.Device = val
	}
	if val := os.Getenv("SDS011_MODE"); val != "" {
		defaultConfig.Mode = val
	}
	if val := os.Getenv("SDS011_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("SDS011_HTTP_ADDR"); val != "" {
		defaultConfig.HTTPAddr = val
	}
	if val := os.Getenv("SDS011_ID"); val != "" {
		defaultConfig.ID = val
	} else {
		defaultConfig.ID = MachineID()
	}
}

// MachineID returns an ID derived from the machine, or "sds011" if it
// can't be retrieved.
func MachineID() string {
	id, err := machineid.ProtectedID("sds011")
	if err != nil {
		return "sds011"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "YAML config file, values override flags")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Sensor ID")
	flag.StringVar(&defaultConfig.Mode, "mode", defaultConfig.Mode, "Sensor link: uart or pwm")
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Serial device, or sim")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate")
	flag.DurationVar(&defaultConfig.ReadTimeout, "read-timeout", defaultConfig.ReadTimeout, "Serial read timeout")
	flag.DurationVar(&defaultConfig.CommandTimeout, "command-timeout", defaultConfig.CommandTimeout, "Command transmit timeout")
	flag.IntVar(&defaultConfig.WorkingPeriod, "period", defaultConfig.WorkingPeriod, "Working period in minutes, 0 for continuous")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.DurationVar(&defaultConfig.ReportInterval, "report-interval", defaultConfig.ReportInterval, "Minimum interval between reports")
	flag.StringVar(&defaultConfig.HTTPAddr, "http", defaultConfig.HTTPAddr, "HTTP listen address")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config from defaults, environment, flags and the
// config file if specified.
func NewConfig() *Config {
	conf := defaultConfig
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			log.Fatalln(err)
		}
	}
	return &conf
}

// LoadFile overlays values from a YAML file.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	return c.Load(data)
}

// Load overlays values from YAML.
func (c *Config) Load(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "parse config")
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("sensor id must be specified")
	}
	switch c.Mode {
	case sds011.ModeUART.String():
	case sds011.ModePWM.String():
		if c.Device != DeviceSim {
			return errors.Errorf("pwm mode needs a capture timer, only %q is available", DeviceSim)
		}
		if c.PM25Channel == c.PM10Channel {
			return errors.New("pm25 and pm10 channels must differ")
		}
	default:
		return errors.Errorf("unknown mode %q", c.Mode)
	}
	if c.WorkingPeriod < 0 || c.WorkingPeriod > int(sds011.MaxWorkingPeriod) {
		return errors.Errorf("working period %d out of range 0-%d", c.WorkingPeriod, sds011.MaxWorkingPeriod)
	}
	return nil
}
