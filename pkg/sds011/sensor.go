package sds011

// Mode is the link the sensor is read from.
type Mode int

// Modes
const (
	ModeUART Mode = iota
	ModePWM
)

func (m Mode) String() string {
	if m == ModePWM {
		return "pwm"
	}
	return "uart"
}

// Source produces measurements into a Store.
type Source interface {
	Mode() Mode
	Initialize() error
}

// Commander sends commands to the sensor.
type Commander interface {
	SetWorkingPeriod(period uint8) error
	SetSleepMode() error
	WakeUp() error
}

type uartSource struct {
	*Session
	transport Transport
}

func (s *uartSource) Mode() Mode        { return ModeUART }
func (s *uartSource) Initialize() error { return s.Session.Initialize(s.transport) }

type pwmSource struct {
	*EdgeSequencer
}

func (s *pwmSource) Mode() Mode { return ModePWM }

// Sensor is a driver instance bound to one link.
type Sensor struct {
	Store  *Store
	Source Source
}

// NewUARTSensor creates a Sensor read over t.
func NewUARTSensor(t Transport) *Sensor {
	store := &Store{}
	return &Sensor{
		Store:  store,
		Source: &uartSource{Session: NewSession(store), transport: t},
	}
}

// NewPWMSensor creates a Sensor decoding pulses captured by timer.
func NewPWMSensor(timer CaptureTimer, pm25Ch, pm10Ch Channel) *Sensor {
	store := &Store{}
	return &Sensor{
		Store:  store,
		Source: &pwmSource{EdgeSequencer: NewEdgeSequencer(store, timer, pm25Ch, pm10Ch)},
	}
}

// Mode returns the link mode.
func (s *Sensor) Mode() Mode {
	return s.Source.Mode()
}

// Initialize initializes the source.
func (s *Sensor) Initialize() error {
	return s.Source.Initialize()
}

// Session returns the serial session in UART mode, nil otherwise.
func (s *Sensor) Session() *Session {
	if src, ok := s.Source.(*uartSource); ok {
		return src.Session
	}
	return nil
}

// Sequencer returns the edge sequencer in PWM mode, nil otherwise.
func (s *Sensor) Sequencer() *EdgeSequencer {
	if src, ok := s.Source.(*pwmSource); ok {
		return src.EdgeSequencer
	}
	return nil
}

// GetPm2_5 returns the latest PM2.5 value.
func (s *Sensor) GetPm2_5() uint16 {
	return s.Store.PM25()
}

// GetPm10 returns the latest PM10 value.
func (s *Sensor) GetPm10() uint16 {
	return s.Store.PM10()
}

// Measurement returns both latest values.
func (s *Sensor) Measurement() Measurement {
	return s.Store.Load()
}

func (s *Sensor) commander() (Commander, error) {
	if c, ok := s.Source.(Commander); ok {
		return c, nil
	}
	return nil, ErrUnsupported
}

// SetWorkingPeriod implements Commander.
func (s *Sensor) SetWorkingPeriod(period uint8) error {
	c, err := s.commander()
	if err != nil {
		return err
	}
	return c.SetWorkingPeriod(period)
}

// SetSleepMode implements Commander.
func (s *Sensor) SetSleepMode() error {
	c, err := s.commander()
	if err != nil {
		return err
	}
	return c.SetSleepMode()
}

// WakeUp implements Commander.
func (s *Sensor) WakeUp() error {
	c, err := s.commander()
	if err != nil {
		return err
	}
	return c.WakeUp()
}
