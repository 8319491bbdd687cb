// Package sh provides the interactive shell talking to sensor daemons.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/robotalks/sds011.go/pkg/msgs"
	"github.com/robotalks/sds011.go/pkg/mqtt"
)

// Config defines the connection options.
type Config struct {
	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// ID is the sensor to connect at start.
	ID       string
	ClientID string
	Timeout  time.Duration
}

var defaultConfig = Config{
	MQTTBrokerURL: "mqtt://localhost:1883/sds011",
	Timeout:       mqtt.DefaultCommandExpiration,
}

func init() {
	if val := os.Getenv("SDS011_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	defaultConfig.ID = os.Getenv("SDS011_ID")
	defaultConfig.ClientID = "sdscli-" + uuid.New().String()
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Sensor ID")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Command timeout")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *Config
	Queue  *mqtt.Queue
	Client *mqtt.Client
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

// DiscoverTimeout is how long to collect sensor meta.
var DiscoverTimeout = 500 * time.Millisecond

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Shell:       ishell.New(),
		Config:      conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Client == nil {
			c.Err(errors.New("not connected"))
			return
		}
		fn(c)
	}
}

// FormatMeta prints Meta into friendly string for display.
func FormatMeta(meta mqtt.Meta) string {
	str := fmt.Sprintf("%s: %s", meta.ID, meta.Mode)
	if meta.DeviceID != "" {
		str += " device " + meta.DeviceID
	}
	if meta.Since > 0 {
		str += " since " + time.Unix(meta.Since, 0).Format(time.RFC3339)
	}
	return str
}

// FormatReply formats a reply for display.
func FormatReply(msg msgs.Message, asJSON bool) (string, error) {
	if asJSON {
		out, err := json.Marshal(msg.Serializable())
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	if _, ok := msg.(*msgs.CommandOK); ok {
		return "OK", nil
	}
	return fmt.Sprintf("%s %s",
		reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
		msg.Serializable().String()), nil
}

// FormatReading formats a reading for display.
func FormatReading(id string, r *msgs.Reading) string {
	return fmt.Sprintf("%s #%d PM2.5=%d PM10=%d µg/m³", id, r.Sequence, r.Pm25, r.Pm10)
}

// DoCommand runs a command and prints the reply.
func DoCommand(c *ishell.Context, msg msgs.Message) error {
	s := ShellFrom(c)
	if s.Client == nil {
		err := errors.New("not connected")
		c.Err(err)
		return err
	}
	reply, err := s.Client.Do(context.Background(), msg)
	if err != nil {
		c.Err(err)
		return err
	}
	out, err := FormatReply(reply, s.OutputJSON)
	if err != nil {
		c.Err(err)
		return err
	}
	c.Println(out)
	return nil
}

// queue returns the connected Queue, connecting if needed.
func (s *Shell) queue() (*mqtt.Queue, error) {
	if s.Queue != nil {
		return s.Queue, nil
	}
	q, err := mqtt.NewQueueFromURL(s.Config.MQTTBrokerURL, s.Config.ClientID)
	if err != nil {
		return nil, err
	}
	token := q.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "mqtt connect")
	}
	s.Queue = q
	return q, nil
}

// Discover collects meta of online sensors.
func (s *Shell) Discover() ([]mqtt.Meta, error) {
	q, err := s.queue()
	if err != nil {
		return nil, err
	}
	var lock sync.Mutex
	found := make(map[string]mqtt.Meta)
	sub := q.Sub(mqtt.Topic("+", mqtt.TopicMeta), func(topic string, payload []byte) {
		var meta mqtt.Meta
		if len(payload) == 0 || json.Unmarshal(payload, &meta) != nil {
			return
		}
		lock.Lock()
		found[meta.ID] = meta
		lock.Unlock()
	})
	time.Sleep(DiscoverTimeout)
	sub.Close()
	lock.Lock()
	defer lock.Unlock()
	list := make([]mqtt.Meta, 0, len(found))
	for _, meta := range found {
		list = append(list, meta)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Connect selects the sensor to talk to.
func (s *Shell) Connect(id string) error {
	q, err := s.queue()
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Client = mqtt.NewClient(q, id)
	s.Client.Expiration = s.Config.Timeout
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", id))
	return nil
}

// Disconnect releases the current sensor.
func (s *Shell) Disconnect() {
	if s.Client != nil {
		s.Client.Close()
		s.Client = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if id := s.Config.ID; id != "" {
		if err := s.Connect(id); err != nil {
			log.Fatalf("connect %q failed: %v", id, err)
		}
	}
	defer func() {
		if s.Queue != nil {
			s.Queue.Close()
		}
	}()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd lists online sensors.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			list, err := s.Discover()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				out, err := json.Marshal(list)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(list) == 0 {
				c.Println("No sensors found")
				return
			}
			for _, meta := range list {
				c.Println(FormatMeta(meta))
			}
		},
	}

	// ConnectCmd connects a sensor.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[ID]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var id string
			if len(c.Args) > 0 {
				id = c.Args[0]
			} else {
				list, err := s.Discover()
				if err != nil {
					c.Err(err)
					return
				}
				switch {
				case len(list) == 0:
					c.Err(errors.New("no sensor discovered"))
					return
				case len(list) > 1 && !s.Interactive:
					c.Err(errors.New("more than 1 sensors discovered in non-interactive mode"))
					return
				case len(list) > 1:
					items := make([]string, len(list))
					for n, meta := range list {
						items[n] = FormatMeta(meta)
					}
					id = list[s.Shell.MultiChoice(items, "Which one to connect?")].ID
				default:
					id = list[0].ID
				}
			}
			if err := s.Connect(id); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current sensor.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(NewConfig()).Run(flag.Args()...)
}
