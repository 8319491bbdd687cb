// Package sensor provides shell commands for sensor daemons.
package sensor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/sds011.go/pkg/cli/sh"
	"github.com/robotalks/sds011.go/pkg/msgs"
	"github.com/robotalks/sds011.go/pkg/sds011"
)

// DefaultWatchDuration is used when watch has no argument.
const DefaultWatchDuration = 10 * time.Second

// ParsePeriod parses a working period in minutes.
func ParsePeriod(arg string) (uint32, error) {
	val, err := strconv.ParseUint(arg, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid PERIOD: %v", err)
	}
	if val > uint64(sds011.MaxWorkingPeriod) {
		return 0, fmt.Errorf("PERIOD must be 0-%d", sds011.MaxWorkingPeriod)
	}
	return uint32(val), nil
}

var (
	// PeriodCmd sets the working period.
	PeriodCmd = ishell.Cmd{
		Name:    "period",
		Aliases: []string{"p"},
		Help:    "MINUTES (0 for continuous)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("PERIOD required"))
				return
			}
			period, err := ParsePeriod(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, &msgs.SetWorkingPeriod{Period: period})
		}),
	}

	// SleepCmd puts the sensor to sleep.
	SleepCmd = ishell.Cmd{
		Name: "sleep",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.SetSleepMode{})
		}),
	}

	// WakeCmd wakes up the sensor.
	WakeCmd = ishell.Cmd{
		Name: "wake",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.WakeUp{})
		}),
	}

	// StatusCmd queries the status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.StatusQuery{})
		}),
	}

	// ReadingCmd prints the latest reading.
	ReadingCmd = ishell.Cmd{
		Name:    "reading",
		Aliases: []string{"r"},
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			reply, err := s.Client.Do(context.Background(), &msgs.StatusQuery{})
			if err != nil {
				c.Err(err)
				return
			}
			status, ok := reply.(*msgs.Status)
			if !ok || status.Reading == nil {
				c.Err(fmt.Errorf("no reading"))
				return
			}
			if s.OutputJSON {
				out, err := sh.FormatReply(status.Reading, true)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(out)
				return
			}
			c.Println(sh.FormatReading(s.Client.ID, status.Reading))
		}),
	}

	// WatchCmd prints readings as they are reported.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[SECONDS]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			dur := DefaultWatchDuration
			if len(c.Args) > 0 {
				secs, err := strconv.Atoi(c.Args[0])
				if err != nil || secs <= 0 {
					c.Err(fmt.Errorf("invalid SECONDS: %s", c.Args[0]))
					return
				}
				dur = time.Duration(secs) * time.Second
			}
			s := sh.ShellFrom(c)
			sub := s.Client.Watch(s.Client.ID, func(id string, r *msgs.Reading) {
				c.Println(sh.FormatReading(id, r))
			})
			time.Sleep(dur)
			sub.Close()
		}),
	}
)

func init() {
	sh.AddCmds(
		&PeriodCmd,
		&SleepCmd,
		&WakeCmd,
		&StatusCmd,
		&ReadingCmd,
		&WatchCmd,
	)
}
