package mqtt

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/sds011.go/pkg/msgs"
	"github.com/robotalks/sds011.go/pkg/sds011"
)

// StatusFunc builds the reply for StatusQuery.
type StatusFunc func() *msgs.Status

// CommandHandler executes commands received on <id>/cmd and replies on
// <id>/reply.
type CommandHandler struct {
	Queue     *Queue
	ID        string
	Commander sds011.Commander
	Status    StatusFunc
}

// Run implements Runnable.
func (h *CommandHandler) Run(ctx context.Context) error {
	sub := h.Queue.SubTyped(Topic(h.ID, TopicCmd), h.handle)
	<-ctx.Done()
	sub.Close()
	return nil
}

func (h *CommandHandler) handle(topic string, typed *msgs.Typed) {
	reply := h.Execute(typed)
	if err := h.Queue.PubMsg(Topic(h.ID, TopicReply), reply, typed.Sequence); err != nil {
		glog.Errorf("publish reply: %v", err)
	}
}

// Execute runs the command and returns the reply.
func (h *CommandHandler) Execute(typed *msgs.Typed) msgs.Message {
	if !typed.IsCommand() {
		return msgs.NewCommandErr(msgs.ErrUnsupportedCommand)
	}
	msg, err := typed.Decode()
	if err != nil {
		return msgs.NewCommandErr(err)
	}
	glog.V(2).Infof("command %d: %T", typed.Sequence, msg)
	switch m := msg.(type) {
	case *msgs.SetWorkingPeriod:
		period := m.Period
		if period > uint32(sds011.MaxWorkingPeriod) {
			period = uint32(sds011.MaxWorkingPeriod)
		}
		err = h.Commander.SetWorkingPeriod(uint8(period))
	case *msgs.SetSleepMode:
		err = h.Commander.SetSleepMode()
	case *msgs.WakeUp:
		err = h.Commander.WakeUp()
	case *msgs.StatusQuery:
		if h.Status != nil {
			return h.Status()
		}
		err = msgs.ErrUnsupportedCommand
	default:
		err = msgs.ErrUnsupportedCommand
	}
	if err != nil {
		reply := msgs.NewCommandErr(err)
		reply.Status = sds011.StatusOf(err).String()
		return reply
	}
	return &msgs.CommandOK{}
}
