package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/robotalks/sds011.go/pkg/msgs"
)

// DefaultCommandExpiration is the default expiration expecting a reply.
const DefaultCommandExpiration = time.Second

// Client talks to a sensor daemon over a Queue.
type Client struct {
	Queue      *Queue
	ID         string
	Expiration time.Duration

	seq     uint32
	pending map[uint32]chan msgs.Message
	sub     *Subscription
	lock    sync.Mutex
}

// NewClient creates a Client and subscribes the reply topic.
func NewClient(q *Queue, id string) *Client {
	c := &Client{
		Queue:      q,
		ID:         id,
		Expiration: DefaultCommandExpiration,
		pending:    make(map[uint32]chan msgs.Message),
	}
	c.sub = q.SubTyped(Topic(id, TopicReply), c.handleReply)
	return c
}

// Close implements io.Closer.
func (c *Client) Close() error {
	return c.sub.Close()
}

// Do sends a command and waits for the reply. A CommandErr reply is
// returned as the error.
func (c *Client) Do(ctx context.Context, msg msgs.Message) (msgs.Message, error) {
	c.lock.Lock()
	c.seq++
	if c.seq == 0 {
		c.seq++
	}
	seq, replyCh := c.seq, make(chan msgs.Message, 1)
	c.pending[seq] = replyCh
	c.lock.Unlock()

	defer func() {
		c.lock.Lock()
		delete(c.pending, seq)
		c.lock.Unlock()
	}()

	if err := c.Queue.PubMsg(Topic(c.ID, TopicCmd), msg, seq); err != nil {
		return nil, err
	}

	expire := time.NewTimer(c.Expiration)
	defer expire.Stop()
	select {
	case reply := <-replyCh:
		if cmdErr, ok := reply.(*msgs.CommandErr); ok {
			return reply, cmdErr
		}
		return reply, nil
	case <-expire.C:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) handleReply(topic string, typed *msgs.Typed) {
	if !typed.IsReply() {
		return
	}
	c.lock.Lock()
	replyCh := c.pending[typed.Sequence]
	delete(c.pending, typed.Sequence)
	c.lock.Unlock()
	if replyCh == nil {
		return
	}
	msg, err := typed.Decode()
	if err != nil {
		msg = msgs.NewCommandErr(err)
	}
	replyCh <- msg
}

// Watch calls h with readings of the sensor. id may be "+" to watch all
// sensors under the prefix.
func (c *Client) Watch(id string, h func(id string, reading *msgs.Reading)) *Subscription {
	return c.Queue.SubTyped(Topic(id, TopicReading), func(topic string, typed *msgs.Typed) {
		msg, err := typed.Decode()
		if err != nil {
			return
		}
		if reading, ok := msg.(*msgs.Reading); ok {
			h(topic[:len(topic)-len(TopicReading)-1], reading)
		}
	})
}
