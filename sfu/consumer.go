package sfu

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtp"
)

// PionConsumer is one subscription to a producer. Packets forwarded by the
// producer are delivered to the optional RTP tap.
type PionConsumer struct {
	id       string
	producer *PionProducer

	mu       sync.Mutex
	tap      func(pkt *rtp.Packet)
	closed   bool
	closeFns []func()
}

func newConsumer(p *PionProducer) *PionConsumer {
	return &PionConsumer{
		id:       uuid.NewString(),
		producer: p,
	}
}

// ID returns the consumer id.
func (c *PionConsumer) ID() string { return c.id }

// Info returns the subscription parameters.
func (c *PionConsumer) Info() ConsumerInfo {
	return ConsumerInfo{
		ID:            c.id,
		ProducerID:    c.producer.ID(),
		Kind:          c.producer.Kind(),
		RTPParameters: c.producer.RTPParameters(),
		Type:          "simple",
		AppData:       c.producer.AppData(),
	}
}

// OnRTP registers a tap receiving every packet forwarded to this consumer.
func (c *PionConsumer) OnRTP(fn func(pkt *rtp.Packet)) {
	c.mu.Lock()
	c.tap = fn
	c.mu.Unlock()
}

func (c *PionConsumer) deliver(pkt *rtp.Packet) {
	c.mu.Lock()
	tap := c.tap
	closed := c.closed
	c.mu.Unlock()
	if closed || tap == nil {
		return
	}
	tap(pkt)
}

// Close closes the consumer and runs its close observers.
func (c *PionConsumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	closeFns := c.closeFns
	c.closeFns = nil
	c.tap = nil
	c.mu.Unlock()

	for _, fn := range closeFns {
		fn()
	}
	return nil
}

// OnClose registers a close observer. The recorder uses this to stop a
// session when the underlying publication goes away.
func (c *PionConsumer) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.closeFns = append(c.closeFns, fn)
	c.mu.Unlock()
}
