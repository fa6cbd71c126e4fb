package sfu

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// PionDataProducer forwards messages from one inbound data channel to every
// subscribed data consumer.
type PionDataProducer struct {
	id         string
	label      string
	protocol   string
	sctpParams json.RawMessage
	dc         *webrtc.DataChannel

	mu        sync.Mutex
	consumers []*PionDataConsumer
	closed    bool
}

func newDataProducer(dc *webrtc.DataChannel, opts DataProduceOptions) *PionDataProducer {
	dp := &PionDataProducer{
		id:         uuid.NewString(),
		label:      opts.Label,
		protocol:   opts.Protocol,
		sctpParams: opts.SCTPStreamParameters,
		dc:         dc,
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		dp.forward(msg)
	})
	return dp
}

func (dp *PionDataProducer) forward(msg webrtc.DataChannelMessage) {
	dp.mu.Lock()
	consumers := make([]*PionDataConsumer, len(dp.consumers))
	copy(consumers, dp.consumers)
	dp.mu.Unlock()

	for _, c := range consumers {
		var err error
		if msg.IsString {
			err = c.dc.SendText(string(msg.Data))
		} else {
			err = c.dc.Send(msg.Data)
		}
		if err != nil {
			log.Debug().Err(err).Str("data_producer_id", dp.id).Msg("data forward failed")
		}
	}
}

func (dp *PionDataProducer) attach(c *PionDataConsumer) {
	dp.mu.Lock()
	dp.consumers = append(dp.consumers, c)
	dp.mu.Unlock()
}

// ID returns the data producer id.
func (dp *PionDataProducer) ID() string { return dp.id }

// Label returns the data channel label.
func (dp *PionDataProducer) Label() string { return dp.label }

// Protocol returns the data channel protocol.
func (dp *PionDataProducer) Protocol() string { return dp.protocol }

// SCTPStreamParameters returns the publisher's SCTP stream parameters.
func (dp *PionDataProducer) SCTPStreamParameters() json.RawMessage { return dp.sctpParams }

// Close closes the underlying data channel.
func (dp *PionDataProducer) Close() error {
	dp.mu.Lock()
	if dp.closed {
		dp.mu.Unlock()
		return nil
	}
	dp.closed = true
	dp.mu.Unlock()
	return dp.dc.Close()
}

// PionDataConsumer is one subscription to a data producer.
type PionDataConsumer struct {
	id       string
	producer *PionDataProducer
	dc       *webrtc.DataChannel
}

func newDataConsumer(dc *webrtc.DataChannel, dp *PionDataProducer) *PionDataConsumer {
	return &PionDataConsumer{
		id:       uuid.NewString(),
		producer: dp,
		dc:       dc,
	}
}

// ID returns the data consumer id.
func (c *PionDataConsumer) ID() string { return c.id }

// Info returns the subscription parameters.
func (c *PionDataConsumer) Info() DataConsumerInfo {
	return DataConsumerInfo{
		ID:                   c.id,
		DataProducerID:       c.producer.ID(),
		SCTPStreamParameters: c.producer.SCTPStreamParameters(),
		Label:                c.producer.Label(),
		Protocol:             c.producer.Protocol(),
	}
}

// Close closes the underlying data channel.
func (c *PionDataConsumer) Close() error {
	return c.dc.Close()
}
