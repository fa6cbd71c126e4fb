package sfu

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// PionRouter is the per-room routing context. It tracks every producer and
// data producer published in the room so transports can consume them by id.
type PionRouter struct {
	api    *webrtc.API
	config Config

	mu            sync.RWMutex
	transports    []*PionTransport
	producers     map[string]*PionProducer
	dataProducers map[string]*PionDataProducer
	closed        bool
}

func newRouter(api *webrtc.API, config Config) *PionRouter {
	return &PionRouter{
		api:           api,
		config:        config,
		producers:     make(map[string]*PionProducer),
		dataProducers: make(map[string]*PionDataProducer),
	}
}

type capCodec struct {
	MimeType  string `json:"mimeType"`
	ClockRate uint32 `json:"clockRate"`
	Channels  uint16 `json:"channels,omitempty"`
}

type capabilities struct {
	Codecs []capCodec `json:"codecs"`
}

// RTPCapabilities returns the router's codec set.
func (r *PionRouter) RTPCapabilities() json.RawMessage {
	caps := capabilities{}
	for _, c := range mediaCodecs {
		caps.Codecs = append(caps.Codecs, capCodec{
			MimeType:  c.RTPCodecCapability.MimeType,
			ClockRate: c.RTPCodecCapability.ClockRate,
			Channels:  c.RTPCodecCapability.Channels,
		})
	}
	raw, err := json.Marshal(caps)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal router capabilities")
		return nil
	}
	return raw
}

// CanConsume reports whether a subscriber with the given capabilities can
// receive the producer. The producer must exist in this room and the
// capabilities must advertise a codec matching the producer's kind.
func (r *PionRouter) CanConsume(producerID string, rtpCapabilities json.RawMessage) bool {
	r.mu.RLock()
	producer, ok := r.producers[producerID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	var caps capabilities
	if err := json.Unmarshal(rtpCapabilities, &caps); err != nil {
		return false
	}
	want := codecCapability(producer.Kind()).MimeType
	for _, codec := range caps.Codecs {
		if strings.EqualFold(codec.MimeType, want) {
			return true
		}
	}
	return false
}

// CreateTransport allocates a new transport bound to this router.
func (r *PionRouter) CreateTransport(_ context.Context) (Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrTransportClosed
	}
	t, err := newTransport(r)
	if err != nil {
		return nil, err
	}
	r.transports = append(r.transports, t)
	return t, nil
}

// Close closes every transport created under this router.
func (r *PionRouter) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	transports := r.transports
	r.transports = nil
	r.mu.Unlock()

	for _, t := range transports {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Str("transport_id", t.ID()).Msg("failed to close transport")
		}
	}
	return nil
}

func (r *PionRouter) registerProducer(p *PionProducer) {
	r.mu.Lock()
	r.producers[p.ID()] = p
	r.mu.Unlock()
	p.OnClose(func() {
		r.mu.Lock()
		delete(r.producers, p.ID())
		r.mu.Unlock()
	})
}

func (r *PionRouter) producer(id string) (*PionProducer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.producers[id]
	return p, ok
}

func (r *PionRouter) registerDataProducer(dp *PionDataProducer) {
	r.mu.Lock()
	r.dataProducers[dp.ID()] = dp
	r.mu.Unlock()
}

func (r *PionRouter) dataProducer(id string) (*PionDataProducer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dp, ok := r.dataProducers[id]
	return dp, ok
}
