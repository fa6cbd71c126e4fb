package sfu

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// PionProducer forwards one inbound track to a local track subscribers are
// attached to, fanning each packet out to registered taps.
type PionProducer struct {
	id          string
	kind        Kind
	appData     json.RawMessage
	rtpParams   json.RawMessage
	encodings   []Encoding
	screenShare bool

	local *webrtc.TrackLocalStaticRTP

	mu        sync.Mutex
	consumers []*PionConsumer
	closed    bool
	closeFns  []func()
}

func newProducer(opts ProduceOptions) (*PionProducer, error) {
	id := uuid.NewString()
	local, err := webrtc.NewTrackLocalStaticRTP(codecCapability(opts.Kind), string(opts.Kind), id)
	if err != nil {
		return nil, fmt.Errorf("failed to create local track: %w", err)
	}
	return &PionProducer{
		id:          id,
		kind:        opts.Kind,
		appData:     opts.AppData,
		rtpParams:   opts.RTPParameters,
		encodings:   opts.Encodings,
		screenShare: opts.ScreenShare,
		local:       local,
	}, nil
}

// bind starts the forward loop from the remote track.
func (p *PionProducer) bind(remote *webrtc.TrackRemote) {
	go func() {
		for {
			pkt, _, err := remote.ReadRTP()
			if err != nil {
				log.Debug().Err(err).Str("producer_id", p.id).Msg("producer read loop ended")
				_ = p.Close()
				return
			}
			if err := p.local.WriteRTP(pkt); err != nil {
				log.Debug().Err(err).Str("producer_id", p.id).Msg("producer write failed")
			}
			p.fanOut(pkt)
		}
	}()
}

func (p *PionProducer) fanOut(pkt *rtp.Packet) {
	p.mu.Lock()
	consumers := make([]*PionConsumer, len(p.consumers))
	copy(consumers, p.consumers)
	p.mu.Unlock()

	for _, c := range consumers {
		c.deliver(pkt)
	}
}

func (p *PionProducer) attachConsumer(c *PionConsumer) {
	p.mu.Lock()
	alreadyClosed := p.closed
	if !alreadyClosed {
		p.consumers = append(p.consumers, c)
	}
	p.mu.Unlock()
	if alreadyClosed {
		_ = c.Close()
	}
}

// ID returns the producer id.
func (p *PionProducer) ID() string { return p.id }

// Kind returns the media kind.
func (p *PionProducer) Kind() Kind { return p.kind }

// AppData returns the opaque application data attached at produce time.
func (p *PionProducer) AppData() json.RawMessage { return p.appData }

// RTPParameters returns the publisher's RTP parameters.
func (p *PionProducer) RTPParameters() json.RawMessage { return p.rtpParams }

// ScreenShare reports whether this is a screen-share publication.
func (p *PionProducer) ScreenShare() bool { return p.screenShare }

// Close closes the producer and cascades to every attached consumer.
func (p *PionProducer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	consumers := p.consumers
	p.consumers = nil
	closeFns := p.closeFns
	p.closeFns = nil
	p.mu.Unlock()

	for _, c := range consumers {
		_ = c.Close()
	}
	for _, fn := range closeFns {
		fn()
	}
	return nil
}

// OnClose registers a close observer. Observers registered after close run
// immediately.
func (p *PionProducer) OnClose(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.closeFns = append(p.closeFns, fn)
	p.mu.Unlock()
}
