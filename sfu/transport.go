package sfu

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// sessionDescription is the opaque payload exchanged in transport parameters.
type sessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// PionTransport wraps a single peer connection. Inbound tracks are matched to
// pending producers by kind; outbound tracks are added on consume.
type PionTransport struct {
	id     string
	router *PionRouter
	pc     *webrtc.PeerConnection

	mu       sync.Mutex
	offer    string
	waiting  map[Kind][]*PionProducer
	unbound  map[Kind][]*webrtc.TrackRemote
	closed   bool
}

func newTransport(r *PionRouter) (*PionTransport, error) {
	pc, err := r.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: r.config.ICEURLs}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	t := &PionTransport{
		id:      shortuuid.New(),
		router:  r,
		pc:      pc,
		waiting: make(map[Kind][]*PionProducer),
		unbound: make(map[Kind][]*webrtc.TrackRemote),
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		t.deliverTrack(remote)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug().Str("transport_id", t.id).Str("state", state.String()).Msg("transport state changed")
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}
	t.offer = offer.SDP
	return t, nil
}

// ID returns the transport id.
func (t *PionTransport) ID() string {
	return t.id
}

// Params returns the connection parameters the remote side needs.
func (t *PionTransport) Params() TransportParams {
	raw, err := json.Marshal(sessionDescription{Type: "offer", SDP: t.offer})
	if err != nil {
		log.Error().Err(err).Str("transport_id", t.id).Msg("failed to marshal transport params")
	}
	return TransportParams{ID: t.id, Parameters: raw}
}

// Connect finalizes the transport with the remote side's answer.
func (t *PionTransport) Connect(_ context.Context, params ConnectParams) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.mu.Unlock()

	var desc sessionDescription
	if err := json.Unmarshal(params.Parameters, &desc); err != nil {
		return fmt.Errorf("failed to parse connect parameters: %w", err)
	}
	if err := t.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  desc.SDP,
	}); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// Produce registers a publication on this transport. The producer's local
// track is created immediately; the inbound remote track binds to it as soon
// as media arrives.
func (t *PionTransport) Produce(_ context.Context, opts ProduceOptions) (Producer, error) {
	if !opts.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}

	producer, err := newProducer(opts)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}

	// Bind to a track that arrived before the producer was announced,
	// otherwise queue until OnTrack fires.
	if tracks := t.unbound[opts.Kind]; len(tracks) > 0 {
		remote := tracks[0]
		t.unbound[opts.Kind] = tracks[1:]
		producer.bind(remote)
	} else {
		t.waiting[opts.Kind] = append(t.waiting[opts.Kind], producer)
	}
	t.mu.Unlock()

	t.router.registerProducer(producer)
	return producer, nil
}

func (t *PionTransport) deliverTrack(remote *webrtc.TrackRemote) {
	kind := KindVideo
	if remote.Kind() == webrtc.RTPCodecTypeAudio {
		kind = KindAudio
	}

	t.mu.Lock()
	if producers := t.waiting[kind]; len(producers) > 0 {
		producer := producers[0]
		t.waiting[kind] = producers[1:]
		t.mu.Unlock()
		producer.bind(remote)
		return
	}
	t.unbound[kind] = append(t.unbound[kind], remote)
	t.mu.Unlock()
}

// ProduceData registers a data-channel publication on this transport.
func (t *PionTransport) ProduceData(_ context.Context, opts DataProduceOptions) (DataProducer, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	init := &webrtc.DataChannelInit{}
	if opts.Protocol != "" {
		init.Protocol = &opts.Protocol
	}
	dc, err := t.pc.CreateDataChannel(opts.Label, init)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	dp := newDataProducer(dc, opts)
	t.router.registerDataProducer(dp)
	return dp, nil
}

// Consume subscribes this transport to a producer published anywhere in the
// room. Screen-share producers are discoverable through the same path.
func (t *PionTransport) Consume(_ context.Context, producerID string, rtpCapabilities json.RawMessage) (Consumer, error) {
	producer, ok := t.router.producer(producerID)
	if !ok {
		return nil, ErrProducerNotFound
	}
	if !t.router.CanConsume(producerID, rtpCapabilities) {
		return nil, ErrCannotConsume
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	sender, err := t.pc.AddTrack(producer.local)
	if err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	// Drain RTCP so interceptors keep running.
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
				return
			}
		}
	}()

	consumer := newConsumer(producer)
	producer.attachConsumer(consumer)
	return consumer, nil
}

// ConsumeData subscribes this transport to a data producer in the room.
func (t *PionTransport) ConsumeData(_ context.Context, dataProducerID string) (DataConsumer, error) {
	dp, ok := t.router.dataProducer(dataProducerID)
	if !ok {
		return nil, ErrProducerNotFound
	}

	init := &webrtc.DataChannelInit{}
	if proto := dp.Protocol(); proto != "" {
		init.Protocol = &proto
	}
	dc, err := t.pc.CreateDataChannel(dp.Label(), init)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	consumer := newDataConsumer(dc, dp)
	dp.attach(consumer)
	return consumer, nil
}

// Close closes the underlying peer connection. Producers bound to this
// transport stop when their remote tracks error out.
func (t *PionTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.pc.Close()
}
