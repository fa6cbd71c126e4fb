// Package sfu defines the capability boundary to the selective forwarding
// unit. Routing contexts, transports, producers and consumers are opaque
// handles; the signaling layer orchestrates them without touching media.
package sfu

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pion/rtp"
)

// Kind is the media kind of a producer or consumer.
type Kind string

// Media kinds.
const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Valid reports whether k is a known media kind.
func (k Kind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

var (
	// ErrProducerNotFound is returned when a producer id is unknown to the router.
	ErrProducerNotFound = errors.New("producer not found")

	// ErrCannotConsume is returned when capabilities are incompatible with the router.
	ErrCannotConsume = errors.New("cannot consume")

	// ErrTransportClosed is returned for operations on a closed transport.
	ErrTransportClosed = errors.New("transport closed")

	// ErrInvalidKind is returned when a produce request carries an unknown kind.
	ErrInvalidKind = errors.New("invalid media kind")
)

// TransportParams carries what the remote side needs to establish the path.
type TransportParams struct {
	ID         string          `json:"id"`
	Parameters json.RawMessage `json:"parameters"`
}

// ConnectParams carries the remote side's answer for finalizing a transport.
type ConnectParams struct {
	Parameters json.RawMessage `json:"parameters"`
}

// Encoding is a single simulcast layer of a publication.
type Encoding struct {
	RID                   string `json:"rid,omitempty"`
	MaxBitrate            int    `json:"maxBitrate,omitempty"`
	MaxFramerate          int    `json:"maxFramerate,omitempty"`
	Priority              string `json:"priority,omitempty"`
	ScalabilityMode       string `json:"scalabilityMode,omitempty"`
	ScaleResolutionDownBy int    `json:"scaleResolutionDownBy,omitempty"`
}

// ProduceOptions parameterizes a new publication.
type ProduceOptions struct {
	Kind          Kind
	RTPParameters json.RawMessage
	Encodings     []Encoding
	AppData       json.RawMessage
	ScreenShare   bool
}

// ConsumerInfo is everything a subscriber needs to receive a publication.
type ConsumerInfo struct {
	ID             string
	ProducerID     string
	Kind           Kind
	RTPParameters  json.RawMessage
	Type           string
	ProducerPaused bool
	AppData        json.RawMessage
}

// DataProduceOptions parameterizes a new data-channel publication.
type DataProduceOptions struct {
	SCTPStreamParameters json.RawMessage
	Label                string
	Protocol             string
}

// DataConsumerInfo is everything a subscriber needs to receive a data channel.
type DataConsumerInfo struct {
	ID                   string
	DataProducerID       string
	SCTPStreamParameters json.RawMessage
	Label                string
	Protocol             string
}

// Worker creates per-room routing contexts.
//
//go:generate mockgen -destination=mock_sfu.go -package=sfu . Worker,Router,Transport,Producer,Consumer,DataProducer,DataConsumer
type Worker interface {
	CreateRouter(ctx context.Context) (Router, error)
	Close() error
}

// Router is the per-room routing capability scoping all transports,
// producers and consumers created within one room.
type Router interface {
	RTPCapabilities() json.RawMessage
	CanConsume(producerID string, rtpCapabilities json.RawMessage) bool
	CreateTransport(ctx context.Context) (Transport, error)
	Close() error
}

// Transport is a negotiated bidirectional path between one endpoint and the
// SFU, over which produce and consume operations occur.
type Transport interface {
	ID() string
	Params() TransportParams
	Connect(ctx context.Context, params ConnectParams) error
	Produce(ctx context.Context, opts ProduceOptions) (Producer, error)
	ProduceData(ctx context.Context, opts DataProduceOptions) (DataProducer, error)
	Consume(ctx context.Context, producerID string, rtpCapabilities json.RawMessage) (Consumer, error)
	ConsumeData(ctx context.Context, dataProducerID string) (DataConsumer, error)
	Close() error
}

// Producer is one peer's outgoing media track registered with the SFU.
type Producer interface {
	ID() string
	Kind() Kind
	AppData() json.RawMessage
	RTPParameters() json.RawMessage
	ScreenShare() bool
	Close() error
	OnClose(fn func())
}

// Consumer is one peer's incoming subscription to a producer. OnRTP taps the
// forwarded packet stream; the recorder uses this to feed its encoder.
type Consumer interface {
	ID() string
	Info() ConsumerInfo
	OnRTP(fn func(pkt *rtp.Packet))
	Close() error
	OnClose(fn func())
}

// DataProducer is one peer's outgoing data channel registered with the SFU.
type DataProducer interface {
	ID() string
	Label() string
	Protocol() string
	SCTPStreamParameters() json.RawMessage
	Close() error
}

// DataConsumer is one peer's incoming subscription to a data producer.
type DataConsumer interface {
	ID() string
	Info() DataConsumerInfo
	Close() error
}
