package sfu

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// PionWorker is the in-process SFU. It builds a configured webrtc API once
// and hands out routers scoped to single rooms.
type PionWorker struct {
	api    *webrtc.API
	config Config

	mu      sync.Mutex
	routers []*PionRouter
	closed  bool
}

// NewWorker creates the media worker.
func NewWorker(config Config) (*PionWorker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(config.ICEURLs) == 0 {
		config.ICEURLs = DefaultICEURLs
	}

	m := &webrtc.MediaEngine{}
	for _, codec := range mediaCodecs {
		typ := webrtc.RTPCodecTypeVideo
		if codec.RTPCodecCapability.MimeType == webrtc.MimeTypeOpus {
			typ = webrtc.RTPCodecTypeAudio
		}
		if err := m.RegisterCodec(codec, typ); err != nil {
			return nil, fmt.Errorf("failed to register codec %s: %w", codec.RTPCodecCapability.MimeType, err)
		}
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	if config.MinUDPPort != 0 || config.MaxUDPPort != 0 {
		if err := se.SetEphemeralUDPPortRange(config.MinUDPPort, config.MaxUDPPort); err != nil {
			return nil, fmt.Errorf("failed to set ephemeral UDP port range: %w", err)
		}
	}

	return &PionWorker{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(m),
			webrtc.WithInterceptorRegistry(i),
			webrtc.WithSettingEngine(se),
		),
		config: config,
	}, nil
}

// CreateRouter creates a routing context for one room.
func (w *PionWorker) CreateRouter(_ context.Context) (Router, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, fmt.Errorf("worker closed")
	}
	r := newRouter(w.api, w.config)
	w.routers = append(w.routers, r)
	return r, nil
}

// Close closes all routers still alive.
func (w *PionWorker) Close() error {
	w.mu.Lock()
	routers := w.routers
	w.routers = nil
	w.closed = true
	w.mu.Unlock()

	for _, r := range routers {
		_ = r.Close()
	}
	return nil
}
