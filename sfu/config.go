// Package sfu contains the pion-backed selective forwarding implementation.
package sfu

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Config defines the configuration for the media worker.
type Config struct {
	ICEURLs    []string // STUN/TURN urls for transports
	MinUDPPort uint16   // Minimum UDP port for WebRTC
	MaxUDPPort uint16   // Maximum UDP port for WebRTC
}

// DefaultICEURLs is used when no ICE servers are configured.
var DefaultICEURLs = []string{"stun:stun.l.google.com:19302"}

// Validate checks the ephemeral port range.
func (c Config) Validate() error {
	if c.MinUDPPort == 0 && c.MaxUDPPort == 0 {
		return nil
	}
	if c.MinUDPPort > c.MaxUDPPort {
		return fmt.Errorf("invalid port range: MinUDPPort (%d) > MaxUDPPort (%d)", c.MinUDPPort, c.MaxUDPPort)
	}
	return nil
}

// mediaCodecs is the codec set registered on every router: opus for audio,
// VP8 for video.
var mediaCodecs = []webrtc.RTPCodecParameters{
	{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		PayloadType: 111,
	},
	{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: 90000,
		},
		PayloadType: 96,
	},
}

func codecCapability(kind Kind) webrtc.RTPCodecCapability {
	if kind == KindAudio {
		return mediaCodecs[0].RTPCodecCapability
	}
	return mediaCodecs[1].RTPCodecCapability
}

// CodecOptions are encoder hints attached to a screen-share publication.
type CodecOptions struct {
	VideoGoogleStartBitrate   int `json:"videoGoogleStartBitrate,omitempty"`
	VideoGoogleMaxBitrate     int `json:"videoGoogleMaxBitrate,omitempty"`
	VideoGoogleMinBitrate     int `json:"videoGoogleMinBitrate,omitempty"`
	VideoGoogleStartFrameRate int `json:"videoGoogleStartFrameRate,omitempty"`
	VideoGoogleMaxFrameRate   int `json:"videoGoogleMaxFrameRate,omitempty"`
	VideoGoogleMinFrameRate   int `json:"videoGoogleMinFrameRate,omitempty"`
}

// ScreenShareEncodings returns the simulcast profile applied to screen-share
// publications when the publisher did not specify its own layering: a full
// resolution high layer for detail, and two downscaled layers the SFU can
// fall back to under constrained bandwidth.
func ScreenShareEncodings() []Encoding {
	return []Encoding{
		{
			RID:                   "high",
			MaxBitrate:            5_000_000,
			MaxFramerate:          30,
			Priority:              "high",
			ScalabilityMode:       "L1T3",
			ScaleResolutionDownBy: 1,
		},
		{
			RID:                   "medium",
			MaxBitrate:            1_000_000,
			MaxFramerate:          15,
			Priority:              "medium",
			ScalabilityMode:       "L1T2",
			ScaleResolutionDownBy: 2,
		},
		{
			RID:                   "low",
			MaxBitrate:            500_000,
			MaxFramerate:          8,
			Priority:              "low",
			ScalabilityMode:       "L1T1",
			ScaleResolutionDownBy: 4,
		},
	}
}

// ScreenShareCodecOptions returns the encoder hints for screen sharing.
func ScreenShareCodecOptions() CodecOptions {
	return CodecOptions{
		VideoGoogleStartBitrate:   1000,
		VideoGoogleMaxBitrate:     5000,
		VideoGoogleMinBitrate:     300,
		VideoGoogleStartFrameRate: 15,
		VideoGoogleMaxFrameRate:   30,
		VideoGoogleMinFrameRate:   8,
	}
}
