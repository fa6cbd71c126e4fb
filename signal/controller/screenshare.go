package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"parley/room"
	"parley/sfu"
	"parley/types/request"
	"parley/types/response"
)

// handleStartScreenShare publishes a screen-share track. When the caller
// sends no layering, the server's simulcast profile is applied. Starting a
// share while one is active replaces it; the previous publication is closed
// rather than leaked.
func (c *Controller) handleStartScreenShare(ctx context.Context, rm *room.Room, peerID string, req request.Common) error { //nolint:lll
	var payload request.StartScreenShare
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal start screen share payload: %w", err)
	}

	rm.Lock()
	defer rm.Unlock()

	peer, ok := rm.Peer(peerID)
	if !ok {
		c.fail(rm, peerID, req.RequestID, response.ReasonNoRoom)
		return nil
	}
	transport, ok := peer.Transport(payload.TransportID)
	if !ok {
		c.fail(rm, peerID, req.RequestID, response.ReasonTransportNotFound)
		return nil
	}

	encodings := toEncodings(payload.Encodings)
	if len(encodings) == 0 {
		encodings = sfu.ScreenShareEncodings()
	}

	producer, err := transport.Produce(ctx, sfu.ProduceOptions{
		Kind:          sfu.KindVideo,
		RTPParameters: payload.RTPParameters,
		Encodings:     encodings,
		AppData:       payload.AppData,
		ScreenShare:   true,
	})
	if err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to produce screen share: %w", err)
	}

	if peer.ScreenShare == nil {
		c.metric.IncrementScreenShares()
	}
	rm.SetScreenShare(peerID, producer)
	peer.IsShareScreen = true
	if _, err := c.database.UpsertRoomUser(rm.ID, peerID, peer.MicActive, peer.CamActive, true); err != nil {
		log.Warn().Err(err).Str("room_id", rm.ID).Str("user_id", peerID).Msg("failed to persist room user")
	}

	codecOptions, err := json.Marshal(sfu.ScreenShareCodecOptions())
	if err != nil {
		codecOptions = nil
	}
	c.respond(rm, peerID, response.ScreenShareStarted{
		RequestID:    req.RequestID,
		Type:         response.SCREEN_SHARE_STARTED,
		ProducerID:   producer.ID(),
		CodecOptions: codecOptions,
	})
	c.broadcast(rm, peerID, response.NewScreenShare{
		Type:       response.NEW_SCREEN_SHARE,
		ProducerID: producer.ID(),
		UserID:     peerID,
		AppData:    payload.AppData,
	})
	return nil
}

// handleStopScreenShare closes the caller's share and tells the room.
func (c *Controller) handleStopScreenShare(rm *room.Room, peerID string, req request.Common) error {
	rm.Lock()
	defer rm.Unlock()

	producer, ok := rm.ClearScreenShare(peerID)
	if !ok {
		c.fail(rm, peerID, req.RequestID, response.ReasonNoActiveScreenShare)
		return nil
	}
	if err := producer.Close(); err != nil {
		log.Warn().Err(err).Str("user_id", peerID).Msg("failed to close screen share")
	}
	c.metric.DecrementScreenShares()

	if peer, ok := rm.Peer(peerID); ok {
		peer.IsShareScreen = false
		if _, err := c.database.UpsertRoomUser(rm.ID, peerID, peer.MicActive, peer.CamActive, false); err != nil {
			log.Warn().Err(err).Str("room_id", rm.ID).Str("user_id", peerID).Msg("failed to persist room user")
		}
	}

	c.respond(rm, peerID, response.ScreenShareStopped{
		RequestID: req.RequestID,
		Type:      response.SCREEN_SHARE_STOPPED,
		Stopped:   true,
	})
	c.broadcast(rm, peerID, response.ScreenShareEnded{
		Type:   response.SCREEN_SHARE_ENDED,
		UserID: peerID,
	})
	return nil
}

// handleGetActiveScreenShares lists the live shares so latecomers can
// backfill without having seen the original broadcasts.
func (c *Controller) handleGetActiveScreenShares(rm *room.Room, peerID string, req request.Common) error {
	rm.Lock()
	shares := rm.ScreenShares()
	rm.Unlock()

	infos := make([]response.ScreenShareInfo, 0, len(shares))
	for _, share := range shares {
		infos = append(infos, response.ScreenShareInfo{
			UserID:     share.UserID,
			ProducerID: share.ProducerID,
			Kind:       share.Kind,
			AppData:    share.AppData,
		})
	}
	c.respond(rm, peerID, response.ActiveScreenShares{
		RequestID: req.RequestID,
		Type:      response.ACTIVE_SCREEN_SHARES,
		Shares:    infos,
	})
	return nil
}

func toEncodings(encodings []request.Encoding) []sfu.Encoding {
	out := make([]sfu.Encoding, 0, len(encodings))
	for _, e := range encodings {
		out = append(out, sfu.Encoding{
			RID:                   e.RID,
			MaxBitrate:            e.MaxBitrate,
			MaxFramerate:          e.MaxFramerate,
			ScalabilityMode:       e.ScalabilityMode,
			ScaleResolutionDownBy: e.ScaleResolutionDownBy,
		})
	}
	return out
}
