package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parley/recorder"
	"parley/room"
	"parley/types/request"
	"parley/types/response"
)

// handleStartRecording starts recording the target peer's video publication.
func (c *Controller) handleStartRecording(ctx context.Context, rm *room.Room, peerID string, req request.Common) error { //nolint:lll
	var payload request.StartRecording
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal start recording payload: %w", err)
	}
	target := payload.UserID
	if target == "" {
		target = peerID
	}

	rm.Lock()
	info, err := c.recorder.Start(ctx, rm, target)
	rm.Unlock()
	if err != nil {
		switch {
		case errors.Is(err, recorder.ErrUserNotFound):
			c.fail(rm, peerID, req.RequestID, response.ReasonUserNotFound)
			return nil
		case errors.Is(err, recorder.ErrNoVideoProducer):
			c.fail(rm, peerID, req.RequestID, response.ReasonNoVideoProducer)
			return nil
		default:
			c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
			return fmt.Errorf("failed to start recording: %w", err)
		}
	}
	c.metric.IncrementRecordings()

	c.respond(rm, peerID, response.RecordingStarted{
		RequestID:   req.RequestID,
		Type:        response.RECORDING_STARTED,
		RecordingID: info.ID,
	})
	return nil
}

// handleStopRecording stops a recording session. Stopping an unknown id is
// not an error; the response just carries no file.
func (c *Controller) handleStopRecording(rm *room.Room, peerID string, req request.Common) error {
	var payload request.StopRecording
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal stop recording payload: %w", err)
	}

	res := response.RecordingStopped{
		RequestID: req.RequestID,
		Type:      response.RECORDING_STOPPED,
	}
	if info, duration, ok := c.recorder.Stop(payload.RecordingID); ok {
		c.metric.DecrementRecordings()
		res.FilePath = info.FilePath
		res.DurationMs = duration.Milliseconds()
	}
	c.respond(rm, peerID, res)
	return nil
}

// handleGetRecordingStatus reports a single recording session, null when the
// id is unknown.
func (c *Controller) handleGetRecordingStatus(rm *room.Room, peerID string, req request.Common) error {
	var payload request.GetRecordingStatus
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal recording status payload: %w", err)
	}

	res := response.RecordingStatus{
		RequestID: req.RequestID,
		Type:      response.RECORDING_STATUS,
	}
	if info, ok := c.recorder.Status(payload.RecordingID); ok {
		res.Recording = toRecordingInfo(info)
	}
	c.respond(rm, peerID, res)
	return nil
}

// handleGetAllRecordings lists every live recording session.
func (c *Controller) handleGetAllRecordings(rm *room.Room, peerID string, req request.Common) error {
	all := c.recorder.All()
	infos := make([]response.RecordingInfo, 0, len(all))
	for _, info := range all {
		infos = append(infos, *toRecordingInfo(info))
	}
	c.respond(rm, peerID, response.Recordings{
		RequestID:  req.RequestID,
		Type:       response.RECORDINGS,
		Recordings: infos,
	})
	return nil
}

func toRecordingInfo(info recorder.Info) *response.RecordingInfo {
	return &response.RecordingInfo{
		RecordingID: info.ID,
		RoomID:      info.RoomID,
		UserID:      info.UserID,
		DurationMs:  time.Since(info.StartedAt).Milliseconds(),
		FilePath:    info.FilePath,
	}
}
