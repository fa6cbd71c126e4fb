package controller

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"parley/room"
	"parley/types/request"
	"parley/types/response"
)

// handleUpdateUser mutates a peer's presence flags and tells the room. The
// target may be any peer in the room; an absent target fails the request.
func (c *Controller) handleUpdateUser(rm *room.Room, peerID string, req request.Common) error {
	var payload request.UpdateUser
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal update user payload: %w", err)
	}

	rm.Lock()
	defer rm.Unlock()

	peer, ok := rm.Peer(payload.UserID)
	if !ok {
		c.fail(rm, peerID, req.RequestID, response.ReasonUserNotFound)
		return nil
	}
	peer.MicActive = payload.MicActive
	peer.CamActive = payload.CamActive
	peer.IsShareScreen = payload.IsShareScreen

	if _, err := c.database.UpsertRoomUser(rm.ID, payload.UserID, payload.MicActive, payload.CamActive, payload.IsShareScreen); err != nil { //nolint:lll
		log.Warn().Err(err).Str("room_id", rm.ID).Str("user_id", payload.UserID).Msg("failed to persist room user")
	}

	state := response.UserState{
		UserID:        payload.UserID,
		MicActive:     payload.MicActive,
		CamActive:     payload.CamActive,
		IsShareScreen: payload.IsShareScreen,
	}
	c.respond(rm, peerID, response.UserUpdated{
		RequestID: req.RequestID,
		Type:      response.USER_UPDATED,
		UserState: state,
	})
	c.broadcast(rm, peerID, response.UserUpdated{
		Type:      response.USER_UPDATED,
		UserState: state,
	})
	return nil
}

// handleGetUsersInRoom lists the presence flags of every peer in the room.
func (c *Controller) handleGetUsersInRoom(rm *room.Room, peerID string, req request.Common) error {
	rm.Lock()
	users := make([]response.UserState, 0, rm.Size())
	for _, id := range rm.PeerIDs() {
		peer, ok := rm.Peer(id)
		if !ok {
			continue
		}
		users = append(users, response.UserState{
			UserID:        peer.ID,
			MicActive:     peer.MicActive,
			CamActive:     peer.CamActive,
			IsShareScreen: peer.IsShareScreen,
		})
	}
	rm.Unlock()

	c.respond(rm, peerID, response.UsersInRoom{
		RequestID: req.RequestID,
		Type:      response.USERS_IN_ROOM,
		Users:     users,
	})
	return nil
}

// handleHeartbeat refreshes the peer's liveness stamp. Heartbeats get no
// reply.
func (c *Controller) handleHeartbeat(rm *room.Room, peerID string) error {
	rm.Lock()
	defer rm.Unlock()
	if peer, ok := rm.Peer(peerID); ok {
		peer.Touch(time.Now())
	}
	return nil
}

// handleSyncPeers reports the peers whose heartbeats are within the staleness
// window. Advisory only; nobody is evicted here.
func (c *Controller) handleSyncPeers(rm *room.Room, peerID string, req request.Common) error {
	rm.Lock()
	fresh := rm.FreshPeers(time.Now(), c.config.PeerTimeout)
	rm.Unlock()

	c.respond(rm, peerID, response.SyncPeers{
		RequestID: req.RequestID,
		Type:      response.SYNC_PEERS,
		Peers:     fresh,
	})
	return nil
}
