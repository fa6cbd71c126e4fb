// Package controller implements the per-connection signaling state machine.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog/log"

	"parley/broker"
	"parley/broker/subscription"
	"parley/database"
	"parley/metric"
	"parley/pkg/socket"
	"parley/recorder"
	"parley/room"
	"parley/types/request"
	"parley/types/response"
)

// DefaultPeerTimeout is the staleness window for syncPeers.
const DefaultPeerTimeout = 8 * time.Second

// Config configures the controller.
type Config struct {
	// Secret is the shared secret every join must present.
	Secret string

	// PeerTimeout is how long a peer may stay silent before syncPeers stops
	// reporting it.
	PeerTimeout time.Duration
}

// Controller processes signaling connections. Each connection is pinned to a
// single room for its lifetime: the first message must be a join, and every
// later request operates on that room.
type Controller struct {
	config   Config
	broker   *broker.Broker
	registry *room.Registry
	database database.Database
	recorder *recorder.Recorder
	metric   *metric.Metrics
}

// New creates a new instance of Controller.
func New(config Config, b *broker.Broker, reg *room.Registry, db database.Database, rec *recorder.Recorder, m *metric.Metrics) *Controller { //nolint:lll
	if config.PeerTimeout == 0 {
		config.PeerTimeout = DefaultPeerTimeout
	}
	return &Controller{
		config:   config,
		broker:   b,
		registry: reg,
		database: db,
		recorder: rec,
		metric:   m,
	}
}

// Process runs a connection from join to teardown. The websocket has a single
// writer: the join response is written before the send loop starts, and every
// later response or broadcast is routed through the broker subscription.
func (c *Controller) Process(conn socket.Socket) error {
	c.metric.IncrementWebSocketConnections()
	defer c.metric.DecrementWebSocketConnections()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	peerID := shortuuid.New()

	rm, err := c.authenticate(ctx, conn, peerID)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	defer c.disconnect(rm, peerID)

	detail := broker.Detail(rm.ID + peerID)
	sub := c.broker.Subscribe(broker.ClientSocket, detail)
	go c.sendResponse(ctx, conn, detail, sub)

	if err := c.receiveRequest(ctx, conn, rm, peerID); err != nil {
		return fmt.Errorf("failed to receive request: %w", err)
	}
	return nil
}

// authenticate reads the first message, which must be a join carrying the
// shared secret, and registers the peer in the requested room. The join
// response lists the room's active producers so the client can subscribe
// immediately.
func (c *Controller) authenticate(ctx context.Context, conn socket.Socket, peerID string) (*room.Room, error) {
	var req request.Common
	if err := conn.ReadJSON(&req); err != nil {
		return nil, fmt.Errorf("failed to read join message: %w", err)
	}
	if req.Type != request.JOIN {
		_ = conn.WriteJSON(response.Error{RequestID: req.RequestID, Type: response.ERROR, Reason: response.ReasonNoRoom})
		return nil, fmt.Errorf("expected type '%s', got '%s'", request.JOIN, req.Type)
	}
	var payload request.Join
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal join payload: %w", err)
	}
	if payload.Secret != c.config.Secret {
		c.metric.IncrementProtocolErrors()
		_ = conn.WriteJSON(response.Error{RequestID: req.RequestID, Type: response.ERROR, Reason: response.ReasonInvalidSecret})
		return nil, fmt.Errorf("invalid secret for room %s", payload.RoomID)
	}

	var (
		rm        *room.Room
		producers []room.PublicationInfo
	)
	var micActive, camActive, isShareScreen bool
	for {
		var created bool
		var err error
		rm, created, err = c.registry.GetOrCreate(ctx, payload.RoomID)
		if err != nil {
			_ = conn.WriteJSON(response.Error{RequestID: req.RequestID, Type: response.ERROR, Reason: response.ReasonInternal})
			return nil, fmt.Errorf("failed to create room: %w", err)
		}
		if created {
			c.metric.IncrementRooms()
		}

		rm.Lock()
		peer := rm.AddPeer(peerID, time.Now())
		if peer == nil {
			// The room was destroyed between fetching it and locking it.
			rm.Unlock()
			continue
		}
		producers = rm.ProducersExcept(peerID)
		micActive, camActive, isShareScreen = peer.MicActive, peer.CamActive, peer.IsShareScreen
		rm.Unlock()
		break
	}
	c.metric.IncrementPeers()

	if _, err := c.database.UpsertUserInfo(peerID, ""); err != nil {
		log.Warn().Err(err).Str("user_id", peerID).Msg("failed to persist user")
	}
	if _, err := c.database.UpsertRoomUser(rm.ID, peerID, micActive, camActive, isShareScreen); err != nil {
		log.Warn().Err(err).Str("room_id", rm.ID).Str("user_id", peerID).Msg("failed to persist room user")
	}

	res := response.Joined{
		RequestID: req.RequestID,
		Type:      response.JOINED,
		UserID:    peerID,
		Producers: toProducerInfos(producers),
	}
	if err := conn.WriteJSON(res); err != nil {
		// The peer is registered by now; tear it down fully or it would
		// stay in the room with no connection behind it.
		c.disconnect(rm, peerID)
		return nil, fmt.Errorf("failed to send join response: %w", err)
	}

	log.Info().Str("room_id", rm.ID).Str("user_id", peerID).Msg("peer joined")
	return rm, nil
}

// sendResponse drains the connection's subscription into the websocket.
func (c *Controller) sendResponse(ctx context.Context, conn socket.Socket, detail broker.DETAIL, sub *subscription.Subscription) { //nolint:lll
	defer func() {
		if err := c.broker.Unsubscribe(broker.ClientSocket, detail, sub); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.Receive():
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("failed to send response")
				return
			}
		}
	}
}

// receiveRequest reads requests until the connection drops or the peer leaves.
func (c *Controller) receiveRequest(ctx context.Context, conn socket.Socket, rm *room.Room, peerID string) error {
	for {
		var req request.Common
		if err := conn.ReadJSON(&req); err != nil {
			return fmt.Errorf("failed to parse common message: %w", err)
		}
		if req.Type == request.LEAVE {
			return nil
		}
		if err := c.handleRequest(ctx, rm, peerID, req); err != nil {
			log.Warn().Err(err).Str("type", req.Type).Str("user_id", peerID).Msg("request failed")
			continue
		}
	}
}

// handleRequest parses the request type and calls the corresponding handler.
// Handlers report protocol failures to the client themselves; a returned
// error means something unexpected happened server-side.
func (c *Controller) handleRequest(ctx context.Context, rm *room.Room, peerID string, req request.Common) error {
	var err error
	switch req.Type {
	case request.CREATE_ROOM:
		err = c.handleCreateRoom(ctx, rm, peerID, req)
	case request.CREATE_TRANSPORT:
		err = c.handleCreateTransport(ctx, rm, peerID, req)
	case request.CONNECT_TRANSPORT:
		err = c.handleConnectTransport(ctx, rm, peerID, req)
	case request.PRODUCE:
		err = c.handleProduce(ctx, rm, peerID, req)
	case request.PRODUCE_DATA:
		err = c.handleProduceData(ctx, rm, peerID, req)
	case request.CONSUME:
		err = c.handleConsume(ctx, rm, peerID, req)
	case request.CONSUME_DATA:
		err = c.handleConsumeData(ctx, rm, peerID, req)
	case request.START_SCREEN_SHARE:
		err = c.handleStartScreenShare(ctx, rm, peerID, req)
	case request.STOP_SCREEN_SHARE:
		err = c.handleStopScreenShare(rm, peerID, req)
	case request.GET_ACTIVE_SCREEN_SHARES:
		err = c.handleGetActiveScreenShares(rm, peerID, req)
	case request.UPDATE_USER:
		err = c.handleUpdateUser(rm, peerID, req)
	case request.GET_USERS_IN_ROOM:
		err = c.handleGetUsersInRoom(rm, peerID, req)
	case request.HEARTBEAT:
		err = c.handleHeartbeat(rm, peerID)
	case request.SYNC_PEERS:
		err = c.handleSyncPeers(rm, peerID, req)
	case request.GET_ROUTER_CAPABILITIES:
		err = c.handleGetRouterCapabilities(rm, peerID, req)
	case request.GET_ROOM_PRODUCERS:
		err = c.handleGetRoomProducers(rm, peerID, req)
	case request.GET_ROOM_PRODUCERS_DETAIL:
		err = c.handleGetRoomProducersDetail(rm, peerID, req)
	case request.START_RECORDING:
		err = c.handleStartRecording(ctx, rm, peerID, req)
	case request.STOP_RECORDING:
		err = c.handleStopRecording(rm, peerID, req)
	case request.GET_RECORDING_STATUS:
		err = c.handleGetRecordingStatus(rm, peerID, req)
	case request.GET_ALL_RECORDINGS:
		err = c.handleGetAllRecordings(rm, peerID, req)
	default:
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		err = fmt.Errorf("invalid request type: %s", req.Type)
	}
	return err
}

// handleCreateRoom creates a room without joining it.
func (c *Controller) handleCreateRoom(ctx context.Context, rm *room.Room, peerID string, req request.Common) error {
	var payload request.CreateRoom
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal create room payload: %w", err)
	}
	_, created, err := c.registry.GetOrCreate(ctx, payload.RoomID)
	if err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to create room: %w", err)
	}
	if created {
		c.metric.IncrementRooms()
	}
	c.respond(rm, peerID, response.RoomCreated{
		RequestID: req.RequestID,
		Type:      response.ROOM_CREATED,
		RoomID:    payload.RoomID,
		Created:   created,
	})
	return nil
}

// disconnect tears the peer down. A live screen share ends, and its stop
// broadcast goes out strictly before the leave broadcast, so subscribers
// never observe a share owned by a departed peer.
func (c *Controller) disconnect(rm *room.Room, peerID string) {
	rm.Lock()
	if producer, ok := rm.ClearScreenShare(peerID); ok {
		if err := producer.Close(); err != nil {
			log.Warn().Err(err).Str("user_id", peerID).Msg("failed to close screen share")
		}
		c.metric.DecrementScreenShares()
		c.broadcast(rm, peerID, response.ScreenShareEnded{Type: response.SCREEN_SHARE_ENDED, UserID: peerID})
	}
	c.broadcast(rm, peerID, response.UserLeft{Type: response.USER_LEFT, UserID: peerID})
	rm.Unlock()

	c.registry.RemovePeer(rm, peerID)
	c.metric.DecrementPeers()

	if err := c.database.DeleteRoomUser(rm.ID, peerID); err != nil && !errors.Is(err, database.ErrRoomUserNotFound) {
		log.Warn().Err(err).Str("room_id", rm.ID).Str("user_id", peerID).Msg("failed to delete room user")
	}
	if err := c.database.DeleteUserInfoIfOrphan(peerID); err != nil {
		log.Warn().Err(err).Str("user_id", peerID).Msg("failed to delete user")
	}
	if _, ok := c.registry.Get(rm.ID); !ok {
		c.metric.DecrementRooms()
		if err := c.database.DeleteRoomUsersByRoom(rm.ID); err != nil {
			log.Warn().Err(err).Str("room_id", rm.ID).Msg("failed to purge room users")
		}
	}

	log.Info().Str("room_id", rm.ID).Str("user_id", peerID).Msg("peer left")
}

// respond delivers a message to the requesting connection's send loop.
func (c *Controller) respond(rm *room.Room, peerID string, msg any) {
	if err := c.broker.Publish(broker.ClientSocket, broker.Detail(rm.ID+peerID), msg); err != nil {
		log.Debug().Err(err).Str("user_id", peerID).Msg("failed to deliver response")
	}
}

// fail delivers an error response to the requesting connection.
func (c *Controller) fail(rm *room.Room, peerID string, requestID int, reason string) {
	c.metric.IncrementProtocolErrors()
	c.respond(rm, peerID, response.Error{RequestID: requestID, Type: response.ERROR, Reason: reason})
}

// broadcast delivers a message to every other peer in the room, fire and
// forget. The caller must hold the room lock.
func (c *Controller) broadcast(rm *room.Room, exclude string, msg any) {
	for _, id := range rm.PeerIDs() {
		if id == exclude {
			continue
		}
		if err := c.broker.Publish(broker.ClientSocket, broker.Detail(rm.ID+id), msg); err != nil {
			log.Debug().Err(err).Str("user_id", id).Msg("failed to deliver broadcast")
		}
	}
	c.metric.IncrementBroadcasts()
}

func toProducerInfos(infos []room.PublicationInfo) []response.ProducerInfo {
	out := make([]response.ProducerInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, response.ProducerInfo{
			ProducerID: info.ProducerID,
			UserID:     info.UserID,
			Kind:       info.Kind,
		})
	}
	return out
}
