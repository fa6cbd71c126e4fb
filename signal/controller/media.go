package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"parley/room"
	"parley/sfu"
	"parley/types/request"
	"parley/types/response"
)

// handleCreateTransport allocates a transport on the room's router and hands
// its parameters back to the caller.
func (c *Controller) handleCreateTransport(ctx context.Context, rm *room.Room, peerID string, req request.Common) error { //nolint:lll
	rm.Lock()
	defer rm.Unlock()

	peer, ok := rm.Peer(peerID)
	if !ok {
		c.fail(rm, peerID, req.RequestID, response.ReasonNoRoom)
		return nil
	}
	transport, err := rm.Router.CreateTransport(ctx)
	if err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to create transport: %w", err)
	}
	peer.Transports = append(peer.Transports, transport)

	params := transport.Params()
	c.respond(rm, peerID, response.TransportCreated{
		RequestID:   req.RequestID,
		Type:        response.TRANSPORT_CREATED,
		TransportID: params.ID,
		Parameters:  params.Parameters,
	})
	return nil
}

// handleConnectTransport finalizes a transport the peer created earlier. Only
// the peer's own transports are reachable; ids belonging to other peers fail
// the same way unknown ids do.
func (c *Controller) handleConnectTransport(ctx context.Context, rm *room.Room, peerID string, req request.Common) error { //nolint:lll
	var payload request.ConnectTransport
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal connect transport payload: %w", err)
	}

	rm.Lock()
	defer rm.Unlock()

	transport, ok := c.peerTransport(rm, peerID, payload.TransportID)
	if !ok {
		c.fail(rm, peerID, req.RequestID, response.ReasonTransportNotFound)
		return nil
	}
	if err := transport.Connect(ctx, sfu.ConnectParams{Parameters: payload.Parameters}); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	c.respond(rm, peerID, response.TransportConnected{
		RequestID: req.RequestID,
		Type:      response.TRANSPORT_CONNECTED,
		Connected: true,
	})
	return nil
}

// handleProduce registers a publication on one of the peer's transports and
// announces it to the rest of the room.
func (c *Controller) handleProduce(ctx context.Context, rm *room.Room, peerID string, req request.Common) error {
	var payload request.Produce
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal produce payload: %w", err)
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

	producer, err := transport.Produce(ctx, sfu.ProduceOptions{
		Kind:          sfu.Kind(payload.Kind),
		RTPParameters: payload.RTPParameters,
		AppData:       payload.AppData,
	})
	if err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to produce: %w", err)
	}
	peer.Producers = append(peer.Producers, producer)

	c.respond(rm, peerID, response.Produced{
		RequestID:  req.RequestID,
		Type:       response.PRODUCED,
		ProducerID: producer.ID(),
	})
	c.broadcast(rm, peerID, response.NewProducer{
		Type:       response.NEW_PRODUCER,
		ProducerID: producer.ID(),
		UserID:     peerID,
		Kind:       payload.Kind,
	})
	return nil
}

// handleProduceData registers a data-channel publication.
func (c *Controller) handleProduceData(ctx context.Context, rm *room.Room, peerID string, req request.Common) error {
	var payload request.ProduceData
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal produce data payload: %w", err)
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

	dataProducer, err := transport.ProduceData(ctx, sfu.DataProduceOptions{
		SCTPStreamParameters: payload.SCTPStreamParameters,
		Label:                payload.Label,
		Protocol:             payload.Protocol,
	})
	if err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to produce data: %w", err)
	}
	peer.DataProducers = append(peer.DataProducers, dataProducer)

	c.respond(rm, peerID, response.DataProduced{
		RequestID:      req.RequestID,
		Type:           response.DATA_PRODUCED,
		DataProducerID: dataProducer.ID(),
	})
	return nil
}

// handleConsume subscribes the peer to any publication in the room, screen
// shares included.
func (c *Controller) handleConsume(ctx context.Context, rm *room.Room, peerID string, req request.Common) error {
	var payload request.Consume
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal consume payload: %w", err)
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
	if _, _, ok := rm.FindProducer(payload.ProducerID); !ok {
		c.fail(rm, peerID, req.RequestID, response.ReasonProducerNotFound)
		return nil
	}

	consumer, err := transport.Consume(ctx, payload.ProducerID, payload.RTPCapabilities)
	if err != nil {
		switch {
		case errors.Is(err, sfu.ErrProducerNotFound):
			c.fail(rm, peerID, req.RequestID, response.ReasonProducerNotFound)
			return nil
		case errors.Is(err, sfu.ErrCannotConsume):
			c.fail(rm, peerID, req.RequestID, response.ReasonCannotConsume)
			return nil
		default:
			c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
			return fmt.Errorf("failed to consume: %w", err)
		}
	}
	peer.Consumers = append(peer.Consumers, consumer)

	info := consumer.Info()
	c.respond(rm, peerID, response.Consumed{
		RequestID:      req.RequestID,
		Type:           response.CONSUMED,
		ConsumerID:     info.ID,
		ProducerID:     info.ProducerID,
		Kind:           string(info.Kind),
		RTPParameters:  info.RTPParameters,
		ConsumerType:   info.Type,
		ProducerPaused: info.ProducerPaused,
		AppData:        info.AppData,
	})
	return nil
}

// handleConsumeData subscribes the peer to a data-channel publication.
func (c *Controller) handleConsumeData(ctx context.Context, rm *room.Room, peerID string, req request.Common) error {
	var payload request.ConsumeData
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to unmarshal consume data payload: %w", err)
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
	if _, _, ok := rm.FindDataProducer(payload.DataProducerID); !ok {
		c.fail(rm, peerID, req.RequestID, response.ReasonProducerNotFound)
		return nil
	}

	dataConsumer, err := transport.ConsumeData(ctx, payload.DataProducerID)
	if err != nil {
		c.fail(rm, peerID, req.RequestID, response.ReasonInternal)
		return fmt.Errorf("failed to consume data: %w", err)
	}
	peer.DataConsumers = append(peer.DataConsumers, dataConsumer)

	info := dataConsumer.Info()
	c.respond(rm, peerID, response.DataConsumed{
		RequestID:            req.RequestID,
		Type:                 response.DATA_CONSUMED,
		DataConsumerID:       info.ID,
		DataProducerID:       info.DataProducerID,
		SCTPStreamParameters: info.SCTPStreamParameters,
		Label:                info.Label,
		Protocol:             info.Protocol,
	})
	return nil
}

// handleGetRouterCapabilities reports the room router's RTP capabilities.
func (c *Controller) handleGetRouterCapabilities(rm *room.Room, peerID string, req request.Common) error {
	c.respond(rm, peerID, response.RouterCapabilities{
		RequestID:       req.RequestID,
		Type:            response.ROUTER_CAPABILITIES,
		RTPCapabilities: rm.Router.RTPCapabilities(),
	})
	return nil
}

// handleGetRoomProducers lists the room's publications excluding the caller's.
func (c *Controller) handleGetRoomProducers(rm *room.Room, peerID string, req request.Common) error {
	rm.Lock()
	infos := rm.ProducersExcept(peerID)
	rm.Unlock()

	c.respond(rm, peerID, response.RoomProducers{
		RequestID: req.RequestID,
		Type:      response.ROOM_PRODUCERS,
		Producers: toProducerInfos(infos),
	})
	return nil
}

// handleGetRoomProducersDetail lists every publication, the caller's own
// included, with owner ids.
func (c *Controller) handleGetRoomProducersDetail(rm *room.Room, peerID string, req request.Common) error {
	rm.Lock()
	infos := rm.Producers()
	rm.Unlock()

	c.respond(rm, peerID, response.RoomProducers{
		RequestID: req.RequestID,
		Type:      response.ROOM_PRODUCERS,
		Producers: toProducerInfos(infos),
	})
	return nil
}

// peerTransport resolves a transport id within the peer's own set. The caller
// must hold the room lock.
func (c *Controller) peerTransport(rm *room.Room, peerID, transportID string) (sfu.Transport, bool) {
	peer, ok := rm.Peer(peerID)
	if !ok {
		return nil, false
	}
	return peer.Transport(transportID)
}
