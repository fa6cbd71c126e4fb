// Package client contains a websocket client for the signal server. It is
// primarily used for integration tests.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"parley/types/request"
	"parley/types/response"
)

const responseTimeout = 5 * time.Second

// ErrTimeout is returned when no response arrives in time.
var ErrTimeout = errors.New("timed out waiting for response")

// Client is a peer of a parley room.
type Client struct {
	serverURL string
	roomID    string
	secret    string

	userID string
	socket *websocket.Conn
	nextID int
	events chan json.RawMessage
}

// New creates a new client for the given room.
func New(serverURL, roomID, secret string) *Client {
	return &Client{
		serverURL: serverURL,
		roomID:    roomID,
		secret:    secret,
		events:    make(chan json.RawMessage, 32),
	}
}

// UserID returns the id the server assigned at join time.
func (c *Client) UserID() string {
	return c.userID
}

// Events delivers the broadcasts received while waiting for responses.
func (c *Client) Events() <-chan json.RawMessage {
	return c.events
}

// Join dials the server and joins the room. The server assigns the user id.
func (c *Client) Join() (response.Joined, error) {
	u := url.URL{Scheme: "ws", Host: c.serverURL, Path: "/"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return response.Joined{}, fmt.Errorf("failed to dial: %w", err)
	}
	c.socket = conn

	raw, err := c.request(request.JOIN, request.Join{RoomID: c.roomID, Secret: c.secret})
	if err != nil {
		return response.Joined{}, err
	}
	var joined response.Joined
	if err := json.Unmarshal(raw, &joined); err != nil {
		return response.Joined{}, fmt.Errorf("failed to unmarshal join response: %w", err)
	}
	c.userID = joined.UserID
	return joined, nil
}

// Leave tells the server the session is over and closes the socket.
func (c *Client) Leave() error {
	if c.socket == nil {
		return nil
	}
	if err := c.socket.WriteJSON(request.Common{Type: request.LEAVE}); err != nil {
		return fmt.Errorf("failed to send leave: %w", err)
	}
	return c.socket.Close()
}

// Heartbeat refreshes the client's liveness. The server does not reply.
func (c *Client) Heartbeat() error {
	return c.send(request.HEARTBEAT, nil)
}

// SyncPeers asks which peers the server still considers alive.
func (c *Client) SyncPeers() ([]string, error) {
	raw, err := c.request(request.SYNC_PEERS, nil)
	if err != nil {
		return nil, err
	}
	var res response.SyncPeers
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync peers response: %w", err)
	}
	return res.Peers, nil
}

// UpdateUser changes a peer's presence flags.
func (c *Client) UpdateUser(userID string, mic, cam, share bool) (response.UserUpdated, error) {
	raw, err := c.request(request.UPDATE_USER, request.UpdateUser{
		UserID:        userID,
		MicActive:     mic,
		CamActive:     cam,
		IsShareScreen: share,
	})
	if err != nil {
		return response.UserUpdated{}, err
	}
	var res response.UserUpdated
	if err := json.Unmarshal(raw, &res); err != nil {
		return response.UserUpdated{}, fmt.Errorf("failed to unmarshal update user response: %w", err)
	}
	return res, nil
}

// UsersInRoom lists the presence flags of every peer in the room.
func (c *Client) UsersInRoom() ([]response.UserState, error) {
	raw, err := c.request(request.GET_USERS_IN_ROOM, nil)
	if err != nil {
		return nil, err
	}
	var res response.UsersInRoom
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal users response: %w", err)
	}
	return res.Users, nil
}

// RouterCapabilities fetches the room's RTP capabilities.
func (c *Client) RouterCapabilities() (json.RawMessage, error) {
	raw, err := c.request(request.GET_ROUTER_CAPABILITIES, nil)
	if err != nil {
		return nil, err
	}
	var res response.RouterCapabilities
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal capabilities response: %w", err)
	}
	return res.RTPCapabilities, nil
}

// CreateTransport asks the server for a new transport.
func (c *Client) CreateTransport() (response.TransportCreated, error) {
	raw, err := c.request(request.CREATE_TRANSPORT, nil)
	if err != nil {
		return response.TransportCreated{}, err
	}
	var res response.TransportCreated
	if err := json.Unmarshal(raw, &res); err != nil {
		return response.TransportCreated{}, fmt.Errorf("failed to unmarshal transport response: %w", err)
	}
	return res, nil
}

// ConnectTransport finalizes a transport with the local answer.
func (c *Client) ConnectTransport(transportID string, parameters json.RawMessage) error {
	_, err := c.request(request.CONNECT_TRANSPORT, request.ConnectTransport{
		TransportID: transportID,
		Parameters:  parameters,
	})
	return err
}

// Produce publishes a track on a transport.
func (c *Client) Produce(transportID, kind string, rtpParameters json.RawMessage) (response.Produced, error) {
	raw, err := c.request(request.PRODUCE, request.Produce{
		TransportID:   transportID,
		Kind:          kind,
		RTPParameters: rtpParameters,
	})
	if err != nil {
		return response.Produced{}, err
	}
	var res response.Produced
	if err := json.Unmarshal(raw, &res); err != nil {
		return response.Produced{}, fmt.Errorf("failed to unmarshal produce response: %w", err)
	}
	return res, nil
}

// Consume subscribes to another peer's producer.
func (c *Client) Consume(transportID, producerID string, rtpCapabilities json.RawMessage) (response.Consumed, error) {
	raw, err := c.request(request.CONSUME, request.Consume{
		TransportID:     transportID,
		ProducerID:      producerID,
		RTPCapabilities: rtpCapabilities,
	})
	if err != nil {
		return response.Consumed{}, err
	}
	var res response.Consumed
	if err := json.Unmarshal(raw, &res); err != nil {
		return response.Consumed{}, fmt.Errorf("failed to unmarshal consume response: %w", err)
	}
	return res, nil
}

// RoomProducers lists the publications of the other peers in the room.
func (c *Client) RoomProducers() ([]response.ProducerInfo, error) {
	raw, err := c.request(request.GET_ROOM_PRODUCERS, nil)
	if err != nil {
		return nil, err
	}
	var res response.RoomProducers
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal producers response: %w", err)
	}
	return res.Producers, nil
}

// ActiveScreenShares lists the live screen shares in the room.
func (c *Client) ActiveScreenShares() ([]response.ScreenShareInfo, error) {
	raw, err := c.request(request.GET_ACTIVE_SCREEN_SHARES, nil)
	if err != nil {
		return nil, err
	}
	var res response.ActiveScreenShares
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal screen shares response: %w", err)
	}
	return res.Shares, nil
}

// send writes a request without waiting for a response.
func (c *Client) send(reqType string, payload any) error {
	c.nextID++
	req := request.Common{RequestID: c.nextID, Type: reqType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Payload = raw
	}
	if err := c.socket.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// request writes a request and reads messages until the matching response
// arrives. Broadcasts received in between land on the events channel.
func (c *Client) request(reqType string, payload any) (json.RawMessage, error) {
	if err := c.send(reqType, payload); err != nil {
		return nil, err
	}
	id := c.nextID

	deadline := time.Now().Add(responseTimeout)
	for {
		if err := c.socket.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		var probe struct {
			RequestID int    `json:"request_id"`
			Type      string `json:"type"`
			Reason    string `json:"reason"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if probe.RequestID != id {
			select {
			case c.events <- raw:
			default:
			}
			continue
		}
		if probe.Type == response.ERROR {
			return nil, fmt.Errorf("request rejected: %s", probe.Reason)
		}
		return raw, nil
	}
}
