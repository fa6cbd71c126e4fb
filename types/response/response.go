// Package response provides data types for server responses and broadcasts.
package response

import "encoding/json"

// Constants for response types
const (
	JOINED               = "JOINED"
	ROOM_CREATED         = "ROOM_CREATED"
	TRANSPORT_CREATED    = "TRANSPORT_CREATED"
	TRANSPORT_CONNECTED  = "TRANSPORT_CONNECTED"
	PRODUCED             = "PRODUCED"
	DATA_PRODUCED        = "DATA_PRODUCED"
	CONSUMED             = "CONSUMED"
	DATA_CONSUMED        = "DATA_CONSUMED"
	SCREEN_SHARE_STARTED = "SCREEN_SHARE_STARTED"
	SCREEN_SHARE_STOPPED = "SCREEN_SHARE_STOPPED"
	ACTIVE_SCREEN_SHARES = "ACTIVE_SCREEN_SHARES"
	USER_UPDATED         = "USER_UPDATED"
	USERS_IN_ROOM        = "USERS_IN_ROOM"
	SYNC_PEERS           = "SYNC_PEERS"
	ROUTER_CAPABILITIES  = "ROUTER_CAPABILITIES"
	ROOM_PRODUCERS       = "ROOM_PRODUCERS"
	RECORDING_STARTED    = "RECORDING_STARTED"
	RECORDING_STOPPED    = "RECORDING_STOPPED"
	RECORDING_STATUS     = "RECORDING_STATUS"
	RECORDINGS           = "RECORDINGS"
	ERROR                = "ERROR"
)

// Constants for broadcast types. Broadcasts carry no request id: they are
// pushed to every other peer in the room, fire and forget.
const (
	NEW_PRODUCER       = "NEW_PRODUCER"
	NEW_SCREEN_SHARE   = "NEW_SCREEN_SHARE"
	SCREEN_SHARE_ENDED = "SCREEN_SHARE_ENDED"
	USER_LEFT          = "USER_LEFT"
)

// Error reason strings reported to the requesting connection.
const (
	ReasonInvalidSecret       = "invalid secret"
	ReasonNoRoom              = "no room joined"
	ReasonTransportNotFound   = "transport not found"
	ReasonProducerNotFound    = "producer not found"
	ReasonCannotConsume       = "cannot consume"
	ReasonUserNotFound        = "user not found"
	ReasonNoActiveScreenShare = "no active screen share"
	ReasonNoVideoProducer     = "no video producer found"
	ReasonInternal            = "internal error"
)

// Error is the structured failure result for a request.
type Error struct {
	RequestID int    `json:"request_id"`
	Type      string `json:"type"`
	Reason    string `json:"reason"`
}

// ProducerInfo describes one active publication in a room.
type ProducerInfo struct {
	ProducerID string `json:"producer_id"`
	UserID     string `json:"user_id"`
	Kind       string `json:"kind"`
}

// Joined is sent back to a peer after a successful join. Producers lists the
// publications already active in the room so the client can subscribe at once.
type Joined struct {
	RequestID int            `json:"request_id"`
	Type      string         `json:"type"`
	UserID    string         `json:"user_id"`
	Producers []ProducerInfo `json:"producers"`
}

// RoomCreated acknowledges an explicit room creation.
type RoomCreated struct {
	RequestID int    `json:"request_id"`
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	Created   bool   `json:"created"`
}

// TransportCreated carries the parameters the remote side needs to establish
// the media path.
type TransportCreated struct {
	RequestID   int             `json:"request_id"`
	Type        string          `json:"type"`
	TransportID string          `json:"transport_id"`
	Parameters  json.RawMessage `json:"parameters"`
}

// TransportConnected acknowledges a finalized transport.
type TransportConnected struct {
	RequestID int    `json:"request_id"`
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
}

// Produced carries the publish-handle id of a new producer.
type Produced struct {
	RequestID  int    `json:"request_id"`
	Type       string `json:"type"`
	ProducerID string `json:"producer_id"`
}

// DataProduced carries the publish-handle id of a new data producer.
type DataProduced struct {
	RequestID      int    `json:"request_id"`
	Type           string `json:"type"`
	DataProducerID string `json:"data_producer_id"`
}

// Consumed carries everything the subscriber needs to receive the producer.
type Consumed struct {
	RequestID      int             `json:"request_id"`
	Type           string          `json:"type"`
	ConsumerID     string          `json:"consumer_id"`
	ProducerID     string          `json:"producer_id"`
	Kind           string          `json:"kind"`
	RTPParameters  json.RawMessage `json:"rtp_parameters"`
	ConsumerType   string          `json:"consumer_type"`
	ProducerPaused bool            `json:"producer_paused"`
	AppData        json.RawMessage `json:"app_data,omitempty"`
}

// DataConsumed carries the subscription parameters for a data producer.
type DataConsumed struct {
	RequestID            int             `json:"request_id"`
	Type                 string          `json:"type"`
	DataConsumerID       string          `json:"data_consumer_id"`
	DataProducerID       string          `json:"data_producer_id"`
	SCTPStreamParameters json.RawMessage `json:"sctp_stream_parameters"`
	Label                string          `json:"label"`
	Protocol             string          `json:"protocol"`
}

// ScreenShareStarted is the caller's result for a screen-share publication.
type ScreenShareStarted struct {
	RequestID    int             `json:"request_id"`
	Type         string          `json:"type"`
	ProducerID   string          `json:"producer_id"`
	CodecOptions json.RawMessage `json:"codec_options,omitempty"`
}

// ScreenShareStopped acknowledges that the caller's share was closed.
type ScreenShareStopped struct {
	RequestID int    `json:"request_id"`
	Type      string `json:"type"`
	Stopped   bool   `json:"stopped"`
}

// ScreenShareInfo describes one active screen share in a room.
type ScreenShareInfo struct {
	UserID     string          `json:"user_id"`
	ProducerID string          `json:"producer_id"`
	Kind       string          `json:"kind"`
	AppData    json.RawMessage `json:"app_data,omitempty"`
}

// ActiveScreenShares lists every active share, used by latecomers to backfill.
type ActiveScreenShares struct {
	RequestID int               `json:"request_id"`
	Type      string            `json:"type"`
	Shares    []ScreenShareInfo `json:"shares"`
}

// UserState mirrors a peer's presence flags.
type UserState struct {
	UserID        string `json:"user_id"`
	MicActive     bool   `json:"mic_active"`
	CamActive     bool   `json:"cam_active"`
	IsShareScreen bool   `json:"is_share_screen"`
}

// UserUpdated is both the ack for updateUser and the broadcast to the room.
type UserUpdated struct {
	RequestID int    `json:"request_id,omitempty"`
	Type      string `json:"type"`
	UserState
}

// UsersInRoom lists the presence flags of every peer in the room.
type UsersInRoom struct {
	RequestID int         `json:"request_id"`
	Type      string      `json:"type"`
	Users     []UserState `json:"users"`
}

// SyncPeers lists the peers considered fresh by the liveness monitor.
type SyncPeers struct {
	RequestID int      `json:"request_id"`
	Type      string   `json:"type"`
	Peers     []string `json:"peers"`
}

// RouterCapabilities carries the room's RTP capabilities.
type RouterCapabilities struct {
	RequestID       int             `json:"request_id"`
	Type            string          `json:"type"`
	RTPCapabilities json.RawMessage `json:"rtp_capabilities"`
}

// RoomProducers lists publications in the room, excluding the caller's own.
type RoomProducers struct {
	RequestID int            `json:"request_id"`
	Type      string         `json:"type"`
	Producers []ProducerInfo `json:"producers"`
}

// RecordingStarted carries the id of a freshly started recording session.
type RecordingStarted struct {
	RequestID   int    `json:"request_id"`
	Type        string `json:"type"`
	RecordingID string `json:"recording_id"`
}

// RecordingStopped carries the output of a stopped recording. A stop for an
// unknown id returns the zero value rather than an error.
type RecordingStopped struct {
	RequestID  int    `json:"request_id"`
	Type       string `json:"type"`
	FilePath   string `json:"file_path,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// RecordingInfo is a read-only projection of a live recording session.
type RecordingInfo struct {
	RecordingID string `json:"recording_id"`
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	DurationMs  int64  `json:"duration_ms"`
	FilePath    string `json:"file_path"`
}

// RecordingStatus carries a single recording projection, null when not found.
type RecordingStatus struct {
	RequestID int            `json:"request_id"`
	Type      string         `json:"type"`
	Recording *RecordingInfo `json:"recording"`
}

// Recordings lists every live recording session.
type Recordings struct {
	RequestID  int             `json:"request_id"`
	Type       string          `json:"type"`
	Recordings []RecordingInfo `json:"recordings"`
}

// NewProducer notifies other peers in the room about a new publication.
type NewProducer struct {
	Type       string `json:"type"`
	ProducerID string `json:"producer_id"`
	UserID     string `json:"user_id"`
	Kind       string `json:"kind"`
}

// NewScreenShare notifies other peers that a screen share started.
type NewScreenShare struct {
	Type       string          `json:"type"`
	ProducerID string          `json:"producer_id"`
	UserID     string          `json:"user_id"`
	AppData    json.RawMessage `json:"app_data,omitempty"`
}

// ScreenShareEnded notifies other peers that a peer's share stopped.
type ScreenShareEnded struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// UserLeft notifies other peers that a peer left the room.
type UserLeft struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}
