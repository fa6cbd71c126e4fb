// Package request contains client request types.
package request

import "encoding/json"

// Constants for request types
const (
	JOIN                       = "JOIN"
	CREATE_ROOM                = "CREATE_ROOM"
	CREATE_TRANSPORT           = "CREATE_TRANSPORT"
	CONNECT_TRANSPORT          = "CONNECT_TRANSPORT"
	PRODUCE                    = "PRODUCE"
	PRODUCE_DATA               = "PRODUCE_DATA"
	CONSUME                    = "CONSUME"
	CONSUME_DATA               = "CONSUME_DATA"
	START_SCREEN_SHARE         = "START_SCREEN_SHARE"
	STOP_SCREEN_SHARE          = "STOP_SCREEN_SHARE"
	GET_ACTIVE_SCREEN_SHARES   = "GET_ACTIVE_SCREEN_SHARES"
	UPDATE_USER                = "UPDATE_USER"
	GET_USERS_IN_ROOM          = "GET_USERS_IN_ROOM"
	HEARTBEAT                  = "HEARTBEAT"
	SYNC_PEERS                 = "SYNC_PEERS"
	GET_ROUTER_CAPABILITIES    = "GET_ROUTER_CAPABILITIES"
	GET_ROOM_PRODUCERS         = "GET_ROOM_PRODUCERS"
	GET_ROOM_PRODUCERS_DETAIL  = "GET_ROOM_PRODUCERS_DETAIL"
	START_RECORDING            = "START_RECORDING"
	STOP_RECORDING             = "STOP_RECORDING"
	GET_RECORDING_STATUS       = "GET_RECORDING_STATUS"
	GET_ALL_RECORDINGS         = "GET_ALL_RECORDINGS"
	LEAVE                      = "LEAVE"
)

// Common is the envelope every client request is wrapped in. RequestID is
// echoed back on the matching response so that the client can pair them.
type Common struct {
	RequestID int             `json:"request_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Join is data type for joining a room. The secret must match the server's
// shared secret; it is validated before any other request is accepted.
type Join struct {
	RoomID string `json:"room_id"`
	Secret string `json:"secret"`
}

// CreateRoom is data type for creating a room without joining it.
type CreateRoom struct {
	RoomID string `json:"room_id"`
}

// ConnectTransport is data type for finalizing a previously created transport.
type ConnectTransport struct {
	TransportID string          `json:"transport_id"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Produce is data type for publishing a media track on a transport.
type Produce struct {
	TransportID   string          `json:"transport_id"`
	Kind          string          `json:"kind"`
	RTPParameters json.RawMessage `json:"rtp_parameters"`
	AppData       json.RawMessage `json:"app_data,omitempty"`
}

// ProduceData is data type for publishing a data channel on a transport.
type ProduceData struct {
	TransportID          string          `json:"transport_id"`
	SCTPStreamParameters json.RawMessage `json:"sctp_stream_parameters"`
	Label                string          `json:"label"`
	Protocol             string          `json:"protocol"`
}

// Consume is data type for subscribing to another peer's producer.
type Consume struct {
	TransportID     string          `json:"transport_id"`
	ProducerID      string          `json:"producer_id"`
	RTPCapabilities json.RawMessage `json:"rtp_capabilities"`
}

// ConsumeData is data type for subscribing to another peer's data producer.
type ConsumeData struct {
	TransportID    string `json:"transport_id"`
	DataProducerID string `json:"data_producer_id"`
}

// Encoding is a single simulcast layer requested by a publisher.
type Encoding struct {
	RID                   string `json:"rid,omitempty"`
	MaxBitrate            int    `json:"max_bitrate,omitempty"`
	MaxFramerate          int    `json:"max_framerate,omitempty"`
	ScalabilityMode       string `json:"scalability_mode,omitempty"`
	ScaleResolutionDownBy int    `json:"scale_resolution_down_by,omitempty"`
}

// StartScreenShare is data type for publishing a screen-share track. When
// Encodings is empty the server applies its screen-share simulcast profile.
type StartScreenShare struct {
	TransportID   string          `json:"transport_id"`
	RTPParameters json.RawMessage `json:"rtp_parameters"`
	Encodings     []Encoding      `json:"encodings,omitempty"`
	AppData       json.RawMessage `json:"app_data,omitempty"`
}

// UpdateUser is data type for mutating a peer's presence flags.
type UpdateUser struct {
	UserID        string `json:"user_id"`
	MicActive     bool   `json:"mic_active"`
	CamActive     bool   `json:"cam_active"`
	IsShareScreen bool   `json:"is_share_screen"`
}

// StartRecording is data type for starting a recording of a peer's video.
type StartRecording struct {
	UserID string `json:"user_id"`
}

// StopRecording is data type for stopping a recording.
type StopRecording struct {
	RecordingID string `json:"recording_id"`
}

// GetRecordingStatus is data type for querying a single recording.
type GetRecordingStatus struct {
	RecordingID string `json:"recording_id"`
}
