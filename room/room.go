// Package room holds the in-memory model of rooms and their participants.
// All mutation of a room's peer set runs under the room lock; the signaling
// layer holds it for the duration of each operation.
package room

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"parley/sfu"
)

// Peer is one participant in a room. A peer owns every transport, producer
// and consumer it opened; they are closed together on leave or disconnect.
type Peer struct {
	ID            string
	Transports    []sfu.Transport
	Producers     []sfu.Producer
	Consumers     []sfu.Consumer
	DataProducers []sfu.DataProducer
	DataConsumers []sfu.DataConsumer

	// ScreenShare is the peer's single optional screen-share publication.
	// Being one field rather than a collection is what enforces the
	// at-most-one-share-per-peer invariant.
	ScreenShare sfu.Producer

	MicActive     bool
	CamActive     bool
	IsShareScreen bool

	LastSeen time.Time
}

// Touch records a heartbeat.
func (p *Peer) Touch(now time.Time) {
	p.LastSeen = now
}

// Transport returns the peer's own transport with the given id. Transports
// of other peers are never reachable through here.
func (p *Peer) Transport(id string) (sfu.Transport, bool) {
	for _, t := range p.Transports {
		if t.ID() == id {
			return t, true
		}
	}
	return nil, false
}

// VideoProducer returns the peer's first non-screen-share video publication.
func (p *Peer) VideoProducer() (sfu.Producer, bool) {
	for _, producer := range p.Producers {
		if producer.Kind() == sfu.KindVideo {
			return producer, true
		}
	}
	return nil, false
}

// PublicationInfo describes one producer in a room.
type PublicationInfo struct {
	UserID     string
	ProducerID string
	Kind       string
}

// ShareInfo describes one active screen share in a room.
type ShareInfo struct {
	UserID     string
	ProducerID string
	Kind       string
	AppData    json.RawMessage
}

// Room groups peers around one SFU routing capability. The router is created
// when the room is, and destroyed when the last peer leaves.
type Room struct {
	ID     string
	Router sfu.Router

	mu     sync.Mutex
	peers  map[string]*Peer
	closed bool
}

// New creates a room bound to a routing capability.
func New(id string, router sfu.Router) *Room {
	return &Room{
		ID:     id,
		Router: router,
		peers:  make(map[string]*Peer),
	}
}

// Lock serializes signaling operations on this room.
func (r *Room) Lock() { r.mu.Lock() }

// Unlock releases the room lock.
func (r *Room) Unlock() { r.mu.Unlock() }

// The accessors below expect the caller to hold the room lock.

// AddPeer registers a peer, or returns the existing one for the same id.
// A nil result means the room was destroyed after the caller obtained it;
// the caller must re-fetch the room from the registry and try again.
func (r *Room) AddPeer(id string, now time.Time) *Peer {
	if r.closed {
		return nil
	}
	if peer, ok := r.peers[id]; ok {
		return peer
	}
	peer := &Peer{
		ID:        id,
		MicActive: true,
		CamActive: true,
		LastSeen:  now,
	}
	r.peers[id] = peer
	return peer
}

// Peer returns the peer with the given id.
func (r *Room) Peer(id string) (*Peer, bool) {
	peer, ok := r.peers[id]
	return peer, ok
}

// Size returns the number of peers in the room.
func (r *Room) Size() int {
	return len(r.peers)
}

// PeerIDs returns the ids of every peer in the room.
func (r *Room) PeerIDs() []string {
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

// Producers lists every publication in the room, screen shares included.
func (r *Room) Producers() []PublicationInfo {
	infos := make([]PublicationInfo, 0)
	for _, peer := range r.peers {
		for _, producer := range peer.Producers {
			infos = append(infos, PublicationInfo{
				UserID:     peer.ID,
				ProducerID: producer.ID(),
				Kind:       string(producer.Kind()),
			})
		}
		if peer.ScreenShare != nil {
			infos = append(infos, PublicationInfo{
				UserID:     peer.ID,
				ProducerID: peer.ScreenShare.ID(),
				Kind:       string(peer.ScreenShare.Kind()),
			})
		}
	}
	return infos
}

// ProducersExcept lists every publication except the given peer's own.
func (r *Room) ProducersExcept(peerID string) []PublicationInfo {
	infos := make([]PublicationInfo, 0)
	for _, info := range r.Producers() {
		if info.UserID != peerID {
			infos = append(infos, info)
		}
	}
	return infos
}

// FindProducer locates a publication anywhere in the room. Screen-share
// producers are found through the same path as regular ones.
func (r *Room) FindProducer(producerID string) (sfu.Producer, string, bool) {
	for _, peer := range r.peers {
		for _, producer := range peer.Producers {
			if producer.ID() == producerID {
				return producer, peer.ID, true
			}
		}
		if peer.ScreenShare != nil && peer.ScreenShare.ID() == producerID {
			return peer.ScreenShare, peer.ID, true
		}
	}
	return nil, "", false
}

// FindDataProducer locates a data publication anywhere in the room.
func (r *Room) FindDataProducer(dataProducerID string) (sfu.DataProducer, string, bool) {
	for _, peer := range r.peers {
		for _, dp := range peer.DataProducers {
			if dp.ID() == dataProducerID {
				return dp, peer.ID, true
			}
		}
	}
	return nil, "", false
}

// SetScreenShare stores a peer's screen-share publication. A previous share
// is closed before being replaced so its SFU resources are not leaked.
func (r *Room) SetScreenShare(peerID string, producer sfu.Producer) bool {
	peer, ok := r.peers[peerID]
	if !ok {
		return false
	}
	if peer.ScreenShare != nil {
		if err := peer.ScreenShare.Close(); err != nil {
			log.Warn().Err(err).Str("room_id", r.ID).Str("user_id", peerID).
				Msg("failed to close replaced screen share")
		}
	}
	peer.ScreenShare = producer
	return true
}

// ClearScreenShare removes and returns a peer's screen-share publication.
func (r *Room) ClearScreenShare(peerID string) (sfu.Producer, bool) {
	peer, ok := r.peers[peerID]
	if !ok || peer.ScreenShare == nil {
		return nil, false
	}
	producer := peer.ScreenShare
	peer.ScreenShare = nil
	return producer, true
}

// ScreenShares computes the set of active shares on demand. Latecomers pull
// this instead of relying on historical broadcasts.
func (r *Room) ScreenShares() []ShareInfo {
	shares := make([]ShareInfo, 0)
	for _, peer := range r.peers {
		if peer.ScreenShare == nil {
			continue
		}
		shares = append(shares, ShareInfo{
			UserID:     peer.ID,
			ProducerID: peer.ScreenShare.ID(),
			Kind:       string(peer.ScreenShare.Kind()),
			AppData:    peer.ScreenShare.AppData(),
		})
	}
	return shares
}

// FreshPeers returns the ids of peers whose last heartbeat is within the
// timeout window. Advisory only: stale peers are reported, never evicted.
func (r *Room) FreshPeers(now time.Time, timeout time.Duration) []string {
	fresh := make([]string, 0, len(r.peers))
	for id, peer := range r.peers {
		if now.Sub(peer.LastSeen) <= timeout {
			fresh = append(fresh, id)
		} else {
			log.Debug().Str("room_id", r.ID).Str("user_id", id).Msg("peer appears inactive during sync")
		}
	}
	return fresh
}
