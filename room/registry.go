package room

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"parley/sfu"
)

// Registry maps room ids to live rooms and owns room lifecycle: a room is
// created together with its router on first join and destroyed when its last
// peer is removed.
type Registry struct {
	mu     sync.RWMutex
	worker sfu.Worker
	rooms  map[string]*Room
}

// NewRegistry creates a registry allocating routers from the given worker.
func NewRegistry(worker sfu.Worker) *Registry {
	return &Registry{
		worker: worker,
		rooms:  make(map[string]*Room),
	}
}

// GetOrCreate returns the room with the given id, creating it and its router
// if needed. The second result reports whether the room was created.
func (g *Registry) GetOrCreate(ctx context.Context, id string) (*Room, bool, error) {
	g.mu.RLock()
	r, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return r, false, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[id]; ok {
		return r, false, nil
	}
	router, err := g.worker.CreateRouter(ctx)
	if err != nil {
		return nil, false, err
	}
	r = New(id, router)
	g.rooms[id] = r
	log.Info().Str("room_id", id).Msg("room created")
	return r, true, nil
}

// Get returns the room with the given id if it exists.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

// Size returns the number of live rooms.
func (g *Registry) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// RemovePeer tears down everything a peer owns and drops it from the room.
// Teardown is best effort: a close failure is logged and the remaining
// resources are still released. If the peer was the last one, the room and
// its router are destroyed as well.
func (g *Registry) RemovePeer(r *Room, peerID string) {
	r.Lock()
	peer, ok := r.peers[peerID]
	if !ok {
		r.Unlock()
		return
	}

	for _, consumer := range peer.Consumers {
		closePeerResource(r.ID, peerID, "consumer", consumer.Close())
	}
	if peer.ScreenShare != nil {
		closePeerResource(r.ID, peerID, "screen share", peer.ScreenShare.Close())
		peer.ScreenShare = nil
	}
	for _, producer := range peer.Producers {
		closePeerResource(r.ID, peerID, "producer", producer.Close())
	}
	for _, dc := range peer.DataConsumers {
		closePeerResource(r.ID, peerID, "data consumer", dc.Close())
	}
	for _, dp := range peer.DataProducers {
		closePeerResource(r.ID, peerID, "data producer", dp.Close())
	}
	for _, transport := range peer.Transports {
		closePeerResource(r.ID, peerID, "transport", transport.Close())
	}

	delete(r.peers, peerID)
	empty := len(r.peers) == 0
	r.Unlock()

	if !empty {
		return
	}

	// Prune atomically with the emptiness check: the registry lock is taken
	// first, then the emptiness is re-verified under the room lock, because a
	// join may have landed between releasing the room lock above and here.
	g.mu.Lock()
	if current, ok := g.rooms[r.ID]; !ok || current != r {
		g.mu.Unlock()
		return
	}
	r.Lock()
	if len(r.peers) != 0 {
		r.Unlock()
		g.mu.Unlock()
		return
	}
	r.closed = true
	r.Unlock()
	delete(g.rooms, r.ID)
	g.mu.Unlock()

	if err := r.Router.Close(); err != nil {
		log.Warn().Err(err).Str("room_id", r.ID).Msg("failed to close router")
	}
	log.Info().Str("room_id", r.ID).Msg("room destroyed")
}

func closePeerResource(roomID, peerID, kind string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Str("user_id", peerID).
			Msgf("failed to close %s", kind)
	}
}
