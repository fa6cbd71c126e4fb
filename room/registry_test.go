package room_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"parley/room"
	"parley/sfu"
)

func TestGetOrCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	worker := sfu.NewMockWorker(ctrl)
	registry := room.NewRegistry(worker)

	t.Run("given new id when fetched then room and router are created", func(t *testing.T) {
		router := sfu.NewMockRouter(ctrl)
		worker.EXPECT().CreateRouter(gomock.Any()).Return(router, nil)

		r, created, err := registry.GetOrCreate(context.Background(), "room")
		assert.NoError(t, err)
		assert.True(t, created)
		assert.Same(t, router, r.Router)
		assert.Equal(t, 1, registry.Size())
	})

	t.Run("given existing id when fetched then same room is returned without a new router", func(t *testing.T) {
		existing, _ := registry.Get("room")
		r, created, err := registry.GetOrCreate(context.Background(), "room")
		assert.NoError(t, err)
		assert.False(t, created)
		assert.Same(t, existing, r)
	})

	t.Run("given router failure when fetched then no room is created", func(t *testing.T) {
		worker.EXPECT().CreateRouter(gomock.Any()).Return(nil, errors.New("worker closed"))

		_, _, err := registry.GetOrCreate(context.Background(), "broken")
		assert.Error(t, err)
		_, ok := registry.Get("broken")
		assert.False(t, ok)
	})
}

func TestRemovePeer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	worker := sfu.NewMockWorker(ctrl)
	router := sfu.NewMockRouter(ctrl)
	worker.EXPECT().CreateRouter(gomock.Any()).Return(router, nil)

	registry := room.NewRegistry(worker)
	r, _, err := registry.GetOrCreate(context.Background(), "room")
	assert.NoError(t, err)

	r.Lock()
	alice := r.AddPeer("alice", time.Now())
	r.AddPeer("bob", time.Now())

	consumer := sfu.NewMockConsumer(ctrl)
	producer := sfu.NewMockProducer(ctrl)
	share := sfu.NewMockProducer(ctrl)
	transport := sfu.NewMockTransport(ctrl)
	alice.Consumers = append(alice.Consumers, consumer)
	alice.Producers = append(alice.Producers, producer)
	alice.ScreenShare = share
	alice.Transports = append(alice.Transports, transport)
	r.Unlock()

	t.Run("given peer with resources when removed then everything it owns is closed", func(t *testing.T) {
		consumer.EXPECT().Close().Return(nil)
		share.EXPECT().Close().Return(nil)
		producer.EXPECT().Close().Return(errors.New("already closed"))
		transport.EXPECT().Close().Return(nil)

		registry.RemovePeer(r, "alice")

		r.Lock()
		_, ok := r.Peer("alice")
		assert.False(t, ok)
		assert.Equal(t, 1, r.Size())
		r.Unlock()
		assert.Equal(t, 1, registry.Size())
	})

	t.Run("given unknown peer when removed then removal is a no-op", func(t *testing.T) {
		registry.RemovePeer(r, "ghost")
		assert.Equal(t, 1, registry.Size())
	})

	t.Run("given last peer when removed then room and router are destroyed", func(t *testing.T) {
		router.EXPECT().Close().Return(nil)

		registry.RemovePeer(r, "bob")

		_, ok := registry.Get("room")
		assert.False(t, ok)
		assert.Equal(t, 0, registry.Size())
	})
}

func TestPruneVersusJoin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("given a held reference to a destroyed room when joining then it is refused", func(t *testing.T) {
		worker := sfu.NewMockWorker(ctrl)
		first := sfu.NewMockRouter(ctrl)
		second := sfu.NewMockRouter(ctrl)
		gomock.InOrder(
			worker.EXPECT().CreateRouter(gomock.Any()).Return(first, nil),
			worker.EXPECT().CreateRouter(gomock.Any()).Return(second, nil),
		)
		first.EXPECT().Close().Return(nil)

		registry := room.NewRegistry(worker)
		r, _, err := registry.GetOrCreate(context.Background(), "standup")
		assert.NoError(t, err)
		r.Lock()
		r.AddPeer("alice", time.Now())
		r.Unlock()

		// A joiner fetches the room just before its last peer leaves.
		stale, _, err := registry.GetOrCreate(context.Background(), "standup")
		assert.NoError(t, err)
		registry.RemovePeer(r, "alice")

		stale.Lock()
		assert.Nil(t, stale.AddPeer("bob", time.Now()))
		stale.Unlock()

		// Re-fetching yields a fresh room that accepts the peer and is the
		// one the registry holds.
		fresh, created, err := registry.GetOrCreate(context.Background(), "standup")
		assert.NoError(t, err)
		assert.True(t, created)
		fresh.Lock()
		assert.NotNil(t, fresh.AddPeer("bob", time.Now()))
		fresh.Unlock()

		got, ok := registry.Get("standup")
		assert.True(t, ok)
		assert.Same(t, fresh, got)
	})

	t.Run("given concurrent removal and join then the joined peer is never stranded", func(t *testing.T) {
		worker := sfu.NewMockWorker(ctrl)
		worker.EXPECT().CreateRouter(gomock.Any()).DoAndReturn(
			func(context.Context) (sfu.Router, error) {
				router := sfu.NewMockRouter(ctrl)
				router.EXPECT().Close().Return(nil).AnyTimes()
				return router, nil
			}).AnyTimes()

		registry := room.NewRegistry(worker)
		for i := 0; i < 500; i++ {
			r, _, err := registry.GetOrCreate(context.Background(), "scrum")
			assert.NoError(t, err)
			r.Lock()
			r.AddPeer("alice", time.Now())
			r.Unlock()

			var joined *room.Room
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				registry.RemovePeer(r, "alice")
			}()
			go func() {
				defer wg.Done()
				for {
					rm, _, err := registry.GetOrCreate(context.Background(), "scrum")
					if err != nil {
						return
					}
					rm.Lock()
					peer := rm.AddPeer("bob", time.Now())
					rm.Unlock()
					if peer != nil {
						joined = rm
						return
					}
				}
			}()
			wg.Wait()

			got, ok := registry.Get("scrum")
			assert.True(t, ok)
			assert.Same(t, joined, got)

			registry.RemovePeer(joined, "bob")
		}
	})
}
