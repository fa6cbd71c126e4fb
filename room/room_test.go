package room_test

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"parley/room"
	"parley/sfu"
)

func TestAddPeer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Now()
	r := room.New("room", sfu.NewMockRouter(ctrl))
	r.Lock()
	defer r.Unlock()

	t.Run("given new peer when added then mic and cam default to active", func(t *testing.T) {
		peer := r.AddPeer("alice", now)
		assert.True(t, peer.MicActive)
		assert.True(t, peer.CamActive)
		assert.False(t, peer.IsShareScreen)
		assert.Equal(t, now, peer.LastSeen)
	})

	t.Run("given existing peer when added again then same peer is returned", func(t *testing.T) {
		peer := r.AddPeer("alice", now)
		peer.MicActive = false
		again := r.AddPeer("alice", now.Add(time.Second))
		assert.Same(t, peer, again)
		assert.False(t, again.MicActive)
		assert.Equal(t, 1, r.Size())
	})
}

func TestScreenShare(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := room.New("room", sfu.NewMockRouter(ctrl))
	r.Lock()
	defer r.Unlock()
	r.AddPeer("alice", time.Now())

	t.Run("given no share when started then share is recorded", func(t *testing.T) {
		first := sfu.NewMockProducer(ctrl)
		assert.True(t, r.SetScreenShare("alice", first))

		first.EXPECT().ID().Return("share-1").AnyTimes()
		first.EXPECT().Kind().Return(sfu.KindVideo).AnyTimes()
		first.EXPECT().AppData().Return(nil).AnyTimes()
		shares := r.ScreenShares()
		assert.Len(t, shares, 1)
		assert.Equal(t, "share-1", shares[0].ProducerID)
		assert.Equal(t, "alice", shares[0].UserID)
	})

	t.Run("given active share when started again then prior share is closed", func(t *testing.T) {
		prev, _ := r.ClearScreenShare("alice")
		r.SetScreenShare("alice", prev)

		replaced := prev.(*sfu.MockProducer)
		replaced.EXPECT().Close().Return(nil)
		next := sfu.NewMockProducer(ctrl)
		assert.True(t, r.SetScreenShare("alice", next))

		cleared, ok := r.ClearScreenShare("alice")
		assert.True(t, ok)
		assert.Same(t, next, cleared)
	})

	t.Run("given no share when cleared then nothing is returned", func(t *testing.T) {
		_, ok := r.ClearScreenShare("alice")
		assert.False(t, ok)
		assert.Empty(t, r.ScreenShares())
	})

	t.Run("given unknown peer when share is set then it is rejected", func(t *testing.T) {
		assert.False(t, r.SetScreenShare("ghost", sfu.NewMockProducer(ctrl)))
	})
}

func TestFindProducer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := room.New("room", sfu.NewMockRouter(ctrl))
	r.Lock()
	defer r.Unlock()

	alice := r.AddPeer("alice", time.Now())
	r.AddPeer("bob", time.Now())

	camera := sfu.NewMockProducer(ctrl)
	camera.EXPECT().ID().Return("cam-1").AnyTimes()
	camera.EXPECT().Kind().Return(sfu.KindVideo).AnyTimes()
	alice.Producers = append(alice.Producers, camera)

	share := sfu.NewMockProducer(ctrl)
	share.EXPECT().ID().Return("share-1").AnyTimes()
	share.EXPECT().Kind().Return(sfu.KindVideo).AnyTimes()
	alice.ScreenShare = share

	t.Run("given regular publication when looked up then owner is resolved", func(t *testing.T) {
		got, owner, ok := r.FindProducer("cam-1")
		assert.True(t, ok)
		assert.Same(t, camera, got)
		assert.Equal(t, "alice", owner)
	})

	t.Run("given screen share when looked up then it is found like any producer", func(t *testing.T) {
		got, owner, ok := r.FindProducer("share-1")
		assert.True(t, ok)
		assert.Same(t, share, got)
		assert.Equal(t, "alice", owner)
	})

	t.Run("given unknown id when looked up then lookup fails", func(t *testing.T) {
		_, _, ok := r.FindProducer("nope")
		assert.False(t, ok)
	})

	t.Run("given owner excluded when listed then only others remain", func(t *testing.T) {
		assert.Empty(t, r.ProducersExcept("alice"))
		assert.Len(t, r.ProducersExcept("bob"), 2)
	})
}

func TestFreshPeers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Now()
	r := room.New("room", sfu.NewMockRouter(ctrl))
	r.Lock()
	defer r.Unlock()

	r.AddPeer("alice", now)
	bob := r.AddPeer("bob", now)
	bob.LastSeen = now.Add(-time.Minute)
	carol := r.AddPeer("carol", now)
	carol.LastSeen = now.Add(-30 * time.Second)

	// A peer exactly at the window boundary is still fresh.
	fresh := r.FreshPeers(now, 30*time.Second)
	assert.ElementsMatch(t, []string{"alice", "carol"}, fresh)
	assert.Equal(t, 3, r.Size())
}
