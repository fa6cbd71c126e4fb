package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"parley/metric"
	"parley/signal"
	"parley/types/response"
)

const (
	testAddr   = "localhost:18080"
	testSecret = "test-secret"
)

// startTestSignal starts a signal server for testing.
func startTestSignal(t *testing.T) {
	t.Helper()
	s, err := signal.New(signal.Config{
		Port:          18080,
		Debug:         true,
		Secret:        testSecret,
		RecordingsDir: t.TempDir(),
		Metric:        metric.Config{Port: 19090, Path: "/metrics"},
	})
	if err != nil {
		t.Fatalf("failed to set up signal server: %v", err)
	}
	go func() {
		_ = s.Start()
	}()
	t.Cleanup(func() {
		_ = s.Stop()
	})
}

// join connects a new client, retrying until the server is up.
func join(t *testing.T, roomID string) *Client {
	t.Helper()
	c := New(testAddr, roomID, testSecret)

	var joined response.Joined
	var err error
	for i := 0; i < 50; i++ {
		joined, err = c.Join()
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to join room: %v", err)
	}
	assert.NotEmpty(t, joined.UserID)
	return c
}

func TestSession(t *testing.T) {
	startTestSignal(t)

	alice := join(t, "lobby")
	defer func() {
		_ = alice.Leave()
	}()
	bob := join(t, "lobby")
	defer func() {
		_ = bob.Leave()
	}()

	t.Run("given wrong secret when joining then the server rejects it", func(t *testing.T) {
		c := New(testAddr, "lobby", "wrong")
		_, err := c.Join()
		assert.ErrorContains(t, err, "invalid secret")
	})

	t.Run("given two peers when listing users then both are present", func(t *testing.T) {
		users, err := alice.UsersInRoom()
		assert.NoError(t, err)
		assert.Len(t, users, 2)
	})

	t.Run("given heartbeats when syncing peers then both are fresh", func(t *testing.T) {
		assert.NoError(t, alice.Heartbeat())
		assert.NoError(t, bob.Heartbeat())

		peers, err := alice.SyncPeers()
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{alice.UserID(), bob.UserID()}, peers)
	})

	t.Run("given a user update when applied then the other peer hears it", func(t *testing.T) {
		updated, err := alice.UpdateUser(alice.UserID(), false, true, false)
		assert.NoError(t, err)
		assert.False(t, updated.MicActive)
		assert.True(t, updated.CamActive)

		// Any request drains pending broadcasts into the events channel.
		_, err = bob.SyncPeers()
		assert.NoError(t, err)

		select {
		case raw := <-bob.Events():
			var evt response.UserUpdated
			assert.NoError(t, json.Unmarshal(raw, &evt))
			assert.Equal(t, response.USER_UPDATED, evt.Type)
			assert.Equal(t, alice.UserID(), evt.UserID)
		case <-time.After(time.Second):
			t.Fatal("no broadcast received")
		}
	})

	t.Run("given a room when fetching capabilities then they are not empty", func(t *testing.T) {
		caps, err := alice.RouterCapabilities()
		assert.NoError(t, err)
		assert.NotEmpty(t, caps)
	})

	t.Run("given a peer when creating a transport then parameters come back", func(t *testing.T) {
		res, err := alice.CreateTransport()
		assert.NoError(t, err)
		assert.NotEmpty(t, res.TransportID)
		assert.NotEmpty(t, res.Parameters)
	})

	t.Run("given a publication when the other peer consumes then parameters come back", func(t *testing.T) {
		aliceTransport, err := alice.CreateTransport()
		assert.NoError(t, err)

		produced, err := alice.Produce(aliceTransport.TransportID, "video", nil)
		assert.NoError(t, err)
		assert.NotEmpty(t, produced.ProducerID)

		producers, err := bob.RoomProducers()
		assert.NoError(t, err)
		if assert.Len(t, producers, 1) {
			assert.Equal(t, produced.ProducerID, producers[0].ProducerID)
			assert.Equal(t, alice.UserID(), producers[0].UserID)
		}

		caps, err := bob.RouterCapabilities()
		assert.NoError(t, err)
		bobTransport, err := bob.CreateTransport()
		assert.NoError(t, err)

		consumed, err := bob.Consume(bobTransport.TransportID, produced.ProducerID, caps)
		assert.NoError(t, err)
		assert.Equal(t, produced.ProducerID, consumed.ProducerID)
		assert.Equal(t, "video", consumed.Kind)
	})

	t.Run("given no shares when listing active screen shares then none return", func(t *testing.T) {
		shares, err := alice.ActiveScreenShares()
		assert.NoError(t, err)
		assert.Empty(t, shares)
	})
}
