package controller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"parley/broker"
	"parley/broker/subscription"
	"parley/database/memory"
	"parley/metric"
	"parley/pkg/socket"
	"parley/recorder"
	"parley/room"
	"parley/sfu"
	"parley/types/request"
	"parley/types/response"
)

const testSecret = "s3cret"

type fixture struct {
	controller *Controller
	broker     *broker.Broker
	registry   *room.Registry
	router     *sfu.MockRouter
	room       *room.Room
}

func newFixture(t *testing.T, ctrl *gomock.Controller) *fixture {
	t.Helper()
	worker := sfu.NewMockWorker(ctrl)
	router := sfu.NewMockRouter(ctrl)
	worker.EXPECT().CreateRouter(gomock.Any()).Return(router, nil).AnyTimes()

	b := broker.New()
	reg := room.NewRegistry(worker)
	c := New(Config{Secret: testSecret}, b, reg, memory.New(),
		recorder.New(recorder.Config{Directory: t.TempDir()}), metric.New(metric.Config{}))

	rm, _, err := reg.GetOrCreate(context.Background(), "room")
	assert.NoError(t, err)
	return &fixture{controller: c, broker: b, registry: reg, router: router, room: rm}
}

func (f *fixture) addPeer(id string) *room.Peer {
	f.room.Lock()
	defer f.room.Unlock()
	return f.room.AddPeer(id, time.Now())
}

func (f *fixture) listen(id string) *subscription.Subscription {
	return f.broker.Subscribe(broker.ClientSocket, broker.Detail(f.room.ID+id))
}

func receive(t *testing.T, sub *subscription.Subscription) any {
	t.Helper()
	select {
	case msg := <-sub.Receive():
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	assert.NoError(t, err)
	return raw
}

func TestConnectTransport(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	f.addPeer("alice")
	bob := f.addPeer("bob")
	aliceSub := f.listen("alice")

	bobTransport := sfu.NewMockTransport(ctrl)
	bobTransport.EXPECT().ID().Return("t-bob").AnyTimes()
	f.room.Lock()
	bob.Transports = append(bob.Transports, bobTransport)
	f.room.Unlock()

	t.Run("given another peer's transport id when connected then it is not found", func(t *testing.T) {
		payload := mustMarshal(t, request.ConnectTransport{TransportID: "t-bob"})
		err := f.controller.handleConnectTransport(context.Background(), f.room, "alice",
			request.Common{RequestID: 1, Type: request.CONNECT_TRANSPORT, Payload: payload})
		assert.NoError(t, err)

		msg := receive(t, aliceSub).(response.Error)
		assert.Equal(t, 1, msg.RequestID)
		assert.Equal(t, response.ReasonTransportNotFound, msg.Reason)
	})
}

func TestProduce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	alice := f.addPeer("alice")
	f.addPeer("bob")
	aliceSub := f.listen("alice")
	bobSub := f.listen("bob")

	transport := sfu.NewMockTransport(ctrl)
	transport.EXPECT().ID().Return("t-alice").AnyTimes()
	f.room.Lock()
	alice.Transports = append(alice.Transports, transport)
	f.room.Unlock()

	t.Run("given valid produce when handled then caller acks and room hears about it", func(t *testing.T) {
		producer := sfu.NewMockProducer(ctrl)
		producer.EXPECT().ID().Return("prod-1").AnyTimes()
		transport.EXPECT().Produce(gomock.Any(), gomock.Any()).Return(producer, nil)

		payload := mustMarshal(t, request.Produce{TransportID: "t-alice", Kind: "audio"})
		err := f.controller.handleProduce(context.Background(), f.room, "alice",
			request.Common{RequestID: 2, Type: request.PRODUCE, Payload: payload})
		assert.NoError(t, err)

		ack := receive(t, aliceSub).(response.Produced)
		assert.Equal(t, "prod-1", ack.ProducerID)

		broadcastMsg := receive(t, bobSub).(response.NewProducer)
		assert.Equal(t, "alice", broadcastMsg.UserID)
		assert.Equal(t, "prod-1", broadcastMsg.ProducerID)
		assert.Len(t, alice.Producers, 1)
	})

	t.Run("given unknown transport when produced then it fails without side effects", func(t *testing.T) {
		payload := mustMarshal(t, request.Produce{TransportID: "nope", Kind: "audio"})
		err := f.controller.handleProduce(context.Background(), f.room, "alice",
			request.Common{RequestID: 3, Type: request.PRODUCE, Payload: payload})
		assert.NoError(t, err)

		msg := receive(t, aliceSub).(response.Error)
		assert.Equal(t, response.ReasonTransportNotFound, msg.Reason)
		assert.Len(t, alice.Producers, 1)
	})
}

func TestConsume(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	alice := f.addPeer("alice")
	bob := f.addPeer("bob")
	aliceSub := f.listen("alice")

	transport := sfu.NewMockTransport(ctrl)
	transport.EXPECT().ID().Return("t-alice").AnyTimes()
	f.room.Lock()
	alice.Transports = append(alice.Transports, transport)
	f.room.Unlock()

	t.Run("given unknown producer when consumed then it reports producer not found", func(t *testing.T) {
		payload := mustMarshal(t, request.Consume{TransportID: "t-alice", ProducerID: "nope"})
		err := f.controller.handleConsume(context.Background(), f.room, "alice",
			request.Common{RequestID: 4, Type: request.CONSUME, Payload: payload})
		assert.NoError(t, err)

		msg := receive(t, aliceSub).(response.Error)
		assert.Equal(t, response.ReasonProducerNotFound, msg.Reason)
	})

	t.Run("given a screen share producer when consumed then it works like any producer", func(t *testing.T) {
		share := sfu.NewMockProducer(ctrl)
		share.EXPECT().ID().Return("share-1").AnyTimes()
		f.room.Lock()
		f.room.SetScreenShare("bob", share)
		bob.IsShareScreen = true
		f.room.Unlock()

		consumer := sfu.NewMockConsumer(ctrl)
		consumer.EXPECT().Info().Return(sfu.ConsumerInfo{
			ID:         "cons-1",
			ProducerID: "share-1",
			Kind:       sfu.KindVideo,
			Type:       "simple",
		})
		transport.EXPECT().Consume(gomock.Any(), "share-1", gomock.Any()).Return(consumer, nil)

		payload := mustMarshal(t, request.Consume{TransportID: "t-alice", ProducerID: "share-1"})
		err := f.controller.handleConsume(context.Background(), f.room, "alice",
			request.Common{RequestID: 5, Type: request.CONSUME, Payload: payload})
		assert.NoError(t, err)

		msg := receive(t, aliceSub).(response.Consumed)
		assert.Equal(t, "cons-1", msg.ConsumerID)
		assert.Equal(t, "share-1", msg.ProducerID)
		assert.Len(t, alice.Consumers, 1)
	})

	t.Run("given incompatible capabilities when consumed then it reports cannot consume", func(t *testing.T) {
		camera := sfu.NewMockProducer(ctrl)
		camera.EXPECT().ID().Return("cam-1").AnyTimes()
		f.room.Lock()
		bob.Producers = append(bob.Producers, camera)
		f.room.Unlock()
		transport.EXPECT().Consume(gomock.Any(), "cam-1", gomock.Any()).Return(nil, sfu.ErrCannotConsume)

		payload := mustMarshal(t, request.Consume{TransportID: "t-alice", ProducerID: "cam-1"})
		err := f.controller.handleConsume(context.Background(), f.room, "alice",
			request.Common{RequestID: 6, Type: request.CONSUME, Payload: payload})
		assert.NoError(t, err)

		msg := receive(t, aliceSub).(response.Error)
		assert.Equal(t, response.ReasonCannotConsume, msg.Reason)
	})
}

func TestScreenShareHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	alice := f.addPeer("alice")
	f.addPeer("bob")
	aliceSub := f.listen("alice")
	bobSub := f.listen("bob")

	transport := sfu.NewMockTransport(ctrl)
	transport.EXPECT().ID().Return("t-alice").AnyTimes()
	f.room.Lock()
	alice.Transports = append(alice.Transports, transport)
	f.room.Unlock()

	t.Run("given stop without active share then it reports no active screen share", func(t *testing.T) {
		err := f.controller.handleStopScreenShare(f.room, "alice",
			request.Common{RequestID: 7, Type: request.STOP_SCREEN_SHARE})
		assert.NoError(t, err)

		msg := receive(t, aliceSub).(response.Error)
		assert.Equal(t, response.ReasonNoActiveScreenShare, msg.Reason)
	})

	t.Run("given start without encodings then the server profile is applied", func(t *testing.T) {
		producer := sfu.NewMockProducer(ctrl)
		producer.EXPECT().ID().Return("share-1").AnyTimes()
		transport.EXPECT().Produce(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, opts sfu.ProduceOptions) (sfu.Producer, error) {
				assert.True(t, opts.ScreenShare)
				assert.Len(t, opts.Encodings, 3)
				assert.Equal(t, "high", opts.Encodings[0].RID)
				return producer, nil
			})

		payload := mustMarshal(t, request.StartScreenShare{TransportID: "t-alice"})
		err := f.controller.handleStartScreenShare(context.Background(), f.room, "alice",
			request.Common{RequestID: 8, Type: request.START_SCREEN_SHARE, Payload: payload})
		assert.NoError(t, err)

		ack := receive(t, aliceSub).(response.ScreenShareStarted)
		assert.Equal(t, "share-1", ack.ProducerID)
		assert.NotEmpty(t, ack.CodecOptions)

		broadcastMsg := receive(t, bobSub).(response.NewScreenShare)
		assert.Equal(t, "alice", broadcastMsg.UserID)
		assert.True(t, alice.IsShareScreen)
	})

	t.Run("given active share when stopped then room hears the end", func(t *testing.T) {
		alice.ScreenShare.(*sfu.MockProducer).EXPECT().Close().Return(nil)

		err := f.controller.handleStopScreenShare(f.room, "alice",
			request.Common{RequestID: 9, Type: request.STOP_SCREEN_SHARE})
		assert.NoError(t, err)

		ack := receive(t, aliceSub).(response.ScreenShareStopped)
		assert.True(t, ack.Stopped)

		broadcastMsg := receive(t, bobSub).(response.ScreenShareEnded)
		assert.Equal(t, "alice", broadcastMsg.UserID)
		assert.False(t, alice.IsShareScreen)
	})
}

func TestUpdateUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	f.addPeer("alice")
	bob := f.addPeer("bob")
	aliceSub := f.listen("alice")
	bobSub := f.listen("bob")

	t.Run("given absent target when updated then it reports user not found", func(t *testing.T) {
		payload := mustMarshal(t, request.UpdateUser{UserID: "ghost"})
		err := f.controller.handleUpdateUser(f.room, "alice",
			request.Common{RequestID: 10, Type: request.UPDATE_USER, Payload: payload})
		assert.NoError(t, err)

		msg := receive(t, aliceSub).(response.Error)
		assert.Equal(t, response.ReasonUserNotFound, msg.Reason)
	})

	t.Run("given present target when updated then state changes and room hears it", func(t *testing.T) {
		payload := mustMarshal(t, request.UpdateUser{UserID: "bob", MicActive: false, CamActive: true})
		err := f.controller.handleUpdateUser(f.room, "alice",
			request.Common{RequestID: 11, Type: request.UPDATE_USER, Payload: payload})
		assert.NoError(t, err)

		ack := receive(t, aliceSub).(response.UserUpdated)
		assert.Equal(t, "bob", ack.UserID)
		assert.False(t, ack.MicActive)

		broadcastMsg := receive(t, bobSub).(response.UserUpdated)
		assert.Equal(t, "bob", broadcastMsg.UserID)
		assert.False(t, bob.MicActive)
		assert.True(t, bob.CamActive)
	})
}

func TestSyncPeers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	f.addPeer("alice")
	bob := f.addPeer("bob")
	aliceSub := f.listen("alice")

	f.room.Lock()
	bob.LastSeen = time.Now().Add(-time.Minute)
	f.room.Unlock()

	err := f.controller.handleSyncPeers(f.room, "alice",
		request.Common{RequestID: 12, Type: request.SYNC_PEERS})
	assert.NoError(t, err)

	msg := receive(t, aliceSub).(response.SyncPeers)
	assert.Equal(t, []string{"alice"}, msg.Peers)
}

func TestDisconnectWithActiveShare(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	f.addPeer("alice")
	f.addPeer("bob")
	bobSub := f.listen("bob")

	share := sfu.NewMockProducer(ctrl)
	share.EXPECT().Close().Return(nil)
	f.room.Lock()
	f.room.SetScreenShare("alice", share)
	f.room.Unlock()

	f.controller.disconnect(f.room, "alice")

	ended := receive(t, bobSub).(response.ScreenShareEnded)
	assert.Equal(t, "alice", ended.UserID)

	left := receive(t, bobSub).(response.UserLeft)
	assert.Equal(t, "alice", left.UserID)

	f.room.Lock()
	_, ok := f.room.Peer("alice")
	f.room.Unlock()
	assert.False(t, ok)
}

func TestProcess(t *testing.T) {
	t.Run("given wrong secret when processed then the connection is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newFixture(t, ctrl)
		conn := socket.NewMockSocket(ctrl)
		conn.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
			*(v.(*request.Common)) = request.Common{
				RequestID: 1,
				Type:      request.JOIN,
				Payload:   mustMarshal(t, request.Join{RoomID: "room", Secret: "wrong"}),
			}
			return nil
		})
		conn.EXPECT().WriteJSON(gomock.Any()).DoAndReturn(func(v any) error {
			msg := v.(response.Error)
			assert.Equal(t, response.ReasonInvalidSecret, msg.Reason)
			return nil
		})

		assert.Error(t, f.controller.Process(conn))
	})

	t.Run("given a failed join response write then the peer is torn down", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newFixture(t, ctrl)
		conn := socket.NewMockSocket(ctrl)
		conn.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
			*(v.(*request.Common)) = request.Common{
				RequestID: 1,
				Type:      request.JOIN,
				Payload:   mustMarshal(t, request.Join{RoomID: "flaky", Secret: testSecret}),
			}
			return nil
		})
		conn.EXPECT().WriteJSON(gomock.AssignableToTypeOf(response.Joined{})).Return(errors.New("connection reset"))
		f.router.EXPECT().Close().Return(nil)

		assert.Error(t, f.controller.Process(conn))
		_, ok := f.registry.Get("flaky")
		assert.False(t, ok)
	})

	t.Run("given join then leave when processed then the peer is cleaned up", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newFixture(t, ctrl)
		conn := socket.NewMockSocket(ctrl)

		var joined response.Joined
		gomock.InOrder(
			conn.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
				*(v.(*request.Common)) = request.Common{
					RequestID: 1,
					Type:      request.JOIN,
					Payload:   mustMarshal(t, request.Join{RoomID: "solo", Secret: testSecret}),
				}
				return nil
			}),
			conn.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
				*(v.(*request.Common)) = request.Common{RequestID: 2, Type: request.LEAVE}
				return nil
			}),
		)
		conn.EXPECT().WriteJSON(gomock.Any()).DoAndReturn(func(v any) error {
			joined = v.(response.Joined)
			return nil
		})
		f.router.EXPECT().Close().Return(nil)

		assert.NoError(t, f.controller.Process(conn))
		assert.NotEmpty(t, joined.UserID)
		_, ok := f.registry.Get("solo")
		assert.False(t, ok)
	})
}
