package broker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"parley/broker"
)

func TestPublishToSubscriber(t *testing.T) {
	b := broker.New()
	sub := b.Subscribe(broker.ClientSocket, broker.Detail("r1u1"))

	err := b.Publish(broker.ClientSocket, broker.Detail("r1u1"), "hello")
	assert.NoError(t, err)

	select {
	case msg := <-sub.Receive():
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestPublishWithoutSubscriberFails(t *testing.T) {
	b := broker.New()
	err := b.Publish(broker.ClientSocket, broker.Detail("nobody"), "hello")
	assert.Error(t, err)
}

func TestUnsubscribeDropsDetail(t *testing.T) {
	b := broker.New()
	detail := broker.Detail("r1u1")
	sub := b.Subscribe(broker.ClientSocket, detail)

	err := b.Unsubscribe(broker.ClientSocket, detail, sub)
	assert.NoError(t, err)

	err = b.Publish(broker.ClientSocket, detail, "hello")
	assert.Error(t, err)
}

func TestFanOutToMultipleSubscribers(t *testing.T) {
	b := broker.New()
	detail := broker.Detail("r1u1")
	first := b.Subscribe(broker.ClientSocket, detail)
	second := b.Subscribe(broker.ClientSocket, detail)

	assert.NoError(t, b.Publish(broker.ClientSocket, detail, 42))

	for _, sub := range []interface{ Receive() <-chan any }{first, second} {
		select {
		case msg := <-sub.Receive():
			assert.Equal(t, 42, msg)
		case <-time.After(time.Second):
			t.Fatal("message was not delivered to all subscribers")
		}
	}
}
