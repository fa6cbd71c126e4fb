// Package broker provides topic/detail based message fan-out between the
// signaling controller and per-connection send loops.
package broker

import (
	"fmt"
	"sync"

	"parley/broker/channel"
	"parley/broker/subscription"
)

// Topics messages can be published on.
const (
	// ClientSocket delivers messages to a single connection's send loop.
	// Detail is roomID+userID.
	ClientSocket TOPIC = iota
)

// TOPIC is a coarse message category.
type TOPIC int

// DETAIL narrows a topic down to a single destination.
type DETAIL string

// Detail converts a string into DETAIL.
func Detail(s string) DETAIL {
	return DETAIL(s)
}

const subscriptionQueueSize = 16

// Broker routes published messages to subscriptions.
type Broker struct {
	mu     sync.RWMutex
	topics map[TOPIC]map[DETAIL]*channel.Channel
}

// New creates a new Broker instance.
func New() *Broker {
	return &Broker{
		topics: make(map[TOPIC]map[DETAIL]*channel.Channel),
	}
}

// Publish sends a message to every subscription registered under the topic
// and detail. Publishing to a detail nobody subscribes to is an error: the
// caller is addressing a connection that no longer exists.
func (b *Broker) Publish(topic TOPIC, detail DETAIL, message any) error {
	b.mu.RLock()
	ch, ok := b.topics[topic][detail]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no subscriber for topic %d detail %s", topic, detail)
	}
	ch.SendAll(message)
	return nil
}

// Subscribe registers a new subscription under the topic and detail.
func (b *Broker) Subscribe(topic TOPIC, detail DETAIL) *subscription.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	details, ok := b.topics[topic]
	if !ok {
		details = make(map[DETAIL]*channel.Channel)
		b.topics[topic] = details
	}
	ch, ok := details[detail]
	if !ok {
		ch = channel.New()
		details[detail] = ch
	}
	sub := subscription.New(subscriptionQueueSize)
	ch.AddSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription and drops the channel when it was the
// last subscriber.
func (b *Broker) Unsubscribe(topic TOPIC, detail DETAIL, sub *subscription.Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.topics[topic][detail]
	if !ok {
		return fmt.Errorf("no channel for topic %d detail %s", topic, detail)
	}
	ch.RemoveSubscription(sub)
	if ch.Empty() {
		delete(b.topics[topic], detail)
	}
	return nil
}
