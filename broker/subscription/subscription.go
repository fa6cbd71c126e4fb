// Package subscription provides the receiving end of a broker channel.
package subscription

// Subscription is a single subscriber's message queue.
type Subscription struct {
	queue chan any
}

// New creates a new Subscription with a buffered queue.
func New(size int) *Subscription {
	return &Subscription{
		queue: make(chan any, size),
	}
}

// Send enqueues a message without blocking. When the subscriber is too slow
// and its queue is full, the message is dropped; delivery is best effort.
func (s *Subscription) Send(message any) bool {
	select {
	case s.queue <- message:
		return true
	default:
		return false
	}
}

// Receive returns the channel messages are delivered on.
func (s *Subscription) Receive() <-chan any {
	return s.queue
}

// Close closes the underlying queue.
func (s *Subscription) Close() {
	close(s.queue)
}
