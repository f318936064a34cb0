package sidecar

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/murmurapp/sidecar/proto"
)

// Subscription delivers sidecar notifications on C, in wire order, until
// Cancel is called or the connection closes (the channel is then closed).
// Delivery is best-effort: once the buffer is full, further notifications
// are dropped for this subscriber and counted, never queued.
type Subscription struct {
	C <-chan proto.Notification

	id      uuid.UUID
	ch      chan proto.Notification
	client  *Client
	once    sync.Once
	dropped atomic.Uint64
}

// Notifications registers a subscriber with the given buffer (minimum 1).
// Every subscriber independently receives every notification; a
// notification reaches all current subscribers before the reader processes
// the next inbound message.
func (client *Client) Notifications(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	sub := &Subscription{
		id:     uuid.New(),
		ch:     make(chan proto.Notification, buffer),
		client: client,
	}
	sub.C = sub.ch

	client.subMutex.Lock()
	defer client.subMutex.Unlock()
	if client.isDown() {
		// Too late to ever deliver anything; hand back a closed channel.
		close(sub.ch)
		return sub
	}
	client.subs[sub.id] = sub
	return sub
}

// Cancel removes the subscriber and closes its channel. Safe to call twice
// and after the connection closed.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.client.subMutex.Lock()
		defer s.client.subMutex.Unlock()
		if _, registered := s.client.subs[s.id]; !registered {
			return // closeSubscriptions already closed the channel
		}
		delete(s.client.subs, s.id)
		close(s.ch)
	})
}

// Dropped reports how many notifications were lost to a full buffer.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// fanout runs on the reader goroutine, so notifications reach subscribers
// strictly in wire order.
func (client *Client) fanout(n proto.Notification) {
	client.subMutex.Lock()
	defer client.subMutex.Unlock()
	for _, sub := range client.subs {
		select {
		case sub.ch <- n:
		default:
			sub.dropped.Add(1)
			client.log.WithField("method", n.Method).Warn("dropping notification for slow subscriber")
		}
	}
}

func (client *Client) closeSubscriptions() {
	client.subMutex.Lock()
	defer client.subMutex.Unlock()
	for id, sub := range client.subs {
		delete(client.subs, id)
		close(sub.ch)
	}
}

func (client *Client) isDown() bool {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	return client.shutdown
}
