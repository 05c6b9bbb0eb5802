// Package bus implements an in-memory broadcast channel: every message
// published is fanned out to all current subscribers, each of which reads
// through its own bounded buffer. A subscriber that falls behind loses its
// oldest pending messages rather than stalling the publisher.
package bus

import "sync"

// DefaultBacklog is the per-subscriber buffer size used when callers do
// not configure one. Sized to absorb bursts from a peer without letting a
// stalled consumer grow memory without bound.
const DefaultBacklog = 100

// Channel fans published messages out to all current subscribers. A
// subscriber only sees messages published after it subscribed; messages
// published while there are no subscribers are discarded.
type Channel struct {
	backlog int

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription is one subscriber's receiving handle on a Channel.
type Subscription struct {
	ch chan string
}

// Messages returns the receive side of the subscription. The channel is
// closed when the subscription is removed from its Channel.
func (s *Subscription) Messages() <-chan string {
	return s.ch
}

// New creates an empty Channel. A non-positive backlog falls back to
// DefaultBacklog.
func New(backlog int) *Channel {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Channel{
		backlog: backlog,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Subscribe registers and returns a fresh receiving handle.
func (c *Channel) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan string, c.backlog)}
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its channel. Removing a subscription
// that is already gone is a no-op.
func (c *Channel) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[sub]; !ok {
		return
	}
	delete(c.subs, sub)
	close(sub.ch)
}

// Subscribers reports the number of live subscriptions.
func (c *Channel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Publish delivers msg to every current subscriber without ever blocking.
// When a subscriber's buffer is full its oldest pending message is evicted
// to make room. Returns the number of messages lost to slow consumers.
func (c *Channel) Publish(msg string) (dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sub := range c.subs {
		select {
		case sub.ch <- msg:
		default:
			// Buffer full: evict the oldest pending message, then retry.
			// Only Publish fills the buffer and it holds the lock, so the
			// retry can only race with the consumer draining.
			select {
			case <-sub.ch:
				dropped++
			default:
			}
			select {
			case sub.ch <- msg:
			default:
				dropped++
			}
		}
	}
	return dropped
}
