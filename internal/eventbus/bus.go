// Package eventbus implements the per-session publish/subscribe layer that
// feeds WebSocket streaming. Publishing is best-effort: a subscriber whose
// channel is full is dropped rather than allowed to block the publisher,
// generalizing a hook-driven step broadcast into an explicit pub/sub type.
package eventbus

import (
	"sync"
	"sync/atomic"

	"ragmux/internal/model"
)

// Bus fans out model.ChatEvent values to per-session subscribers, in
// publish order, without ever blocking the publisher on a slow reader.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	subCap      int
	nextSubID   int64
	seq         map[string]*int64
}

type subscriber struct {
	id int64
	ch chan model.ChatEvent
}

// New builds a Bus whose per-subscriber buffered channel has capacity cap.
func New(cap int) *Bus {
	if cap <= 0 {
		cap = 64
	}
	return &Bus{
		subscribers: make(map[string]map[int64]*subscriber),
		subCap:      cap,
		seq:         make(map[string]*int64),
	}
}

// Subscription is a handle returned to callers of Subscribe; it must be
// closed via Unsubscribe when the caller stops reading.
type Subscription struct {
	SessionID string
	id        int64
	Events    <-chan model.ChatEvent
}

// Subscribe registers a new listener for a session's events.
func (b *Bus) Subscribe(sessionID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := atomic.AddInt64(&b.nextSubID, 1)
	ch := make(chan model.ChatEvent, b.subCap)
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[int64]*subscriber)
	}
	b.subscribers[sessionID][id] = &subscriber{id: id, ch: ch}
	return &Subscription{SessionID: sessionID, id: id, Events: ch}
}

// Unsubscribe removes and closes a subscription's channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.SessionID]
	if subs == nil {
		return
	}
	if s, ok := subs[sub.id]; ok {
		delete(subs, sub.id)
		close(s.ch)
	}
	if len(subs) == 0 {
		delete(b.subscribers, sub.SessionID)
	}
}

// Publish assigns the event the next sequence number for its session and
// delivers it to every current subscriber. Subscribers whose channel is
// full are dropped (their channel closed, entry removed) rather than
// allowed to back up the publisher; this is a deliberate best-effort
// trade-off, not a bug: slow UI clients must never stall agent execution.
func (b *Bus) Publish(evt model.ChatEvent) {
	b.mu.Lock()
	counter, ok := b.seq[evt.SessionID]
	if !ok {
		var zero int64
		counter = &zero
		b.seq[evt.SessionID] = counter
	}
	*counter++
	evt.Seq = *counter

	subs := b.subscribers[evt.SessionID]
	var dead []int64
	for id, s := range subs {
		select {
		case s.ch <- evt:
		default:
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		if s, ok := subs[id]; ok {
			close(s.ch)
			delete(subs, id)
		}
	}
	b.mu.Unlock()
}

// SubscriberCount reports how many active listeners a session currently has.
func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[sessionID])
}
