// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package broadcast implements a fan-out channel broadcaster for
// streaming events to multiple subscribers.
package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
)

const defaultSubscriberBuffer = 100

// Message wraps a broadcast payload. Lagged marks a synthetic
// notification delivered in place of dropped events; Missed counts how
// many were dropped.
type Message[T any] struct {
	Payload T
	Lagged  bool
	Missed  uint64
}

type subscriber[T any] struct {
	ch     chan Message[T]
	missed uint64
}

// Broadcaster fans events out to subscribers over buffered channels.
// Publishing never blocks: a subscriber that cannot keep up has events
// dropped and receives a lagged notification instead of being
// disconnected.
type Broadcaster[T any] struct {
	mu   sync.Mutex
	subs map[string]*subscriber[T]
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[string]*subscriber[T])}
}

// Subscribe registers a new subscriber and returns its id, the receive
// channel, and a cancel function. The channel is closed by cancel.
func (b *Broadcaster[T]) Subscribe() (string, <-chan Message[T], func()) {
	id := uuid.NewString()
	sub := &subscriber[T]{ch: make(chan Message[T], defaultSubscriberBuffer)}

	b.mu.Lock()
	b.subs[id] = sub
	count := len(b.subs)
	b.mu.Unlock()
	log.Debug("broadcast subscriber %s added, %d active", id, count)

	cancel := func() {
		b.mu.Lock()
		if current, ok := b.subs[id]; ok && current == sub {
			delete(b.subs, id)
			close(sub.ch)
		}
		b.mu.Unlock()
	}
	return id, sub.ch, cancel
}

// Publish delivers payload to every subscriber without blocking. When a
// subscriber's buffer is full the event is dropped and the drop count
// accumulates; the next successful delivery is preceded by a lagged
// notification carrying that count.
func (b *Broadcaster[T]) Publish(payload T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		if sub.missed > 0 {
			// Lagged notice needs two free slots so the payload still
			// fits behind it.
			if len(sub.ch) <= cap(sub.ch)-2 {
				sub.ch <- Message[T]{Lagged: true, Missed: sub.missed}
				sub.missed = 0
			} else {
				sub.missed++
				continue
			}
		}
		select {
		case sub.ch <- Message[T]{Payload: payload}:
		default:
			sub.missed++
			log.Debug("broadcast subscriber %s lagging, %d missed", id, sub.missed)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close disconnects all subscribers.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
