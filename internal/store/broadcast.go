// Package store holds the client's view of server truth. A TaskStore and a
// UserStore route every call through a service.Service and publish
// consistent snapshots to subscribers.
package store

import (
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/logging"
)

// Option customizes a store.
type Option func(*options)

type options struct {
	log *logrus.Entry
}

// WithLogger sets the store logger.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) {
		o.log = l
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.log = logging.OrDiscard(o.log)
	return o
}

// broadcaster fans snapshots out to subscribers. publish is serialized so
// subscribers observe snapshots in the order states were taken. Subscribers
// must not call back into a mutating store method synchronously.
type broadcaster[S any] struct {
	publishMu sync.Mutex

	mu   sync.Mutex
	next int
	subs map[int]func(S)
}

func (b *broadcaster[S]) subscribe(fn func(S)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(S))
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// publish takes a snapshot with get and delivers it to every subscriber.
// The snapshot is shared and must be treated as read-only.
func (b *broadcaster[S]) publish(get func() S) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	if len(b.subs) == 0 {
		b.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	fns := make([]func(S), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	snapshot := get()
	for _, fn := range fns {
		fn(snapshot)
	}
}
