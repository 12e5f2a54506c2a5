// Package events carries typed notifications between the watch-state engine
// and its consumers, replacing stringly-named UI events with a statically
// checkable contract.
package events

import (
	"sync"

	"trackr/models"
)

// WatchStateChanged is published after a season tree was successfully
// persisted for a series.
type WatchStateChanged struct {
	UserID  string
	Nmr     string
	Seasons []models.Season
}

// SeriesCompleted is published when the detector surfaces a newly completed
// series for a user.
type SeriesCompleted struct {
	UserID string
	Series models.Series
}

const subscriberBuffer = 16

// Bus is an in-process publish/subscribe hub. Publishing never blocks: a
// subscriber that falls behind loses events rather than stalling a toggle.
type Bus struct {
	mu            sync.RWMutex
	watchSubs     map[int]chan WatchStateChanged
	completedSubs map[int]chan SeriesCompleted
	nextWatch     int
	nextCompleted int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		watchSubs:     make(map[int]chan WatchStateChanged),
		completedSubs: make(map[int]chan SeriesCompleted),
	}
}

// SubscribeWatchState returns a channel of watch-state changes and a cancel
// function that closes it.
func (b *Bus) SubscribeWatchState() (<-chan WatchStateChanged, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextWatch
	b.nextWatch++
	ch := make(chan WatchStateChanged, subscriberBuffer)
	b.watchSubs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.watchSubs[id]; ok {
			delete(b.watchSubs, id)
			close(existing)
		}
	}
}

// SubscribeCompleted returns a channel of completed-series events and a
// cancel function that closes it.
func (b *Bus) SubscribeCompleted() (<-chan SeriesCompleted, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextCompleted
	b.nextCompleted++
	ch := make(chan SeriesCompleted, subscriberBuffer)
	b.completedSubs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.completedSubs[id]; ok {
			delete(b.completedSubs, id)
			close(existing)
		}
	}
}

// PublishWatchState delivers the event to current subscribers.
func (b *Bus) PublishWatchState(ev WatchStateChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.watchSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PublishCompleted delivers the event to current subscribers.
func (b *Bus) PublishCompleted(ev SeriesCompleted) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.completedSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}
