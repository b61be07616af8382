package store

import (
	"slices"
	"sync"

	"github.com/erazemk/leftoverlink/internal/model"
)

// Recorder receives store activity for metrics.
type Recorder interface {
	RecordMutation(op string, size int)
	RecordListings(size int)
	RecordSubscribers(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordMutation(string, int) {}
func (nopRecorder) RecordListings(int)         {}
func (nopRecorder) RecordSubscribers(int)      {}

// Mutation names passed to Recorder.RecordMutation.
const (
	OpAdd     = "add"
	OpDelete  = "delete"
	OpRefresh = "refresh"
)

// Feed holds the latest collection and the observers that want it.
// Observers run synchronously under the feed lock, in publish order, and
// must not call back into whatever publishes to the feed.
type Feed struct {
	mu        sync.Mutex
	current   []model.Listing
	observers map[uint64]func([]model.Listing)
	nextID    uint64
	recorder  Recorder
}

// NewFeed creates a feed holding initial as its current collection.
func NewFeed(initial []model.Listing, recorder Recorder) *Feed {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Feed{
		current:   slices.Clone(initial),
		observers: make(map[uint64]func([]model.Listing)),
		recorder:  recorder,
	}
}

// Publish replaces the current collection and notifies every observer.
func (f *Feed) Publish(listings []model.Listing) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = slices.Clone(listings)
	for _, id := range f.order() {
		f.observers[id](slices.Clone(f.current))
	}
}

// Current returns a copy of the latest collection.
func (f *Feed) Current() []model.Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.current)
}

// Subscribe calls fn with the current collection and then with every
// published collection until the returned function is called.
func (f *Feed) Subscribe(fn func([]model.Listing)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.observers[id] = fn
	f.recorder.RecordSubscribers(len(f.observers))
	fn(slices.Clone(f.current))
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.observers, id)
			f.recorder.RecordSubscribers(len(f.observers))
			f.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active observers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

// order returns observer ids in subscription order.
func (f *Feed) order() []uint64 {
	ids := make([]uint64, 0, len(f.observers))
	for id := range f.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
