package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Feed carries "collection changed" notifications from writers to
// subscriptions.
type Feed interface {
	Publish(ctx context.Context, collection string) error
	Listen(collection string, fn func()) (cancel func())
	Close() error
}

// LocalFeed delivers notifications within the process.
type LocalFeed struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[string]map[int]func()
}

// NewLocalFeed creates an empty feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{listeners: make(map[string]map[int]func())}
}

func (f *LocalFeed) Publish(_ context.Context, collection string) error {
	f.notify(collection)
	return nil
}

func (f *LocalFeed) notify(collection string) {
	f.mu.RLock()
	fns := make([]func(), 0, len(f.listeners[collection]))
	for _, fn := range f.listeners[collection] {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func (f *LocalFeed) Listen(collection string, fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	if _, ok := f.listeners[collection]; !ok {
		f.listeners[collection] = make(map[int]func())
	}
	f.listeners[collection][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if fns, ok := f.listeners[collection]; ok {
			delete(fns, id)
			if len(fns) == 0 {
				delete(f.listeners, collection)
			}
		}
	}
}

// Listeners reports the number of active listeners on a collection.
func (f *LocalFeed) Listeners(collection string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners[collection])
}

func (f *LocalFeed) Close() error { return nil }

type loadFunc func(ctx context.Context, q Query) ([]Record, error)

// watch runs one subscription. Snapshots are delivered from a single
// goroutine, so callbacks for one subscription never overlap, and pending
// notifications coalesce into one reload.
func watch(ctx context.Context, feed Feed, q Query, load loadFunc, fn func([]Record)) func() {
	ctx, cancel := context.WithCancel(ctx)
	notify := make(chan struct{}, 1)
	notify <- struct{}{}

	stop := feed.Listen(q.Collection, func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})

	var once sync.Once
	release := func() {
		once.Do(func() {
			stop()
			cancel()
		})
	}

	go func() {
		defer release()
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
			}

			records, err := load(ctx, q)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("collection", q.Collection).Msg("subscription reload failed")
				continue
			}
			fn(records)
		}
	}()

	return release
}

// publishChange notifies subscribers after a committed write. A failed
// notification does not undo the write, so it is only logged.
func publishChange(ctx context.Context, feed Feed, collection string) {
	if err := feed.Publish(ctx, collection); err != nil {
		log.Warn().Err(err).Str("collection", collection).Msg("change notification failed")
	}
}
