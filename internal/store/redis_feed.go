package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisFeed fans change notifications out across service instances through
// Redis pub/sub. Every instance hears its own publishes too, so local
// listeners are only notified from the subscription loop.
type RedisFeed struct {
	client *redis.Client
	pubsub *redis.PubSub
	local  *LocalFeed
	prefix string
}

// NewRedisFeed connects to redisURL and starts listening on prefix+"*".
func NewRedisFeed(ctx context.Context, redisURL, prefix string) (*RedisFeed, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	pubsub := client.PSubscribe(ctx, prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("subscribe %s*: %w", prefix, err)
	}

	f := &RedisFeed{client: client, pubsub: pubsub, local: NewLocalFeed(), prefix: prefix}
	go f.run()
	return f, nil
}

func (f *RedisFeed) run() {
	for msg := range f.pubsub.Channel() {
		f.local.notify(strings.TrimPrefix(msg.Channel, f.prefix))
	}
}

func (f *RedisFeed) Publish(ctx context.Context, collection string) error {
	if err := f.client.Publish(ctx, f.prefix+collection, "changed").Err(); err != nil {
		return fmt.Errorf("publish change on %s: %w", collection, err)
	}
	return nil
}

func (f *RedisFeed) Listen(collection string, fn func()) func() {
	return f.local.Listen(collection, fn)
}

func (f *RedisFeed) Close() error {
	_ = f.pubsub.Close()
	return f.client.Close()
}
