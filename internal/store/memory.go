package store

import (
	"context"
	"fmt"
	"sync"
)

type memCollection struct {
	keys []string
	docs map[string]Document
}

// MemoryStore keeps documents in process. It backs development runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	feed        Feed
}

// NewMemoryStore creates a MemoryStore. A nil feed gets a LocalFeed.
func NewMemoryStore(feed Feed) *MemoryStore {
	if feed == nil {
		feed = NewLocalFeed()
	}
	return &MemoryStore{collections: make(map[string]*memCollection), feed: feed}
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	doc, ok := col.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Record, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[q.Collection]
	if !ok {
		return nil, nil
	}
	var out []Record
	for _, key := range col.keys {
		doc := col.docs[key]
		if matches(doc, q) {
			out = append(out, Record{Key: key, Data: cloneDocument(doc)})
		}
	}
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, key string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	col := s.collection(collection)
	if _, exists := col.docs[key]; !exists {
		col.keys = append(col.keys, key)
	}
	col.docs[key] = cloneDocument(doc)
	s.mu.Unlock()
	publishChange(ctx, s.feed, collection)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, key string, fields Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	col, ok := s.collections[collection]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, key, ErrNotFound)
	}
	doc, ok := col.docs[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, key, ErrNotFound)
	}
	updated := cloneDocument(doc)
	for k, v := range fields {
		updated[k] = v
	}
	col.docs[key] = updated
	s.mu.Unlock()
	publishChange(ctx, s.feed, collection)
	return nil
}

func (s *MemoryStore) Push(ctx context.Context, collection string, doc Document) (string, error) {
	key := NewPushKey()
	doc = cloneDocument(doc)
	doc["id"] = key
	if err := s.Set(ctx, collection, key, doc); err != nil {
		return "", err
	}
	return key, nil
}

func (s *MemoryStore) Remove(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	col, ok := s.collections[collection]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if _, ok := col.docs[key]; ok {
		delete(col.docs, key)
		for i, k := range col.keys {
			if k == key {
				col.keys = append(col.keys[:i], col.keys[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	publishChange(ctx, s.feed, collection)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query, fn func([]Record)) (func(), error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	return watch(ctx, s.feed, q, s.Query, fn), nil
}

func (s *MemoryStore) Close() error {
	return s.feed.Close()
}

func (s *MemoryStore) collection(name string) *memCollection {
	col, ok := s.collections[name]
	if !ok {
		col = &memCollection{docs: make(map[string]Document)}
		s.collections[name] = col
	}
	return col
}
