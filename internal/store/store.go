// Package store is the client side of the remote document store: keyed
// documents grouped in collections, equality queries, writes and change
// subscriptions.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound            = errors.New("document not found")
	ErrUnsupportedOperator = errors.New("unsupported query operator")
)

// Document is a schemaless record as held by the store.
type Document map[string]any

// Record is a document together with its key.
type Record struct {
	Key  string
	Data Document
}

// Op is a query comparison operator.
type Op string

const (
	OpEqual    Op = "=="
	OpNotEqual Op = "!="
)

// Query selects documents of a collection. An empty Field selects the whole
// collection.
type Query struct {
	Collection string
	Field      string
	Op         Op
	Value      any
}

// Where builds an equality query.
func Where(collection, field string, value any) Query {
	return Query{Collection: collection, Field: field, Op: OpEqual, Value: value}
}

// All selects every document of a collection.
func All(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) validate() error {
	if q.Collection == "" {
		return errors.New("query without collection")
	}
	if q.Field == "" {
		return nil
	}
	switch q.Op {
	case OpEqual, OpNotEqual:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedOperator, q.Op)
	}
}

// DocumentStore is implemented by every backend. Query results are returned
// in key insertion order.
type DocumentStore interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Query(ctx context.Context, q Query) ([]Record, error)
	Set(ctx context.Context, collection, key string, doc Document) error
	Update(ctx context.Context, collection, key string, fields Document) error
	// Push stores doc under a freshly generated key, also written to doc's
	// "id" field, and returns the key.
	Push(ctx context.Context, collection string, doc Document) (string, error)
	Remove(ctx context.Context, collection, key string) error
	// Subscribe delivers the current result of q and again after every
	// change to q's collection, until the returned func is called or ctx ends.
	Subscribe(ctx context.Context, q Query, fn func([]Record)) (func(), error)
	Close() error
}

// NewPushKey returns a time-ordered unique key.
func NewPushKey() string {
	return ulid.Make().String()
}

func cloneDocument(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	return maps.Clone(doc)
}

func matches(doc Document, q Query) bool {
	if q.Field == "" {
		return true
	}
	val, ok := doc[q.Field]
	if !ok || val == nil {
		return false
	}
	equal := fmt.Sprint(val) == fmt.Sprint(q.Value)
	if q.Op == OpNotEqual {
		return !equal
	}
	return equal
}
