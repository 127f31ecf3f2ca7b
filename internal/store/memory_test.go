package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSetUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	_, err := s.Get(ctx, "users", "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "users", "u1", Document{"email": "a@x.io", "displayName": "A"}))
	require.NoError(t, s.Update(ctx, "users", "u1", Document{"username": "alice1"}))

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", doc["email"])
	assert.Equal(t, "alice1", doc["username"])

	err = s.Update(ctx, "users", "missing", Document{"username": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	doc := Document{"email": "a@x.io"}
	require.NoError(t, s.Set(ctx, "users", "u1", doc))
	doc["email"] = "changed"

	got, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	got["email"] = "changed again"

	again, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", again["email"])
}

func TestMemoryStorePushAndQueryKeepOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	var keys []string
	for _, text := range []string{"one", "two", "three"} {
		key, err := s.Push(ctx, "chats", Document{"senderId": "u1", "message": text})
		require.NoError(t, err)
		keys = append(keys, key)
	}
	_, err := s.Push(ctx, "chats", Document{"senderId": "u2", "message": "other"})
	require.NoError(t, err)

	records, err := s.Query(ctx, Where("chats", "senderId", "u1"))
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, keys[i], rec.Key)
		assert.Equal(t, keys[i], rec.Data["id"])
	}

	others, err := s.Query(ctx, Query{Collection: "chats", Field: "senderId", Op: OpNotEqual, Value: "u1"})
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "other", others[0].Data["message"])

	all, err := s.Query(ctx, All("chats"))
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMemoryStoreQueryMatchesBooleans(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	_, err := s.Push(ctx, "chats", Document{"isRead": false})
	require.NoError(t, err)
	_, err = s.Push(ctx, "chats", Document{"isRead": true})
	require.NoError(t, err)

	unread, err := s.Query(ctx, Where("chats", "isRead", false))
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}

func TestMemoryStoreRejectsUnknownOperator(t *testing.T) {
	s := NewMemoryStore(nil)
	_, err := s.Query(context.Background(), Query{Collection: "chats", Field: "x", Op: ">", Value: 1})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)

	_, err = s.Subscribe(context.Background(), Query{Collection: "chats", Field: "x", Op: "<"}, func([]Record) {})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestMemoryStoreRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	key, err := s.Push(ctx, "chatHeaders", Document{"senderId": "u1"})
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, "chatHeaders", key))
	_, err = s.Get(ctx, "chatHeaders", key)
	assert.ErrorIs(t, err, ErrNotFound)

	records, err := s.Query(ctx, All("chatHeaders"))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, s.Remove(ctx, "nothing", "here"))
}

func TestMemoryStoreSubscribeDeliversSnapshots(t *testing.T) {
	ctx := context.Background()
	feed := NewLocalFeed()
	s := NewMemoryStore(feed)

	snapshots := make(chan []Record, 10)
	release, err := s.Subscribe(ctx, Where("chats", "recipientId", "u2"), func(records []Record) {
		snapshots <- records
	})
	require.NoError(t, err)

	first := receive(t, snapshots)
	assert.Empty(t, first)

	_, err = s.Push(ctx, "chats", Document{"recipientId": "u2", "message": "hi"})
	require.NoError(t, err)

	var latest []Record
	require.Eventually(t, func() bool {
		select {
		case latest = <-snapshots:
		default:
		}
		return len(latest) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hi", latest[0].Data["message"])

	release()
	require.Eventually(t, func() bool { return feed.Listeners("chats") == 0 }, time.Second, 5*time.Millisecond)
	release()
}

func TestMemoryStoreSubscriptionStopsAfterRelease(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	snapshots := make(chan []Record, 10)
	release, err := s.Subscribe(ctx, All("friends"), func(records []Record) {
		snapshots <- records
	})
	require.NoError(t, err)
	receive(t, snapshots)

	release()
	_, err = s.Push(ctx, "friends", Document{"userId": "u1"})
	require.NoError(t, err)

	select {
	case <-snapshots:
		t.Fatal("snapshot delivered after release")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStoreSubscriptionEndsWithContext(t *testing.T) {
	feed := NewLocalFeed()
	s := NewMemoryStore(feed)
	ctx, cancel := context.WithCancel(context.Background())

	snapshots := make(chan []Record, 10)
	_, err := s.Subscribe(ctx, All("friends"), func(records []Record) {
		snapshots <- records
	})
	require.NoError(t, err)
	receive(t, snapshots)

	cancel()
	require.Eventually(t, func() bool { return feed.Listeners("friends") == 0 }, time.Second, 5*time.Millisecond)
}

func TestEncodeDecode(t *testing.T) {
	type header struct {
		ID         string `json:"id"`
		CombinedID string `json:"combinedId"`
	}
	doc, err := Encode(header{ID: "h1", CombinedID: "u1_u2"})
	require.NoError(t, err)
	assert.Equal(t, Document{"id": "h1", "combinedId": "u1_u2"}, doc)

	var out header
	require.NoError(t, Decode(doc, &out))
	assert.Equal(t, "u1_u2", out.CombinedID)
}

func receive(t *testing.T, ch <-chan []Record) []Record {
	t.Helper()
	select {
	case records := <-ch:
		return records
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}
