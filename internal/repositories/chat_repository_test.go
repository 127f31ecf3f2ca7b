package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
	"dm-service/internal/store"
)

func newHeaderRepo(t *testing.T) (*HeaderRepo, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore(nil)
	return NewHeaderRepo(s, zerolog.Nop()), s
}

func TestUpsertHeaderCreatesThenUpdatesSameRecord(t *testing.T) {
	ctx := context.Background()
	repo, s := newHeaderRepo(t)

	first, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "hi")
	require.NoError(t, err)
	second, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "still there?")
	require.NoError(t, err)
	assert.Equal(t, first.HeaderID, second.HeaderID)
	assert.Nil(t, first.Prior)
	require.NotNil(t, second.Prior)
	assert.Equal(t, "hi", second.Prior.LastMessageText)
	assert.True(t, models.ParseTime(second.At).After(models.ParseTime(first.At)))

	records, err := s.Query(ctx, store.All(headersCollection))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	h, err := repo.FindHeader(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "still there?", h.LastMessageText)
	assert.Equal(t, "u1_u2", h.CombinedID)
	assert.Equal(t, "Bob", h.CounterpartName)
}

func TestFindHeaderIsDirectional(t *testing.T) {
	ctx := context.Background()
	repo, _ := newHeaderRepo(t)

	_, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "hi")
	require.NoError(t, err)

	h, err := repo.FindHeader(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Nil(t, h)

	ab, ba, err := repo.FindPair(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.NotNil(t, ab)
	assert.Nil(t, ba)
}

func TestFindHeaderUsesFirstDuplicate(t *testing.T) {
	ctx := context.Background()
	repo, s := newHeaderRepo(t)

	for _, text := range []string{"first", "second"} {
		_, err := s.Push(ctx, headersCollection, store.Document{
			"senderId": "u1", "recipientId": "u2", "combinedId": "u1_u2", "lastMessage": text,
		})
		require.NoError(t, err)
	}

	h, err := repo.FindHeader(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "first", h.LastMessageText)

	write, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "third")
	require.NoError(t, err)
	assert.Equal(t, h.ID, write.HeaderID)
}

func TestFindHeaderSkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	repo, s := newHeaderRepo(t)

	require.NoError(t, s.Set(ctx, headersCollection, "h1", store.Document{
		"id": "h1", "combinedId": "u1_u2", "senderId": "u1",
	}))
	h, err := repo.FindHeader(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Nil(t, h)

	require.NoError(t, s.Set(ctx, headersCollection, "h2", store.Document{
		"id": "h2", "combinedId": "u1_u2", "senderId": "u1", "recipientId": "u3",
	}))
	require.NoError(t, s.Set(ctx, headersCollection, "h3", store.Document{
		"id": "h3", "combinedId": "u1_u2", "senderId": "u1", "recipientId": "u2", "lastMessage": "ok",
	}))
	h, err = repo.FindHeader(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "h3", h.ID)

	write, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "still sendable")
	require.NoError(t, err)
	assert.Equal(t, "h3", write.HeaderID)
}

func TestUpsertHeaderConcurrentFirstWritesShareOneRecord(t *testing.T) {
	ctx := context.Background()
	repo, s := newHeaderRepo(t)

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			write, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
			ids[i] = write.HeaderID
		}(i)
	}
	wg.Wait()

	records, err := s.Query(ctx, store.All(headersCollection))
	require.NoError(t, err)
	require.Len(t, records, 1)
	for _, id := range ids {
		assert.Equal(t, records[0].Key, id)
	}
}

func TestUpsertHeaderTimestampsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	repo, _ := newHeaderRepo(t)
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return frozen }

	first, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "same")
	require.NoError(t, err)
	second, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "same")
	require.NoError(t, err)
	assert.NotEqual(t, first.At, second.At)
	assert.True(t, models.ParseTime(second.At).After(models.ParseTime(first.At)))
}

func TestListHeadersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, _ := newHeaderRepo(t)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	_, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "to bob")
	require.NoError(t, err)
	_, err = repo.UpsertHeader(ctx, "u1", "u3", "Carol", "to carol")
	require.NoError(t, err)
	_, err = repo.UpsertHeader(ctx, "u2", "u1", "Alice", "not mine")
	require.NoError(t, err)

	headers, err := repo.ListHeaders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "u3", headers[0].CounterpartID)
	assert.Equal(t, "u2", headers[1].CounterpartID)
}

func TestUndoHeaderRestoresThenRemoves(t *testing.T) {
	ctx := context.Background()
	repo, _ := newHeaderRepo(t)

	created, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "before")
	require.NoError(t, err)
	before, err := repo.GetHeader(ctx, created.HeaderID)
	require.NoError(t, err)

	updated, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "after")
	require.NoError(t, err)
	outcome, err := repo.UndoHeader(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, UndoRestored, outcome)

	restored, err := repo.GetHeader(ctx, created.HeaderID)
	require.NoError(t, err)
	assert.Equal(t, before, restored)

	outcome, err = repo.UndoHeader(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, UndoRemoved, outcome)
	_, err = repo.GetHeader(ctx, created.HeaderID)
	assert.ErrorIs(t, err, apperr.ErrHeaderNotFound)

	outcome, err = repo.UndoHeader(ctx, HeaderWrite{})
	require.NoError(t, err)
	assert.Equal(t, UndoNone, outcome)
}

func TestUndoHeaderLeavesLaterWritesAlone(t *testing.T) {
	ctx := context.Background()
	repo, _ := newHeaderRepo(t)

	created, err := repo.UpsertHeader(ctx, "u1", "u2", "Bob", "first")
	require.NoError(t, err)
	_, err = repo.UpsertHeader(ctx, "u1", "u2", "Bob", "second")
	require.NoError(t, err)

	outcome, err := repo.UndoHeader(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, UndoSuperseded, outcome)

	h, err := repo.FindHeader(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, created.HeaderID, h.ID)
	assert.Equal(t, "second", h.LastMessageText)
}

func TestWatchHeaders(t *testing.T) {
	ctx := context.Background()
	repo, _ := newHeaderRepo(t)

	updates := make(chan int, 10)
	release, err := repo.WatchHeaders(ctx, "u1", func(headers []models.ChatHeader) {
		updates <- len(headers)
	})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, 0, <-updates)
	_, err = repo.UpsertHeader(ctx, "u1", "u2", "Bob", "hi")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		select {
		case n := <-updates:
			return n == 1
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
