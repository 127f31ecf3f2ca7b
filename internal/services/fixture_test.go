package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"dm-service/internal/auth"
	"dm-service/internal/auth/authtest"
	"dm-service/internal/repositories"
	"dm-service/internal/store"
)

var errInjected = errors.New("injected store failure")

// flakyStore fails selected writes of an otherwise working memory store.
type flakyStore struct {
	*store.MemoryStore
	failPush   func(collection string, doc store.Document) bool
	failUpdate func(collection, key string) bool
}

func (s *flakyStore) Push(ctx context.Context, collection string, doc store.Document) (string, error) {
	if s.failPush != nil && s.failPush(collection, doc) {
		return "", errInjected
	}
	return s.MemoryStore.Push(ctx, collection, doc)
}

func (s *flakyStore) Update(ctx context.Context, collection, key string, fields store.Document) error {
	if s.failUpdate != nil && s.failUpdate(collection, key) {
		return errInjected
	}
	return s.MemoryStore.Update(ctx, collection, key, fields)
}

type fixture struct {
	store    *flakyStore
	users    *repositories.UserRepo
	headers  *repositories.HeaderRepo
	messages *repositories.MessageRepo
	friends  *repositories.FriendRepo
	chat     *ChatService
	alice    *auth.Session
	bob      *auth.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	s := &flakyStore{MemoryStore: store.NewMemoryStore(nil)}
	f := &fixture{
		store:    s,
		users:    repositories.NewUserRepo(s, logger),
		headers:  repositories.NewHeaderRepo(s, logger),
		messages: repositories.NewMessageRepo(s, logger),
		friends:  repositories.NewFriendRepo(s, logger),
	}
	f.chat = NewChatService(f.users, f.headers, f.messages, logger)

	ctx := context.Background()
	_, err := f.users.SaveSignIn(ctx, "u1", "alice@x.io", "Alice")
	require.NoError(t, err)
	_, err = f.users.SaveSignIn(ctx, "u2", "bob@x.io", "Bob")
	require.NoError(t, err)

	f.alice = authtest.NewSession(auth.Identity{UserID: "u1", Email: "alice@x.io", DisplayName: "Alice"})
	f.bob = authtest.NewSession(auth.Identity{UserID: "u2", Email: "bob@x.io", DisplayName: "Bob"})
	return f
}

// headerOwnedBy matches header documents owned by ownerID.
func headerOwnedBy(ownerID string) func(string, store.Document) bool {
	return func(collection string, doc store.Document) bool {
		return collection == "chatHeaders" && doc["senderId"] == ownerID
	}
}
