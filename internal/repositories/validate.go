package repositories

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"dm-service/internal/apperr"
	"dm-service/internal/store"
)

const (
	usersCollection   = "users"
	friendsCollection = "friends"
	headersCollection = "chatHeaders"
	chatsCollection   = "chats"
)

var validate = validator.New()

// decodeRecord turns a stored document into a validated model. Documents
// written without an "id" field take the id from their key.
func decodeRecord[T any](rec store.Record, setID func(*T, string)) (T, error) {
	var out T
	if err := store.Decode(rec.Data, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", apperr.ErrMalformedRecord, rec.Key, err)
	}
	if setID != nil {
		setID(&out, rec.Key)
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", apperr.ErrMalformedRecord, rec.Key, err)
	}
	return out, nil
}

// keyedMutex serializes read-then-write sequences on the same logical key
// within this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
