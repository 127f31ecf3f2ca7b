package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
	"dm-service/internal/store"
)

// HeaderRepository is the only write path for chat headers.
type HeaderRepository interface {
	FindHeader(ctx context.Context, ownerID, counterpartID string) (*models.ChatHeader, error)
	FindPair(ctx context.Context, a, b string) (*models.ChatHeader, *models.ChatHeader, error)
	UpsertHeader(ctx context.Context, ownerID, counterpartID, counterpartName, text string) (HeaderWrite, error)
	UndoHeader(ctx context.Context, write HeaderWrite) (UndoOutcome, error)
	GetHeader(ctx context.Context, headerID string) (models.ChatHeader, error)
	ListHeaders(ctx context.Context, ownerID string) ([]models.ChatHeader, error)
	WatchHeaders(ctx context.Context, ownerID string, fn func([]models.ChatHeader)) (func(), error)
}

// HeaderWrite records what one UpsertHeader stored so it can be undone.
type HeaderWrite struct {
	HeaderID   string
	CombinedID string
	Text       string
	At         string
	// Prior is the header as the write found it; nil when the write created it.
	Prior *models.ChatHeader
}

// UndoOutcome says what UndoHeader did.
type UndoOutcome string

const (
	UndoNone       UndoOutcome = "none"
	UndoRestored   UndoOutcome = "restore"
	UndoRemoved    UndoOutcome = "remove"
	UndoSuperseded UndoOutcome = "superseded"
)

// HeaderRepo implements HeaderRepository on a document store.
type HeaderRepo struct {
	store  store.DocumentStore
	locks  *keyedMutex
	now    func() time.Time
	logger zerolog.Logger
}

// NewHeaderRepo constructs a HeaderRepo.
func NewHeaderRepo(s store.DocumentStore, logger zerolog.Logger) *HeaderRepo {
	return &HeaderRepo{store: s, locks: newKeyedMutex(), now: time.Now, logger: logger}
}

func setHeaderID(h *models.ChatHeader, key string) {
	if h.ID == "" {
		h.ID = key
	}
}

func (r *HeaderRepo) decode(rec store.Record) (models.ChatHeader, error) {
	h, err := decodeRecord[models.ChatHeader](rec, setHeaderID)
	if err != nil {
		return h, err
	}
	if h.CombinedID != models.CombinedID(h.OwnerID, h.CounterpartID) {
		return h, fmt.Errorf("%w: %s: combinedId %q does not match participants", apperr.ErrMalformedRecord, rec.Key, h.CombinedID)
	}
	return h, nil
}

// FindHeader returns the header owned by ownerID for the conversation with
// counterpartID, or nil when none exists. Duplicates resolve to the first
// well-formed record; malformed ones are skipped like in ListHeaders.
func (r *HeaderRepo) FindHeader(ctx context.Context, ownerID, counterpartID string) (*models.ChatHeader, error) {
	combined := models.CombinedID(ownerID, counterpartID)
	records, err := r.store.Query(ctx, store.Where(headersCollection, "combinedId", combined))
	if err != nil {
		return nil, fmt.Errorf("find header %s: %w", combined, err)
	}

	var found []models.ChatHeader
	for _, rec := range records {
		h, err := r.decode(rec)
		if err != nil {
			r.logger.Warn().Err(err).Str("combined_id", combined).Msg("skipping chat header")
			continue
		}
		if h.OwnerID != ownerID {
			continue
		}
		found = append(found, h)
	}

	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		r.logger.Warn().
			Str("combined_id", combined).
			Int("count", len(found)).
			Str("using", found[0].ID).
			Msg("duplicate chat headers")
	}
	return &found[0], nil
}

// FindPair looks up both directions of a conversation, owner a first.
func (r *HeaderRepo) FindPair(ctx context.Context, a, b string) (*models.ChatHeader, *models.ChatHeader, error) {
	ab, err := r.FindHeader(ctx, a, b)
	if err != nil {
		return nil, nil, err
	}
	ba, err := r.FindHeader(ctx, b, a)
	if err != nil {
		return nil, nil, err
	}
	return ab, ba, nil
}

// UpsertHeader refreshes the last message of the (owner, counterpart) header,
// creating it first if needed. The returned HeaderWrite carries the header id
// and the state the write replaced. Timestamps on one header strictly
// increase, so every write to it is distinguishable.
func (r *HeaderRepo) UpsertHeader(ctx context.Context, ownerID, counterpartID, counterpartName, text string) (HeaderWrite, error) {
	combined := models.CombinedID(ownerID, counterpartID)
	unlock := r.locks.Lock(combined)
	defer unlock()

	existing, err := r.FindHeader(ctx, ownerID, counterpartID)
	if err != nil {
		return HeaderWrite{}, err
	}
	now := r.now()
	if existing != nil {
		if last := models.ParseTime(existing.LastMessageAt); !now.After(last) {
			now = last.Add(time.Nanosecond)
		}
	}
	ts := models.FormatTime(now)

	if existing != nil {
		fields := store.Document{"lastMessage": text, "timestamp": ts}
		if counterpartName != "" {
			fields["recipientName"] = counterpartName
		}
		if err := r.store.Update(ctx, headersCollection, existing.ID, fields); err != nil {
			return HeaderWrite{}, fmt.Errorf("update header %s: %w", existing.ID, err)
		}
		return HeaderWrite{HeaderID: existing.ID, CombinedID: combined, Text: text, At: ts, Prior: existing}, nil
	}

	doc, err := store.Encode(models.ChatHeader{
		OwnerID:         ownerID,
		CounterpartID:   counterpartID,
		CounterpartName: counterpartName,
		CombinedID:      combined,
		LastMessageText: text,
		LastMessageAt:   ts,
	})
	if err != nil {
		return HeaderWrite{}, err
	}
	id, err := r.store.Push(ctx, headersCollection, doc)
	if err != nil {
		return HeaderWrite{}, fmt.Errorf("create header %s: %w", combined, err)
	}
	return HeaderWrite{HeaderID: id, CombinedID: combined, Text: text, At: ts}, nil
}

// UndoHeader reverses write if it is still the latest write to its header:
// a header the write created is removed, otherwise the replaced last-message
// fields are put back. A header rewritten since, or already gone, is left as
// it is. It holds the same lock as UpsertHeader.
func (r *HeaderRepo) UndoHeader(ctx context.Context, write HeaderWrite) (UndoOutcome, error) {
	if write.HeaderID == "" {
		return UndoNone, nil
	}
	unlock := r.locks.Lock(write.CombinedID)
	defer unlock()

	current, err := r.store.Get(ctx, headersCollection, write.HeaderID)
	if errors.Is(err, store.ErrNotFound) {
		return UndoSuperseded, nil
	}
	if err != nil {
		return UndoNone, fmt.Errorf("load header %s: %w", write.HeaderID, err)
	}
	if current["lastMessage"] != write.Text || current["timestamp"] != write.At {
		return UndoSuperseded, nil
	}

	if write.Prior == nil {
		if err := r.store.Remove(ctx, headersCollection, write.HeaderID); err != nil {
			return UndoNone, fmt.Errorf("remove header %s: %w", write.HeaderID, err)
		}
		return UndoRemoved, nil
	}
	if err := r.store.Update(ctx, headersCollection, write.HeaderID, store.Document{
		"lastMessage":   write.Prior.LastMessageText,
		"timestamp":     write.Prior.LastMessageAt,
		"recipientName": write.Prior.CounterpartName,
	}); err != nil {
		return UndoNone, fmt.Errorf("restore header %s: %w", write.HeaderID, err)
	}
	return UndoRestored, nil
}

// GetHeader fetches a header by id.
func (r *HeaderRepo) GetHeader(ctx context.Context, headerID string) (models.ChatHeader, error) {
	doc, err := r.store.Get(ctx, headersCollection, headerID)
	if errors.Is(err, store.ErrNotFound) {
		return models.ChatHeader{}, apperr.ErrHeaderNotFound
	}
	if err != nil {
		return models.ChatHeader{}, err
	}
	return r.decode(store.Record{Key: headerID, Data: doc})
}

// ListHeaders returns the headers owned by ownerID, most recent first.
func (r *HeaderRepo) ListHeaders(ctx context.Context, ownerID string) ([]models.ChatHeader, error) {
	records, err := r.store.Query(ctx, store.Where(headersCollection, "senderId", ownerID))
	if err != nil {
		return nil, fmt.Errorf("list headers: %w", err)
	}
	return r.decodeSorted(records)
}

func (r *HeaderRepo) decodeSorted(records []store.Record) ([]models.ChatHeader, error) {
	headers := make([]models.ChatHeader, 0, len(records))
	for _, rec := range records {
		h, err := r.decode(rec)
		if err != nil {
			r.logger.Warn().Err(err).Msg("skipping chat header")
			continue
		}
		headers = append(headers, h)
	}
	sort.SliceStable(headers, func(i, j int) bool {
		return models.ParseTime(headers[i].LastMessageAt).After(models.ParseTime(headers[j].LastMessageAt))
	})
	return headers, nil
}

// WatchHeaders streams the owner's headers, most recent first.
func (r *HeaderRepo) WatchHeaders(ctx context.Context, ownerID string, fn func([]models.ChatHeader)) (func(), error) {
	return r.store.Subscribe(ctx, store.Where(headersCollection, "senderId", ownerID), func(records []store.Record) {
		headers, _ := r.decodeSorted(records)
		fn(headers)
	})
}
