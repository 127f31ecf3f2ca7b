package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps documents as JSONB rows of a single table. The schema
// is created by db.Connect.
type PostgresStore struct {
	db   *sqlx.DB
	feed Feed
}

// NewPostgresStore wraps an open database. A nil feed gets a LocalFeed.
func NewPostgresStore(db *sqlx.DB, feed Feed) *PostgresStore {
	if feed == nil {
		feed = NewLocalFeed()
	}
	return &PostgresStore{db: db, feed: feed}
}

type documentRow struct {
	Key  string `db:"key"`
	Data []byte `db:"data"`
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (Document, error) {
	var raw []byte
	err := s.db.GetContext(ctx, &raw, `SELECT data FROM documents WHERE collection=$1 AND key=$2`, collection, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return unmarshalDocument(raw)
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Record, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	var rows []documentRow
	var err error
	switch {
	case q.Field == "":
		err = s.db.SelectContext(ctx, &rows, `SELECT key, data FROM documents WHERE collection=$1 ORDER BY seq ASC`, q.Collection)
	case q.Op == OpNotEqual:
		err = s.db.SelectContext(ctx, &rows, `SELECT key, data FROM documents
            WHERE collection=$1 AND data->>$2 IS NOT NULL AND data->>$2 <> $3
            ORDER BY seq ASC`, q.Collection, q.Field, fmt.Sprint(q.Value))
	default:
		err = s.db.SelectContext(ctx, &rows, `SELECT key, data FROM documents
            WHERE collection=$1 AND data->>$2 = $3
            ORDER BY seq ASC`, q.Collection, q.Field, fmt.Sprint(q.Value))
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		doc, err := unmarshalDocument(row.Data)
		if err != nil {
			return nil, fmt.Errorf("query %s: decode %s: %w", q.Collection, row.Key, err)
		}
		out = append(out, Record{Key: row.Key, Data: doc})
	}
	return out, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, key string, doc Document) error {
	raw, err := marshalDocument(doc)
	if err != nil {
		return err
	}
	// lib/pq sends []byte as bytea, so JSON goes over the wire as text.
	_, err = s.db.ExecContext(ctx, `INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3::jsonb)
        ON CONFLICT (collection, key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, collection, key, string(raw))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, key, err)
	}
	publishChange(ctx, s.feed, collection)
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, key string, fields Document) error {
	raw, err := marshalDocument(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
        WHERE collection=$1 AND key=$2`, collection, key, string(raw))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, key, ErrNotFound)
	}
	publishChange(ctx, s.feed, collection)
	return nil
}

func (s *PostgresStore) Push(ctx context.Context, collection string, doc Document) (string, error) {
	key := NewPushKey()
	doc = cloneDocument(doc)
	doc["id"] = key
	if err := s.Set(ctx, collection, key, doc); err != nil {
		return "", err
	}
	return key, nil
}

func (s *PostgresStore) Remove(ctx context.Context, collection, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection=$1 AND key=$2`, collection, key); err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, key, err)
	}
	publishChange(ctx, s.feed, collection)
	return nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, q Query, fn func([]Record)) (func(), error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	return watch(ctx, s.feed, q, s.Query, fn), nil
}

func (s *PostgresStore) Close() error {
	if err := s.feed.Close(); err != nil {
		return err
	}
	return s.db.Close()
}
