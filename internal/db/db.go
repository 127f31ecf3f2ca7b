package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Connect opens the Postgres database backing the document store and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            seq BIGSERIAL,
            collection TEXT NOT NULL,
            key TEXT NOT NULL,
            data JSONB NOT NULL,
            updated_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY(collection, key)
        );`,
		`CREATE INDEX IF NOT EXISTS documents_collection_seq_idx ON documents (collection, seq);`,
		`CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Info().Msg("database migrations applied")
	return nil
}
