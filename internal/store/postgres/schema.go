// Package postgres stores extraction results in PostgreSQL through a
// [pgxpool.Pool]. [Migrate] creates the schema on first use.
//
//	s, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
//	n, err := s.SaveDocument(ctx, doc, results)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlRawDocuments = `
CREATE TABLE IF NOT EXISTS raw_documents (
    id          BIGSERIAL    PRIMARY KEY,
    name        TEXT         NOT NULL UNIQUE,
    house       TEXT         NOT NULL DEFAULT '',
    source_url  TEXT         NOT NULL DEFAULT '',
    text        TEXT         NOT NULL DEFAULT '',
    stored_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);`

const ddlSittings = `
CREATE TABLE IF NOT EXISTS sittings (
    id                BIGSERIAL  PRIMARY KEY,
    document_id       BIGINT     NOT NULL REFERENCES raw_documents (id) ON DELETE CASCADE,
    segment_key       TEXT       NOT NULL,
    chamber           TEXT       NOT NULL,
    sitting_date      DATE       NOT NULL,
    parliament_no     INTEGER,
    session_no        INTEGER,
    period_no         INTEGER,
    house             TEXT       NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sittings_date ON sittings (sitting_date);`

const ddlUtterances = `
CREATE TABLE IF NOT EXISTS utterances (
    id            BIGSERIAL  PRIMARY KEY,
    sitting_id    BIGINT     NOT NULL REFERENCES sittings (id) ON DELETE CASCADE,
    position      INTEGER    NOT NULL,
    kind          TEXT       NOT NULL,
    raw_author    TEXT       NOT NULL DEFAULT '',
    text          TEXT       NOT NULL,
    debate_title  TEXT       NOT NULL DEFAULT '',
    answer_id     BIGINT     REFERENCES utterances (id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_utterances_sitting ON utterances (sitting_id, position);
CREATE INDEX IF NOT EXISTS idx_utterances_raw_author ON utterances (raw_author);`

const ddlInterjections = `
CREATE TABLE IF NOT EXISTS interjections (
    utterance_id  BIGINT   NOT NULL REFERENCES utterances (id) ON DELETE CASCADE,
    sequence      INTEGER  NOT NULL,
    raw_author    TEXT     NOT NULL DEFAULT '',
    text          TEXT     NOT NULL,
    PRIMARY KEY (utterance_id, sequence)
);`

// Migrate creates every table and index if missing. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlRawDocuments, ddlSittings, ddlUtterances, ddlInterjections} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
