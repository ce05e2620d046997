package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgallion1/hansardgest/internal/extract"
	"github.com/dgallion1/hansardgest/internal/store"
)

var _ store.Store = (*Store)(nil)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed store.Store. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, verifies the connection and runs Migrate.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) HasDocument(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM raw_documents WHERE name = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres store: has document: %w", err)
	}
	return exists, nil
}

// SaveDocument writes the document, its sittings, utterances and
// interjections in one transaction. A question's linked answer is stored as
// its own row and referenced through answer_id.
func (s *Store) SaveDocument(ctx context.Context, doc store.Document, results []extract.ChamberResult) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var docID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO raw_documents (name, house, source_url, text)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		doc.Name, doc.House, doc.SourceURL, doc.Text,
	).Scan(&docID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("postgres store: save %s: %w", doc.Name, store.ErrDuplicate)
		}
		return 0, fmt.Errorf("postgres store: insert document: %w", err)
	}

	written := 0
	for _, r := range results {
		sittingID, err := insertSitting(ctx, tx, docID, r)
		if err != nil {
			return 0, err
		}
		for pos, u := range r.Utterances {
			var answerID *int64
			if u.LinkedAnswer != nil {
				id, err := insertUtterance(ctx, tx, sittingID, pos, *u.LinkedAnswer, nil)
				if err != nil {
					return 0, err
				}
				answerID = &id
				written++
			}
			if _, err := insertUtterance(ctx, tx, sittingID, pos, u, answerID); err != nil {
				return 0, err
			}
			written++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres store: commit: %w", err)
	}
	return written, nil
}

func insertSitting(ctx context.Context, tx pgx.Tx, docID int64, r extract.ChamberResult) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO sittings
		    (document_id, segment_key, chamber, sitting_date, parliament_no, session_no, period_no, house)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		docID, r.Key, string(r.Chamber), r.Session.Date,
		r.Session.ParliamentNumber, r.Session.SessionNumber, r.Session.PeriodNumber,
		r.Session.House,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres store: insert sitting: %w", err)
	}
	return id, nil
}

func insertUtterance(ctx context.Context, tx pgx.Tx, sittingID int64, pos int, u extract.Utterance, answerID *int64) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO utterances (sitting_id, position, kind, raw_author, text, debate_title, answer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		sittingID, pos, string(u.Kind), u.Speaker, u.Text, u.DebateTitle, answerID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres store: insert utterance: %w", err)
	}

	if len(u.Interjections) == 0 {
		return id, nil
	}
	rows := make([][]any, 0, len(u.Interjections))
	for _, ij := range u.Interjections {
		rows = append(rows, []any{id, ij.Sequence, ij.Speaker, ij.Text})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"interjections"},
		[]string{"utterance_id", "sequence", "raw_author", "text"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return 0, fmt.Errorf("postgres store: copy interjections: %w", err)
	}
	return id, nil
}

func (s *Store) ListDocuments(ctx context.Context, limit int) ([]store.DocumentSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT d.name,
		       COALESCE(NULLIF(d.house, ''), MIN(s.house), ''),
		       MIN(s.sitting_date),
		       COUNT(DISTINCT s.id),
		       COUNT(u.id),
		       d.stored_at
		FROM   raw_documents d
		LEFT   JOIN sittings s   ON s.document_id = d.id
		LEFT   JOIN utterances u ON u.sitting_id = s.id
		GROUP  BY d.id
		ORDER  BY d.stored_at DESC, d.name
		LIMIT  $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list documents: %w", err)
	}
	defer rows.Close()

	var out []store.DocumentSummary
	for rows.Next() {
		var (
			ds   store.DocumentSummary
			date pgtype.Date
		)
		if err := rows.Scan(&ds.Name, &ds.House, &date, &ds.Segments, &ds.Utterances, &ds.StoredAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan document: %w", err)
		}
		if date.Valid {
			ds.Date = date.Time
		}
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: list documents: %w", err)
	}
	return out, nil
}

func (s *Store) Close() {
	s.pool.Close()
}
