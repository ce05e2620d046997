// Package store persists extraction results. Speaker tokens are stored as
// the raw strings the engine produced; linking them to a person registry is
// left to downstream consumers.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dgallion1/hansardgest/internal/extract"
)

// ErrDuplicate is returned by SaveDocument when a document with the same
// name was already stored.
var ErrDuplicate = errors.New("document already stored")

// Document identifies one source transcript.
type Document struct {
	Name      string `json:"name"`
	House     string `json:"house,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	Text      string `json:"-"`
}

// DocumentSummary is a stored document as listed by ListDocuments.
type DocumentSummary struct {
	Name       string    `json:"name"`
	House      string    `json:"house,omitempty"`
	Date       time.Time `json:"date"`
	Segments   int       `json:"segments"`
	Utterances int       `json:"utterances"`
	StoredAt   time.Time `json:"stored_at"`
}

// Store is the persistence collaborator of the extraction pipeline.
type Store interface {
	// HasDocument reports whether name was already stored, so callers can
	// skip re-extraction.
	HasDocument(ctx context.Context, name string) (bool, error)
	// SaveDocument stores doc and its results atomically and returns the
	// number of utterances written, linked answers included.
	SaveDocument(ctx context.Context, doc Document, results []extract.ChamberResult) (int, error)
	// ListDocuments returns up to limit stored documents, newest first.
	ListDocuments(ctx context.Context, limit int) ([]DocumentSummary, error)
	Close()
}

// Summarize builds the listing entry for doc and results.
func Summarize(doc Document, results []extract.ChamberResult, storedAt time.Time) DocumentSummary {
	s := DocumentSummary{
		Name:       doc.Name,
		House:      doc.House,
		Segments:   len(results),
		Utterances: extract.CountUtterances(results),
		StoredAt:   storedAt,
	}
	if len(results) > 0 {
		s.Date = results[0].Session.Date
		if s.House == "" {
			s.House = results[0].Session.House
		}
	}
	return s
}
