package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/hansardgest/internal/extract"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store used when no database is configured.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]memoryEntry
	nowFunc func() time.Time
}

type memoryEntry struct {
	summary DocumentSummary
	results []extract.ChamberResult
}

func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

func (m *Memory) HasDocument(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[name]
	return ok, nil
}

func (m *Memory) SaveDocument(ctx context.Context, doc Document, results []extract.ChamberResult) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if doc.Name == "" {
		return 0, fmt.Errorf("save document: empty name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[doc.Name]; ok {
		return 0, fmt.Errorf("save document %s: %w", doc.Name, ErrDuplicate)
	}
	summary := Summarize(doc, results, m.nowFunc())
	m.docs[doc.Name] = memoryEntry{summary: summary, results: results}
	return summary.Utterances, nil
}

func (m *Memory) ListDocuments(_ context.Context, limit int) ([]DocumentSummary, error) {
	m.mu.RLock()
	out := make([]DocumentSummary, 0, len(m.docs))
	for _, e := range m.docs {
		out = append(out, e.summary)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StoredAt.Equal(out[j].StoredAt) {
			return out[i].StoredAt.After(out[j].StoredAt)
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Results returns the stored results for name.
func (m *Memory) Results(name string) ([]extract.ChamberResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.docs[name]
	return e.results, ok
}

func (m *Memory) Close() {}
