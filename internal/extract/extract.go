// Package extract turns one raw Hansard transcript into per-chamber lists of
// typed, speaker-attributed utterances. Extraction is synchronous and keeps
// no state between calls; callers parallelize across documents.
package extract

import (
	"maps"

	"github.com/dgallion1/hansardgest/internal/markup"
)

// Engine runs the extraction pipeline. The zero value is usable; an Engine
// is safe for concurrent use because it is never mutated after New.
type Engine struct {
	dateOverrides map[string]string
}

// Option configures an Engine.
type Option func(*Engine)

// WithDateOverrides installs a table of known-bad date strings and their
// corrections. The map is copied.
func WithDateOverrides(overrides map[string]string) Option {
	return func(e *Engine) {
		e.dateOverrides = maps.Clone(overrides)
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract normalizes, segments and classifies one document. A segment with
// no surviving utterances is returned with an empty list, not an error.
// Every failure is an *Error wrapping one of the Err* sentinels.
func (e *Engine) Extract(raw RawTranscript) ([]ChamberResult, error) {
	root, err := markup.Parse(raw.Text)
	if err != nil {
		return nil, newError(err)
	}

	_, segments, err := Segment(root, SegmentOptions{
		DateHint:      raw.DateHint,
		HouseHint:     raw.HouseHint,
		DateOverrides: e.dateOverrides,
	})
	if err != nil {
		return nil, newError(err)
	}

	results := make([]ChamberResult, 0, len(segments))
	for _, seg := range segments {
		utterances := Classify(seg)
		if utterances == nil {
			utterances = []Utterance{}
		}
		results = append(results, ChamberResult{
			Session:    seg.Session,
			Chamber:    seg.Chamber,
			Key:        seg.Key,
			Utterances: utterances,
		})
	}
	return results, nil
}

// Extract runs a default Engine over text with an optional date hint.
func Extract(text, dateHint string) ([]ChamberResult, error) {
	return New().Extract(RawTranscript{Text: text, DateHint: dateHint})
}
