package extract

import (
	"time"

	"github.com/dgallion1/hansardgest/internal/doctree"
)

// RawTranscript is one document as handed over by the source store.
type RawTranscript struct {
	Text string
	// DateHint, when set, takes precedence over dates found in the document.
	DateHint string
	// HouseHint names the house when the document does not.
	HouseHint string
}

// Chamber is the kind of sub-stream a segment belongs to.
type Chamber string

const (
	FloorDebate         Chamber = "floor_debate"
	QuestionsAndAnswers Chamber = "questions_and_answers"
)

// Kind classifies an utterance.
type Kind string

const (
	Speech   Kind = "speech"
	Question Kind = "question"
	Answer   Kind = "answer"
	Petition Kind = "petition"
)

// SessionInfo is the sitting metadata shared by all segments of a document.
type SessionInfo struct {
	Date             time.Time `json:"date"`
	ParliamentNumber *int      `json:"parliament_number,omitempty"`
	SessionNumber    *int      `json:"session_number,omitempty"`
	PeriodNumber     *int      `json:"period_number,omitempty"`
	House            string    `json:"house"`
}

// ChamberSegment is one independently extractable part of a document.
type ChamberSegment struct {
	Key     string
	Chamber Chamber
	Root    *doctree.Node
	Index   *doctree.Index
	Session SessionInfo
}

// Interjection is an interruption recorded inside an utterance.
type Interjection struct {
	Sequence int    `json:"sequence"`
	Speaker  string `json:"speaker,omitempty"`
	Text     string `json:"text"`
}

// Utterance is a single speech, question, answer or petition. An empty
// Speaker means the speaker could not be resolved unambiguously.
type Utterance struct {
	Kind          Kind           `json:"kind"`
	Speaker       string         `json:"speaker,omitempty"`
	Text          string         `json:"text"`
	DebateTitle   string         `json:"debate_title"`
	Interjections []Interjection `json:"interjections"`
	LinkedAnswer  *Utterance     `json:"linked_answer,omitempty"`
}

// ChamberResult is the extraction output for one segment.
type ChamberResult struct {
	Session    SessionInfo `json:"session"`
	Chamber    Chamber     `json:"chamber"`
	Key        string      `json:"key"`
	Utterances []Utterance `json:"utterances"`
}

// Empty reports whether the segment contributed no utterances.
func (r ChamberResult) Empty() bool {
	return len(r.Utterances) == 0
}

// CountUtterances returns the number of utterances across results, counting
// a linked answer separately from its question.
func CountUtterances(results []ChamberResult) int {
	n := 0
	for _, r := range results {
		for _, u := range r.Utterances {
			n++
			if u.LinkedAnswer != nil {
				n++
			}
		}
	}
	return n
}
