package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusFetching   JobStatus = "fetching"
	StatusExtracting JobStatus = "extracting"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusEmpty      JobStatus = "empty"
	StatusFailed     JobStatus = "failed"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Terminal reports whether no further transitions follow s.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusEmpty, StatusFailed, StatusDupSkipped:
		return true
	}
	return false
}

// Job tracks the state of a single transcript ingestion.
type Job struct {
	mu sync.Mutex

	ID           string `json:"job_id"`
	DocumentName string `json:"document"`
	House        string `json:"house,omitempty"`
	DateHint     string `json:"date_hint,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
	Filename     string `json:"filename,omitempty"`

	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	FailureKind string    `json:"failure_kind,omitempty"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	text   string
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	Segments      int      `json:"segments"`
	Utterances    int      `json:"utterances"`
	Interjections int      `json:"interjections"`
	Stored        int      `json:"stored"`
	Errors        []string `json:"errors"`
}

// NewJob returns a queued job with a fresh ID. Either text or sourceURL
// supplies the transcript.
func NewJob(name, house, dateHint, sourceURL, text string) *Job {
	now := time.Now()
	return &Job{
		ID:           newJobID(),
		DocumentName: name,
		House:        house,
		DateHint:     dateHint,
		SourceURL:    sourceURL,
		Status:       StatusQueued,
		Phase:        "queued",
		CreatedAt:    now,
		UpdatedAt:    now,
		text:         text,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Fail records err with its failure kind and marks the job failed.
func (j *Job) Fail(kind, phase string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FailureKind = kind
	j.errors = append(j.errors, fmt.Sprintf("%s: %s", phase, err))
	j.Progress.Errors = j.errors
	j.Status = StatusFailed
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetExtracted records the engine output counts.
func (j *Job) SetExtracted(segments, utterances, interjections int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Segments = segments
	j.Progress.Utterances = utterances
	j.Progress.Interjections = interjections
	j.UpdatedAt = time.Now()
}

// SetStored records how many utterances were persisted.
func (j *Job) SetStored(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Stored = n
	j.UpdatedAt = time.Now()
}

// SetText sets the raw transcript for processing and records its hash.
// A job without a document name is named after the hash.
func (j *Job) SetText(text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.text = text
	j.ContentHash = ContentHashHex([]byte(text))
	if j.DocumentName == "" {
		j.DocumentName = "upload-" + j.ContentHash[:12]
	}
}

// Text returns the raw transcript.
func (j *Job) Text() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.text
}

// Name returns the document name.
func (j *Job) Name() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.DocumentName
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID           string    `json:"job_id"`
	DocumentName string    `json:"document"`
	House        string    `json:"house,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	Filename     string    `json:"filename,omitempty"`
	Status       JobStatus `json:"status"`
	Phase        string    `json:"phase"`
	FailureKind  string    `json:"failure_kind,omitempty"`
	ContentHash  string    `json:"content_hash,omitempty"`
	Progress     Progress  `json:"progress"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:           j.ID,
		DocumentName: j.DocumentName,
		House:        j.House,
		SourceURL:    j.SourceURL,
		Filename:     j.Filename,
		Status:       j.Status,
		Phase:        j.Phase,
		FailureKind:  j.FailureKind,
		ContentHash:  j.ContentHash,
		Progress:     p,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
