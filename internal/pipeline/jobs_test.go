package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("senate-2001-03-05", "senate", "2001-03-05", "", "<hansard/>")
	if len(job.ID) != 26 {
		t.Errorf("expected 26-character job ID, got %q", job.ID)
	}
	if job.Status != StatusQueued || job.Phase != "queued" {
		t.Errorf("expected queued job, got %q/%q", job.Status, job.Phase)
	}
	if job.Text() != "<hansard/>" {
		t.Errorf("expected text to be kept, got %q", job.Text())
	}
}

func TestJob_SetTextNamesAnonymousJobs(t *testing.T) {
	job := NewJob("", "", "", "", "")
	job.SetText("<hansard/>")
	want := "upload-" + ContentHashHex([]byte("<hansard/>"))[:12]
	if job.Name() != want {
		t.Errorf("expected name %q, got %q", want, job.Name())
	}

	named := NewJob("keep", "", "", "", "")
	named.SetText("<hansard/>")
	if named.Name() != "keep" {
		t.Errorf("expected name to be kept, got %q", named.Name())
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusFetching, "fetching"},
		{StatusExtracting, "extracting"},
		{StatusStoring, "storing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		StatusQueued:     false,
		StatusFetching:   false,
		StatusExtracting: false,
		StatusStoring:    false,
		StatusCompleted:  true,
		StatusEmpty:      true,
		StatusFailed:     true,
		StatusDupSkipped: true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Errorf("%q: expected terminal=%v", s, want)
		}
	}
}

func TestJob_Fail(t *testing.T) {
	job := &Job{ID: "fail-test", Status: StatusExtracting, UpdatedAt: time.Now()}
	job.Fail("no_chambers", "extracting", errors.New("no chamber content"))

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.FailureKind != "no_chambers" {
		t.Fatalf("expected failed/no_chambers, got %q/%q", snap.Status, snap.FailureKind)
	}
	if len(snap.Progress.Errors) != 1 || !strings.HasPrefix(snap.Progress.Errors[0], "extracting: ") {
		t.Errorf("unexpected errors %v", snap.Progress.Errors)
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("fetch attempt 1 failed")
	job.AddError("fetch attempt 2 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "fetch attempt 1 failed" {
		t.Errorf("expected first error %q, got %q", "fetch attempt 1 failed", snap.Progress.Errors[0])
	}

	job.AddError("late")
	if len(snap.Progress.Errors) != 2 {
		t.Error("expected snapshot errors to be a copy")
	}
}

func TestJob_Counters(t *testing.T) {
	job := &Job{ID: "count-test", UpdatedAt: time.Now()}
	job.SetExtracted(2, 7, 3)
	job.SetStored(7)

	p := job.Snapshot().Progress
	if p.Segments != 2 || p.Utterances != 7 || p.Interjections != 3 || p.Stored != 7 {
		t.Errorf("unexpected progress %+v", p)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestNewJobID(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for range 1000 {
		id := newJobID()
		if len(id) != 26 {
			t.Fatalf("expected 26 characters, got %q", id)
		}
		if strings.Trim(id, crockford) != "" {
			t.Fatalf("unexpected characters in %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		if id <= prev {
			t.Fatalf("expected ids to increase, got %q after %q", id, prev)
		}
		seen[id] = true
		prev = id
	}
}

func TestEncodeULID(t *testing.T) {
	var zero [16]byte
	if got := encodeULID(zero); got != strings.Repeat("0", 26) {
		t.Errorf("expected all zeros, got %q", got)
	}
	var ones [16]byte
	for i := range ones {
		ones[i] = 0xff
	}
	if got := encodeULID(ones); got != "7"+strings.Repeat("Z", 25) {
		t.Errorf("expected max ulid, got %q", got)
	}
}
