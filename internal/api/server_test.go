package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dgallion1/hansardgest/internal/config"
	"github.com/dgallion1/hansardgest/internal/extract"
	"github.com/dgallion1/hansardgest/internal/observe"
	"github.com/dgallion1/hansardgest/internal/pipeline"
	"github.com/dgallion1/hansardgest/internal/source"
	"github.com/dgallion1/hansardgest/internal/store"
)

const (
	testKey   = "secret"
	speechDoc = `<hansard date="2001-03-05"><chamber.xscript><speech nameid="A"><para>Hello</para></speech></chamber.xscript></hansard>`
)

type fakeCrawler struct {
	listings map[string]source.Listing
}

func (f fakeCrawler) Crawl(context.Context, string, time.Time) (map[string]source.Listing, error) {
	return f.listings, nil
}

type testEnv struct {
	server *Server
	orch   *pipeline.Orchestrator
	store  *store.Memory
}

func newTestEnv(t *testing.T, crawler Crawler, start bool) *testEnv {
	t.Helper()
	cfg := config.Config{
		APIKey:             testKey,
		WorkerCount:        1,
		MaxQueueSize:       8,
		MaxConcurrentStore: 1,
		MaxUploadBytes:     1 << 20,
		JobTTL:             time.Hour,
		MetricsEnabled:     true,
	}
	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	log := slog.New(slog.DiscardHandler)
	st := store.NewMemory()
	orch := pipeline.NewOrchestrator(cfg, extract.New(), st, source.NewFetcher(), metrics, log)
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}
	return &testEnv{server: NewServer(orch, crawler, log, cfg), orch: orch, store: st}
}

func (e *testEnv) do(t *testing.T, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (e *testEnv) waitForJob(t *testing.T, id string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := e.do(t, http.MethodGet, "/api/ingest/"+id+"/status", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", rec.Code)
		}
		var snap pipeline.JobSnapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if snap.Status.Terminal() {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s stuck in %q", id, snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t, nil, false)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Errorf("expected status ok, got %v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, false)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil, false)
	for _, header := range []string{"", "Bearer wrong", "Basic secret"} {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestExtract(t *testing.T) {
	env := newTestEnv(t, nil, false)
	rec := env.do(t, http.MethodPost, "/api/extract", "application/xml", strings.NewReader(speechDoc))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Results    []extract.ChamberResult `json:"results"`
		Utterances int                     `json:"utterances"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Utterances != 1 || len(body.Results) != 1 {
		t.Fatalf("expected 1 result with 1 utterance, got %+v", body)
	}
	if u := body.Results[0].Utterances[0]; u.Speaker != "A" || u.Text != "Hello" {
		t.Errorf("unexpected utterance %+v", u)
	}
	if got := env.orch.Stats().Snapshot().Count; got != 1 {
		t.Errorf("expected 1 stats sample, got %d", got)
	}
	if ok, _ := env.store.HasDocument(context.Background(), "senate-2001-03-05"); ok {
		t.Error("expected synchronous extract not to store")
	}
}

func TestExtract_DocumentFailure(t *testing.T) {
	env := newTestEnv(t, nil, false)
	raw := `<hansard><chamber><speech nameid="A"><para>x</para></speech></chamber></hansard>`
	rec := env.do(t, http.MethodPost, "/api/extract", "application/xml", strings.NewReader(raw))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if got := decode(t, rec)["kind"]; got != "no_session_date" {
		t.Errorf("expected kind no_session_date, got %v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/extract?date=2001-03-05", "application/xml", strings.NewReader(raw))
	if rec.Code != http.StatusOK {
		t.Errorf("expected date hint to rescue the document, got %d", rec.Code)
	}
}

func TestExtract_BadHints(t *testing.T) {
	env := newTestEnv(t, nil, false)
	for _, q := range []string{"?date=05/03/2001", "?house=lords"} {
		rec := env.do(t, http.MethodPost, "/api/extract"+q, "application/xml", strings.NewReader(speechDoc))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func multipartBody(t *testing.T, field string, files map[string]string, fields map[string]string) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType(), &buf
}

func TestIngest_UploadToCompletion(t *testing.T) {
	env := newTestEnv(t, nil, true)
	ct, body := multipartBody(t, "file", map[string]string{"20010305.xml": speechDoc}, map[string]string{"house": "senate"})

	rec := env.do(t, http.MethodPost, "/api/ingest", ct, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	accepted := decode(t, rec)
	if accepted["document"] != "senate-2001-03-05" {
		t.Errorf("expected document senate-2001-03-05, got %v", accepted["document"])
	}

	snap := env.waitForJob(t, accepted["job_id"].(string))
	if snap.Status != pipeline.StatusCompleted || snap.Progress.Stored != 1 {
		t.Fatalf("expected completed with 1 stored, got %+v", snap)
	}

	rec = env.do(t, http.MethodGet, "/api/documents", "", nil)
	var list struct {
		Documents []store.DocumentSummary `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Documents) != 1 || list.Documents[0].Name != "senate-2001-03-05" {
		t.Errorf("unexpected documents %+v", list.Documents)
	}
}

func TestIngest_RejectsUnsupportedFile(t *testing.T) {
	env := newTestEnv(t, nil, false)
	ct, body := multipartBody(t, "file", map[string]string{"notes.pdf": "x"}, nil)
	rec := env.do(t, http.MethodPost, "/api/ingest", ct, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBatchIngest(t *testing.T) {
	env := newTestEnv(t, nil, false)
	ct, body := multipartBody(t, "files", map[string]string{
		"20010305.xml": speechDoc,
		"20010306.xml": speechDoc,
		"readme.txt":   "x",
	}, map[string]string{"house": "hofreps"})

	rec := env.do(t, http.MethodPost, "/api/ingest/batch", ct, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var out struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Jobs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out.Jobs))
	}
	queued, rejected := 0, 0
	for _, j := range out.Jobs {
		if _, ok := j["error"]; ok {
			rejected++
		} else {
			queued++
		}
	}
	if queued != 2 || rejected != 1 {
		t.Errorf("expected 2 queued and 1 rejected, got %d and %d", queued, rejected)
	}
	if env.orch.QueueDepth() != 2 {
		t.Errorf("expected queue depth 2, got %d", env.orch.QueueDepth())
	}
}

func TestIngestURL(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(speechDoc))
	}))
	defer upstream.Close()

	env := newTestEnv(t, nil, true)
	payload := `{"url":"` + upstream.URL + `/s.xml","name":"senate-2001-03-05","house":"senate"}`
	rec := env.do(t, http.MethodPost, "/api/ingest/url", "application/json", strings.NewReader(payload))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	snap := env.waitForJob(t, decode(t, rec)["job_id"].(string))
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %+v", snap)
	}
	if snap.ContentHash == "" {
		t.Error("expected content hash after fetch")
	}

	rec = env.do(t, http.MethodPost, "/api/ingest/url", "application/json", strings.NewReader(`{"url":"ftp://x"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-http url, got %d", rec.Code)
	}
}

func TestCrawl(t *testing.T) {
	crawler := fakeCrawler{listings: map[string]source.Listing{
		"senate-2024-03-05":  {Name: "senate-2024-03-05", House: "senate", URL: "https://example.org/a.xml", Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		"hofreps-2024-03-05": {Name: "hofreps-2024-03-05", House: "hofreps", URL: "https://example.org/b.xml", Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Proof: true},
	}}
	env := newTestEnv(t, crawler, false)

	rec := env.do(t, http.MethodPost, "/api/ingest/crawl", "application/json",
		strings.NewReader(`{"start_url":"https://example.org/index","since":"2024-01-01"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Jobs) != 2 || out.Jobs[0]["document"] != "hofreps-2024-03-05" {
		t.Fatalf("unexpected jobs %+v", out.Jobs)
	}
	if out.Jobs[0]["proof"] != true {
		t.Errorf("expected proof flag on first job, got %v", out.Jobs[0]["proof"])
	}

	rec = env.do(t, http.MethodPost, "/api/ingest/crawl", "application/json",
		strings.NewReader(`{"start_url":"https://example.org/index","since":"last week"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad since, got %d", rec.Code)
	}
}

func TestCrawlUnavailable(t *testing.T) {
	env := newTestEnv(t, nil, false)
	rec := env.do(t, http.MethodPost, "/api/ingest/crawl", "application/json",
		strings.NewReader(`{"start_url":"https://example.org/index","since":"2024-01-01"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestIngestStatusNotFound(t *testing.T) {
	env := newTestEnv(t, nil, false)
	rec := env.do(t, http.MethodGet, "/api/ingest/nope/status", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListDocuments_BadLimit(t *testing.T) {
	env := newTestEnv(t, nil, false)
	rec := env.do(t, http.MethodGet, "/api/documents?limit=-1", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/documents", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"documents":[]`) {
		t.Errorf("expected empty document list, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestExtractStats(t *testing.T) {
	env := newTestEnv(t, nil, false)
	env.do(t, http.MethodPost, "/api/extract", "application/xml", strings.NewReader(speechDoc))
	rec := env.do(t, http.MethodGet, "/api/stats/extract", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Stats pipeline.StatsSnapshot `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Stats.Count != 1 || out.Stats.Utterances != 1 {
		t.Errorf("unexpected stats %+v", out.Stats)
	}
}
