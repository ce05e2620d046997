package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/hansardgest/internal/pipeline"
	"github.com/dgallion1/hansardgest/internal/source"
)

var supportedExtensions = []string{".xml", ".sgm", ".sgml"}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	house, dateHint := r.FormValue("house"), r.FormValue("date")
	if err := validateHints(dateHint, house); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !isSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = nameFromFilename(house, filename)
	}
	job := s.newTextJob(name, house, dateHint, filename, data)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted(job))
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	house := r.FormValue("house")
	if err := validateHints("", house); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !isSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		data, err := s.readPart(fh)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := s.newTextJob(nameFromFilename(house, filename), house, "", filename, data)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}
		entry := jobAccepted(job)
		entry["filename"] = filename
		results = append(results, entry)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

type ingestURLRequest struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	House string `json:"house"`
	Date  string `json:"date"`
}

// handleIngestURL queues a transcript the worker downloads itself.
func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req ingestURLRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateURL(req.URL); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateHints(req.Date, req.House); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(req.Name, req.House, req.Date, req.URL, "")
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted(job))
}

type crawlRequest struct {
	StartURL string `json:"start_url"`
	Since    string `json:"since"`
}

// handleCrawl walks the sitting index back to since and queues one URL job
// per listing.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if s.crawler == nil {
		jsonError(w, "crawling unavailable", http.StatusServiceUnavailable)
		return
	}
	var req crawlRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateURL(req.StartURL); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	since, err := time.Parse("2006-01-02", req.Since)
	if err != nil {
		jsonError(w, "since must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	listings, err := s.crawler.Crawl(r.Context(), req.StartURL, since)
	if err != nil && len(listings) == 0 {
		jsonError(w, "crawl failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	if err != nil {
		s.log.Warn("crawl stopped early", "start_url", req.StartURL, "listings", len(listings), "error", err)
	}

	names := make([]string, 0, len(listings))
	for name := range listings {
		names = append(names, name)
	}
	slices.Sort(names)

	jobs := make([]map[string]any, 0, len(names))
	for _, name := range names {
		l := listings[name]
		job := pipeline.NewJob(l.Name, l.House, l.Date.Format("2006-01-02"), l.URL, "")
		if err := s.orchestrator.Submit(job); err != nil {
			jobs = append(jobs, map[string]any{"document": l.Name, "error": err.Error()})
			continue
		}
		entry := jobAccepted(job)
		entry["proof"] = l.Proof
		jobs = append(jobs, entry)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": jobs})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) newTextJob(name, house, dateHint, filename string, data []byte) *pipeline.Job {
	job := pipeline.NewJob(name, house, dateHint, "", "")
	job.Filename = filename
	job.SetText(string(data))
	return job
}

func (s *Server) readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("file too large or read error")
	}
	return data, nil
}

func jobAccepted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":   snap.ID,
		"document": snap.DocumentName,
		"status":   snap.Status,
		"poll_url": fmt.Sprintf("/api/ingest/%s/status", snap.ID),
	}
}

// validateHints checks the optional date and house hints.
func validateHints(dateHint, house string) error {
	if dateHint != "" {
		if _, err := time.Parse("2006-01-02", dateHint); err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD")
		}
	}
	if house != "" && !slices.Contains(source.Houses, house) {
		return fmt.Errorf("house must be one of %s", strings.Join(source.Houses, ", "))
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) url")
	}
	return nil
}

// nameFromFilename names an upload after the sitting date in its filename.
// It returns "" when the filename carries no date, leaving the job to be
// named after its content hash.
func nameFromFilename(house, filename string) string {
	date, ok := source.DateFromFilename(filename)
	if !ok {
		return ""
	}
	if house == "" {
		house = "unknown"
	}
	return source.DocumentName(house, date)
}

func isSupportedExtension(filename string) bool {
	return slices.Contains(supportedExtensions, strings.ToLower(filepath.Ext(filename)))
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
