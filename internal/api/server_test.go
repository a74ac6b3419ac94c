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

	"github.com/dgallion1/docjournal/internal/config"
	"github.com/dgallion1/docjournal/internal/pipeline"
	"github.com/dgallion1/docjournal/internal/structure"
)

const testKey = "test-key"

const sampleBundle = `{
  "title": "Guide",
  "outline": [
    {"title": "Basics", "level": 1, "page_start": 1, "children": [
      {"title": "Install", "level": 2, "page_start": 1},
      {"title": "Usage", "level": 2, "page_start": 2}
    ]}
  ],
  "pages": [
    {"page_no": 1, "html": "<p>p1</p>"},
    {"page_no": 2, "markdown": "p2"}
  ]
}`

const backwardsBundle = `{
  "outline": [
    {"title": "Late", "level": 1, "page_start": 5},
    {"title": "Early", "level": 1, "page_start": 3}
  ],
  "pages": [
    {"page_no": 1}, {"page_no": 2}, {"page_no": 3},
    {"page_no": 4}, {"page_no": 5}, {"page_no": 6}
  ]
}`

func testConfig() config.Config {
	return config.Config{
		APIKey:          testKey,
		WorkerCount:     2,
		MaxQueueSize:    4,
		MaxUploadBytes:  1 << 20,
		JobTTL:          time.Hour,
		TOCTitle:        "Table of Contents",
		PageOrderPolicy: structure.PolicyReject,
	}
}

func newTestServer(t *testing.T, start bool) (*Server, *pipeline.Orchestrator) {
	t.Helper()
	cfg := testConfig()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(cfg, nil, log)
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}
	return NewServer(orch, log, cfg), orch
}

func do(t *testing.T, srv http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func convertBody(t *testing.T, modID, policy, bundle string) io.Reader {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"mod_id": modID,
		"title":  "Guide Book",
		"policy": policy,
		"bundle": json.RawMessage(bundle),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(data)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("expected ok body, got %s", rec.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t, false)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/convert", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats/convert", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected json error, got %q", rec.Header().Get("Content-Type"))
	}
}

func TestConvert(t *testing.T) {
	srv, orch := newTestServer(t, false)
	rec := do(t, srv, http.MethodPost, "/api/convert", convertBody(t, "guide", "", sampleBundle), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp convertResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Title != "Guide Book" {
		t.Errorf("expected request title, got %q", resp.Title)
	}
	if len(resp.Entries) != 1 || len(resp.Entries[0].Pages) != 2 {
		t.Fatalf("expected 1 entry with 2 pages, got %+v", resp.Entries)
	}
	if resp.Entries[0].Name != "Basics" {
		t.Errorf("expected entry Basics, got %q", resp.Entries[0].Name)
	}
	if resp.TOC == nil || resp.TOC.Name != "Table of Contents" {
		t.Errorf("expected toc entry, got %+v", resp.TOC)
	}
	if len(resp.Issues) != 0 {
		t.Errorf("expected no issues, got %v", resp.Issues)
	}
	if orch.Stats().Snapshot().Count != 1 {
		t.Error("expected conversion to be recorded in stats")
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name string
		body io.Reader
		code int
	}{
		{"bad json", strings.NewReader("{"), http.StatusBadRequest},
		{"missing mod id", convertBody(t, "", "", sampleBundle), http.StatusBadRequest},
		{"schema violation", convertBody(t, "m", "", `{"outline": []}`), http.StatusBadRequest},
		{"unknown policy", convertBody(t, "m", "shuffle", sampleBundle), http.StatusBadRequest},
		{"pages go backwards", convertBody(t, "m", "", backwardsBundle), http.StatusUnprocessableEntity},
	}
	srv, _ := newTestServer(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/convert", tt.body, "application/json")
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestConvert_ClampPolicy(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := do(t, srv, http.MethodPost, "/api/convert", convertBody(t, "m", "clamp", backwardsBundle), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected clamp to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestConvertBatch(t *testing.T) {
	srv, _ := newTestServer(t, false)
	body := `{"documents": [
		{"mod_id": "a", "bundle": ` + sampleBundle + `},
		{"mod_id": "", "bundle": ` + sampleBundle + `},
		{"mod_id": "c", "bundle": ` + sampleBundle + `}
	]}`
	rec := do(t, srv, http.MethodPost, "/api/convert/batch", strings.NewReader(body), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Results []batchItem `json:"results"`
		Failed  int         `json:"failed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 3 || resp.Failed != 1 {
		t.Fatalf("expected 3 results with 1 failure, got %d / %d", len(resp.Results), resp.Failed)
	}
	for i, item := range resp.Results {
		if item.Index != i {
			t.Errorf("expected results in request order, got index %d at %d", item.Index, i)
		}
	}
	if resp.Results[1].Error == "" || resp.Results[1].Result != nil {
		t.Errorf("expected second document to fail, got %+v", resp.Results[1])
	}
	if resp.Results[2].Result == nil || resp.Results[2].Result.ModID != "c" {
		t.Errorf("expected third document to convert, got %+v", resp.Results[2])
	}
}

func TestConvertBatch_Empty(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := do(t, srv, http.MethodPost, "/api/convert/batch", strings.NewReader(`{"documents": []}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestJobLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, true)

	body, ct := multipartUpload(t, map[string]string{"mod_id": "guide", "title": "Guide"},
		"guide.md", "# Basics\n\n## Install\n\nRun it.\n\n## Usage\n\nCall it.\n")
	rec := do(t, srv, http.MethodPost, "/api/jobs", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var submitted struct {
		JobID   string `json:"job_id"`
		PollURL string `json:"poll_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if submitted.PollURL != "/api/jobs/"+submitted.JobID+"/status" {
		t.Errorf("unexpected poll url %q", submitted.PollURL)
	}

	var snap pipeline.JobSnapshot
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = do(t, srv, http.MethodGet, submitted.PollURL, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", rec.Code)
		}
		if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if snap.Status.Done() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}

	rec = do(t, srv, http.MethodGet, "/api/jobs/"+submitted.JobID+"/result", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("result: expected 200, got %d", rec.Code)
	}
	var resp convertResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if resp.ModID != "guide" || len(resp.Entries) != 1 || resp.TOC == nil {
		t.Errorf("unexpected result %+v", resp)
	}
}

func TestSubmitJob_Errors(t *testing.T) {
	srv, _ := newTestServer(t, false)

	body, ct := multipartUpload(t, map[string]string{"title": "x"}, "a.md", "# a")
	if rec := do(t, srv, http.MethodPost, "/api/jobs", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("missing mod_id: expected 400, got %d", rec.Code)
	}

	body, ct = multipartUpload(t, map[string]string{"mod_id": "m"}, "", "")
	if rec := do(t, srv, http.MethodPost, "/api/jobs", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: expected 400, got %d", rec.Code)
	}

	body, ct = multipartUpload(t, map[string]string{"mod_id": "m"}, "tool.exe", "MZ")
	if rec := do(t, srv, http.MethodPost, "/api/jobs", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported type: expected 400, got %d", rec.Code)
	}
}

func TestJobResult_NotReady(t *testing.T) {
	srv, orch := newTestServer(t, false)

	if rec := do(t, srv, http.MethodGet, "/api/jobs/missing/result", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}

	job := pipeline.NewJob("m", "", "a.md", []byte("# a"))
	if err := orch.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec := do(t, srv, http.MethodGet, "/api/jobs/"+job.ID+"/result", nil, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for queued job, got %d", rec.Code)
	}
}

func TestConvertStats(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := do(t, srv, http.MethodGet, "/api/stats/convert", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		QueueDepth int                    `json:"queue_depth"`
		Stats      pipeline.StatsSnapshot `json:"stats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.QueueDepth != 0 || resp.Stats.Count != 0 {
		t.Errorf("expected empty stats, got %+v", resp)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"doc.md":            "doc.md",
		"../../etc/passwd":  "passwd",
		`C:\Users\me\a.pdf`: "a.pdf",
		"":                  "unnamed",
		"..":                "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	line := buf.String()
	for _, want := range []string{"level=WARN", "status=404", "path=/missing", "bytes=5"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in log line %q", want, line)
		}
	}
}
