package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/captions"
	"captioner/internal/logging"
	"captioner/internal/preflight"
	"captioner/internal/progress"
	"captioner/internal/services"
	"captioner/internal/workflow"
)

type fakeRenderer struct {
	got    workflow.RenderRequest
	result workflow.RenderResult
	err    error
}

func (f *fakeRenderer) Render(_ context.Context, req workflow.RenderRequest) (workflow.RenderResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeCaptioner struct {
	preflightErr error
	runErr       error
	got          workflow.CaptionRequest
	ran          bool
}

func (f *fakeCaptioner) Preflight() error { return f.preflightErr }

func (f *fakeCaptioner) Run(_ context.Context, req workflow.CaptionRequest) (captions.Timeline, error) {
	f.ran = true
	f.got = req
	if f.runErr != nil {
		return nil, f.runErr
	}
	return captions.Timeline{{Text: "Hello", StartTime: 0, EndTime: 1}}, nil
}

type fixture struct {
	router    http.Handler
	renderer  *fakeRenderer
	captioner *fakeCaptioner
	tracker   *progress.Tracker
	uploads   string
	renders   string
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	public := t.TempDir()
	f := &fixture{
		renderer:  &fakeRenderer{result: workflow.RenderResult{Success: true, OutputPath: "/renders/output-1.mp4", JobID: "job-1"}},
		captioner: &fakeCaptioner{},
		tracker:   progress.NewTracker(progress.NewMemoryStore(), logging.NewNop(), progress.Options{}),
		uploads:   filepath.Join(public, "uploads"),
		renders:   filepath.Join(public, "renders"),
	}
	for _, dir := range []string{f.uploads, f.renders} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	f.router = NewRouter(Options{
		Renderer:  f.renderer,
		Captioner: f.captioner,
		Progress:  f.tracker,
		Setup: func(context.Context) preflight.SetupReport {
			return preflight.SetupReport{Ready: true, Messages: []string{"✓ FFmpeg is installed"}}
		},
		UploadDir:      f.uploads,
		RenderDir:      f.renders,
		MaxUploadBytes: maxBytes,
		Logger:         logging.NewNop(),
	})
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestRenderSuccess(t *testing.T) {
	f := newFixture(t, 0)
	body := `{"videoPath":"/uploads/a.mp4","captions":[{"text":"Hi","startTime":0,"endTime":1}],"style":"top-bar","jobId":"job-1"}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[map[string]any](t, rec)
	if resp["success"] != true || resp["outputPath"] != "/renders/output-1.mp4" || resp["jobId"] != "job-1" {
		t.Fatalf("unexpected response %v", resp)
	}
	if f.renderer.got.VideoPath != "/uploads/a.mp4" || f.renderer.got.Style != "top-bar" || len(f.renderer.got.Captions) != 1 {
		t.Fatalf("request not forwarded: %+v", f.renderer.got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestRenderErrorStatuses(t *testing.T) {
	cases := []struct {
		kind   workflow.Kind
		status int
	}{
		{workflow.KindMissingParameters, http.StatusBadRequest},
		{workflow.KindInvalidStyle, http.StatusBadRequest},
		{workflow.KindInvalidCaptions, http.StatusBadRequest},
		{workflow.KindVideoNotFound, http.StatusNotFound},
		{workflow.KindBundleFailed, http.StatusInternalServerError},
		{workflow.KindCompositionNotFound, http.StatusInternalServerError},
		{workflow.KindRenderFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			f := newFixture(t, 0)
			f.renderer.err = &workflow.Error{Kind: tc.kind, Message: "boom", Err: errors.New("cause")}
			rec := f.do(httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(`{"videoPath":"x","captions":[]}`)))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Error != "boom" || resp.Details != "cause" || resp.Kind != string(tc.kind) {
				t.Fatalf("unexpected body %+v", resp)
			}
		})
	}
}

func TestFailedRequestLogsEventFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	renderer := &fakeRenderer{err: &workflow.Error{Kind: workflow.KindRenderFailed, Message: "boom"}}
	router := NewRouter(Options{Renderer: renderer, Logger: logger})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(`{"videoPath":"x","captions":[]}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var candidate map[string]any
		if json.Unmarshal(line, &candidate) == nil && candidate["msg"] == "request failed" {
			entry = candidate
		}
	}
	if entry == nil {
		t.Fatalf("expected a request failed entry in:\n%s", buf.String())
	}
	if entry["level"] != "WARN" || entry[logging.FieldEventType] != "api_request_failed" {
		t.Fatalf("unexpected entry %v", entry)
	}
	for _, key := range []string{logging.FieldErrorHint, logging.FieldImpact} {
		if s, _ := entry[key].(string); s == "" {
			t.Fatalf("expected %s on failed request log, got %v", key, entry)
		}
	}
	if entry["status"] != 500.0 {
		t.Fatalf("expected status attr, got %v", entry["status"])
	}
}

func TestRenderInvalidJSON(t *testing.T) {
	f := newFixture(t, 0)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(`{"videoPath":`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRenderMethodNotAllowed(t *testing.T) {
	f := newFixture(t, 0)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/render", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if decode[ErrorResponse](t, rec).Error != "Method not allowed" {
		t.Fatal("expected JSON error body")
	}
}

func TestProgress(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.tracker.Reset(ctx, "job-a")
	f.tracker.Set(ctx, "job-a", 42)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/render-progress?job=job-a", nil))
	if got := decode[ProgressResponse](t, rec); rec.Code != http.StatusOK || got.Progress != 42 {
		t.Fatalf("progress = %v (status %d)", got.Progress, rec.Code)
	}
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/render-progress", nil))
	if got := decode[ProgressResponse](t, rec); got.Progress != 42 {
		t.Fatalf("latest progress = %v", got.Progress)
	}
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/render-progress?job=unknown", nil))
	if got := decode[ProgressResponse](t, rec); rec.Code != http.StatusOK || got.Progress != 0 {
		t.Fatalf("unknown job progress = %v (status %d)", got.Progress, rec.Code)
	}
}

func TestCheckSetup(t *testing.T) {
	f := newFixture(t, 0)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/check-setup", nil))
	resp := decode[map[string]any](t, rec)
	if rec.Code != http.StatusOK || resp["ready"] != true {
		t.Fatalf("unexpected check-setup response %d %v", rec.Code, resp)
	}
	if _, ok := resp["status"].(map[string]any)["googleCloudProjectId"]; !ok {
		t.Fatalf("expected camelCase status keys, got %v", resp["status"])
	}
}

func TestUploadSuccess(t *testing.T) {
	f := newFixture(t, 1024)
	body, contentType := multipartBody(t, "video", "Clip.MP4", []byte("video-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[UploadResponse](t, rec)
	if !resp.Success || !strings.HasPrefix(resp.VideoPath, "/uploads/") || !strings.HasSuffix(resp.VideoPath, ".mp4") {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.Captions) != 1 || resp.JobID == "" {
		t.Fatalf("unexpected captions/job %+v", resp)
	}
	saved := filepath.Join(f.uploads, strings.TrimPrefix(resp.VideoPath, "/uploads/"))
	data, err := os.ReadFile(saved)
	if err != nil || string(data) != "video-bytes" {
		t.Fatalf("upload not saved: %v %q", err, data)
	}
	if f.captioner.got.VideoPath != saved || f.captioner.got.PublicPath != resp.VideoPath {
		t.Fatalf("caption request = %+v", f.captioner.got)
	}

	served := f.do(httptest.NewRequest(http.MethodGet, resp.VideoPath, nil))
	if served.Code != http.StatusOK || served.Body.String() != "video-bytes" {
		t.Fatalf("static upload not served: %d", served.Code)
	}
}

func TestUploadUsesConfiguredMount(t *testing.T) {
	public := t.TempDir()
	uploads := filepath.Join(public, "media", "in")
	if err := os.MkdirAll(uploads, 0o755); err != nil {
		t.Fatal(err)
	}
	captioner := &fakeCaptioner{}
	router := NewRouter(Options{
		Captioner: captioner,
		UploadDir: uploads,
		UploadURL: "media/in/",
		Logger:    logging.NewNop(),
	})

	body, contentType := multipartBody(t, "video", "clip.mp4", []byte("video-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[UploadResponse](t, rec)
	if !strings.HasPrefix(resp.VideoPath, "/media/in/") {
		t.Fatalf("expected path under /media/in, got %q", resp.VideoPath)
	}

	resolved, err := workflow.ResolvePublicPath(public, resp.VideoPath)
	if err != nil || resolved != captioner.got.VideoPath {
		t.Fatalf("advertised path resolves to %q (%v), saved at %q", resolved, err, captioner.got.VideoPath)
	}

	served := httptest.NewRecorder()
	router.ServeHTTP(served, httptest.NewRequest(http.MethodGet, resp.VideoPath, nil))
	if served.Code != http.StatusOK || served.Body.String() != "video-bytes" {
		t.Fatalf("upload not served at its advertised path: %d", served.Code)
	}
}

func TestUploadMissingFile(t *testing.T) {
	f := newFixture(t, 1024)
	body, contentType := multipartBody(t, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)
	if rec.Code != http.StatusBadRequest || decode[ErrorResponse](t, rec).Error != "No video file uploaded" {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
	if f.captioner.ran {
		t.Fatal("caption job must not run without a file")
	}
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, 64)
	body, contentType := multipartBody(t, "video", "a.mp4", bytes.Repeat([]byte("x"), 256))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	entries, _ := os.ReadDir(f.uploads)
	if len(entries) != 0 {
		t.Fatalf("oversized upload must not be saved, found %d files", len(entries))
	}
}

func TestUploadPreflightFailure(t *testing.T) {
	f := newFixture(t, 1024)
	f.captioner.preflightErr = &workflow.Error{
		Kind:    workflow.KindNotConfigured,
		Message: "Transcription is not configured",
		Err:     services.Wrap(services.ErrConfiguration, "transcription", "validate", "GOOGLE_CLOUD_PROJECT_ID is not configured", nil),
	}
	body, contentType := multipartBody(t, "video", "a.mp4", []byte("v"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if !strings.Contains(resp.Details, "GOOGLE_CLOUD_PROJECT_ID") {
		t.Fatalf("expected details naming the missing setting, got %+v", resp)
	}
	entries, _ := os.ReadDir(f.uploads)
	if len(entries) != 0 || f.captioner.ran {
		t.Fatal("nothing must be saved or run when preflight fails")
	}
}

func TestUploadJobFailure(t *testing.T) {
	f := newFixture(t, 1024)
	f.captioner.runErr = &workflow.Error{Kind: workflow.KindTranscriptionFailed, Message: "Transcription failed", Err: fmt.Errorf("quota exceeded")}
	body, contentType := multipartBody(t, "video", "a.mp4", []byte("v"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)
	if rec.Code != http.StatusInternalServerError || decode[ErrorResponse](t, rec).Details != "quota exceeded" {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadName(t *testing.T) {
	cases := map[string]string{
		"clip.MOV":          "id.mov",
		"noext":             "id",
		"../../etc/passwd":  "id",
		"weird.ext with sp": "id",
		"a.tar.gz":          "id.gz",
	}
	for input, want := range cases {
		if got := uploadName("id", input); got != want {
			t.Fatalf("uploadName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestStatusForKindClasses(t *testing.T) {
	if StatusForKind(workflow.KindToolMissing) != http.StatusInternalServerError {
		t.Fatal("configuration failures are server errors")
	}
	if StatusForKind("") != http.StatusInternalServerError {
		t.Fatal("unknown errors are server errors")
	}
	status, body := FromError(errors.New("plain"), "Failed to render video")
	if status != http.StatusInternalServerError || body.Error != "Failed to render video" || body.Details != "plain" {
		t.Fatalf("unexpected %d %+v", status, body)
	}
}
