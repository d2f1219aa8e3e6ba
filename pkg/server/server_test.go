package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/calque-ai/docqa/pkg/ai/mock"
	"github.com/calque-ai/docqa/pkg/extract"
	"github.com/calque-ai/docqa/pkg/observability"
	"github.com/calque-ai/docqa/pkg/pipeline"
	"github.com/calque-ai/docqa/pkg/rag"
	"github.com/calque-ai/docqa/pkg/store/memory"
)

type testEnv struct {
	handler   http.Handler
	uploadDir string
	metrics   *observability.InMemoryMetricsProvider
}

func newTestEnv(t *testing.T, maxFileSize int64, aiOpts ...mock.Option) *testEnv {
	t.Helper()

	client := mock.New(aiOpts...)
	store := memory.New()
	svc := pipeline.NewService(extract.New(extract.Config{FetchTimeout: time.Second}), client, store, client)

	health := observability.NewHealthCheckRegistry(time.Second)
	health.Register(&observability.FuncHealthCheck{CheckName: "vector_store", CheckFunc: func(ctx context.Context) error {
		_, err := store.ListCollections(ctx)
		return err
	}})

	metrics := observability.NewInMemoryMetricsProvider()
	dir := t.TempDir()
	srv, err := New(svc, Config{
		UploadDir:   dir,
		MaxFileSize: maxFileSize,
		Health:      health,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	}, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEnv{handler: srv.Handler(), uploadDir: dir, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, path string, fields map[string]string, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) assertUploadDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir has %d leftover files", len(entries))
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return v
}

func letters(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	return b.String()
}

func TestEmbedTextAndAsk(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/embed/text", map[string]any{
		"collectionId": "docs",
		"text":         letters(1200),
		"metadata":     map[string]string{"author": "ann"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[embedResponse](t, rec)
	if res.ChunksProcessed != 3 || res.TotalCharacters != 1200 || res.Message != "3 chunks embedded successfully" {
		t.Errorf("response = %+v", res)
	}

	rec = env.do(t, http.MethodPost, "/ask", map[string]any{"collectionId": "docs", "question": "what?", "nResults": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("ask status = %d, body %s", rec.Code, rec.Body.String())
	}
	answer := decodeBody[rag.AnswerResult](t, rec)
	if answer.Answer != mock.DefaultAnswer || answer.ChunksUsed != 2 || len(answer.Sources) != 1 || answer.Sources[0] != "text" {
		t.Errorf("answer = %+v", answer)
	}

	if got := env.metrics.GetCounter(observability.MetricHTTPRequests, map[string]string{"route": "POST /ask", "status": "200"}); got != 1 {
		t.Errorf("http request counter = %d, want 1", got)
	}
}

func TestErrorResponses(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		message string
	}{
		{"missing collection id", http.MethodPost, "/embed/text", map[string]any{"text": "hello"}, 400, "collectionId is required"},
		{"invalid json", http.MethodPost, "/embed/text", "{nope", 400, "invalid JSON body"},
		{"nResults too large", http.MethodPost, "/ask", map[string]any{"collectionId": "c", "question": "q", "nResults": 11}, 400, "nResults must be between 1 and 10"},
		{"nResults zero", http.MethodPost, "/ask", map[string]any{"collectionId": "c", "question": "q", "nResults": 0}, 400, "nResults must be between 1 and 10"},
		{"ask unknown collection", http.MethodPost, "/ask", map[string]any{"collectionId": "ghost", "question": "q"}, 404, `collection "ghost" not found`},
		{"invalid url", http.MethodPost, "/embed/website", map[string]any{"collectionId": "c", "url": "not a url"}, 400, "invalid URL format"},
		{"info unknown collection", http.MethodGet, "/collections/ghost", nil, 404, `collection "ghost" not found`},
		{"delete unknown collection", http.MethodDelete, "/collections/ghost", nil, 404, `collection "ghost" not found`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			body := decodeBody[ErrorResponse](t, rec)
			if body.StatusCode != tt.status || body.Error != http.StatusText(tt.status) || body.Path != tt.path {
				t.Errorf("error body = %+v", body)
			}
			if !strings.Contains(body.Message, tt.message) {
				t.Errorf("message = %q, want containing %q", body.Message, tt.message)
			}
			if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
				t.Errorf("timestamp %q is not ISO-8601: %v", body.Timestamp, err)
			}
		})
	}
}

func TestUpstreamFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0, mock.WithEmbedError(errors.New("provider down")))

	rec := env.do(t, http.MethodPost, "/embed/text", map[string]any{"collectionId": "c", "text": letters(100)})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (body %s)", rec.Code, rec.Body.String())
	}
	if body := decodeBody[ErrorResponse](t, rec); !strings.Contains(body.Message, "provider down") {
		t.Errorf("message = %q", body.Message)
	}
}

func TestEmbedWebsite(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	page := fmt.Sprintf("<html><head><title>Widgets</title></head><body><p>%s</p></body></html>", letters(300))
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer site.Close()

	rec := env.do(t, http.MethodPost, "/embed/website", map[string]any{"collectionId": "web", "url": site.URL + "/page"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[embedResponse](t, rec)
	if res.URL != site.URL+"/page" || !strings.HasPrefix(res.Message, "Website processed: ") || res.ChunksProcessed == 0 {
		t.Errorf("response = %+v", res)
	}

	rec = env.do(t, http.MethodPost, "/embed/website", map[string]any{"collectionId": "web", "url": site.URL + "/missing"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("404 site status = %d, want 400", rec.Code)
	}
}

func TestUploads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		path        string
		fields      map[string]string
		filename    string
		content     []byte
		maxFileSize int64
		status      int
		message     string
	}{
		{
			name:     "txt success",
			path:     "/embed/txt",
			fields:   map[string]string{"collectionId": "files", "metadata.team": "docs"},
			filename: "notes.txt",
			content:  []byte(letters(600)),
			status:   http.StatusOK,
			message:  "TXT file processed: 2 chunks embedded",
		},
		{
			name:     "disallowed extension",
			path:     "/embed/txt",
			fields:   map[string]string{"collectionId": "files"},
			filename: "run.exe",
			content:  []byte("MZ"),
			status:   http.StatusBadRequest,
			message:  "Only PDF and TXT files are allowed",
		},
		{
			name:     "extension does not match route",
			path:     "/embed/pdf",
			fields:   map[string]string{"collectionId": "files"},
			filename: "notes.txt",
			content:  []byte(letters(100)),
			status:   http.StatusBadRequest,
			message:  "expected a .pdf file",
		},
		{
			name:    "missing file",
			path:    "/embed/txt",
			fields:  map[string]string{"collectionId": "files"},
			status:  http.StatusBadRequest,
			message: "File is required",
		},
		{
			name:        "too large",
			path:        "/embed/txt",
			fields:      map[string]string{"collectionId": "files"},
			filename:    "big.txt",
			content:     []byte(letters(64)),
			maxFileSize: 32,
			status:      http.StatusRequestEntityTooLarge,
			message:     "32 byte limit",
		},
		{
			name:     "too short text",
			path:     "/embed/txt",
			fields:   map[string]string{"collectionId": "files"},
			filename: "tiny.txt",
			content:  []byte("hi"),
			status:   http.StatusBadRequest,
			message:  "file is empty or too short",
		},
		{
			name:     "unparseable pdf",
			path:     "/embed/pdf",
			fields:   map[string]string{"collectionId": "files"},
			filename: "broken.pdf",
			content:  []byte("not really a pdf"),
			status:   http.StatusUnprocessableEntity,
		},
		{
			name:     "missing collection id",
			path:     "/embed/txt",
			filename: "notes.txt",
			content:  []byte(letters(600)),
			status:   http.StatusBadRequest,
			message:  "collectionId is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, tt.maxFileSize)

			rec := env.upload(t, tt.path, tt.fields, tt.filename, tt.content)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.message) {
				t.Errorf("body %s does not contain %q", rec.Body.String(), tt.message)
			}
			env.assertUploadDirEmpty(t)
		})
	}
}

func TestCollections(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/collections", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"collections":[]}` {
		t.Fatalf("empty list = %d %s", rec.Code, rec.Body.String())
	}

	for _, id := range []string{"beta", "alpha"} {
		if rec := env.do(t, http.MethodPost, "/embed/text", map[string]any{"collectionId": id, "text": letters(100)}); rec.Code != http.StatusOK {
			t.Fatalf("embed %s status = %d", id, rec.Code)
		}
	}

	list := decodeBody[collectionsResponse](t, env.do(t, http.MethodGet, "/collections", nil))
	if len(list.Collections) != 2 || list.Collections[0] != "alpha" {
		t.Errorf("collections = %v", list.Collections)
	}

	info := decodeBody[rag.CollectionInfo](t, env.do(t, http.MethodGet, "/collections/alpha", nil))
	if info.Name != "alpha" || info.DocumentCount != 1 || len(info.SampleDocuments) != 1 || info.SampleMetadata[0]["source"] != "text" {
		t.Errorf("info = %+v", info)
	}

	rec = env.do(t, http.MethodDelete, "/collections/alpha", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if msg := decodeBody[messageResponse](t, rec); msg.Message != "Collection 'alpha' deleted" {
		t.Errorf("delete message = %q", msg.Message)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	report := decodeBody[observability.HealthReport](t, rec)
	if report.Status != observability.HealthStatusHealthy {
		t.Errorf("health report = %+v", report)
	}

	if rec := env.do(t, http.MethodGet, "/metrics", nil); rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "# metrics") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodGet, "/embed/text", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /embed/text status = %d, want 405", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	newHandler := func(t *testing.T, origins []string) http.Handler {
		t.Helper()
		client := mock.New()
		svc := pipeline.NewService(extract.New(extract.Config{FetchTimeout: time.Second}), client, memory.New(), client)
		srv, err := New(svc, Config{UploadDir: t.TempDir(), CORSOrigins: origins})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return srv.Handler()
	}

	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantOrigin string
	}{
		{"wildcard preflight", []string{"*"}, http.MethodOptions, "https://app.example.com", true, http.StatusNoContent, "*"},
		{"wildcard simple request", []string{"*"}, http.MethodGet, "https://app.example.com", false, http.StatusOK, "*"},
		{"listed origin echoed", []string{"https://app.example.com"}, http.MethodGet, "https://app.example.com", false, http.StatusOK, "https://app.example.com"},
		{"unlisted origin", []string{"https://app.example.com"}, http.MethodGet, "https://evil.example.com", false, http.StatusOK, ""},
		{"disabled", nil, http.MethodGet, "https://app.example.com", false, http.StatusOK, ""},
		{"disabled preflight falls through", nil, http.MethodOptions, "https://app.example.com", true, http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/collections", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			newHandler(t, tt.origins).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.wantOrigin != "" && rec.Header().Get("Access-Control-Allow-Methods") != corsMethods {
				t.Errorf("Access-Control-Allow-Methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{rag.Validation("op", "bad"), http.StatusBadRequest},
		{rag.Fetch("op", 404, nil), http.StatusBadRequest},
		{rag.NotFound("op", "c"), http.StatusNotFound},
		{rag.Extraction("op", "empty", nil), http.StatusUnprocessableEntity},
		{rag.Upstream("op", errors.New("boom")), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", rag.NotFound("op", "c")), http.StatusNotFound},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewRequiresService(t *testing.T) {
	t.Parallel()
	if _, err := New(nil, Config{UploadDir: t.TempDir()}); err == nil {
		t.Error("New(nil) expected error")
	}
}
