package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-embedder/internal/metrics"
)

// =============================================================================
// Logging
// =============================================================================

func TestResponseWriterCapturesStatusAndBytes(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	if rw.statusCode != http.StatusOK || rw.wroteHeader {
		t.Fatalf("initial state = %+v", rw)
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, first WriteHeader should win", rw.statusCode)
	}

	n, err := rw.Write([]byte("test data"))
	if err != nil || n != 9 || rw.bytesWritten != 9 {
		t.Errorf("Write() = %d, %v; bytesWritten = %d", n, err, rw.bytesWritten)
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\nb\rc", "a b c"},
		{"bell\x07\x00", "bell"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tkept", "tab\tkept"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{"api request", "/api/embed", DefaultLoggingConfig(), false},
		{"favicon", "/favicon.ico", DefaultLoggingConfig(), true},
		{"favicon when static logging on", "/favicon.ico", LoggingConfig{LogStaticFiles: true, SkipExtensions: []string{".ico"}}, false},
		{"health logged", "/healthz", LoggingConfig{LogHealthChecks: true}, false},
		{"health skipped", "/healthz", LoggingConfig{LogHealthChecks: false}, true},
		{"skip prefix", "/api/volume", LoggingConfig{SkipPaths: []string{"/api/vol"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4321"
	if got := getClientIP(r); got != "10.0.0.5" {
		t.Errorf("RemoteAddr ip = %q", got)
	}

	r.Header.Set("X-Real-IP", "10.0.0.6")
	if got := getClientIP(r); got != "10.0.0.6" {
		t.Errorf("X-Real-IP ip = %q", got)
	}

	r.Header.Set("X-Forwarded-For", " 192.0.2.1 , 10.0.0.1")
	if got := getClientIP(r); got != "192.0.2.1" {
		t.Errorf("X-Forwarded-For ip = %q", got)
	}
}

func TestFormatW3C(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/embed?x=1", nil)
	r.RemoteAddr = "192.0.2.9:1000"
	r.Header.Set("User-Agent", "test agent\n")

	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)
	rw.Header().Set("X-Embed-Embedded", "3")
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("hello"))

	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	line := formatW3C(now, "req-1", r, rw, 42*time.Millisecond)

	want := `2024-05-06 07:08:09 192.0.2.9 POST /api/embed x=1 200 5 42 - 3 "test agent " req-1`
	if line != want {
		t.Errorf("formatW3C() =\n%s\nwant\n%s", line, want)
	}
}

func TestLoggerSetsRequestID(t *testing.T) {
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/volume", nil))
	if id := w.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated request id = %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/favicon.ico", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if id := w.Header().Get(RequestIDHeader); id != "client-id" {
		t.Errorf("request id = %q, want the client's", id)
	}
}

// =============================================================================
// Compression
// =============================================================================

func gunzip(t *testing.T, b []byte) string {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	out, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestCompressionMiddleware(t *testing.T) {
	large := strings.Repeat("<p>embedded</p>", 200)

	tests := []struct {
		name           string
		contentType    string
		body           string
		acceptEncoding string
		method         string
		wantGzip       bool
	}{
		{"compresses large html", "text/html; charset=utf-8", large, "gzip, deflate", http.MethodPost, true},
		{"compresses large json", "application/json", `{"v":"` + large + `"}`, "gzip", http.MethodGet, true},
		{"skips small body", "text/html", "<p>x</p>", "gzip", http.MethodGet, false},
		{"skips images", "image/jpeg", large, "gzip", http.MethodGet, false},
		{"skips without accept-encoding", "text/html", large, "", http.MethodGet, false},
		{"skips HEAD", "text/html", large, "gzip", http.MethodHead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(tt.body))
			}))

			req := httptest.NewRequest(tt.method, "/api/embed", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusCreated {
				t.Errorf("status = %d, want 201", w.Code)
			}
			gotGzip := w.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tt.wantGzip)
			}
			if tt.method == http.MethodHead {
				return
			}
			body := w.Body.String()
			if gotGzip {
				body = gunzip(t, w.Body.Bytes())
			}
			if body != tt.body {
				t.Errorf("body mismatch: got %d bytes, want %d", len(body), len(tt.body))
			}
		})
	}
}

func TestCompressionMultipleWrites(t *testing.T) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		for i := 0; i < 100; i++ {
			_, _ = w.Write([]byte("<div>chunk</div>"))
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/embed", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("expected gzip once the threshold was crossed")
	}
	if got := gunzip(t, w.Body.Bytes()); got != strings.Repeat("<div>chunk</div>", 100) {
		t.Errorf("decompressed body has %d bytes", len(got))
	}
}

// =============================================================================
// Metrics
// =============================================================================

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.HandleFunc("/api/thumbnail", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(http.ResponseWriter, *http.Request) {})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/thumbnail", "404")
	before := testutil.ToFloat64(counter)

	for _, u := range []string{"https://a.example/1.webm", "https://a.example/2.webm"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/thumbnail?url="+u, nil))
	}
	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests recorded = %v, want 2", got)
	}

	health := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	before = testutil.ToFloat64(health)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if testutil.ToFloat64(health) != before {
		t.Error("health checks should be skipped")
	}
}

func TestRouteLabelWithoutRoute(t *testing.T) {
	if got := routeLabel(httptest.NewRequest(http.MethodGet, "/nowhere", nil)); got != "unmatched" {
		t.Errorf("routeLabel() = %q", got)
	}
}

func TestMetricsResponseWriterStatus(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newMetricsResponseWriter(w)
	if rw.statusCode != http.StatusOK {
		t.Errorf("default status = %d", rw.statusCode)
	}
	rw.WriteHeader(http.StatusTeapot)
	if rw.statusCode != http.StatusTeapot || w.Code != http.StatusTeapot {
		t.Errorf("status = %d / %d", rw.statusCode, w.Code)
	}
}
