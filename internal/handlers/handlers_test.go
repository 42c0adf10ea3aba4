package handlers

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"media-embedder/internal/database"
	"media-embedder/internal/embedder"
	"media-embedder/internal/fetcher"
	"media-embedder/internal/media"
	"media-embedder/internal/metrics"
	"media-embedder/internal/mediatypes"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const (
	okURL   = "https://files.catbox.moe/ok.webm"
	deadURL = "https://files.catbox.moe/dead.webm"
)

// stubFetcher serves a fixed prefix for okURL and 404 for everything else.
type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, url string, budget int64) (*fetcher.Chunk, error) {
	if url != okURL {
		return nil, &fetcher.TransportError{URL: url, StatusCode: http.StatusNotFound}
	}
	return &fetcher.Chunk{URL: url, Data: make([]byte, 64), Budget: budget}, nil
}

type stubExtractor struct{}

func (stubExtractor) ExtractFrame(context.Context, []byte) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 360))
	for y := 0; y < 360; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img, nil
}

type stubStats struct{}

func (stubStats) GetStats() metrics.Stats {
	return metrics.Stats{Namespaces: []metrics.NamespaceStats{{Namespace: "thumbnail", Version: 1, Entries: 2, Bytes: 100}}}
}

func newTestHandlers(t *testing.T) (*Handlers, database.Store) {
	t.Helper()
	store := database.NewMemoryStore(0)
	h := New(embedder.Options{
		Store:      store,
		Fetcher:    stubFetcher{},
		Budget:     fetcher.Budget{Small: 100, Large: 400},
		Extractor:  stubExtractor{},
		Thumbnails: media.NewThumbnailGenerator(media.ThumbnailOptions{Size: 200}),
		Policy:     embedder.DefaultPolicy(),
	}, mediatypes.NewAllowList([]string{"files.catbox.moe"}), stubStats{})
	return h, store
}

func serve(h *Handlers, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.NewRouter().ServeHTTP(rr, req)
	return rr
}

// =============================================================================
// Embed
// =============================================================================

func TestEmbedPage(t *testing.T) {
	t.Parallel()

	h, store := newTestHandlers(t)
	body := `<div id="post"><a href="` + okURL + `">clip</a> <a href="` + deadURL + `">gone</a>` +
		` <a href="https://example.com/x.mp4">other</a></div>`

	rr := serve(h, httptest.NewRequest(http.MethodPost, "/api/embed", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	tests := map[string]string{
		"X-Embed-Candidates": "2",
		"X-Embed-Embedded":   "1",
		"X-Embed-Failed":     "1",
	}
	for header, want := range tests {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	out := rr.Body.String()
	if !strings.Contains(out, `data-state="minimized"`) || !strings.Contains(out, `data-src="`+okURL+`"`) {
		t.Errorf("player missing from output: %s", out)
	}
	if !strings.Contains(out, `href="`+deadURL+`"`) {
		t.Error("failed link should be left in place")
	}
	if strings.Contains(out, "<html>") {
		t.Error("fragment input should render as a fragment")
	}

	ns := database.NewNamespaces(1)
	if _, ok, _ := store.Get(context.Background(), ns.Thumbnail, okURL); !ok {
		t.Error("thumbnail was not cached")
	}
}

func TestEmbedPageTooLarge(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t)
	body := strings.Repeat("a", maxEmbedBody+1)
	rr := serve(h, httptest.NewRequest(http.MethodPost, "/api/embed", strings.NewReader(body)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rr.Code)
	}
}

func TestEmbedPageMisconfiguredPipeline(t *testing.T) {
	t.Parallel()

	h := New(embedder.Options{Store: database.NewMemoryStore(0)},
		mediatypes.NewAllowList([]string{"files.catbox.moe"}), nil)
	body := `<a href="` + okURL + `">clip</a>`

	rr := serve(h, httptest.NewRequest(http.MethodPost, "/api/embed", strings.NewReader(body)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil || resp["error"] == "" {
		t.Errorf("body = %v, %v; want a JSON error", resp, err)
	}
}

func TestEmbedPageClientGone(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := `<a href="` + okURL + `">clip</a>`
	req := httptest.NewRequest(http.MethodPost, "/api/embed", strings.NewReader(body)).WithContext(ctx)
	rr := serve(h, req)
	if rr.Code == http.StatusInternalServerError {
		t.Errorf("status = %d, a canceled request is not a server error", rr.Code)
	}
}

func TestEmbedPageMethodNotAllowed(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t)
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/embed", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

// =============================================================================
// Cache lookups
// =============================================================================

func TestGetThumbnail(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail?url="+okURL, nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("uncached status = %d, want 404", rr.Code)
	}

	serve(h, httptest.NewRequest(http.MethodPost, "/api/embed", strings.NewReader(`<a href="`+okURL+`">v</a>`)))

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail?url="+okURL, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rr.Header().Get("X-Thumbnail-Width") != "200" || rr.Header().Get("X-Thumbnail-Height") != "113" {
		t.Errorf("dimensions = %sx%s", rr.Header().Get("X-Thumbnail-Width"), rr.Header().Get("X-Thumbnail-Height"))
	}
	if rr.Body.Len() == 0 {
		t.Error("empty thumbnail body")
	}
}

func TestGetThumbnailCorruptEntry(t *testing.T) {
	t.Parallel()

	h, store := newTestHandlers(t)
	ns := database.NewNamespaces(1)
	if err := store.Set(context.Background(), ns.Thumbnail, okURL, []byte("garbage")); err != nil {
		t.Fatal(err)
	}

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail?url="+okURL, nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestGetTitle(t *testing.T) {
	t.Parallel()

	h, store := newTestHandlers(t)
	ns := database.NewNamespaces(1)
	if err := store.Set(context.Background(), ns.Title, okURL, []byte("Cached Title")); err != nil {
		t.Fatal(err)
	}

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/title?url="+okURL, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp TitleResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.URL != okURL || resp.Title != "Cached Title" {
		t.Errorf("response = %+v", resp)
	}

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/title?url="+deadURL, nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("uncached status = %d, want 404", rr.Code)
	}
}

func TestLookupsRequireURL(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t)
	for _, path := range []string{"/api/thumbnail", "/api/title"} {
		rr := serve(h, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, rr.Code)
		}
	}
}

// =============================================================================
// Volume
// =============================================================================

func decodeVolume(t *testing.T, rr *httptest.ResponseRecorder) float64 {
	t.Helper()
	var resp VolumeRequest
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Volume == nil {
		t.Fatal("volume missing from response")
	}
	return *resp.Volume
}

func TestVolume(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/volume", nil))
	if v := decodeVolume(t, rr); v != database.DefaultVolume {
		t.Errorf("default volume = %v", v)
	}

	rr = serve(h, httptest.NewRequest(http.MethodPut, "/api/volume", strings.NewReader(`{"volume":0.25}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/volume", nil))
	if v := decodeVolume(t, rr); v != 0.25 {
		t.Errorf("volume = %v, want 0.25", v)
	}
}

func TestSetVolumeRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"above one", `{"volume":1.5}`},
		{"negative", `{"volume":-0.1}`},
		{"missing", `{}`},
		{"not json", `loud`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, _ := newTestHandlers(t)
			rr := serve(h, httptest.NewRequest(http.MethodPut, "/api/volume", strings.NewReader(tt.body)))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

// =============================================================================
// Health
// =============================================================================

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t)

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		if rr := serve(h, httptest.NewRequest(http.MethodGet, path, nil)); rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s before ready = %d, want 503", path, rr.Code)
		}
	}
	if rr := serve(h, httptest.NewRequest(http.MethodGet, "/livez", nil)); rr.Code != http.StatusOK {
		t.Errorf("/livez = %d", rr.Code)
	}

	h.SetReady(true)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/healthz = %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != statusHealthy || !resp.Ready || len(resp.Cache) != 1 || resp.Cache[0].Entries != 2 {
		t.Errorf("health = %+v", resp)
	}
	if len(resp.AllowedHosts) != 1 || resp.AllowedHosts[0] != "files.catbox.moe" {
		t.Errorf("AllowedHosts = %v", resp.AllowedHosts)
	}

	if rr := serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rr.Code != http.StatusOK {
		t.Errorf("/readyz after ready = %d", rr.Code)
	}
}

func TestLivenessHead(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t)
	rr := serve(h, httptest.NewRequest(http.MethodHead, "/livez", nil))
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d body bytes", rr.Code, rr.Body.Len())
	}
}

func TestGetVersion(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t)
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var info map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info["version"] == "" || info["goVersion"] == "" {
		t.Errorf("version info = %v", info)
	}
}
