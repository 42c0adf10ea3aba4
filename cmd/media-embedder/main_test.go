package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"media-embedder/internal/database"
	"media-embedder/internal/embedder"
	"media-embedder/internal/handlers"
	"media-embedder/internal/mediatypes"
	"media-embedder/internal/startup"
)

func newTestRouterHandlers() *handlers.Handlers {
	return handlers.New(
		embedder.Options{Store: database.NewMemoryStore(0)},
		mediatypes.NewAllowList(nil),
		nil,
	)
}

func TestSetupRouterRegistersAPI(t *testing.T) {
	routes, err := startup.GetRoutes(setupRouter(newTestRouterHandlers()))
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	want := map[string]bool{
		"POST /api/embed":    false,
		"GET /api/thumbnail": false,
		"GET /api/title":     false,
		"GET /api/volume":    false,
		"PUT /api/volume":    false,
		"GET /healthz":       false,
		"GET /version":       false,
	}
	for _, r := range routes {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestSetupRouterServes(t *testing.T) {
	h := newTestRouterHandlers()
	router := setupRouter(h)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("/livez = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/volume", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("/api/volume = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("/nope = %d, want 404", rr.Code)
	}
}
