package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes registers every API endpoint on r.
func (h *Handlers) Routes(r *mux.Router) {
	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/embed", h.EmbedPage).Methods(http.MethodPost).Name("embed")
	api.HandleFunc("/thumbnail", h.GetThumbnail).Methods(http.MethodGet, http.MethodHead).Name("thumbnail")
	api.HandleFunc("/title", h.GetTitle).Methods(http.MethodGet).Name("title")
	api.HandleFunc("/volume", h.GetVolume).Methods(http.MethodGet).Name("volume")
	api.HandleFunc("/volume", h.SetVolume).Methods(http.MethodPut)
}

// NewRouter returns a router with all API endpoints registered.
func (h *Handlers) NewRouter() *mux.Router {
	r := mux.NewRouter()
	h.Routes(r)
	return r
}
