package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"media-embedder/internal/database"
	"media-embedder/internal/logging"
	"media-embedder/internal/media"
	"media-embedder/internal/metrics"
)

// TitleResponse is the body of GET /api/title.
type TitleResponse struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// VolumeRequest is the body of PUT /api/volume and the response of both
// volume endpoints.
type VolumeRequest struct {
	Volume *float64 `json:"volume"`
}

// GetThumbnail serves the cached thumbnail for ?url=. It never fetches.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	url, ok := requiredQuery(w, r, "url")
	if !ok {
		return
	}

	ns := h.namespaces().Thumbnail
	data, found, err := h.store().Get(r.Context(), ns, url)
	if err != nil {
		metrics.CacheStorageErrors.WithLabelValues(ns.Name, "get").Inc()
		logging.Error("thumbnail lookup for %s failed: %v", url, err)
		writeJSONError(w, "Failed to read cache", http.StatusInternalServerError)
		return
	}
	metrics.CacheLookupResult(ns.Name, found)
	if !found {
		writeJSONError(w, "Thumbnail not cached", http.StatusNotFound)
		return
	}

	cfg, mime, err := media.DecodeThumbnailConfig(data)
	if err != nil {
		logging.Warn("cached thumbnail for %s is unreadable: %v", url, err)
		writeJSONError(w, "Thumbnail not cached", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Thumbnail-Width", strconv.Itoa(cfg.Width))
	w.Header().Set("X-Thumbnail-Height", strconv.Itoa(cfg.Height))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.Debug("failed to write thumbnail: %v", err)
	}
}

// GetTitle returns the cached title for ?url=.
func (h *Handlers) GetTitle(w http.ResponseWriter, r *http.Request) {
	url, ok := requiredQuery(w, r, "url")
	if !ok {
		return
	}

	ns := h.namespaces().Title
	data, found, err := h.store().Get(r.Context(), ns, url)
	if err != nil {
		metrics.CacheStorageErrors.WithLabelValues(ns.Name, "get").Inc()
		logging.Error("title lookup for %s failed: %v", url, err)
		writeJSONError(w, "Failed to read cache", http.StatusInternalServerError)
		return
	}
	metrics.CacheLookupResult(ns.Name, found)
	if !found {
		writeJSONError(w, "Title not cached", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, TitleResponse{URL: url, Title: string(data)})
}

// GetVolume returns the shared playback volume.
func (h *Handlers) GetVolume(w http.ResponseWriter, r *http.Request) {
	v, err := database.GetVolume(r.Context(), h.store(), h.namespaces())
	if err != nil {
		// GetVolume still returns the default; report it rather than fail.
		logging.Warn("volume lookup failed, using %v: %v", v, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, VolumeRequest{Volume: &v})
}

// SetVolume stores the shared playback volume. Values outside [0, 1] are
// rejected.
func (h *Handlers) SetVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Volume == nil {
		writeJSONError(w, "volume is required", http.StatusBadRequest)
		return
	}
	if err := database.ValidateVolume(*req.Volume); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := database.SetVolume(r.Context(), h.store(), h.namespaces(), *req.Volume); err != nil {
		metrics.CacheStorageErrors.WithLabelValues(database.NamespaceVolume, "set").Inc()
		logging.Error("failed to store volume: %v", err)
		writeJSONError(w, "Failed to store volume", http.StatusInternalServerError)
		return
	}

	logging.Info("volume set to %v", *req.Volume)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, req)
}
