package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"media-embedder/internal/embedder"
	"media-embedder/internal/logging"
	"media-embedder/internal/page"
	"media-embedder/internal/streaming"
)

// maxEmbedBody caps the size of a posted page.
const maxEmbedBody = 8 << 20

// EmbedPage rewrites the posted HTML page or fragment, replacing every
// allowed video link with an inline player. Links that fail to embed are
// left as they were. Outcome counts are returned in X-Embed-* headers.
func (h *Handlers) EmbedPage(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxEmbedBody)
	doc, err := page.Parse(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "Invalid HTML", http.StatusBadRequest)
		return
	}

	sum, err := embedder.ProcessDocument(r.Context(), h.pipeline, doc, h.allow)
	if err != nil {
		if r.Context().Err() != nil {
			// The client went away; nothing useful can be written.
			logging.Warn("embed request aborted after %d/%d links: %v", sum.Embedded+sum.Failed, sum.Candidates, err)
			return
		}
		logging.Error("embed pipeline failed: %v", err)
		writeJSONError(w, "Failed to embed page", http.StatusInternalServerError)
		return
	}

	out, err := doc.Render()
	if err != nil {
		logging.Error("failed to render embedded page: %v", err)
		writeJSONError(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Embed-Candidates", strconv.Itoa(sum.Candidates))
	w.Header().Set("X-Embed-Embedded", strconv.Itoa(sum.Embedded))
	w.Header().Set("X-Embed-Cache-Hits", strconv.Itoa(sum.CacheHits))
	w.Header().Set("X-Embed-Failed", strconv.Itoa(sum.Failed))
	if _, err := streaming.Send(r.Context(), w, []byte(out), streaming.DefaultConfig()); err != nil {
		logging.Debug("failed to write embedded page: %v", err)
	}
}
