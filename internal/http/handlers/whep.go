package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/mixarr/internal/config"
)

// whepMaxBody bounds the SDP payloads we forward. Offers and ICE fragments
// are a few KB; anything larger is not WHEP traffic.
const whepMaxBody = 256 * 1024

// WHEPHandler proxies WebRTC-HTTP egress (WHEP) requests to the media
// server. Browsers get a same-origin URL, so no CORS preflight dance against
// the media server's port, and the media server stays loopback-only.
//
// Session flow: POST an SDP offer to /whep/{path}, the answer comes back
// with a Location pointing at the session resource; PATCH trickle-ICE
// fragments and DELETE the teardown go to that resource.
type WHEPHandler struct {
	media  config.MediaServerConfig
	client *http.Client
	logger *slog.Logger
}

// NewWHEPHandler creates the WHEP proxy.
func NewWHEPHandler(media config.MediaServerConfig, logger *slog.Logger) *WHEPHandler {
	return &WHEPHandler{
		media:  media,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// RegisterChiRoutes registers the raw proxy routes.
func (h *WHEPHandler) RegisterChiRoutes(r chi.Router) {
	r.Post("/whep/{path}", h.handleOffer)
	r.Patch("/whep/{path}/{session}", h.handleSession)
	r.Delete("/whep/{path}/{session}", h.handleSession)
}

// handleOffer forwards an SDP offer and rewrites the session Location to the
// same-origin form.
func (h *WHEPHandler) handleOffer(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	h.forward(w, r, path, h.media.WHEPURL(path))
}

// handleSession forwards trickle-ICE PATCHes and session DELETEs.
func (h *WHEPHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	session := chi.URLParam(r, "session")
	h.forward(w, r, path, h.media.WHEPURL(path)+"/"+session)
}

func (h *WHEPHandler) forward(w http.ResponseWriter, r *http.Request, path, target string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, whepMaxBody))
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, strings.NewReader(string(body)))
	if err != nil {
		http.Error(w, "building upstream request", http.StatusInternalServerError)
		return
	}
	for _, header := range []string{"Content-Type", "Accept", "If-Match"} {
		if v := r.Header.Get(header); v != "" {
			req.Header.Set(header, v)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("WHEP upstream unreachable",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "media server unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for _, header := range []string{"Content-Type", "ETag"} {
		if v := resp.Header.Get(header); v != "" {
			w.Header().Set(header, v)
		}
	}
	if loc := resp.Header.Get("Location"); loc != "" {
		w.Header().Set("Location", rewriteLocation(path, loc))
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debug("WHEP response copy interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// rewriteLocation maps the media server's session resource onto this
// server's /whep/{path}/{session} route. The session id is the last path
// segment regardless of whether the upstream Location is absolute.
func rewriteLocation(path, location string) string {
	trimmed := strings.TrimRight(location, "/")
	session := trimmed
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		session = trimmed[i+1:]
	}
	return fmt.Sprintf("/whep/%s/%s", path, session)
}
