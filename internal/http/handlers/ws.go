package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/mixarr/internal/models"
)

// Per-connection message budget. Overlay control is bursty (scoreboard
// updates, ticker edits) but a runaway client must not starve the draw loop
// of lock time.
const (
	wsMessageRate  = rate.Limit(50)
	wsMessageBurst = 100
)

// OverlayCommand is one WebSocket control message. Action selects the
// operation; id and element apply where the operation needs them.
type OverlayCommand struct {
	Action  string                 `json:"action"` // create, update, delete, show, hide, clear, list
	ID      string                 `json:"id,omitempty"`
	Element *models.OverlayElement `json:"element,omitempty"`
}

// OverlayReply is the response to one command.
type OverlayReply struct {
	OK       bool                    `json:"ok"`
	Error    string                  `json:"error,omitempty"`
	Element  *models.OverlayElement  `json:"element,omitempty"`
	Elements []models.OverlayElement `json:"elements,omitempty"`
}

// OverlayWSHandler is the low-latency overlay control channel. It accepts
// the same operations as the REST overlay endpoints over a persistent
// connection, saving a request round-trip per update.
type OverlayWSHandler struct {
	overlay  OverlayService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewOverlayWSHandler creates the WebSocket overlay handler. An empty or
// "*" origins list accepts any origin.
func NewOverlayWSHandler(overlay OverlayService, origins []string, logger *slog.Logger) *OverlayWSHandler {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return &OverlayWSHandler{
		overlay: overlay,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				return slices.Contains(origins, r.Header.Get("Origin"))
			},
		},
	}
}

// RegisterChiRoutes registers the WebSocket route.
func (h *OverlayWSHandler) RegisterChiRoutes(r chi.Router) {
	r.Get("/ws/overlay", h.handleConn)
}

func (h *OverlayWSHandler) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	logger := h.logger.With(slog.String("client", clientID))
	logger.Info("overlay websocket connected", slog.String("remote_addr", r.RemoteAddr))

	limiter := rate.NewLimiter(wsMessageRate, wsMessageBurst)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", slog.String("error", err.Error()))
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if !limiter.Allow() {
			if err := conn.WriteJSON(OverlayReply{OK: false, Error: "rate limit exceeded"}); err != nil {
				break
			}
			continue
		}

		var cmd OverlayCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			if err := conn.WriteJSON(OverlayReply{OK: false, Error: "invalid JSON: " + err.Error()}); err != nil {
				break
			}
			continue
		}

		if err := conn.WriteJSON(h.dispatch(cmd)); err != nil {
			logger.Warn("websocket write error", slog.String("error", err.Error()))
			break
		}
	}

	logger.Info("overlay websocket disconnected")
}

// dispatch executes one command against the overlay service.
func (h *OverlayWSHandler) dispatch(cmd OverlayCommand) OverlayReply {
	fail := func(err error) OverlayReply {
		return OverlayReply{OK: false, Error: err.Error()}
	}

	switch cmd.Action {
	case "create":
		if cmd.Element == nil {
			return OverlayReply{OK: false, Error: "create requires an element"}
		}
		el, err := h.overlay.Add(*cmd.Element)
		if err != nil {
			return fail(err)
		}
		return OverlayReply{OK: true, Element: &el}

	case "update":
		if cmd.Element == nil {
			return OverlayReply{OK: false, Error: "update requires an element"}
		}
		id := cmd.ID
		if id == "" {
			id = cmd.Element.ID
		}
		el, err := h.overlay.Update(id, *cmd.Element)
		if err != nil {
			return fail(err)
		}
		return OverlayReply{OK: true, Element: &el}

	case "delete":
		if err := h.overlay.Remove(cmd.ID); err != nil {
			return fail(err)
		}
		return OverlayReply{OK: true}

	case "show":
		if err := h.overlay.Show(cmd.ID); err != nil {
			return fail(err)
		}
		return OverlayReply{OK: true}

	case "hide":
		if err := h.overlay.Hide(cmd.ID); err != nil {
			return fail(err)
		}
		return OverlayReply{OK: true}

	case "clear":
		h.overlay.Clear()
		return OverlayReply{OK: true}

	case "list":
		return OverlayReply{OK: true, Elements: h.overlay.List()}
	}

	return OverlayReply{OK: false, Error: "unknown action: " + cmd.Action}
}
