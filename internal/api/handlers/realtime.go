package handlers

import (
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/wonny/sheetalert/internal/auth"
	"github.com/wonny/sheetalert/internal/realtime"
	"github.com/wonny/sheetalert/pkg/logger"
)

// RealtimeHandler upgrades signed-in browsers to a websocket
type RealtimeHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewRealtimeHandler creates a new realtime handler. Only pages served
// from baseURL may open a socket.
func NewRealtimeHandler(hub *realtime.Hub, baseURL string, log *logger.Logger) *RealtimeHandler {
	allowed := ""
	if u, err := url.Parse(baseURL); err == nil {
		allowed = u.Host
	}

	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && (u.Host == allowed || u.Host == r.Host)
			},
		},
		logger: log,
	}
}

// Serve attaches the connection to the caller's event stream
// GET /ws
func (h *RealtimeHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.hub.Attach(conn, id.UserID)
}
