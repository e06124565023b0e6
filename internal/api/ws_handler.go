package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/vdavid/mailtrace/internal/logging"
	ws "github.com/vdavid/mailtrace/internal/websocket"
)

// WebSocketHandler handles the /api/v1/ws endpoint for ingestion events.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler instance. Browsers are
// accepted only from allowedOrigin; clients that send no Origin are accepted.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigin string) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Handle upgrades the HTTP connection to a WebSocket and registers it with the Hub.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Component("api").WithError(err).Warn("WebSocketHandler: failed to upgrade connection")
		return
	}

	client := h.hub.Register(conn)
	if client == nil {
		logging.Component("api").Warn("WebSocketHandler: connection rejected (max connections exceeded)")
		return
	}

	go h.readLoop(client)
}

// readLoop reads until the connection is closed, then unregisters the client.
func (h *WebSocketHandler) readLoop(client *ws.Client) {
	conn := client.Conn()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.hub.Unregister(client)
}
