package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/CrowderSoup/teamboard/services"
)

// WebSocketHandler upgrades connections onto the realtime channel.
type WebSocketHandler struct {
	authService *services.AuthService
	hub         *services.Hub
	dispatcher  *services.Dispatcher
	log         zerolog.Logger

	upgrader websocket.Upgrader
}

func NewWebSocketHandler(authService *services.AuthService, hub *services.Hub, dispatcher *services.Dispatcher, log zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		authService: authService,
		hub:         hub,
		dispatcher:  dispatcher,
		log:         log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle resolves the credential to a role and refuses the connection
// outright when there is none — no anonymous connection mode. On
// success the client immediately receives the authoritative snapshot.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	role := h.authService.ResolveRole(credential(r))
	if role == services.RoleNone {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to upgrade websocket")
		return
	}

	client := services.NewClient(h.hub, conn, role, h.dispatcher, h.log)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	h.dispatcher.SendInitialState(client)
}
