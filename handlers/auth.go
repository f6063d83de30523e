package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/CrowderSoup/teamboard/services"
)

// AuthHandler handles the login endpoint.
type AuthHandler struct {
	authService *services.AuthService
	log         zerolog.Logger
}

func NewAuthHandler(authService *services.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// Login exchanges a shared secret for its role and a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	role := h.authService.ResolveRole(req.Key)
	if role == services.RoleNone {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
		return
	}

	token, err := h.authService.CreateToken(role)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create session token")
		writeError(w, http.StatusInternalServerError, "authentication error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"role":    role,
		"token":   token,
	})
}
