package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/CrowderSoup/teamboard/services"
)

func withRole(ctx context.Context, role services.Role) context.Context {
	return context.WithValue(ctx, roleContextKey, role)
}

func roleFrom(ctx context.Context) services.Role {
	role, _ := ctx.Value(roleContextKey).(services.Role)
	return role
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
