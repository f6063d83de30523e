package handlers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/teamboard/database"
	"github.com/CrowderSoup/teamboard/services"
)

const (
	testAdminKey  = "admin-key"
	testViewerKey = "viewer-key"
)

type testServer struct {
	*httptest.Server
	store     *database.Store
	soundsDir string
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// newTestServer wires the full stack the way main does: store, auth,
// hub, dispatcher, router.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := database.NewStore(db)
	log := zerolog.Nop()

	authService := services.NewAuthService(testAdminKey, testViewerKey, "test-jwt-secret")
	soundsDir := t.TempDir()

	hub := services.NewHub(log)
	go hub.Run()

	dispatcher := services.NewDispatcher(store, hub, soundsDir, log)

	authHandler := NewAuthHandler(authService, log)
	soundHandler := NewSoundHandler(store, dispatcher, soundsDir, log)
	databaseHandler := NewDatabaseHandler(store, dispatcher, log)
	wsHandler := NewWebSocketHandler(authService, hub, dispatcher, log)
	authMiddleware := NewAuthMiddleware(authService)

	r := mux.NewRouter()
	r.HandleFunc("/api/login", authHandler.Login).Methods("POST")

	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Auth(authMiddleware.RequireAdmin(h))
	}
	r.Handle("/api/sounds/upload", admin(soundHandler.Upload)).Methods("POST")
	r.Handle("/api/database/export", admin(databaseHandler.Export)).Methods("GET")
	r.Handle("/api/database/import", admin(databaseHandler.Import)).Methods("POST")

	r.HandleFunc("/ws", wsHandler.Handle)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: store, soundsDir: soundsDir}
}
