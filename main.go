package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/CrowderSoup/teamboard/database"
	"github.com/CrowderSoup/teamboard/handlers"
	"github.com/CrowderSoup/teamboard/services"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Load environment variables from .env file, if present
	if err := services.LoadEnv(".env"); err != nil && !os.IsNotExist(err) {
		log.Fatal().Err(err).Msg("failed to load .env file")
	}

	// Initialize database
	db, err := database.InitDB(services.Getenv("DB_PATH", "./tasks.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	store := database.NewStore(db)

	// Initialize services
	authService := services.NewAuthService(
		services.Getenv("ADMIN_PASSWORD", "admin"),
		services.Getenv("VIEWER_PASSWORD", "viewer"),
		services.Getenv("JWT_SECRET", "your-default-secret-key-change-in-production"),
	)

	soundsDir := services.Getenv("SOUNDS_DIR", "./public/sounds")

	// Initialize WebSocket hub and mutation dispatcher
	hub := services.NewHub(log)
	go hub.Run()

	dispatcher := services.NewDispatcher(store, hub, soundsDir, log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	soundHandler := handlers.NewSoundHandler(store, dispatcher, soundsDir, log)
	databaseHandler := handlers.NewDatabaseHandler(store, dispatcher, log)
	wsHandler := handlers.NewWebSocketHandler(authService, hub, dispatcher, log)
	authMiddleware := handlers.NewAuthMiddleware(authService)

	// Setup router
	r := mux.NewRouter()

	// Auth routes
	r.HandleFunc("/api/login", authHandler.Login).Methods("POST")

	// Admin-only routes
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Auth(authMiddleware.RequireAdmin(h))
	}
	r.Handle("/api/sounds/upload", admin(soundHandler.Upload)).Methods("POST")
	r.Handle("/api/database/export", admin(databaseHandler.Export)).Methods("GET")
	r.Handle("/api/database/import", admin(databaseHandler.Import)).Methods("POST")

	// WebSocket route for real-time updates
	r.HandleFunc("/ws", wsHandler.Handle)

	// Static file server for frontend and uploaded sounds
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./public")))

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // In production, change to your domain
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Auth-Key"},
		AllowCredentials: true,
	})

	port := services.Getenv("PORT", "3000")

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
