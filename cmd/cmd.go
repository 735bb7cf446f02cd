package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/InverseCodex/agrivision-website-v2/internal/config"
	"github.com/InverseCodex/agrivision-website-v2/internal/handlers"
	"github.com/InverseCodex/agrivision-website-v2/internal/inference"
	"github.com/InverseCodex/agrivision-website-v2/internal/middleware"
	"github.com/InverseCodex/agrivision-website-v2/internal/repository"
	"github.com/InverseCodex/agrivision-website-v2/internal/services"
	"github.com/InverseCodex/agrivision-website-v2/internal/storage"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if err := repository.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Object storage
	blobs, err := storage.NewS3Store(context.Background(), cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob store")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	missionRepo := repository.NewMissionRepository(db)
	imageRepo := repository.NewImageRepository(db)

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	pairingService := services.NewPairingService(requestRepo, userRepo, cfg.Pairing.CodeTTL.Std())
	missionService := services.NewMissionService(missionRepo, requestRepo, blobs, cfg.Mailbox.Mode)
	runner := inference.NewSubprocess(cfg.Inference)
	imageService := services.NewImageService(imageRepo, requestRepo, blobs, runner)
	hub := services.NewHub()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	pairingHandler := handlers.NewPairingHandler(pairingService)
	missionHandler := handlers.NewMissionHandler(missionService, hub)
	imageHandler := handlers.NewImageHandler(imageService)
	wsHandler := handlers.NewWSHandler(hub, userService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.Register)
		r.Post("/login", userHandler.Login)
		r.Get("/geojson/targets", handlers.GeoJSONTargets)

		// Device routes: the device authenticates through the pairing
		// exchange itself, not through a user token.
		r.Post("/pairing/connect", pairingHandler.Connect)
		r.Post("/pairing/connect_direct", pairingHandler.ConnectDirect)
		r.Get("/missions/latest", missionHandler.Latest)
		r.Get("/missions/download", missionHandler.Download)
		r.Post("/missions/ack", missionHandler.Ack)
		r.Post("/images", imageHandler.Upload)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Post("/pairing/create", pairingHandler.CreateRequest)
			r.Post("/missions", missionHandler.Create)
			r.Get("/images/history", imageHandler.History)
			r.Post("/analysis/run", imageHandler.Analyze)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("mailbox_mode", cfg.Mailbox.Mode).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
