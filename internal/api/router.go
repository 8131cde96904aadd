package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jamin-groot/hush-starknet/internal/api/middleware"
	"github.com/jamin-groot/hush-starknet/internal/auth"
	"github.com/jamin-groot/hush-starknet/internal/handlers"
	"github.com/jamin-groot/hush-starknet/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, messageStore store.MessageStore, redisStore *store.RedisStore, issuer *auth.TokenIssuer) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // envelopes carry base64 ciphertext
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - credentials on, since the session rides a cookie
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(messageStore, redisStore, issuer, logger)
	session := middleware.NewSessionMiddleware(issuer)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/auth/challenge", h.IssueChallenge)
	r.Post("/auth/verify", h.VerifyChallenge)
	r.Get("/public-key/{address}", h.GetKey)
	r.Get("/messages", h.ListMessages)

	// Authenticated routes (require a wallet session)
	r.Group(func(r chi.Router) {
		r.Use(session.RequireSession)

		r.Post("/public-key", h.RegisterKey)
		r.Post("/messages", h.SaveMessage)
		r.Patch("/messages", h.PatchMessage)
		r.Get("/identity", h.GetIdentityBackup)
		r.Post("/identity", h.SaveIdentityBackup)
		r.Get("/events", h.DrainEvents)
	})

	return r
}
