package api

import (
	"context"
	"net/http"
	"time"

	"kaptam/internal/config"
	"kaptam/internal/domain"
	"kaptam/internal/models"
	"kaptam/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// ReservationService is the reservation use-case layer.
type ReservationService interface {
	Submit(ctx context.Context, in service.ReservationInput) (*models.Reservation, error)
	Get(ctx context.Context, code string) (*models.Reservation, error)
	Update(ctx context.Context, code string, in service.ReservationInput) (*models.Reservation, error)
	AdminUpdate(ctx context.Context, code string, in service.ReservationInput) (*models.Reservation, error)
	Delete(ctx context.Context, code string) error
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error)
	Statistics(ctx context.Context) (*models.Statistics, error)
	DateAvailability(ctx context.Context) (map[string]int, error)
}

// Authenticator logs the admin in and checks their tokens.
type Authenticator interface {
	TokenVerifier
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// GameCatalog lists the games on offer.
type GameCatalog interface {
	Boardgames() []models.Game
	Videogames() []models.Game
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies bundles what the HTTP layer needs.
type Dependencies struct {
	Reservations ReservationService
	Auth         Authenticator
	Catalog      GameCatalog
	Health       HealthChecker
	// RateLimiter is optional; nil disables limiting.
	RateLimiter domain.RateLimiter
}

// Handler serves the reservation HTTP API.
type Handler struct {
	deps   Dependencies
	cfg    *config.Config
	errs   errorWriter
	logger *zerolog.Logger
	now    func() time.Time
}

// NewRouter builds the chi router with every route and middleware mounted.
func NewRouter(cfg *config.Config, deps Dependencies, logger *zerolog.Logger) http.Handler {
	h := &Handler{
		deps:   deps,
		cfg:    cfg,
		errs:   errorWriter{logger: logger, development: cfg.App.Environment == "development"},
		logger: logger,
		now:    time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.Server.TrustForwarded {
		r.Use(middleware.RealIP)
	}
	r.Use(
		requestLogger(logger),
		recoverer(logger),
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id", "Content-Disposition"},
			MaxAge:         300,
		}),
		bodyLimit(cfg.Server.MaxBodyBytes),
	)

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil && cfg.API.RateLimit.Enabled {
			r.Use(rateLimit(deps.RateLimiter, cfg.API.RateLimit.Requests, cfg.API.RateLimit.Window, logger))
		}

		r.Get("/health", h.health)
		r.Get("/dates/availability", h.dateAvailability)
		r.Get("/games/boardgames", h.boardgames)
		r.Get("/games/videogames", h.videogames)

		r.Post("/cart/submit", h.submitCart)
		r.Get("/cart/{code}", h.getCart)
		r.Put("/cart/{code}", h.updateCart)

		r.Post("/admin/login", h.adminLogin)
		r.Post("/admin/verify", h.adminVerify)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin(deps.Auth))
			r.Get("/admin/reservations", h.adminList)
			r.Get("/admin/reservations/export", h.adminExport)
			r.Get("/admin/reservations/{code}", h.adminGet)
			r.Put("/admin/reservations/{code}", h.adminUpdate)
			r.Delete("/admin/reservations/{code}", h.adminDelete)
			r.Get("/admin/statistics", h.adminStatistics)
		})

		r.NotFound(notFound)
		r.MethodNotAllowed(methodNotAllowed)
	})

	if cfg.Server.ServeFrontend && cfg.Server.FrontendDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.Server.FrontendDir)))
	} else {
		r.NotFound(notFound)
	}
	r.MethodNotAllowed(methodNotAllowed)

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgEndpointMissing)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
