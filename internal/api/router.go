package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parley-im/parley/internal/database"
	mw "github.com/parley-im/parley/internal/middleware"
	inats "github.com/parley-im/parley/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	Login http.HandlerFunc

	Status http.HandlerFunc
	Pause  http.HandlerFunc
	Resume http.HandlerFunc

	ListChannels      http.HandlerFunc
	ActivateChannel   http.HandlerFunc
	DeactivateChannel http.HandlerFunc

	ListIgnored  http.HandlerFunc
	IgnoreUser   http.HandlerFunc
	UnignoreUser http.HandlerFunc

	WipeMemory   http.HandlerFunc
	RememberNote http.HandlerFunc

	ScopeStatus  http.HandlerFunc
	ReleaseScope http.HandlerFunc

	RecentExchanges http.HandlerFunc
	ExchangeStats   http.HandlerFunc

	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	LoginRateLimiter   func(http.Handler) http.Handler
}

// XMPPHealth reports whether the chat connection is up.
type XMPPHealth interface {
	Connected() bool
}

// RedisPinger is the slice of the Redis client health checks need.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// RedisPingFunc adapts a plain function to RedisPinger.
type RedisPingFunc func(ctx context.Context) error

func (f RedisPingFunc) Ping(ctx context.Context) error { return f(ctx) }

func NewRouter(pool *pgxpool.Pool, rdb RedisPinger, natsClient *inats.Client, xmpp XMPPHealth, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks every dependency the reply path needs
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
			"xmpp":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if rdb != nil {
			if err := rdb.Ping(r.Context()); err != nil {
				health["redis"] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		} else {
			health["redis"] = "not configured"
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		if xmpp != nil {
			if !xmpp.Connected() {
				health["xmpp"] = "disconnected"
				health["status"] = "degraded"
			}
		} else {
			health["xmpp"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/admin", func(r chi.Router) {
			// Login is public but rate-limited
			r.Group(func(r chi.Router) {
				if cfg.LoginRateLimiter != nil {
					r.Use(cfg.LoginRateLimiter)
				}
				r.Post("/login", h.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)

				r.Get("/status", h.Status)
				r.Post("/pause", h.Pause)
				r.Post("/resume", h.Resume)

				r.Route("/channels", func(r chi.Router) {
					r.Get("/", h.ListChannels)
					r.Post("/", h.ActivateChannel)
					r.Delete("/{jid}", h.DeactivateChannel)
				})

				r.Route("/ignored", func(r chi.Router) {
					r.Get("/", h.ListIgnored)
					r.Post("/", h.IgnoreUser)
					r.Delete("/{jid}", h.UnignoreUser)
				})

				r.Route("/memory", func(r chi.Router) {
					r.Post("/wipe", h.WipeMemory)
					r.Post("/notes", h.RememberNote)
				})

				r.Route("/scopes", func(r chi.Router) {
					r.Get("/", h.ScopeStatus)
					r.Post("/release", h.ReleaseScope)
				})

				r.Route("/exchanges", func(r chi.Router) {
					r.Get("/", h.RecentExchanges)
					r.Get("/stats", h.ExchangeStats)
				})
			})
		})
	})

	return r
}
