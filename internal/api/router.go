package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/config"
	"github.com/Rocksteady808/roolify-sub002/internal/service"
	"github.com/Rocksteady808/roolify-sub002/internal/store"
	"github.com/Rocksteady808/roolify-sub002/internal/websocket"
)

// Deps are the components the HTTP surface is built on
type Deps struct {
	Config    *config.Config
	Store     store.Store
	Processor *service.Processor
	Hub       *websocket.Hub
	Limiter   *RateLimiter
	Logger    *zap.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if d.Config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware(d.Config))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		// Webflow webhooks (public, rate limited)
		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(RateLimitMiddleware(d.Limiter))
			}
			r.Post("/webhook/submissions", HandleWebhook(d.Processor, d.Logger))
			r.Post("/webhook/{siteId}", HandleWebhook(d.Processor, d.Logger))
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Config.JWTSecret, d.Logger))

			r.Get("/notifications/settings", HandleGetSettings(d.Store, d.Logger))
			r.Put("/notifications/settings", HandleUpdateSettings(d.Store, d.Logger))
			r.Post("/notifications/test-routes", HandleTestRoutes(d.Processor, d.Logger))
			r.Get("/submissions", HandleListSubmissions(d.Store, d.Logger))
		})
	})

	// WebSocket endpoint (authenticates its own upgrade)
	if d.Hub != nil {
		r.Get("/ws", d.Hub.HandleWebSocket)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
