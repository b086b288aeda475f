package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-social-feed/internal/config"
	"go-social-feed/internal/handler"
	"go-social-feed/internal/middleware"
)

func New(
	cfg *config.Config,
	registry *prometheus.Registry,
	authMiddleware *middleware.AuthMiddleware,
	healthHandler *handler.HealthHandler,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	postHandler *handler.PostHandler,
	liveHandler *handler.LiveHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	metrics := middleware.NewMetrics(registry)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(metrics.Handler)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	// Websocket upgrades hijack the connection and cannot sit behind TimeoutHandler.
	r.With(authMiddleware.RequireAuth).Get("/ws", liveHandler.Serve)

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", authHandler.Signup)
			auth.Post("/login", authHandler.Login)
			auth.Post("/refresh", authHandler.Refresh)
			auth.With(authMiddleware.RequireAuth).Post("/logout", authHandler.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		api.With(authMiddleware.RequireAuth).Put("/users/me/push-token", userHandler.UpdatePushToken)

		api.Route("/posts", func(posts chi.Router) {
			posts.Use(authMiddleware.RequireAuth)
			posts.Post("/", postHandler.Create)
			posts.Get("/", postHandler.List)
			posts.Get("/{id}", postHandler.Get)
			posts.Post("/{id}/like", postHandler.ToggleLike)
			posts.Post("/{id}/comment", postHandler.AddComment)
			posts.Get("/{id}/comments", postHandler.Comments)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"Route not found","code":"NOT_FOUND"}`))
	})

	return r
}
