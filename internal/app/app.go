package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-social-feed/internal/config"
	"go-social-feed/internal/event"
	"go-social-feed/internal/handler"
	"go-social-feed/internal/middleware"
	"go-social-feed/internal/push"
	"go-social-feed/internal/router"
	"go-social-feed/internal/service"
	"go-social-feed/internal/websocket"
)

type App struct {
	cfg          *config.Config
	server       *http.Server
	handler      http.Handler
	cleanupFuncs []func()

	workerCtx context.Context
	workers   sync.WaitGroup
}

// Build wires every collaborator once. Background workers run until Close.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.cleanupFuncs = append(a.cleanupFuncs, st.close)

	issuer, err := service.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	hasher, err := service.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	gateway, err := newPushGateway(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	a.workerCtx = workerCtx
	// Runs before st.close: the store outlives every worker.
	a.cleanupFuncs = append(a.cleanupFuncs, func() {
		cancelWorkers()
		a.workers.Wait()
	})

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	a.startWorker(hub.Run)

	authService := service.NewAuthService(st.users, st.tokens, issuer, hasher)
	postService := service.NewPostService(st.posts, bus)
	interactionService := service.NewInteractionService(st.posts, st.likes, st.comments, st.users, bus)
	notificationService := service.NewNotificationService(st.users, gateway, bus)

	a.startWorker(notificationService.Run)
	a.startWorker(func(ctx context.Context) {
		authService.SweepExpired(ctx, cfg.RefreshSweepInterval)
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "social_feed_events_dropped_total",
			Help: "Feed events not delivered because a subscriber was full.",
		}, func() float64 { return float64(bus.Dropped()) }),
	)
	registry.MustRegister(st.metrics...)

	a.handler = router.New(
		cfg,
		registry,
		middleware.NewAuthMiddleware(authService),
		handler.NewHealthHandler(st.health),
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(authService),
		handler.NewPostHandler(postService, interactionService),
		handler.NewLiveHandler(websocket.NewServer(workerCtx, hub, cfg.CORSOrigins)),
	)

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func (a *App) startWorker(run func(context.Context)) {
	a.workers.Go(func() { run(a.workerCtx) })
}

func (a *App) Handler() http.Handler {
	return a.handler
}

// Close stops background workers, waits for them to return and then
// releases the store.
func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr, "storage", a.cfg.StorageDriver)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		a.Close()
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		slog.Info("shutdown requested", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func newPushGateway(ctx context.Context, cfg *config.Config) (push.Gateway, error) {
	if cfg.FirebaseCredentialsFile == "" {
		slog.Info("push notifications disabled, logging instead")
		return push.LogGateway{}, nil
	}

	gateway, err := push.NewFCMGateway(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize push gateway: %w", err)
	}
	return gateway, nil
}
