package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/tether-go/internal/config"
	"github.com/openclaw/tether-go/internal/handler"
	"github.com/openclaw/tether-go/internal/middleware"
	"github.com/openclaw/tether-go/internal/model"
	"github.com/openclaw/tether-go/internal/service"
	"github.com/openclaw/tether-go/internal/sse"
	"github.com/openclaw/tether-go/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	backend, err := storage.Open(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer backend.Close()

	broker := sse.NewBroker()
	defer broker.Close()

	user := model.User{ID: cfg.UserID, Name: cfg.UserName}
	remote := service.NewSimulatedRemote(cfg.GenerateDelay(), cfg.RedeemDelay(), time.Now)

	manager, err := service.NewPairingManager(service.ManagerDeps{
		User:         user,
		Store:        storage.New(backend.Store),
		Remote:       remote,
		Notifier:     service.MultiNotifier{service.LogNotifier{}, broker},
		CodeTTL:      cfg.CodeTTL(),
		TickInterval: cfg.TickInterval(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pairing manager")
	}

	initCtx, cancel := context.WithTimeout(context.Background(), config.InitializeTimeout)
	if err := manager.Initialize(initCtx); err != nil {
		log.Warn().Err(err).Msg("some stored pairing state was unreadable and has been ignored")
	}
	cancel()

	manager.Start()
	defer manager.Stop()

	var redeemLimiter middleware.Limiter = middleware.NewMemoryRateLimiter(
		cfg.RedeemRateLimitPerMin, config.RedeemRateLimitWindow,
	)
	if backend.Redis != nil {
		redeemLimiter = middleware.NewRedisRateLimiter(
			backend.Redis.Client, cfg.RedeemRateLimitPerMin, config.RedeemRateLimitWindow,
		)
	}

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)
	redeemRateLimitMiddleware := middleware.NewRateLimitMiddleware(redeemLimiter, "redeem")

	tetherHandler := handler.NewTetherHandler(manager, redeemRateLimitMiddleware.Handler)
	eventsHandler := handler.NewEventsHandler(broker, manager, cfg.TickInterval())

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"phase":     manager.State().Phase(),
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api/tether", func(r chi.Router) {
		r.Get("/events", eventsHandler.ServeHTTP)
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Mount("/", tetherHandler.Routes())
		})
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("store", cfg.StoreDriver).
			Str("userId", user.ID).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	// event streams never finish on their own
	broker.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
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
