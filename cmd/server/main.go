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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sugarloaf/chat-server-go/internal/config"
	"github.com/sugarloaf/chat-server-go/internal/database"
	"github.com/sugarloaf/chat-server-go/internal/handler"
	"github.com/sugarloaf/chat-server-go/internal/jobs"
	"github.com/sugarloaf/chat-server-go/internal/middleware"
	"github.com/sugarloaf/chat-server-go/internal/redis"
	"github.com/sugarloaf/chat-server-go/internal/repository"
	"github.com/sugarloaf/chat-server-go/internal/service"
	"github.com/sugarloaf/chat-server-go/internal/sse"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	chatSessionRepo := repository.NewChatSessionRepository(db.DB)
	chatMessageRepo := repository.NewChatMessageRepository(db.DB)
	adminSessionRepo := repository.NewAdminSessionRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	bot := service.NewHTTPBotResponder(service.BotConfig{
		APIURL:       cfg.BotAPIURL,
		APIKey:       cfg.BotAPIKey,
		Model:        cfg.BotModel,
		SystemPrompt: cfg.BotSystemPrompt,
		Timeout:      cfg.BotTimeout(),
	})

	var notifier service.EscalationNotifier = service.LogNotifier{}
	if cfg.WhatsappWebhookURL != "" {
		notifier = service.NewWhatsappNotifier(cfg.WhatsappWebhookURL)
	}

	escalation := service.NewEscalationMatcher(cfg.EscalationPhrases)

	chatService := service.NewChatService(
		chatSessionRepo, chatMessageRepo, bot, notifier, broker, escalation, cfg.BotHistoryLimit,
	)
	adminService := service.NewAdminService(
		adminSessionRepo, chatSessionRepo, chatMessageRepo,
		cfg.AdminPasswordHash, cfg.AdminSessionSecret,
	)

	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.WidgetRateLimitPerMin)
	adminSessionMiddleware := middleware.NewAdminSessionMiddleware(
		adminSessionRepo, cfg.AdminPasswordHash, cfg.AdminSessionSecret,
	)
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	eventsHandler := handler.NewEventsHandler(broker)
	chatHandler := handler.NewChatHandler(chatService, eventsHandler)
	adminHandler := handler.NewAdminHandler(
		adminService, chatService, eventsHandler, adminSessionMiddleware.Handler, isProduction,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/chat", func(r chi.Router) {
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/", chatHandler.Routes())
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(csrfMiddleware.Handler)
		r.Mount("/", adminHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		adminSessionRepo, chatSessionRepo, cfg.ResolvedRetention(), config.CleanupJobInterval,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

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
