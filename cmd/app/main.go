package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"linerelay/internal/config"
	"linerelay/internal/gemini"
	"linerelay/internal/httpserver"
	"linerelay/internal/line"
	"linerelay/internal/relay"
	"linerelay/internal/session"
	"linerelay/internal/transport"
	"log/slog"

	"github.com/joho/godotenv"
)

func main() {
	// .env только для разработки, в продакшене переменные окружения.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	location, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		log.Fatalf("failed to load timezone %q: %v", cfg.Session.Timezone, err)
	}

	lineHTTP := transport.NewHTTPClient(cfg.HTTPClientTimeout)
	geminiHTTP := transport.NewHTTPClient(cfg.Gemini.Timeout)

	var store session.Store
	switch strings.ToLower(cfg.Session.StoreType) {
	case "redis":
		redisStore, err := session.NewRedisStore(cfg.Session.RedisURL, cfg.Session.RedisTTL)
		if err != nil {
			log.Fatalf("failed to init redis store: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
	default:
		store = session.NewMemoryStore()
	}

	geminiClient := gemini.NewHTTPClient(cfg.Gemini, geminiHTTP, logger)
	lineClient := line.NewClient(cfg.Line, lineHTTP)

	dispatcher := relay.NewDispatcher(relay.DispatcherDeps{
		Store:           store,
		Backend:         geminiClient,
		Messenger:       lineClient,
		Logger:          logger,
		MaxRequests:     cfg.Relay.MaxRequestsPerDay,
		MaxContextTurns: cfg.Relay.MaxContextTurns,
		BackendTimeout:  cfg.Gemini.Timeout,
		Location:        location,
		Workers:         cfg.Relay.Workers,
		QueueSize:       cfg.Relay.QueueSize,
	})
	dispatcher.Start(context.Background())

	webhookHandler := line.NewWebhookHandler(line.WebhookDeps{
		Dispatcher:    dispatcher,
		Logger:        logger,
		ChannelSecret: cfg.Line.ChannelSecret,
	})

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:         logger,
		WebhookHandler: webhookHandler,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	// Дорабатываем уже принятые сообщения перед выходом.
	dispatcher.Stop()

	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
