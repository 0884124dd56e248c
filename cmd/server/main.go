package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mhutchinson/chatrelay/internal/api"
	"github.com/mhutchinson/chatrelay/internal/chat"
	"github.com/mhutchinson/chatrelay/internal/config"
	"github.com/mhutchinson/chatrelay/internal/llm"
	"github.com/mhutchinson/chatrelay/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open store",
			zap.Error(err),
			zap.String("database_url", cfg.DatabaseURL))
	}
	defer st.Close()

	llmService, err := llm.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	if err != nil {
		logger.Fatal("failed to initialize LLM client", zap.Error(err))
	}

	chatService := chat.New(st, llmService, logger)
	handler := api.NewHandler(st, chatService, logger)
	router := api.NewRouter(handler, logger, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() { errChan <- server.ListenAndServe() }()
	logger.Info("server listening",
		zap.String("addr", cfg.Addr),
		zap.String("model", cfg.LLMModel))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
