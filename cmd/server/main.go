package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/config"
	"budget-tracker/internal/handlers"
	applog "budget-tracker/internal/log"
	"budget-tracker/internal/storage"
	"budget-tracker/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, err := applog.New(applog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		slog.Error("Failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer db.Close()

	secret := cfg.SessionSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			logger.Error("Failed to generate session secret", "error", err)
			os.Exit(1)
		}
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}
	sessions := auth.NewSessionManager(secret, cfg.SessionTTL, cfg.SecureCookie)

	h, err := handlers.NewHandlers(db, sessions)
	if err != nil {
		logger.Error("Failed to initialize handlers", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        setupRouter(h, logger),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting budget server", "port", cfg.Port, "db", cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// setupRouter wires application routes, embedded static assets and request logging.
func setupRouter(h *handlers.Handlers, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	h.Mount(mux)
	return applog.Middleware(logger)(mux)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
