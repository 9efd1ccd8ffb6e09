package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/internal/backendstub"
	"github.com/Krimson/xray-triage/internal/config"
	"github.com/Krimson/xray-triage/internal/logging"
)

// Фейковый внешний бэкенд для локального запуска шлюза и triagectl
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	stub := backendstub.New(logger)

	mux := http.NewServeMux()
	mux.Handle("/", stub.Handler())
	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stub.GetStats())
	})

	server := &http.Server{
		Addr:         ":" + cfg.StubPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("[STUB] backend stub listening",
			zap.String("port", cfg.StubPort),
			zap.Int("labels", len(backendstub.Labels)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("[STUB] server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("[STUB] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("[STUB] forced shutdown", zap.Error(err))
	}
}
