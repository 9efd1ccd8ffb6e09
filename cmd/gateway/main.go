package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Krimson/xray-triage/internal/backend"
	"github.com/Krimson/xray-triage/internal/cache"
	"github.com/Krimson/xray-triage/internal/config"
	"github.com/Krimson/xray-triage/internal/health"
	"github.com/Krimson/xray-triage/internal/identity"
	"github.com/Krimson/xray-triage/internal/logging"
	"github.com/Krimson/xray-triage/internal/results"
	"github.com/Krimson/xray-triage/internal/telemetry"
	"github.com/Krimson/xray-triage/internal/websocket"

	_ "github.com/Krimson/xray-triage/docs" // Swagger docs
)

// @title X-ray Triage Gateway API
// @version 1.0
// @description Шлюз экрана результатов: классификация снимка, сохранение результата
// @description и восстановление вкладки после перезагрузки.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(ctx, cfg.TelemetryDir, "triage-gateway", logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tel.Shutdown(shutdownCtx)
	}()

	store, err := newCacheStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	idStore, err := identity.NewStore(ctx, identity.StoreType(cfg.IdentityDriver), identity.Params{
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		ProfilePath: cfg.ProfilePath,
	})
	if err != nil {
		return fmt.Errorf("failed to open identity store: %w", err)
	}
	defer idStore.Close()
	logger.Info("[INFO] identity store ready", zap.String("driver", cfg.IdentityDriver))

	client, err := backend.NewClient(cfg.BackendURL,
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithLogger(logger),
		backend.WithTracer(tel.Tracer),
		backend.WithImageCDN(cfg.ImageCDNBase),
	)
	if err != nil {
		return err
	}

	identities := identity.NewProvider(idStore, logger)
	hub := websocket.NewHub(logger)
	capturer := results.NewCapturer(client, identities, store,
		results.WithLogger(logger),
		results.WithTracer(tel.Tracer),
		results.WithMeter(tel.Meter),
		results.WithLanguage(cfg.Language),
	)
	views := results.NewRegistry(store, client, cfg.Language, hub, logger)
	handler := results.NewHTTPHandler(capturer, views, identities, client, store, cfg.Language, logger)

	healthServer := health.NewHealthServer(logger)
	healthServer.AddCheck("cache", store.Ping)
	healthServer.AddCheck("identity", identities.Ping)

	// Настройка маршрутов
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.HandleFunc("/healthz", healthServer.HTTPHandler(health.ServiceName)).Methods("GET")

	// Swagger UI
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	// Отладка хранилищ
	router.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]interface{}{
			"cache":        store.GetStats(),
			"views":        views.Len(),
			"ws_clients":   hub.ClientCount(),
			"health_fails": healthServer.Failures(),
			"timestamp":    time.Now().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}).Methods("GET")

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      enableCORS(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("")

	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCPort, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		healthServer.RunProbes(gctx, health.ServiceName, cfg.HealthProbeInterval)
		return nil
	})

	g.Go(func() error {
		logger.Info("[INFO] gRPC health server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("[INFO] HTTP gateway listening",
			zap.String("port", cfg.HTTPPort),
			zap.String("backend", client.BaseURL()),
			zap.String("cache", cfg.CacheDriver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("[INFO] shutting down gateway")

		healthServer.SetNotServingStatus("")
		healthServer.SetNotServingStatus(health.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("[ERROR] gateway stopped with error", zap.Error(err))
		return err
	}
	logger.Info("[INFO] gateway exited gracefully")
	return nil
}

func newCacheStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	driver := cache.StoreType(cfg.CacheDriver)
	opts := []cache.Option{cache.WithTTL(cfg.SessionTTL)}
	if driver == cache.StoreTypeRedis {
		opts = append(opts, cache.WithRedisClient(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)))
	}

	store, err := cache.NewStore(driver, opts...)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to connect to cache %s: %w", driver, err)
	}

	logger.Info("[INFO] session cache ready", zap.String("driver", string(driver)), zap.Duration("ttl", cfg.SessionTTL))
	return store, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+results.SessionHeader)

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}
