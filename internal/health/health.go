package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName - имя сервиса шлюза в gRPC health
const ServiceName = "triage.v1.Gateway"

// Check - проверка одной зависимости (кэш, хранилище личностей, бэкенд)
type Check func(ctx context.Context) error

type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	mu       sync.RWMutex
	services map[string]grpc_health_v1.HealthCheckResponse_ServingStatus

	checksMu sync.RWMutex
	checks   map[string]Check
	failures map[string]string
	logger   *zap.Logger
}

func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthServer{
		services: make(map[string]grpc_health_v1.HealthCheckResponse_ServingStatus),
		checks:   make(map[string]Check),
		failures: make(map[string]string),
		logger:   logger,
	}
}

func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	service := req.GetService()

	servingStatus, exists := h.services[service]
	if !exists && service == "" {
		// общий статус сервера, пока его явно не меняли
		servingStatus, exists = grpc_health_v1.HealthCheckResponse_SERVING, true
	}
	if !exists {
		return nil, status.Error(codes.NotFound, "service not found")
	}

	return &grpc_health_v1.HealthCheckResponse{
		Status: servingStatus,
	}, nil
}

func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	response, err := h.Check(stream.Context(), req)
	if err != nil {
		return err
	}

	if err := stream.Send(response); err != nil {
		return err
	}

	<-stream.Context().Done()
	return stream.Context().Err()
}

func (h *HealthServer) SetServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
}

func (h *HealthServer) SetNotServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

func (h *HealthServer) setStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[service] = status
}

// AddCheck регистрирует проверку зависимости
func (h *HealthServer) AddCheck(name string, check Check) {
	h.checksMu.Lock()
	defer h.checksMu.Unlock()
	h.checks[name] = check
}

// Probe прогоняет все проверки и выставляет статус сервиса.
// Одна упавшая проверка переводит сервис в NOT_SERVING.
func (h *HealthServer) Probe(ctx context.Context, service string) bool {
	h.checksMu.RLock()
	checks := make(map[string]Check, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.checksMu.RUnlock()

	failures := make(map[string]string)
	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			failures[name] = err.Error()
		}
	}

	h.checksMu.Lock()
	prev := len(h.failures)
	h.failures = failures
	h.checksMu.Unlock()

	if len(failures) > 0 {
		if prev == 0 {
			h.logger.Warn("[HEALTH] dependency check failed", zap.Any("failures", failures))
		}
		h.SetNotServingStatus(service)
		return false
	}

	if prev > 0 {
		h.logger.Info("[HEALTH] dependencies recovered")
	}
	h.SetServingStatus(service)
	return true
}

// RunProbes повторяет Probe каждые interval до отмены ctx
func (h *HealthServer) RunProbes(ctx context.Context, service string, interval time.Duration) {
	h.Probe(ctx, service)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Probe(ctx, service)
		}
	}
}

// Failures - последние ошибки проверок
func (h *HealthServer) Failures() map[string]string {
	h.checksMu.RLock()
	defer h.checksMu.RUnlock()
	out := make(map[string]string, len(h.failures))
	for k, v := range h.failures {
		out[k] = v
	}
	return out
}

// HTTPHandler отдает статус для GET /healthz
func (h *HealthServer) HTTPHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.Check(r.Context(), &grpc_health_v1.HealthCheckRequest{Service: service})

		code := http.StatusOK
		state := "SERVING"
		if err != nil || resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			code = http.StatusServiceUnavailable
			state = "NOT_SERVING"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   state,
			"failures": h.Failures(),
		})
	}
}
