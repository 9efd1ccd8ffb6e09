package results

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/internal/backend"
	"github.com/Krimson/xray-triage/internal/cache"
	"github.com/Krimson/xray-triage/internal/identity"
	"github.com/Krimson/xray-triage/pkg/models"
)

// SessionHeader - заголовок с идентификатором вкладки
const SessionHeader = "X-Session-ID"

// AccountAPI - операции бэкенда для входа и истории
type AccountAPI interface {
	DetailFetcher
	Login(ctx context.Context, username, password string) (*models.TokenResponse, error)
	History(ctx context.Context, username, accessToken string) ([]models.HistoryItem, error)
}

// HTTPHandler обрабатывает HTTP запросы экрана результатов (Presentation Layer)
type HTTPHandler struct {
	capturer   *Capturer
	views      *Registry
	identities *identity.Provider
	accounts   AccountAPI
	store      cache.Store
	language   string
	logger     *zap.Logger
}

// NewHTTPHandler создает новый HTTP обработчик
func NewHTTPHandler(capturer *Capturer, views *Registry, identities *identity.Provider, accounts AccountAPI, store cache.Store, language string, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		capturer:   capturer,
		views:      views,
		identities: identities,
		accounts:   accounts,
		store:      store,
		language:   language,
		logger:     logger,
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/session", h.CreateSession).Methods("POST")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.HandleFunc("/auth/oauth", h.OAuth).Methods("POST")
	api.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	api.HandleFunc("/scan", h.Scan).Methods("POST")
	api.HandleFunc("/results", h.CaptureResult).Methods("POST")
	api.HandleFunc("/results", h.GetResults).Methods("GET")
	api.HandleFunc("/results", h.ResetResults).Methods("DELETE")
	api.HandleFunc("/results/select", h.SelectDisease).Methods("POST")
	api.HandleFunc("/results/retry", h.RetryResults).Methods("POST")
	api.HandleFunc("/history", h.History).Methods("GET")
	api.HandleFunc("/diseases/{name}/details", h.DiseaseDetails).Methods("GET")
}

// CreateSession выдает идентификатор новой вкладки
// @Summary Open a tab session
// @Tags session
// @Produce json
// @Success 201 {object} map[string]string
// @Router /api/session [post]
func (h *HTTPHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.New().String()
	h.logger.Info("[SESSION] created tab session", zap.String("session_id", sessionID))
	respondJSON(w, http.StatusCreated, map[string]string{"session_id": sessionID})
}

// Login - вход по логину и паролю
// @Summary Sign in with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "tab session id"
// @Param request body models.LoginRequest true "credentials"
// @Success 200 {object} identity.Identity
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/login [post]
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondFailure(w, err, "Login failed")
		return
	}

	id, err := h.identities.SignInWithPassword(r.Context(), sessionID, token.Username, token.AccessToken)
	if err != nil {
		h.respondFailure(w, err, "Login failed")
		return
	}
	respondJSON(w, http.StatusOK, id)
}

// OAuth - вход по токену внешнего провайдера
// @Summary Sign in with an OAuth access token
// @Tags auth
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "tab session id"
// @Param request body models.OAuthRequest true "token"
// @Success 200 {object} identity.Identity
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/oauth [post]
func (h *HTTPHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req models.OAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccessToken == "" {
		req.AccessToken = bearer(r)
	}

	id, err := h.identities.SignInWithToken(r.Context(), sessionID, req.AccessToken)
	if err != nil {
		h.respondFailure(w, err, "OAuth sign-in failed")
		return
	}
	respondJSON(w, http.StatusOK, id)
}

// Logout удаляет личность и кэш вкладки
// @Summary Sign out
// @Tags auth
// @Param X-Session-ID header string true "tab session id"
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/logout [post]
func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.identities.SignOut(r.Context(), sessionID); err != nil {
		h.respondFailure(w, err, "Failed to sign out")
		return
	}
	if err := cache.NewSession(h.store, sessionID, h.logger).Reset(r.Context()); err != nil {
		h.logger.Warn("[SESSION] failed to clear tab cache on logout", zap.String("session_id", sessionID), zap.Error(err))
	}
	h.views.Drop(sessionID)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Signed out",
		"session_id": sessionID,
	})
}

// Scan классифицирует снимок и сохраняет результат
// @Summary Classify an X-ray and store the result
// @Tags results
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "tab session id"
// @Param request body models.ScanRequest true "image"
// @Success 200 {object} models.CaptureResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/scan [post]
func (h *HTTPHandler) Scan(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req models.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageURL == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	outcome, err := h.capturer.Scan(r.Context(), sessionID, req.ImageURL)
	if err != nil {
		h.respondFailure(w, err, "Failed to process image")
		return
	}

	h.views.Drop(sessionID)
	respondJSON(w, http.StatusOK, captureResponse(sessionID, outcome))
}

// CaptureResult сохраняет уже полученное предсказание
// @Summary Store a prediction for the tab
// @Tags results
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "tab session id"
// @Param request body models.CaptureRequest true "prediction"
// @Success 200 {object} models.CaptureResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/results [post]
func (h *HTTPHandler) CaptureResult(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req models.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	outcome, err := h.capturer.Capture(r.Context(), sessionID, &req.Prediction, req.ImageURL)
	if err != nil {
		h.respondFailure(w, err, "Failed to store results")
		return
	}

	h.views.Drop(sessionID)
	respondJSON(w, http.StatusOK, captureResponse(sessionID, outcome))
}

// GetResults восстанавливает экран результатов из кэша вкладки
// @Summary Results view after recovery
// @Tags results
// @Produce json
// @Param X-Session-ID header string true "tab session id"
// @Success 200 {object} results.Snapshot
// @Failure 404 {object} map[string]interface{}
// @Router /api/results [get]
func (h *HTTPHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	view := h.views.Get(sessionID)
	snap := view.Snapshot()
	if snap.State == StateInit || snap.State == StateError {
		var err error
		snap, err = view.Load(r.Context())
		if errors.Is(err, ErrNoPrediction) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, snap)
}

// SelectDisease показывает описание другой болезни
// @Summary Select a disease from the ranked list
// @Tags results
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "tab session id"
// @Param request body models.SelectRequest true "disease"
// @Success 200 {object} results.Snapshot
// @Failure 400 {object} map[string]interface{}
// @Router /api/results/select [post]
func (h *HTTPHandler) SelectDisease(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req models.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Disease == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view := h.views.Get(sessionID)
	if view.Snapshot().Prediction == nil {
		if _, err := view.Load(r.Context()); errors.Is(err, ErrNoPrediction) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
	}

	snap, err := view.Select(r.Context(), req.Disease)
	if errors.Is(err, ErrUnknownDisease) || errors.Is(err, ErrNoPrediction) {
		h.respondFailure(w, err, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// RetryResults повторяет неудачную загрузку описания
// @Summary Retry the failed step of the results view
// @Tags results
// @Produce json
// @Param X-Session-ID header string true "tab session id"
// @Success 200 {object} results.Snapshot
// @Router /api/results/retry [post]
func (h *HTTPHandler) RetryResults(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	snap, err := h.views.Get(sessionID).Retry(r.Context())
	if errors.Is(err, ErrNoPrediction) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// ResetResults очищает кэш вкладки
// @Summary Clear the tab cache
// @Tags results
// @Param X-Session-ID header string true "tab session id"
// @Success 200 {object} map[string]interface{}
// @Router /api/results [delete]
func (h *HTTPHandler) ResetResults(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := cache.NewSession(h.store, sessionID, h.logger).Reset(r.Context()); err != nil {
		h.logger.Error("[SESSION] failed to clear tab cache", zap.String("session_id", sessionID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to clear results")
		return
	}
	h.views.Drop(sessionID)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Results cleared",
		"session_id": sessionID,
	})
}

// History возвращает сохраненные результаты пользователя
// @Summary Saved results of the signed-in user
// @Tags results
// @Produce json
// @Param X-Session-ID header string true "tab session id"
// @Success 200 {array} models.HistoryItem
// @Failure 401 {object} map[string]interface{}
// @Router /api/history [get]
func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	id, err := h.identities.Resolve(r.Context(), sessionID)
	if err != nil {
		h.respondFailure(w, err, "Not authenticated")
		return
	}

	items, err := h.accounts.History(r.Context(), id.Username, id.AccessToken)
	if err != nil {
		h.respondFailure(w, err, "Failed to fetch results")
		return
	}
	if items == nil {
		items = []models.HistoryItem{}
	}
	respondJSON(w, http.StatusOK, items)
}

// DiseaseDetails - справка по болезни
// @Summary Disease reference text (markdown)
// @Tags diseases
// @Produce json
// @Param name path string true "disease name"
// @Param language query string false "language" default(en)
// @Success 200 {object} models.DiseaseDetail
// @Failure 502 {object} map[string]interface{}
// @Router /api/diseases/{name}/details [get]
func (h *HTTPHandler) DiseaseDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	language := r.URL.Query().Get("language")
	if language == "" {
		language = h.language
	}

	detail, err := h.accounts.FetchDiseaseDetails(r.Context(), name, language)
	if err != nil {
		h.respondFailure(w, err, "Failed to fetch disease details")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// ===== Утилиты =====

// sessionID достает идентификатор вкладки из заголовка или ?session_id=
func (h *HTTPHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, models.ErrSessionRequired.Error())
		return "", false
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session id")
		return "", false
	}
	return sessionID, true
}

func captureResponse(sessionID string, outcome *Outcome) models.CaptureResponse {
	resp := models.CaptureResponse{
		SessionID:  sessionID,
		Status:     outcome.Status,
		Prediction: outcome.Prediction,
		CapturedAt: time.Now().UTC(),
	}
	if outcome.Err != nil {
		resp.Message = "Results are available in this tab only: " + outcome.Err.Error()
	}
	return resp
}

// respondFailure переводит ошибку в HTTP статус
func (h *HTTPHandler) respondFailure(w http.ResponseWriter, err error, message string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("[HTTP] "+message, zap.Error(err))
	} else {
		h.logger.Warn("[HTTP] "+message, zap.Error(err))
	}

	var predErr *backend.PredictionError
	if errors.As(err, &predErr) {
		message = predErr.Message
	}
	respondError(w, status, message)
}

func statusFor(err error) int {
	var emptyErr *EmptyPredictionError
	var predErr *backend.PredictionError

	switch {
	case errors.Is(err, models.ErrSessionRequired), errors.Is(err, ErrUnknownDisease):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrUnauthenticated), errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, backend.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNoPrediction):
		return http.StatusNotFound
	case errors.As(err, &emptyErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &predErr) && predErr.Status != 0:
		return predErr.Status
	}

	if status := backend.StatusOf(err); status >= 400 && status < 500 {
		return status
	}
	var apiErr *backend.Error
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func bearer(r *http.Request) string {
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("[HTTP] failed to encode JSON response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":  message,
		"status": status,
	})
}
