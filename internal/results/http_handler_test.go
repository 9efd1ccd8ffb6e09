package results

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/xray-triage/internal/backendstub"
	"github.com/Krimson/xray-triage/pkg/models"
)

type apiFixture struct {
	*fixture
	router *mux.Router
	views  *Registry
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := newFixture(t)
	views := NewRegistry(f.store, f.client, "en", nil, nil)
	h := NewHTTPHandler(f.capturer, views, f.identities, f.client, f.store, "en", nil)

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return &apiFixture{fixture: f, router: router, views: views}
}

func (a *apiFixture) do(t *testing.T, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHTTP_ScanThenRecoverAndSelect(t *testing.T) {
	a := newAPIFixture(t)
	a.stub.SetPrediction("https://example.com/x1.png", happyPrediction())

	rec := a.do(t, http.MethodPost, "/api/session", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decode[map[string]string](t, rec)["session_id"]
	require.NotEmpty(t, sessionID)

	rec = a.do(t, http.MethodPost, "/api/auth/login", sessionID, models.LoginRequest{Username: "alice", Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/scan", sessionID, models.ScanRequest{ImageURL: "https://example.com/x1.png"})
	require.Equal(t, http.StatusOK, rec.Code)
	capture := decode[models.CaptureResponse](t, rec)
	assert.Equal(t, models.CaptureStatusPersisted, capture.Status)
	assert.Equal(t, sessionID, capture.SessionID)

	rec = a.do(t, http.MethodGet, "/api/results", sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[Snapshot](t, rec)
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "Pneumonia", snap.Detail.Disease)

	rec = a.do(t, http.MethodPost, "/api/results/select", sessionID, models.SelectRequest{Disease: "Effusion"})
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decode[Snapshot](t, rec)
	assert.Equal(t, "Effusion", snap.Detail.Disease)

	rec = a.do(t, http.MethodGet, "/api/history", sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]models.HistoryItem](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "Pneumonia", history[0].Disease)
}

func TestHTTP_CaptureDegradesWhenSaveFails(t *testing.T) {
	a := newAPIFixture(t)
	sessionID := testSessionID
	a.signIn(t, sessionID)
	a.stub.FailRoute(backendstub.RouteSaveResult, http.StatusInternalServerError)

	rec := a.do(t, http.MethodPost, "/api/results", sessionID, models.CaptureRequest{Prediction: *happyPrediction()})
	require.Equal(t, http.StatusOK, rec.Code)
	capture := decode[models.CaptureResponse](t, rec)
	assert.Equal(t, models.CaptureStatusCachedOnly, capture.Status)
	assert.NotEmpty(t, capture.Message)

	rec = a.do(t, http.MethodGet, "/api/results", sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StateReady, decode[Snapshot](t, rec).State)
}

func TestHTTP_EmptyPredictionRejected(t *testing.T) {
	a := newAPIFixture(t)
	a.signIn(t, testSessionID)

	rec := a.do(t, http.MethodPost, "/api/results", testSessionID, models.CaptureRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHTTP_SessionRequired(t *testing.T) {
	a := newAPIFixture(t)

	rec := a.do(t, http.MethodGet, "/api/results", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/results", "not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_ResultsWithoutPrediction(t *testing.T) {
	a := newAPIFixture(t)

	rec := a.do(t, http.MethodGet, "/api/results", testSessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "no prediction data found", body["error"])
}

func TestHTTP_SelectUnknownDisease(t *testing.T) {
	a := newAPIFixture(t)
	require.NoError(t, a.session(testSessionID).SavePredictionData(t.Context(), happyPrediction()))

	rec := a.do(t, http.MethodPost, "/api/results/select", testSessionID, models.SelectRequest{Disease: "Hernia"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_HistoryRequiresSignIn(t *testing.T) {
	a := newAPIFixture(t)

	rec := a.do(t, http.MethodGet, "/api/history", testSessionID, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, a.stub.TotalCalls())
}

func TestHTTP_OAuthAndLogout(t *testing.T) {
	a := newAPIFixture(t)
	token, err := backendstub.IssueToken("carol")
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/auth/oauth", testSessionID, models.OAuthRequest{AccessToken: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "carol", decode[map[string]any](t, rec)["username"])

	require.NoError(t, a.session(testSessionID).SavePredictionData(t.Context(), happyPrediction()))

	rec = a.do(t, http.MethodPost, "/api/auth/logout", testSessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = a.identities.Resolve(t.Context(), testSessionID)
	assert.Error(t, err)
	assert.Nil(t, a.session(testSessionID).PredictionData(t.Context()))
}

func TestHTTP_ResetResults(t *testing.T) {
	a := newAPIFixture(t)
	require.NoError(t, a.session(testSessionID).SavePredictionData(t.Context(), happyPrediction()))

	rec := a.do(t, http.MethodDelete, "/api/results", testSessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, a.session(testSessionID).PredictionData(t.Context()))
}

func TestHTTP_DiseaseDetails(t *testing.T) {
	a := newAPIFixture(t)

	rec := a.do(t, http.MethodGet, "/api/diseases/Pleural%20Thickening/details?language=fr", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[models.DiseaseDetail](t, rec)
	assert.Equal(t, "Pleural Thickening", detail.Disease)
	assert.Equal(t, "fr", detail.Language)

	a.stub.FailRoute(backendstub.RouteDiseaseDetails, http.StatusInternalServerError)
	rec = a.do(t, http.MethodGet, "/api/diseases/Edema/details", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
