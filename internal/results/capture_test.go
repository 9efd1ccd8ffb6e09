package results

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/xray-triage/internal/backend"
	"github.com/Krimson/xray-triage/internal/backendstub"
	"github.com/Krimson/xray-triage/internal/cache"
	"github.com/Krimson/xray-triage/internal/identity"
	"github.com/Krimson/xray-triage/pkg/models"
)

func TestSavePredictionWithDetails_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, testSessionID)
	fixed := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	f.capturer.now = func() time.Time { return fixed }
	ctx := context.Background()

	err := f.capturer.SavePredictionWithDetails(ctx, testSessionID, happyPrediction(), "https://example.com/x1.png")
	require.NoError(t, err)

	assert.Equal(t, 1, f.stub.Calls(backendstub.RouteSaveResult))
	saved := f.stub.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, "alice", saved[0].Username)
	assert.Equal(t, "Pneumonia", saved[0].Disease)
	assert.Equal(t, "Pneumonia", saved[0].DiseaseDetails.Disease)
	assert.Equal(t, backendstub.DetailsMarkdown("Pneumonia"), saved[0].Details)
	assert.Equal(t, "2026-03-01T10:30:00Z", saved[0].Timestamp)

	sess := f.session(testSessionID)
	detail := sess.DiseaseDetails(ctx)
	require.NotNil(t, detail)
	assert.Equal(t, "Pneumonia", detail.Disease)
	if diff := cmp.Diff(happyPrediction(), sess.PredictionData(ctx)); diff != "" {
		t.Errorf("cached prediction mismatch (-want +got):\n%s", diff)
	}
}

func TestSavePredictionWithDetails_MissingCredentialMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.capturer.SavePredictionWithDetails(ctx, testSessionID, happyPrediction(), "")
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	assert.Equal(t, 0, f.stub.TotalCalls())
	assert.Nil(t, f.session(testSessionID).PredictionData(ctx))
}

func TestSavePredictionWithDetails_FailureLeavesCacheEmpty(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, testSessionID)
	f.stub.FailRoute(backendstub.RouteSaveResult, http.StatusInternalServerError)
	ctx := context.Background()

	err := f.capturer.SavePredictionWithDetails(ctx, testSessionID, happyPrediction(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrSaveFailed)

	_, getErr := f.store.Get(ctx, testSessionID, cache.KeyPredictionData)
	assert.ErrorIs(t, getErr, cache.ErrMiss)
	_, getErr = f.store.Get(ctx, testSessionID, cache.KeyDiseaseDetails)
	assert.ErrorIs(t, getErr, cache.ErrMiss)
}

func TestCapture_Persisted(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, testSessionID)

	outcome, err := f.capturer.Capture(context.Background(), testSessionID, happyPrediction(), "")
	require.NoError(t, err)
	assert.Equal(t, models.CaptureStatusPersisted, outcome.Status)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, "Pneumonia", outcome.Detail.Disease)
}

func TestCapture_SaveFailureFallsBackToCache(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, testSessionID)
	f.stub.FailRoute(backendstub.RouteSaveResult, http.StatusInternalServerError)
	ctx := context.Background()

	outcome, err := f.capturer.Capture(ctx, testSessionID, happyPrediction(), "")
	require.NoError(t, err)
	assert.Equal(t, models.CaptureStatusCachedOnly, outcome.Status)
	assert.Equal(t, http.StatusInternalServerError, backend.StatusOf(outcome.Err))

	// первое описание для сохранения, второе - повторный запрос в режиме только кэша
	assert.Equal(t, 2, f.stub.Calls(backendstub.RouteDiseaseDetails))

	sess := f.session(testSessionID)
	require.NotNil(t, sess.PredictionData(ctx))
	detail := sess.DiseaseDetails(ctx)
	require.NotNil(t, detail)
	assert.Equal(t, "Pneumonia", detail.Disease)
}

func TestCapture_UnauthenticatedCachesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.capturer.Capture(ctx, testSessionID, happyPrediction(), "")
	require.NoError(t, err)
	assert.Equal(t, models.CaptureStatusCachedOnly, outcome.Status)
	assert.ErrorIs(t, outcome.Err, identity.ErrUnauthenticated)
	assert.Equal(t, 0, f.stub.Calls(backendstub.RouteSaveResult))
	assert.NotNil(t, f.session(testSessionID).DiseaseDetails(ctx))
}

func TestCapture_DetailsDownCachesPredictionAlone(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, testSessionID)
	f.stub.FailRoute(backendstub.RouteDiseaseDetails, http.StatusServiceUnavailable)
	ctx := context.Background()

	sess := f.session(testSessionID)
	require.NoError(t, sess.SaveDiseaseDetails(ctx, &models.DiseaseDetail{Disease: "Hernia"}))

	outcome, err := f.capturer.Capture(ctx, testSessionID, happyPrediction(), "")
	require.NoError(t, err)
	assert.Equal(t, models.CaptureStatusCachedOnly, outcome.Status)
	assert.ErrorIs(t, outcome.Err, backend.ErrDiseaseDetailsUnavailable)
	assert.Nil(t, outcome.Detail)

	assert.NotNil(t, sess.PredictionData(ctx))
	assert.Nil(t, sess.DiseaseDetails(ctx))
	assert.Equal(t, 0, f.stub.Calls(backendstub.RouteSaveResult))
}

func TestCapture_EmptyPredictionWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, testSessionID)
	ctx := context.Background()

	_, err := f.capturer.Capture(ctx, testSessionID, &models.PredictionResult{ImageURL: "x"}, "")

	var emptyErr *EmptyPredictionError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, 0, f.stub.TotalCalls())
	assert.Nil(t, f.session(testSessionID).PredictionData(ctx))
}

func TestCapture_RanksUnsortedPrediction(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, testSessionID)

	p := &models.PredictionResult{
		ImageURL: "https://example.com/x3.png",
		TopDiseases: []models.DiseasePrediction{
			{Disease: "Mass", Probability: 0.2},
			{Disease: "Edema", Probability: 0.6},
		},
	}
	outcome, err := f.capturer.Capture(context.Background(), testSessionID, p, "")
	require.NoError(t, err)
	assert.Equal(t, "Edema", outcome.Prediction.TopDiseases[0].Disease)
	assert.Equal(t, "Edema", f.stub.Saved()[0].Disease)
	assert.Equal(t, "https://example.com/x3.png", f.stub.Saved()[0].ImageURL)
}

func TestScan(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, testSessionID)
	f.stub.SetPrediction("https://example.com/x1.png", happyPrediction())

	outcome, err := f.capturer.Scan(context.Background(), testSessionID, "https://example.com/x1.png")
	require.NoError(t, err)
	assert.Equal(t, models.CaptureStatusPersisted, outcome.Status)
	assert.Equal(t, 1, f.stub.Calls(backendstub.RoutePredict))
	assert.Equal(t, 1, f.stub.Calls(backendstub.RouteSaveResult))
}

func TestScan_PredictionFailure(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, testSessionID)
	f.stub.FailRoute(backendstub.RoutePredict, http.StatusInternalServerError)

	_, err := f.capturer.Scan(context.Background(), testSessionID, "https://example.com/x1.png")

	var predErr *backend.PredictionError
	require.True(t, errors.As(err, &predErr))
	assert.Equal(t, 0, f.stub.Calls(backendstub.RouteSaveResult))
}

func TestCapture_SessionRequired(t *testing.T) {
	f := newFixture(t)
	_, err := f.capturer.Capture(context.Background(), "", happyPrediction(), "")
	assert.ErrorIs(t, err, models.ErrSessionRequired)
}
