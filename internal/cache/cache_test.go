package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/pkg/models"
)

func samplePrediction() *models.PredictionResult {
	return &models.PredictionResult{
		ImageURL: "https://example.com/x1.png",
		TopDiseases: []models.DiseasePrediction{
			{Disease: "Pneumonia", Probability: 0.82},
			{Disease: "Effusion", Probability: 0.41},
			{Disease: "Atelectasis", Probability: 0.22},
			{Disease: "Edema", Probability: 0.09},
			{Disease: "Mass", Probability: 0.03},
		},
	}
}

func TestSession_PredictionRoundTrip(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(NewMemoryStore(time.Hour), "tab-1", zap.NewNop())

	want := samplePrediction()
	require.NoError(t, sess.SavePredictionData(ctx, want))

	got := sess.PredictionData(ctx)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("prediction mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_MalformedEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	require.NoError(t, store.Set(ctx, "tab-1", KeyPredictionData, []byte("{not json")))

	sess := NewSession(store, "tab-1", zap.NewNop())
	assert.Nil(t, sess.PredictionData(ctx))
	assert.Nil(t, sess.DiseaseDetails(ctx))
}

func TestSession_SavePairWritesBoth(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(NewMemoryStore(time.Hour), "tab-1", nil)

	detail := &models.DiseaseDetail{Disease: "Pneumonia", Details: "## Pneumonia", Language: "en"}
	require.NoError(t, sess.SavePair(ctx, samplePrediction(), detail))

	require.NotNil(t, sess.PredictionData(ctx))
	got := sess.DiseaseDetails(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "Pneumonia", got.Disease)
}

func TestSession_SavePairWithoutDetailDropsStaleDetail(t *testing.T) {
	ctx := context.Background()
	sess := NewSession(NewMemoryStore(time.Hour), "tab-1", nil)

	require.NoError(t, sess.SaveDiseaseDetails(ctx, &models.DiseaseDetail{Disease: "Hernia"}))
	require.NoError(t, sess.SavePair(ctx, samplePrediction(), nil))

	assert.NotNil(t, sess.PredictionData(ctx))
	assert.Nil(t, sess.DiseaseDetails(ctx))
}

func TestSession_TabIsolationAndReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	first := NewSession(store, "tab-1", nil)
	second := NewSession(store, "tab-2", nil)

	require.NoError(t, first.SavePredictionData(ctx, samplePrediction()))
	assert.Nil(t, second.PredictionData(ctx))

	require.NoError(t, first.Reset(ctx))
	assert.Nil(t, first.PredictionData(ctx))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "tab-1", KeyPredictionData, []byte(`{}`)))
	_, err := store.Get(ctx, "tab-1", KeyPredictionData)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "tab-1", KeyPredictionData)
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, store.GetStats()["keys"])
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(StoreTypeMemory, WithTTL(time.Minute))
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewStore(StoreTypeRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore("etcd")
	assert.ErrorIs(t, err, ErrInvalidStoreType)
}

// Требует запущенный Redis: REDIS_TEST_ADDR=localhost:6379
func TestRedisStore_PairAndClear(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	client := NewRedisClient(addr, "", 0)
	store := NewRedisStore(client, time.Minute)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	sessionID := uuid.NewString()
	sess := NewSession(store, sessionID, zap.NewNop())
	detail := &models.DiseaseDetail{Disease: "Pneumonia", Details: "text"}

	require.NoError(t, sess.SavePair(ctx, samplePrediction(), detail))
	if diff := cmp.Diff(samplePrediction(), sess.PredictionData(ctx)); diff != "" {
		t.Errorf("prediction mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, detail, sess.DiseaseDetails(ctx))

	ttl, err := client.TTL(ctx, tabKey(sessionID, KeyPredictionData)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, sess.Reset(ctx))
	_, err = store.Get(ctx, sessionID, KeyDiseaseDetails)
	assert.ErrorIs(t, err, ErrMiss)
}
