package results

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/internal/backend"
	"github.com/Krimson/xray-triage/internal/backendstub"
	"github.com/Krimson/xray-triage/internal/cache"
	"github.com/Krimson/xray-triage/internal/identity"
	"github.com/Krimson/xray-triage/pkg/models"
)

const testSessionID = "3f2b8c4e-6a1d-4c8e-9b7a-2d5f0e1a9c33"

type fixture struct {
	stub       *backendstub.Stub
	client     *backend.Client
	store      *cache.MemoryStore
	identities *identity.Provider
	capturer   *Capturer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stub := backendstub.New(nil)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL)
	require.NoError(t, err)

	store := cache.NewMemoryStore(time.Hour)
	identities := identity.NewProvider(identity.NewMemoryStore(), zap.NewNop())

	return &fixture{
		stub:       stub,
		client:     client,
		store:      store,
		identities: identities,
		capturer:   NewCapturer(client, identities, store),
	}
}

func (f *fixture) signIn(t *testing.T, sessionID string) {
	t.Helper()
	_, err := f.identities.SignInWithPassword(context.Background(), sessionID, "alice", "token-alice")
	require.NoError(t, err)
}

func (f *fixture) session(sessionID string) *cache.Session {
	return cache.NewSession(f.store, sessionID, nil)
}

func happyPrediction() *models.PredictionResult {
	return &models.PredictionResult{
		ImageURL: "https://example.com/x1.png",
		TopDiseases: []models.DiseasePrediction{
			{Disease: "Pneumonia", Probability: 0.82},
			{Disease: "Effusion", Probability: 0.40},
			{Disease: "Atelectasis", Probability: 0.21},
			{Disease: "Infiltration", Probability: 0.12},
			{Disease: "Mass", Probability: 0.05},
		},
	}
}

// recorder собирает переходы экрана
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) OnTransition(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.State
	}
	return out
}

// gatedFetcher держит запрос описания, пока тест не откроет ворота
type gatedFetcher struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	fail    map[string]error
	calls   map[string]int
	entered chan string
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		gates:   make(map[string]chan struct{}),
		fail:    make(map[string]error),
		calls:   make(map[string]int),
		entered: make(chan string, 16),
	}
}

func (g *gatedFetcher) hold(disease string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[disease] = ch
	return ch
}

func (g *gatedFetcher) failWith(disease string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.fail, disease)
		return
	}
	g.fail[disease] = err
}

func (g *gatedFetcher) callCount(disease string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[disease]
}

func (g *gatedFetcher) FetchDiseaseDetails(ctx context.Context, disease, language string) (*models.DiseaseDetail, error) {
	g.mu.Lock()
	g.calls[disease]++
	gate := g.gates[disease]
	err := g.fail[disease]
	g.mu.Unlock()

	g.entered <- disease
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &models.DiseaseDetail{Disease: disease, Details: "# " + disease, Language: language}, nil
}
