package results

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/internal/cache"
	"github.com/Krimson/xray-triage/pkg/models"
)

// State - состояние экрана результатов
type State string

const (
	StateInit    State = "init"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

var (
	ErrNoPrediction   = errors.New("no prediction data found")
	ErrUnknownDisease = errors.New("disease is not in the ranked list")
)

// Snapshot - то, что видит пользователь вкладки
type Snapshot struct {
	SessionID  string                   `json:"session_id"`
	State      State                    `json:"state"`
	Prediction *models.PredictionResult `json:"prediction,omitempty"`
	Selected   string                   `json:"selected_disease,omitempty"`
	Detail     *models.DiseaseDetail    `json:"disease_details,omitempty"`
	Error      string                   `json:"error,omitempty"`
	// Version растет с каждым переходом
	Version uint64 `json:"version"`
}

// Listener получает каждый переход состояния
type Listener interface {
	OnTransition(Snapshot)
}

// Forgetter - Listener, который хранит последнее состояние вкладки.
// Registry.Drop вызывает Forget, чтобы сброшенный экран не вернулся новому клиенту.
type Forgetter interface {
	Forget(sessionID string)
}

// ListenerFunc - адаптер функции к Listener
type ListenerFunc func(Snapshot)

func (f ListenerFunc) OnTransition(s Snapshot) { f(s) }

// View - экран результатов одной вкладки.
// Только читает кэш вкладки; недостающее описание запрашивает у бэкенда.
type View struct {
	session  *cache.Session
	fetcher  DetailFetcher
	language string
	listener Listener
	logger   *zap.Logger

	mu   sync.Mutex
	snap Snapshot
	// gen отбрасывает ответы устаревших запросов описания
	gen uint64
	// seq - источник Version; у экранов одного Registry он общий
	seq *atomic.Uint64

	pubMu    sync.Mutex
	detached bool
}

// NewView создает экран в состоянии Init
func NewView(session *cache.Session, fetcher DetailFetcher, language string, listener Listener, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{
		session:  session,
		fetcher:  fetcher,
		language: language,
		listener: listener,
		logger:   logger,
		snap:     Snapshot{SessionID: session.ID(), State: StateInit},
		seq:      new(atomic.Uint64),
	}
}

// Snapshot возвращает текущее состояние
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// Load восстанавливает экран из кэша вкладки
func (v *View) Load(ctx context.Context) (Snapshot, error) {
	prediction := v.session.PredictionData(ctx)
	if prediction == nil {
		return v.fail(nil, "", ErrNoPrediction), ErrNoPrediction
	}

	ranked, err := Rank(prediction)
	if err != nil {
		return v.fail(nil, "", err), err
	}

	if detail := v.session.DiseaseDetails(ctx); detail != nil {
		v.mu.Lock()
		v.gen++
		v.snap.State = StateReady
		v.snap.Prediction = ranked
		v.snap.Selected = detail.Disease
		v.snap.Detail = detail
		v.snap.Error = ""
		snap := v.transitionLocked()
		v.mu.Unlock()

		v.publish(snap)
		return snap, nil
	}

	return v.fetch(ctx, ranked, ranked.TopDiseases[0].Disease)
}

// Select показывает описание другой болезни из списка.
// Повторный выбор уже показанной болезни ничего не меняет; новый выбор отменяет незавершенный.
func (v *View) Select(ctx context.Context, disease string) (Snapshot, error) {
	v.mu.Lock()
	prediction := v.snap.Prediction
	if prediction == nil {
		v.mu.Unlock()
		return v.Snapshot(), ErrNoPrediction
	}
	if !contains(prediction, disease) {
		v.mu.Unlock()
		return v.Snapshot(), ErrUnknownDisease
	}
	if v.snap.State == StateReady && v.snap.Selected == disease {
		snap := v.snap
		v.mu.Unlock()
		return snap, nil
	}
	v.mu.Unlock()

	return v.fetch(ctx, prediction, disease)
}

// Retry повторяет последний неудачный шаг
func (v *View) Retry(ctx context.Context) (Snapshot, error) {
	snap := v.Snapshot()
	if snap.State != StateError {
		return snap, nil
	}
	if snap.Prediction == nil || snap.Selected == "" {
		return v.Load(ctx)
	}
	return v.fetch(ctx, snap.Prediction, snap.Selected)
}

func (v *View) fetch(ctx context.Context, prediction *models.PredictionResult, disease string) (Snapshot, error) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.snap.State = StateLoading
	v.snap.Prediction = prediction
	v.snap.Selected = disease
	v.snap.Detail = nil
	v.snap.Error = ""
	loading := v.transitionLocked()
	v.mu.Unlock()
	v.publish(loading)

	detail, err := v.fetcher.FetchDiseaseDetails(ctx, disease, v.language)

	v.mu.Lock()
	if gen != v.gen {
		// за время запроса выбрали другую болезнь
		snap := v.snap
		v.mu.Unlock()
		return snap, nil
	}
	if err != nil {
		v.snap.State = StateError
		v.snap.Error = err.Error()
	} else {
		v.snap.State = StateReady
		v.snap.Detail = detail
	}
	snap := v.transitionLocked()
	v.mu.Unlock()
	v.publish(snap)

	if err != nil {
		v.logger.Warn("[VIEW] failed to load disease details",
			zap.String("session_id", snap.SessionID), zap.String("disease", disease), zap.Error(err))
	}
	return snap, err
}

func (v *View) fail(prediction *models.PredictionResult, disease string, err error) Snapshot {
	v.mu.Lock()
	v.gen++
	v.snap.State = StateError
	v.snap.Prediction = prediction
	v.snap.Selected = disease
	v.snap.Detail = nil
	v.snap.Error = err.Error()
	snap := v.transitionLocked()
	v.mu.Unlock()

	v.publish(snap)
	return snap
}

func (v *View) transitionLocked() Snapshot {
	v.snap.Version = v.seq.Add(1)
	return v.snap
}

func (v *View) publish(snap Snapshot) {
	v.pubMu.Lock()
	defer v.pubMu.Unlock()
	if v.detached || v.listener == nil {
		return
	}
	v.listener.OnTransition(snap)
}

// detach отключает экран от Listener; незавершенные запросы больше ничего не публикуют
func (v *View) detach() {
	v.pubMu.Lock()
	defer v.pubMu.Unlock()
	v.detached = true
}

// Registry хранит экраны результатов по вкладкам
type Registry struct {
	store    cache.Store
	fetcher  DetailFetcher
	language string
	listener Listener
	logger   *zap.Logger

	mu    sync.Mutex
	views map[string]*View
	// seq переживает Drop, поэтому Version вкладки не начинается заново
	seq atomic.Uint64
}

// NewRegistry создает реестр экранов
func NewRegistry(store cache.Store, fetcher DetailFetcher, language string, listener Listener, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:    store,
		fetcher:  fetcher,
		language: language,
		listener: listener,
		logger:   logger,
		views:    make(map[string]*View),
	}
}

// Get возвращает экран вкладки, создавая его при первом обращении
func (r *Registry) Get(sessionID string) *View {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.views[sessionID]; ok {
		return v
	}
	v := NewView(cache.NewSession(r.store, sessionID, r.logger), r.fetcher, r.language, r.listener, r.logger)
	v.seq = &r.seq
	r.views[sessionID] = v
	return v
}

// Drop забывает экран вкладки (новый результат или сброс навигации)
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	v, ok := r.views[sessionID]
	delete(r.views, sessionID)
	r.mu.Unlock()

	if ok {
		v.detach()
	}
	if f, ok := r.listener.(Forgetter); ok {
		f.Forget(sessionID)
	}
}

// Len - число открытых экранов
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
