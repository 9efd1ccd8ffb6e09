package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/internal/backend"
	"github.com/Krimson/xray-triage/internal/cache"
	"github.com/Krimson/xray-triage/internal/identity"
	"github.com/Krimson/xray-triage/pkg/models"
)

// DetailFetcher - источник описаний болезней
type DetailFetcher interface {
	FetchDiseaseDetails(ctx context.Context, diseaseName, language string) (*models.DiseaseDetail, error)
}

// Backend - операции внешнего бэкенда, нужные для сохранения результата
type Backend interface {
	DetailFetcher
	PredictImage(ctx context.Context, imageURL string) (*models.PredictionResult, error)
	SaveResult(ctx context.Context, accessToken string, record *models.SaveResultRecord) error
}

// IdentityResolver - чтение личности вкладки
type IdentityResolver interface {
	Resolve(ctx context.Context, sessionID string) (*identity.Identity, error)
}

// Outcome - итог Capture
type Outcome struct {
	Status     models.CaptureStatus
	Prediction *models.PredictionResult
	Detail     *models.DiseaseDetail
	// Err - причина, по которой результат не сохранен в бэкенде (только для CachedOnly)
	Err error
}

// Capturer сохраняет результат анализа: сначала в бэкенд, затем в кэш вкладки (Application Layer).
// Единственный, кто пишет predictionData и diseaseDetails.
type Capturer struct {
	backend    Backend
	identities IdentityResolver
	store      cache.Store
	logger     *zap.Logger
	tracer     trace.Tracer
	outcomes   metric.Int64Counter
	language   string
	now        func() time.Time
}

// CapturerOption настраивает Capturer
type CapturerOption func(*Capturer)

func WithLogger(logger *zap.Logger) CapturerOption {
	return func(c *Capturer) {
		c.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) CapturerOption {
	return func(c *Capturer) {
		c.tracer = tracer
	}
}

// WithMeter включает счетчик triage.capture.outcomes
func WithMeter(meter metric.Meter) CapturerOption {
	return func(c *Capturer) {
		counter, err := meter.Int64Counter("triage.capture.outcomes",
			metric.WithDescription("Capture results by status"))
		if err == nil {
			c.outcomes = counter
		}
	}
}

// WithLanguage задает язык описаний болезней
func WithLanguage(language string) CapturerOption {
	return func(c *Capturer) {
		c.language = language
	}
}

// NewCapturer создает оркестратор сохранения
func NewCapturer(b Backend, identities IdentityResolver, store cache.Store, opts ...CapturerOption) *Capturer {
	noopCounter, _ := metricnoop.NewMeterProvider().Meter("results").Int64Counter("triage.capture.outcomes")
	c := &Capturer{
		backend:    b,
		identities: identities,
		store:      store,
		logger:     zap.NewNop(),
		tracer:     tracenoop.NewTracerProvider().Tracer("results"),
		outcomes:   noopCounter,
		language:   backend.DefaultLanguage,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SavePredictionWithDetails - строгий порядок: личность, ранжирование, описание верхней болезни,
// сохранение в бэкенд, затем пара ключей в кэш вкладки.
// Любая ошибка до записи в кэш возвращается сразу, кэш при этом не трогается.
func (c *Capturer) SavePredictionWithDetails(ctx context.Context, sessionID string, prediction *models.PredictionResult, imageURL string) error {
	_, _, _, err := c.persist(ctx, sessionID, prediction, imageURL)
	return err
}

// persist возвращает saved=true, если бэкенд принял запись (даже если потом упала запись в кэш)
func (c *Capturer) persist(ctx context.Context, sessionID string, prediction *models.PredictionResult, imageURL string) (*models.PredictionResult, *models.DiseaseDetail, bool, error) {
	ctx, span := c.tracer.Start(ctx, "results.SavePredictionWithDetails")
	defer span.End()

	if sessionID == "" {
		return nil, nil, false, models.ErrSessionRequired
	}

	id, err := c.identities.Resolve(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, "unauthenticated")
		return nil, nil, false, err
	}

	ranked, err := Rank(prediction)
	if err != nil {
		return nil, nil, false, err
	}
	top := ranked.TopDiseases[0].Disease
	span.SetAttributes(attribute.String("disease", top))

	detail, err := c.backend.FetchDiseaseDetails(ctx, top, c.language)
	if err != nil {
		span.RecordError(err)
		return nil, nil, false, err
	}

	if imageURL == "" {
		imageURL = ranked.ImageURL
	}
	record := &models.SaveResultRecord{
		Username:       id.Username,
		ImageURL:       imageURL,
		PredictionData: *ranked,
		DiseaseDetails: models.SavedDiseaseDetail{Disease: detail.Disease, Details: detail.Details},
		Disease:        top,
		Details:        detail.Details,
		Timestamp:      c.now().UTC().Format(time.RFC3339),
	}
	if err := c.backend.SaveResult(ctx, id.AccessToken, record); err != nil {
		span.RecordError(err)
		return nil, nil, false, err
	}

	sess := cache.NewSession(c.store, sessionID, c.logger)
	if err := sess.SavePair(ctx, ranked, detail); err != nil {
		span.RecordError(err)
		return ranked, detail, true, fmt.Errorf("failed to write session cache: %w", err)
	}

	c.logger.Info("[CAPTURE] result persisted",
		zap.String("session_id", sessionID),
		zap.String("username", id.Username),
		zap.String("disease", top))
	return ranked, detail, true, nil
}

// Capture сохраняет результат и, если бэкенд недоступен, переходит в режим только кэша:
// повторно запрашивает описание и пишет кэш вкладки.
// Ошибку возвращают только пустое предсказание и сбой записи в кэш.
func (c *Capturer) Capture(ctx context.Context, sessionID string, prediction *models.PredictionResult, imageURL string) (*Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "results.Capture")
	defer span.End()

	ranked, detail, saved, err := c.persist(ctx, sessionID, prediction, imageURL)
	if err == nil {
		c.count(ctx, models.CaptureStatusPersisted)
		return &Outcome{Status: models.CaptureStatusPersisted, Prediction: ranked, Detail: detail}, nil
	}

	var emptyErr *EmptyPredictionError
	if errors.As(err, &emptyErr) || errors.Is(err, models.ErrSessionRequired) || saved {
		c.count(ctx, "failed")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Warn("[CAPTURE] durable save failed, keeping result in session cache only",
		zap.String("session_id", sessionID), zap.Error(err))

	ranked, rankErr := Rank(prediction)
	if rankErr != nil {
		return nil, rankErr
	}
	top := ranked.TopDiseases[0].Disease

	detail, fetchErr := c.backend.FetchDiseaseDetails(ctx, top, c.language)
	if fetchErr != nil {
		c.logger.Warn("[CAPTURE] disease details unavailable, caching prediction alone",
			zap.String("session_id", sessionID), zap.String("disease", top), zap.Error(fetchErr))
		detail = nil
	}

	sess := cache.NewSession(c.store, sessionID, c.logger)
	if err := sess.SavePair(ctx, ranked, detail); err != nil {
		c.count(ctx, "failed")
		span.SetStatus(codes.Error, "cache write failed")
		return nil, fmt.Errorf("failed to write session cache: %w", err)
	}

	c.count(ctx, models.CaptureStatusCachedOnly)
	return &Outcome{
		Status:     models.CaptureStatusCachedOnly,
		Prediction: ranked,
		Detail:     detail,
		Err:        err,
	}, nil
}

// Scan классифицирует снимок и сохраняет результат
func (c *Capturer) Scan(ctx context.Context, sessionID, imageURL string) (*Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "results.Scan")
	defer span.End()

	if sessionID == "" {
		return nil, models.ErrSessionRequired
	}

	prediction, err := c.backend.PredictImage(ctx, imageURL)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	c.logger.Info("[CAPTURE] image classified",
		zap.String("session_id", sessionID),
		zap.String("image_url", imageURL),
		zap.Int("diseases", len(prediction.TopDiseases)))

	return c.Capture(ctx, sessionID, prediction, imageURL)
}

func (c *Capturer) count(ctx context.Context, status models.CaptureStatus) {
	c.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
