package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/pkg/models"
)

// Session - типизированный доступ к кэшу одной вкладки
type Session struct {
	store  Store
	id     string
	logger *zap.Logger
}

// NewSession привязывает хранилище к вкладке
func NewSession(store Store, sessionID string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: store, id: sessionID, logger: logger}
}

// ID возвращает идентификатор вкладки
func (s *Session) ID() string {
	return s.id
}

// SavePredictionData пишет только предсказание
func (s *Session) SavePredictionData(ctx context.Context, prediction *models.PredictionResult) error {
	data, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}
	return s.store.Set(ctx, s.id, KeyPredictionData, data)
}

// SaveDiseaseDetails пишет только описание болезни
func (s *Session) SaveDiseaseDetails(ctx context.Context, detail *models.DiseaseDetail) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal disease details: %w", err)
	}
	return s.store.Set(ctx, s.id, KeyDiseaseDetails, data)
}

// SavePair пишет предсказание и описание одной операцией.
// detail == nil удаляет старое описание, чтобы оно не пережило новое предсказание.
func (s *Session) SavePair(ctx context.Context, prediction *models.PredictionResult, detail *models.DiseaseDetail) error {
	predictionData, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	var detailData []byte
	if detail != nil {
		detailData, err = json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("failed to marshal disease details: %w", err)
		}
	}

	return s.store.SetPair(ctx, s.id, map[string][]byte{
		KeyPredictionData: predictionData,
		KeyDiseaseDetails: detailData,
	})
}

// PredictionData читает предсказание. Промах, битый JSON и ошибка хранилища дают nil.
func (s *Session) PredictionData(ctx context.Context) *models.PredictionResult {
	var prediction models.PredictionResult
	if !s.read(ctx, KeyPredictionData, &prediction) {
		return nil
	}
	return &prediction
}

// DiseaseDetails читает описание болезни. Промах, битый JSON и ошибка хранилища дают nil.
func (s *Session) DiseaseDetails(ctx context.Context) *models.DiseaseDetail {
	var detail models.DiseaseDetail
	if !s.read(ctx, KeyDiseaseDetails, &detail) {
		return nil
	}
	return &detail
}

// Reset очищает кэш вкладки (явный сброс навигации)
func (s *Session) Reset(ctx context.Context) error {
	return s.store.Clear(ctx, s.id)
}

func (s *Session) read(ctx context.Context, key string, out any) bool {
	data, err := s.store.Get(ctx, s.id, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			s.logger.Error("[CACHE] failed to read session cache",
				zap.String("session_id", s.id), zap.String("key", key), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("[CACHE] malformed session cache entry, treating as miss",
			zap.String("session_id", s.id), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
