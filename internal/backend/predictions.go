package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/pkg/models"
)

// PredictImage отправляет ссылку на снимок на классификацию
func (c *Client) PredictImage(ctx context.Context, imageURL string) (*models.PredictionResult, error) {
	var result models.PredictionResult
	err := c.Do(ctx, http.MethodPost, "/predict-image", map[string]string{"image_url": imageURL}, &result)
	if err != nil {
		c.logger.Error("[BACKEND] prediction failed", zap.String("image_url", imageURL), zap.Error(err))
		return nil, newPredictionError(err, "failed to process image prediction")
	}

	if result.TopDiseases == nil {
		return nil, &PredictionError{
			Message: "invalid prediction response format",
			Status:  http.StatusInternalServerError,
			Data:    result,
		}
	}
	return &result, nil
}

// GetPrediction возвращает ранее посчитанное предсказание
func (c *Client) GetPrediction(ctx context.Context, predictionID string) (*models.PredictionResult, error) {
	var result models.PredictionResult
	if err := c.Do(ctx, http.MethodGet, "/predict-image/"+url.PathEscape(predictionID), nil, &result); err != nil {
		return nil, newPredictionError(err, "failed to fetch prediction results")
	}

	if result.ImageURL == "" {
		return nil, &PredictionError{
			Message: "invalid prediction result format",
			Status:  http.StatusInternalServerError,
			Data:    result,
		}
	}
	return &result, nil
}

// SaveResult сохраняет результат анализа в бэкенде (долговременное хранилище)
func (c *Client) SaveResult(ctx context.Context, accessToken string, record *models.SaveResultRecord) error {
	if err := c.Do(ctx, http.MethodPost, "/save-result", record, nil, WithBearer(accessToken)); err != nil {
		c.logger.Error("[BACKEND] failed to save result",
			zap.String("username", record.Username), zap.String("disease", record.Disease), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return nil
}

// History возвращает сохраненные результаты пользователя
func (c *Client) History(ctx context.Context, username, accessToken string) ([]models.HistoryItem, error) {
	if accessToken == "" || username == "" {
		return nil, ErrMissingToken
	}

	var items []models.HistoryItem
	if err := c.Do(ctx, http.MethodGet, "/results/"+url.PathEscape(username), nil, &items, WithBearer(accessToken)); err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return items, nil
}

// UploadImage загружает снимок (multipart поле file)
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (*models.ImageUpload, error) {
	body, err := newFormBody(nil, "file", filename, r)
	if err != nil {
		return nil, err
	}

	var upload models.ImageUpload
	if err := c.Do(ctx, http.MethodPost, "/images/upload", body, &upload); err != nil {
		c.logger.Error("[BACKEND] image upload failed", zap.String("file", filename), zap.Error(err))
		return nil, err
	}
	return &upload, nil
}

// ImageURL строит ссылку CDN по public_id
func (c *Client) ImageURL(publicID string) string {
	return c.cdnBase + "/" + publicID
}
