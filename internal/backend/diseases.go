package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/pkg/models"
)

// DefaultLanguage - язык описаний по умолчанию
const DefaultLanguage = "en"

// FetchDiseaseDetails запрашивает описание болезни.
// Имя экранируется, пустое имя отправляется как есть. Повторов нет.
func (c *Client) FetchDiseaseDetails(ctx context.Context, diseaseName, language string) (*models.DiseaseDetail, error) {
	if language == "" {
		language = DefaultLanguage
	}

	var detail models.DiseaseDetail
	err := c.Do(ctx, http.MethodGet, "/disease-details/"+url.PathEscape(diseaseName), nil, &detail,
		WithQuery(url.Values{"language": {language}}))
	if err != nil {
		c.logger.Error("[BACKEND] failed to fetch disease details",
			zap.String("disease", diseaseName), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrDiseaseDetailsUnavailable, err)
	}

	if detail.Language == "" {
		detail.Language = language
	}
	return &detail, nil
}

// ===== Справочник болезней (админка) =====

// ListDiseases возвращает все записи справочника
func (c *Client) ListDiseases(ctx context.Context) ([]models.Disease, error) {
	var diseases []models.Disease
	if err := c.Do(ctx, http.MethodGet, "/diseases/", nil, &diseases); err != nil {
		return nil, err
	}
	return diseases, nil
}

// GetDisease возвращает запись справочника по ID
func (c *Client) GetDisease(ctx context.Context, id string) (*models.Disease, error) {
	var disease models.Disease
	if err := c.Do(ctx, http.MethodGet, "/diseases/"+url.PathEscape(id), nil, &disease); err != nil {
		return nil, err
	}
	return &disease, nil
}

// CreateDisease создает запись справочника
func (c *Client) CreateDisease(ctx context.Context, disease *models.Disease) (*models.Disease, error) {
	var created models.Disease
	if err := c.Do(ctx, http.MethodPost, "/diseases/", disease, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateDisease обновляет запись справочника
func (c *Client) UpdateDisease(ctx context.Context, id string, disease *models.Disease) (*models.Disease, error) {
	var updated models.Disease
	if err := c.Do(ctx, http.MethodPut, "/diseases/"+url.PathEscape(id), disease, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteDisease удаляет запись справочника
func (c *Client) DeleteDisease(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/diseases/"+url.PathEscape(id), nil, nil)
}
