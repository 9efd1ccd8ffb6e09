package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Krimson/xray-triage/pkg/models"
)

// ===== Отзывы =====

// CreateReview публикует отзыв
func (c *Client) CreateReview(ctx context.Context, review *models.Review) (*models.Review, error) {
	var created models.Review
	if err := c.Do(ctx, http.MethodPost, "/reviews/", review, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListReviews возвращает все отзывы
func (c *Client) ListReviews(ctx context.Context) ([]models.Review, error) {
	var reviews []models.Review
	if err := c.Do(ctx, http.MethodGet, "/reviews/", nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ReviewsByUser возвращает отзывы пользователя
func (c *Client) ReviewsByUser(ctx context.Context, username string) ([]models.Review, error) {
	var reviews []models.Review
	if err := c.Do(ctx, http.MethodGet, "/reviews/"+url.PathEscape(username), nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// DeleteReviewsByUser удаляет все отзывы пользователя
func (c *Client) DeleteReviewsByUser(ctx context.Context, username string) error {
	return c.Do(ctx, http.MethodDelete, "/reviews/"+url.PathEscape(username), nil, nil)
}

// DeleteReview удаляет отзыв по ID
func (c *Client) DeleteReview(ctx context.Context, reviewID string) error {
	return c.Do(ctx, http.MethodDelete, "/reviews/id/"+url.PathEscape(reviewID), nil, nil)
}

// ===== Рассылка =====

// Subscribe подписывает пользователя на рассылку
func (c *Client) Subscribe(ctx context.Context, sub *models.Subscriber) error {
	return c.Do(ctx, http.MethodPost, "/subscribe", sub, nil)
}

// SendNewsletter отправляет письмо всем подписчикам
func (c *Client) SendNewsletter(ctx context.Context, letter *models.Newsletter) error {
	return c.Do(ctx, http.MethodPost, "/send-newsletter", letter, nil)
}

// ListSubscribers возвращает подписчиков
func (c *Client) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	var resp struct {
		Subscribers []models.Subscriber `json:"subscribers"`
	}
	if err := c.Do(ctx, http.MethodGet, "/subscribers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Subscribers, nil
}
