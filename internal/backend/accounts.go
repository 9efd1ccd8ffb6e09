package backend

import (
	"context"
	"net/http"

	"github.com/Krimson/xray-triage/pkg/models"
)

// Register регистрирует пользователя
func (c *Client) Register(ctx context.Context, req *models.RegisterRequest) error {
	return c.Do(ctx, http.MethodPost, "/register", req, nil)
}

// Login выполняет вход по логину и паролю (multipart форма, как ожидает бэкенд)
func (c *Client) Login(ctx context.Context, username, password string) (*models.TokenResponse, error) {
	body, err := newFormBody(map[string]string{
		"username": username,
		"password": password,
	}, "", "", nil)
	if err != nil {
		return nil, err
	}

	var token models.TokenResponse
	if err := c.Do(ctx, http.MethodPost, "/login", body, &token); err != nil {
		return nil, err
	}
	if token.Username == "" {
		token.Username = username
	}
	return &token, nil
}

// ListUsers возвращает всех пользователей (нужен токен администратора)
func (c *Client) ListUsers(ctx context.Context, accessToken string) ([]models.User, error) {
	var users []models.User
	if err := c.Do(ctx, http.MethodGet, "/users/all", nil, &users, WithBearer(accessToken)); err != nil {
		return nil, err
	}
	return users, nil
}

// CountUsers возвращает число пользователей
func (c *Client) CountUsers(ctx context.Context, accessToken string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.Do(ctx, http.MethodGet, "/users/count", nil, &resp, WithBearer(accessToken)); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
