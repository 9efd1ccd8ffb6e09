package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/Krimson/xray-triage/pkg/models"
)

// BotType - какой бот отвечает на вопросы
type BotType string

const (
	BotLocal  BotType = "local"
	BotGemini BotType = "gemini"
)

// ParseBotType проверяет название бота
func ParseBotType(s string) (BotType, error) {
	switch BotType(s) {
	case BotLocal, BotGemini:
		return BotType(s), nil
	}
	return "", fmt.Errorf("unknown bot type %q", s)
}

// Chat - симптом-бот поверх бэкенда
type Chat struct {
	client *Client

	mu  sync.RWMutex
	bot BotType
}

// NewChat создает чат с локальным ботом по умолчанию
func NewChat(client *Client) *Chat {
	return &Chat{client: client, bot: BotLocal}
}

// SetBot переключает бота
func (ch *Chat) SetBot(bot BotType) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.bot = bot
}

// Bot возвращает текущего бота
func (ch *Chat) Bot() BotType {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.bot
}

// Ask задает вопрос текущему боту. Локальному боту нужна болезнь.
func (ch *Chat) Ask(ctx context.Context, q models.MedicalQuery) (*models.ChatResponse, error) {
	if ch.Bot() == BotGemini {
		var resp models.ChatResponse
		if err := ch.client.Do(ctx, http.MethodPost, "/g_chat", map[string]string{"question": q.Question}, &resp); err != nil {
			return nil, fmt.Errorf("failed to query gemini bot: %w", err)
		}
		return &resp, nil
	}

	if q.Disease == "" {
		return nil, ErrDiseaseRequired
	}

	var resp models.ChatResponse
	body := map[string]string{"disease": q.Disease, "query": q.Question}
	if err := ch.client.Do(ctx, http.MethodPost, "/chat", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to query local bot: %w", err)
	}
	// Локальный бот не присылает disclaimer
	resp.Disclaimer = ""
	return &resp, nil
}

// SuggestedQuestions возвращает подсказки вопросов по болезни
func (ch *Chat) SuggestedQuestions(ctx context.Context, disease string) (*models.SuggestedQuestions, error) {
	var resp models.SuggestedQuestions
	if err := ch.client.Do(ctx, http.MethodGet, "/diseases/"+url.PathEscape(disease)+"/suggested-questions", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get suggested questions: %w", err)
	}
	return &resp, nil
}
