package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Source - способ входа
type Source string

const (
	SourcePassword Source = "password"
	SourceOAuth    Source = "oauth"
)

// Identity - пользователь вкладки: имя и токен доступа читаются вместе
type Identity struct {
	Username    string    `json:"username" yaml:"username"`
	AccessToken string    `json:"-" yaml:"access_token"`
	Source      Source    `json:"source" yaml:"source"`
	SignedInAt  time.Time `json:"signed_in_at" yaml:"signed_in_at"`
}

// Ошибки
var (
	ErrNotFound        = errors.New("identity not found")
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrInvalidToken    = errors.New("invalid access token")
)

// usernameClaims - порядок поиска имени пользователя в токене
var usernameClaims = []string{"preferred_username", "email", "name", "sub"}

// Provider - единственная точка чтения и записи личности.
// Вызывающий код не обращается к Store напрямую.
type Provider struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewProvider создает провайдер поверх хранилища
func NewProvider(store Store, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SignInWithPassword сохраняет личность после входа по логину и паролю
func (p *Provider) SignInWithPassword(ctx context.Context, sessionID, username, accessToken string) (*Identity, error) {
	if username == "" || accessToken == "" {
		return nil, ErrUnauthenticated
	}
	return p.save(ctx, sessionID, &Identity{
		Username:    username,
		AccessToken: accessToken,
		Source:      SourcePassword,
	})
}

// SignInWithToken сохраняет личность после входа через внешний OAuth.
// Имя берется из claims токена; подпись проверяет выдавший его сервис.
func (p *Provider) SignInWithToken(ctx context.Context, sessionID, accessToken string) (*Identity, error) {
	username, err := UsernameFromToken(accessToken)
	if err != nil {
		return nil, err
	}
	return p.save(ctx, sessionID, &Identity{
		Username:    username,
		AccessToken: accessToken,
		Source:      SourceOAuth,
	})
}

func (p *Provider) save(ctx context.Context, sessionID string, id *Identity) (*Identity, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrUnauthenticated)
	}
	id.SignedInAt = p.now().UTC().Truncate(time.Millisecond)

	if err := p.store.Save(ctx, sessionID, id); err != nil {
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}

	p.logger.Info("[IDENTITY] signed in",
		zap.String("session_id", sessionID),
		zap.String("username", id.Username),
		zap.String("source", string(id.Source)))
	return id, nil
}

// Resolve возвращает личность вкладки. Отсутствие имени или токена дает ErrUnauthenticated.
func (p *Provider) Resolve(ctx context.Context, sessionID string) (*Identity, error) {
	if sessionID == "" {
		return nil, ErrUnauthenticated
	}

	id, err := p.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	if id.Username == "" || id.AccessToken == "" {
		return nil, ErrUnauthenticated
	}
	return id, nil
}

// SignOut удаляет личность вкладки
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	if err := p.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	p.logger.Info("[IDENTITY] signed out", zap.String("session_id", sessionID))
	return nil
}

// Ping проверяет хранилище (для health probe)
func (p *Provider) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}

// UsernameFromToken извлекает имя пользователя из JWT без проверки подписи
func UsernameFromToken(accessToken string) (string, error) {
	accessToken = strings.TrimSpace(strings.TrimPrefix(accessToken, "Bearer "))
	if accessToken == "" {
		return "", ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	for _, name := range usernameClaims {
		if v, ok := claims[name].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: no username claim", ErrInvalidToken)
}
