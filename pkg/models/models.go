package models

import (
	"errors"
	"time"
)

// DiseasePrediction - одна позиция ранжированного списка болезней
type DiseasePrediction struct {
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"`
}

// PredictionResult - результат классификации снимка (формирует внешний сервис)
type PredictionResult struct {
	ImageURL    string              `json:"image_url"`
	TopDiseases []DiseasePrediction `json:"top_5_diseases"`
}

// DiseaseDetail - справочное описание болезни (markdown)
type DiseaseDetail struct {
	Disease  string `json:"disease"`
	Details  string `json:"details"`
	Language string `json:"language,omitempty"`
}

// SavedDiseaseDetail - описание болезни в том виде, в котором его принимает /save-result
type SavedDiseaseDetail struct {
	Disease string `json:"disease"`
	Details string `json:"details"`
}

// SaveResultRecord - тело запроса POST /save-result
type SaveResultRecord struct {
	Username       string             `json:"username"`
	ImageURL       string             `json:"image_url"`
	PredictionData PredictionResult   `json:"prediction_data"`
	DiseaseDetails SavedDiseaseDetail `json:"disease_details"`
	Disease        string             `json:"disease"`
	Details        string             `json:"details"`
	Timestamp      string             `json:"timestamp"`
}

// HistoryItem - сохраненный результат из GET /results/{username}
type HistoryItem struct {
	Username       string             `json:"username"`
	DiseaseDetails SavedDiseaseDetail `json:"disease_details"`
	PredictionData PredictionResult   `json:"prediction_data"`
	ImageURL       string             `json:"image_url"`
	Details        string             `json:"details"`
	Disease        string             `json:"disease"`
	Timestamp      string             `json:"timestamp"`
}

// ImageUpload - ответ сервиса загрузки изображений
type ImageUpload struct {
	PublicID  string `json:"public_id"`
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// TokenResponse - ответ POST /login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	Username    string `json:"username,omitempty"`
}

// RegisterRequest - запрос регистрации пользователя
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// User - учетная запись из админского списка
type User struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Disease - запись справочника болезней (админка)
type Disease struct {
	ID          string   `json:"_id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Symptoms    []string `json:"symptoms,omitempty"`
	Treatment   string   `json:"treatment,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// Review - отзыв пользователя
type Review struct {
	ID        string `json:"_id,omitempty"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Rating    int    `json:"rating"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Subscriber - подписчик рассылки
type Subscriber struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Newsletter - письмо для рассылки всем подписчикам
type Newsletter struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// MedicalQuery - вопрос симптом-боту
type MedicalQuery struct {
	Question string `json:"question"`
	Disease  string `json:"disease,omitempty"`
}

// ChatResponse - ответ симптом-бота
type ChatResponse struct {
	Answer            string   `json:"answer"`
	Disclaimer        string   `json:"disclaimer,omitempty"`
	Confidence        float64  `json:"confidence,omitempty"`
	FollowupQuestions []string `json:"followup_questions,omitempty"`
}

// SuggestedQuestions - подсказки вопросов по болезни
type SuggestedQuestions struct {
	Disease   string   `json:"disease"`
	Questions []string `json:"questions"`
}

// CaptureStatus - итог сохранения результата
type CaptureStatus string

const (
	// CaptureStatusPersisted - результат сохранен в бэкенде и в кэше вкладки
	CaptureStatusPersisted CaptureStatus = "persisted"
	// CaptureStatusCachedOnly - бэкенд недоступен, данные есть только в кэше вкладки
	CaptureStatusCachedOnly CaptureStatus = "cached_only"
)

// ScanRequest - запрос на анализ снимка
type ScanRequest struct {
	ImageURL string `json:"image_url"`
}

// CaptureRequest - запрос на сохранение уже полученного предсказания
type CaptureRequest struct {
	Prediction PredictionResult `json:"prediction"`
	ImageURL   string           `json:"image_url"`
}

// CaptureResponse - ответ после сохранения
type CaptureResponse struct {
	SessionID  string            `json:"session_id"`
	Status     CaptureStatus     `json:"status"`
	Prediction *PredictionResult `json:"prediction,omitempty"`
	Message    string            `json:"message,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
}

// SelectRequest - выбор другой болезни из списка
type SelectRequest struct {
	Disease string `json:"disease"`
}

// LoginRequest - вход по логину и паролю через шлюз
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// OAuthRequest - вход по токену внешнего OAuth провайдера
type OAuthRequest struct {
	AccessToken string `json:"access_token"`
}

// Ошибки
var (
	ErrSessionRequired = errors.New("session id is required")
)
