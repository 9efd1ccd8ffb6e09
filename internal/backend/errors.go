package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const msgNoResponse = "no response from server"

// ErrorKind - класс нормализованной ошибки транспорта
type ErrorKind string

const (
	// KindServer - бэкенд ответил ошибкой, Payload содержит его тело
	KindServer ErrorKind = "server"
	// KindNoResponse - ответ не получен
	KindNoResponse ErrorKind = "no_response"
)

// Error - нормализованная ошибка запроса к бэкенду
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	// Payload - тело ответа сервера без изменений (map/slice/string)
	Payload any
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindServer {
		return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newServerError(status int, body []byte) *Error {
	apiErr := &Error{Kind: KindServer, Status: status}

	var payload any
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Payload = payload
		apiErr.Message = messageFrom(payload)
	} else if len(body) > 0 {
		apiErr.Payload = string(body)
		apiErr.Message = string(body)
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// messageFrom достает текст ошибки из типичных полей FastAPI/Express ответов
func messageFrom(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// StatusOf возвращает HTTP статус ошибки сервера или 0
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Ошибки операций
var (
	ErrDiseaseDetailsUnavailable = errors.New("failed to fetch disease details")
	ErrSaveFailed                = errors.New("failed to save results to database")
	ErrDiseaseRequired           = errors.New("disease is required for local bot")
	ErrMissingToken              = errors.New("no access token found")
)

// PredictionError - нормализованная ошибка классификации снимка
type PredictionError struct {
	Message string
	Status  int
	Data    any
	Err     error
}

func (e *PredictionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("prediction failed (%d): %s", e.Status, e.Message)
	}
	return "prediction failed: " + e.Message
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

func newPredictionError(err error, fallback string) *PredictionError {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		return &PredictionError{Message: msg, Status: apiErr.Status, Data: apiErr.Payload, Err: err}
	}
	if err != nil && err.Error() != "" {
		return &PredictionError{Message: err.Error(), Err: err}
	}
	return &PredictionError{Message: fallback, Err: err}
}
