package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// DefaultBaseURL - адрес бэкенда по умолчанию
const DefaultBaseURL = "http://127.0.0.1:8002"

// Client - единая точка настройки запросов к внешнему бэкенду.
// Каждый вызов одноразовый: без повторов и без собственного таймаута.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	tracer     trace.Tracer
	cdnBase    string
}

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient подменяет http.Client (тесты, таймауты транспорта)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout задает общий таймаут запроса; 0 - без таймаута
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger задает логгер
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracer задает трейсер
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithImageCDN задает базовый адрес CDN для ImageURL
func WithImageCDN(base string) Option {
	return func(c *Client) {
		c.cdnBase = strings.TrimRight(base, "/")
	}
}

// NewClient создает клиент бэкенда
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
		tracer:     tracenoop.NewTracerProvider().Tracer("backend"),
		cdnBase:    "https://res.cloudinary.com/dqmeeveij/image/upload",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL возвращает адрес бэкенда
func (c *Client) BaseURL() string {
	return c.baseURL
}

type requestConfig struct {
	headers http.Header
	query   url.Values
}

// RequestOption настраивает отдельный запрос
type RequestOption func(*requestConfig)

// WithBearer добавляет заголовок Authorization: Bearer
func WithBearer(token string) RequestOption {
	return func(rc *requestConfig) {
		rc.headers.Set("Authorization", "Bearer "+token)
	}
}

// WithHeader добавляет произвольный заголовок
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.headers.Set(key, value)
	}
}

// WithQuery добавляет query параметры
func WithQuery(q url.Values) RequestOption {
	return func(rc *requestConfig) {
		for k, vs := range q {
			for _, v := range vs {
				rc.query.Add(k, v)
			}
		}
	}
}

// formBody - multipart тело запроса
type formBody struct {
	contentType string
	data        []byte
}

// newFormBody собирает multipart/form-data из полей и одного файла (file может быть nil)
func newFormBody(fields map[string]string, fileField, fileName string, file io.Reader) (*formBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}

	if file != nil {
		part, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, fmt.Errorf("failed to copy form file: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &formBody{contentType: w.FormDataContentType(), data: buf.Bytes()}, nil
}

// Do выполняет запрос и декодирует JSON ответ в out (если out != nil).
// Ошибки нормализуются: ответ сервера с ошибкой -> *Error{Kind: KindServer},
// нет ответа -> *Error{Kind: KindNoResponse}, остальное возвращается как есть.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	rc := &requestConfig{headers: http.Header{}, query: url.Values{}}
	for _, opt := range opts {
		opt(rc)
	}

	ctx, span := c.tracer.Start(ctx, "backend "+method+" "+routeOf(path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)),
	)
	defer span.End()

	var (
		reader      io.Reader
		contentType = "application/json"
	)
	switch b := body.(type) {
	case nil:
	case *formBody:
		reader = bytes.NewReader(b.data)
		contentType = b.contentType
	default:
		data, err := json.Marshal(b)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(rc.query) > 0 {
		target += "?" + rc.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		span.RecordError(err)
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	for k, vs := range rc.headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("[BACKEND] no response from server",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		span.SetStatus(codes.Error, "no response")
		return &Error{Kind: KindNoResponse, Message: msgNoResponse, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, "read body")
		return &Error{Kind: KindNoResponse, Message: msgNoResponse, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := newServerError(resp.StatusCode, data)
		c.logger.Warn("[BACKEND] server rejected request",
			zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		span.SetStatus(codes.Error, apiErr.Message)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// routeOf отрезает конкретные значения из пути, чтобы имя спана не раздувалось
func routeOf(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) == 0 {
		return "/"
	}
	return "/" + parts[0]
}
