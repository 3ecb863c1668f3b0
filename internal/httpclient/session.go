package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Response is a fully read HTTP response
type Response struct {
	StatusCode   int
	Headers      http.Header
	Body         []byte
	IsSuccessful bool
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// Option configures a Session
type Option func(*Session)

// WithTimeout overrides the default 30 second client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.client.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying client, mainly for tests
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.client = client
	}
}

// WithBasicAuth sets basic auth credentials on every request
func WithBasicAuth(username, password string) Option {
	return func(s *Session) {
		s.username = username
		s.password = password
	}
}

// Session sends requests to one vendor API with a fixed set of headers
type Session struct {
	baseURL  string
	headers  map[string]string
	username string
	password string
	client   *http.Client
	logger   *zap.Logger
}

// NewSession creates a session rooted at baseURL. An empty baseURL means every path is absolute.
func NewSession(baseURL string, headers map[string]string, opts ...Option) *Session {
	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger.Named("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BaseURL returns the root every relative path is resolved against
func (s *Session) BaseURL() string {
	return s.baseURL
}

// Get sends a GET request with optional query parameters
func (s *Session) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	target := s.resolve(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return s.do(ctx, http.MethodGet, target, nil, "", nil)
}

// Post sends body JSON-encoded. Extra headers are added on top of the session headers.
func (s *Session) Post(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	payload, err := encodeJSON(body)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, http.MethodPost, s.resolve(path), payload, "application/json", headers)
}

// PostForm sends a form-encoded body
func (s *Session) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return s.do(ctx, http.MethodPost, s.resolve(path), []byte(form.Encode()), "application/x-www-form-urlencoded", nil)
}

// Put sends body JSON-encoded
func (s *Session) Put(ctx context.Context, path string, body any) (*Response, error) {
	payload, err := encodeJSON(body)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, http.MethodPut, s.resolve(path), payload, "application/json", nil)
}

// Delete sends a DELETE request
func (s *Session) Delete(ctx context.Context, path string) (*Response, error) {
	return s.do(ctx, http.MethodDelete, s.resolve(path), nil, "", nil)
}

func (s *Session) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || s.baseURL == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL + path
}

func encodeJSON(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

func (s *Session) do(ctx context.Context, method, target string, payload []byte, contentType string, extra map[string]string) (*Response, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range s.headers {
		req.Header.Set(key, value)
	}
	for key, value := range extra {
		req.Header.Set(key, value)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewContextCancelled(method+" "+target, ctx.Err())
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	response := &Response{
		StatusCode:   resp.StatusCode,
		Headers:      resp.Header,
		Body:         body,
		IsSuccessful: resp.StatusCode >= 200 && resp.StatusCode < 300,
	}

	s.logger.Debug("HTTP request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status_code", resp.StatusCode),
	)

	if !response.IsSuccessful {
		s.logger.Error("HTTP request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", string(body)),
		)
		return response, apperrors.NewHTTPError(method, target, resp.StatusCode, resp.Header, string(body))
	}

	return response, nil
}

// GetOne fetches a single JSON object
func GetOne[T any](ctx context.Context, s *Session, path string, query url.Values) (*T, error) {
	resp, err := s.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var out T
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMultiple fetches a JSON array
func GetMultiple[T any](ctx context.Context, s *Session, path string, query url.Values) ([]T, error) {
	resp, err := s.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostReturnOne posts body and decodes a single JSON object
func PostReturnOne[T any](ctx context.Context, s *Session, path string, body any) (*T, error) {
	resp, err := s.Post(ctx, path, body, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
