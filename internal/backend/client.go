// Package backend talks to the chat backend over plain HTTP/JSON.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"altron/internal/chat"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000/api/v1"

	healthPath   = "/health"
	modelsPath   = "/providers/models"
	conversePath = "/converse"

	defaultRequestTimeout = 60 * time.Second
	maxErrorBody          = 240
)

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("unexpected backend status")

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
	limiter *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestTimeout bounds every request. It applies to a copy of the
// HTTP client, so a shared client such as http.DefaultClient is left alone.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConverseRate throttles converse calls to perSecond requests, with
// a burst of one. Non-positive values disable throttling.
func WithConverseRate(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			c.limiter = nil
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) HealthURL() string { return c.baseURL + healthPath }

func (c *Client) ModelsURL(q ModelQuery) string {
	values := url.Values{}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Type != "" {
		values.Set("type_filter", string(q.Type))
	}
	endpoint := c.baseURL + modelsPath
	if encoded := values.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return endpoint
}

// FetchModels lists the backend's models. Every failure is logged and
// collapses to an empty list, so callers only ever see "some models" or
// "none".
func (c *Client) FetchModels(ctx context.Context, q ModelQuery) []Model {
	endpoint := c.ModelsURL(q)
	models, err := c.fetchModels(ctx, endpoint)
	if err != nil {
		c.logger.Error("error fetching models", zap.String("url", endpoint), zap.Error(err))
		return []Model{}
	}
	c.logger.Debug("fetched models", zap.String("url", endpoint), zap.Int("count", len(models)))
	return models
}

func (c *Client) fetchModels(ctx context.Context, endpoint string) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	payload, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("invalid models payload: %w", err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("invalid models payload: expected an array, got %s", compact(string(trimmed)))
	}
	var models []Model
	if err := json.Unmarshal(trimmed, &models); err != nil {
		return nil, fmt.Errorf("invalid models payload: %w", err)
	}
	out := make([]Model, 0, len(models))
	for _, m := range models {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		if m.Type == "" {
			m.Type = ModelUndefined
		}
		out = append(out, m)
	}
	return out, nil
}

type converseRequest struct {
	Model         converseModel `json:"model"`
	MessageThread chat.Snapshot `json:"message_thread"`
}

type converseModel struct {
	ID string `json:"id"`
}

type converseResponse struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Converse sends the thread to the backend and returns its assistant
// reply.
func (c *Client) Converse(ctx context.Context, model string, thread chat.Snapshot) (chat.Message, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return chat.Message{}, fmt.Errorf("converse throttled: %w", err)
		}
	}
	body, err := json.Marshal(converseRequest{
		Model:         converseModel{ID: model},
		MessageThread: thread,
	})
	if err != nil {
		return chat.Message{}, err
	}
	endpoint := c.baseURL + conversePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return chat.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	payload, err := c.do(req)
	if err != nil {
		return chat.Message{}, fmt.Errorf("converse: %w", err)
	}
	var parsed converseResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return chat.Message{}, fmt.Errorf("converse returned non-json payload: %w", err)
	}
	content := strings.TrimSpace(parsed.Content)
	if content == "" {
		return chat.Message{}, errors.New("converse returned empty response content")
	}
	msg := chat.NewAssistantMessage(content)
	if strings.TrimSpace(parsed.ID) != "" {
		msg.ID = parsed.ID
	}
	c.logger.Debug("converse reply", zap.String("thread_id", thread.ID), zap.String("model", model))
	return msg, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d: %s", ErrStatus, resp.StatusCode, compact(string(payload)))
	}
	return payload, nil
}

func compact(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxErrorBody {
		runes := []rune(text)
		return string(runes[:maxErrorBody-3]) + "..."
	}
	return text
}
