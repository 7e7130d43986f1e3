// Package client talks to the remote grammar-checking service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/raaihank/grammar-sentinel/internal/config"
	"github.com/raaihank/grammar-sentinel/internal/logger"
	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

const maxErrorBody = 4 << 10

// Client calls the login and check-grammar endpoints
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	observe    func(endpoint string, status int, d time.Duration)
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver registers a callback invoked after every upstream call.
// status is zero when the request failed before a response arrived.
func WithObserver(fn func(endpoint string, status int, d time.Duration)) Option {
	return func(c *Client) { c.observe = fn }
}

// New creates a grammar service client
func New(cfg config.ServiceConfig, log *logger.Logger, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     log.WithComponent("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp LoginResponse
	status, err := c.post(ctx, "/login", "", LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return "", fmt.Errorf("login failed: %w", ErrInvalidCredentials)
		}
		return "", fmt.Errorf("login failed: %w", err)
	}

	if !resp.Success || resp.Token == "" {
		return "", fmt.Errorf("login failed: %w", ErrInvalidCredentials)
	}

	c.logger.Info("Logged in", zap.String("username", username))
	return resp.Token, nil
}

// CheckGrammar submits text and returns the flagged words
func (c *Client) CheckGrammar(ctx context.Context, token, text string) ([]overlay.Annotation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var resp CheckResponse
	status, err := c.post(ctx, "/check-grammar", token, CheckRequest{Text: text}, &resp)
	if err != nil {
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("check grammar: %w", ErrUnauthorized)
		}
		return nil, fmt.Errorf("check grammar: %w", err)
	}

	if !resp.Success {
		c.logger.Warn("Grammar check reported no success", zap.String("message", resp.Message))
		return []overlay.Annotation{}, nil
	}
	if resp.Errors == nil {
		return []overlay.Annotation{}, nil
	}

	c.logger.Debug("Grammar check completed",
		zap.Int("text_length", len(text)),
		zap.Int("annotations", len(resp.Errors)),
	)
	return resp.Errors, nil
}

// post sends a JSON request and decodes a JSON response. The returned status
// is zero when no response was received.
func (c *Client) post(ctx context.Context, path, token string, in, out interface{}) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observe != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.observe(path, status, time.Since(start))
	}
	if err != nil {
		c.logger.Error("Upstream request failed", zap.String("path", path), zap.Error(err))
		return 0, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.LogUpstream(req.Method, req.URL.String(), req.Header, resp.StatusCode)
	c.logger.Debug("Upstream response", zap.String("path", path), zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
