package client

import (
	"errors"
	"fmt"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

var (
	// ErrUnauthorized is returned when the service rejects the bearer token
	ErrUnauthorized = errors.New("grammar service: unauthorized")
	// ErrInvalidCredentials is returned when login fails
	ErrInvalidCredentials = errors.New("grammar service: invalid username or password")
	// ErrEmptyText is returned for blank text; no request is made
	ErrEmptyText = errors.New("grammar service: text is empty")
)

// APIError is a non-successful response from the grammar service
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("grammar service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the body returned by POST /login
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// CheckRequest is the body of POST /check-grammar
type CheckRequest struct {
	Text string `json:"text"`
}

// CheckResponse is the body returned by POST /check-grammar
type CheckResponse struct {
	Success bool                 `json:"success"`
	Errors  []overlay.Annotation `json:"errors"`
	Message string               `json:"message,omitempty"`
}
