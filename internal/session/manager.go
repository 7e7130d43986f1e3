package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/logger"
)

// Authenticator exchanges credentials for a token
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Manager owns the login state of one user
type Manager struct {
	store  Store
	auth   Authenticator
	logger *logger.Logger
}

// NewManager creates a session manager
func NewManager(store Store, auth Authenticator, log *logger.Logger) *Manager {
	return &Manager{
		store:  store,
		auth:   auth,
		logger: log.WithComponent("session"),
	}
}

// Login authenticates and persists the issued token
func (m *Manager) Login(ctx context.Context, username, password string) error {
	token, err := m.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, token); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	m.logger.Info("Session started", zap.String("username", username))
	return nil
}

// Logout forgets the stored token
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.logger.Info("Session cleared")
	return nil
}

// Token returns the current bearer token or ErrNoSession
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.store.Load(ctx)
}

// LoggedIn reports whether a token is stored
func (m *Manager) LoggedIn(ctx context.Context) bool {
	_, err := m.store.Load(ctx)
	if err != nil && !errors.Is(err, ErrNoSession) {
		m.logger.Warn("Failed to read session", zap.Error(err))
	}
	return err == nil
}
