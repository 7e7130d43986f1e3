package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/checker"
	"github.com/raaihank/grammar-sentinel/internal/client"
	"github.com/raaihank/grammar-sentinel/internal/config"
	"github.com/raaihank/grammar-sentinel/internal/history"
	"github.com/raaihank/grammar-sentinel/internal/logger"
	"github.com/raaihank/grammar-sentinel/internal/metrics"
	"github.com/raaihank/grammar-sentinel/internal/overlay"
	"github.com/raaihank/grammar-sentinel/internal/session"
)

// grammarService accepts admin/admin and flags "has" in every text
func grammarService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			var req client.LoginRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.Username != "admin" || req.Password != "admin" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(client.LoginResponse{Message: "Invalid credentials"})
				return
			}
			json.NewEncoder(w).Encode(client.LoginResponse{Success: true, Token: "tok-123"})
		case "/api/check-grammar":
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(client.CheckResponse{
				Success: true,
				Errors:  []overlay.Annotation{{Word: "has", Position: 2}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	server   *Server
	sessions *session.Manager
	doc      *checker.Document
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	upstream := grammarService(t)

	cfg := config.GetDefaults()
	cfg.Service.BaseURL = upstream.URL + "/api"
	cfg.Service.RateLimit = 0
	cfg.Server.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewNop()
	gc := client.New(cfg.Service, log)
	sessions := session.NewManager(session.NewMemoryStore(), gc, log)

	store, err := history.NewStore(&history.Config{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := metrics.New(nil)
	chk := checker.New(gc, sessions, log, checker.WithHistory(store, nil), checker.WithMetrics(m))
	doc := checker.NewDocument("")

	srv, err := New(cfg, log, Deps{
		Checker:  chk,
		Sessions: sessions,
		Document: doc,
		History:  store,
		Metrics:  m,
		Version:  "test",
	})
	require.NoError(t, err)
	return &fixture{server: srv, sessions: sessions, doc: doc}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	info := decode(t, f.do(t, http.MethodGet, "/info", nil))
	assert.Equal(t, "grammar-sentinel", info["name"])
	assert.Equal(t, false, info["logged_in"])
	assert.Equal(t, float64(5), info["tolerance"])
	assert.Equal(t, "rune", info["position_unit"])
}

func TestPreviewPage(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Grammar Sentinel")
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/login", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.sessions.LoggedIn(context.Background()))

	rec = f.do(t, http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.sessions.LoggedIn(context.Background()))
}

func TestCheck(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/check", map[string]string{"text": "I has a apple"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, f.sessions.Login(context.Background(), "admin", "admin"))

	rec = f.do(t, http.MethodPost, "/api/check", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/check", map[string]string{"text": "I has a apple"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp overlayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Highlights)
	assert.Equal(t, `I <span class="bg-red-200 decoration-red-500">has</span> a apple`, resp.HTML)
	assert.Equal(t, "I has a apple", overlay.Join(resp.Segments))

	t.Run("CurrentDocument", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/check", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Preview", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/preview", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp overlayResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Highlights)

		// editing invalidates the highlights until the next check
		rec = f.do(t, http.MethodPost, "/api/documents/text", map[string]string{"text": "I has a apple!"})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/api/preview", nil)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.Highlights)
		assert.Equal(t, "I has a apple!", resp.HTML)
	})

	t.Run("History", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/history?limit=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp historyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Records, 1)
		assert.Equal(t, int64(2), resp.Stats.Checks)

		rec = f.do(t, http.MethodGet, "/api/history?limit=x", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Metrics", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `grammar_sentinel_checks_total{outcome="ok"} 2`)
	})
}

func TestSetText(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/documents/text", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["version"])

	rec = f.do(t, http.MethodPost, "/api/documents/text", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	text, _ := f.doc.Snapshot()
	assert.Equal(t, "hello", text)
}

func TestOverlayEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/overlay", overlayRequest{
		Text:   "The cat sat on the mat",
		Errors: []overlay.Annotation{{Word: "the", Position: 15}, {Word: "dog", Position: 0}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp overlayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Highlights)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, overlay.SkipUnlocatable, resp.Skipped[0].Reason)

	rec = f.do(t, http.MethodPost, "/api/overlay", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Server.MaxBodyBytes = 16 })

	rec := f.do(t, http.MethodPost, "/api/overlay", overlayRequest{Text: strings.Repeat("x", 64)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Server.RateLimit.Enabled = true
		cfg.Server.RateLimit.RequestsPerMin = 1
		cfg.Server.RateLimit.Burst = 2
	})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/preview", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/preview", nil).Code)
	rec := f.do(t, http.MethodGet, "/api/preview", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// health checks are not limited
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil).Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.Len())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, rl.Cleanup(time.Millisecond))
	assert.Zero(t, rl.Len())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(config.GetDefaults(), logger.NewNop(), Deps{})
	assert.Error(t, err)
}
