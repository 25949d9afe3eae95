package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"treebio-api/internal/auth"
	"treebio-api/internal/cache"
	"treebio-api/internal/config"
	"treebio-api/internal/middleware"
	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
	"treebio-api/internal/store"
	"treebio-api/internal/testutil"
)

type published struct {
	channel string
	event   realtime.Event
}

// recordingBackend captures every event handed to the publisher.
type recordingBackend struct {
	mu     sync.Mutex
	err    error
	down   bool
	events []published
}

func (b *recordingBackend) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.down
}

func (b *recordingBackend) setDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

func (b *recordingBackend) Trigger(_ context.Context, channel string, evt realtime.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, published{channel: channel, event: evt})
	return nil
}

func (b *recordingBackend) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.events...)
}

func (b *recordingBackend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type testEnv struct {
	router  *gin.Engine
	deps    Deps
	backend *recordingBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	profiles := cache.New[string, *models.Profile](cache.Options{})
	views := cache.New[string, struct{}](cache.Options{})
	t.Cleanup(func() {
		profiles.Stop()
		views.Stop()
	})

	backend := &recordingBackend{}
	deps := Deps{
		Config: &config.Config{
			Environment:   config.EnvDevelopment,
			PublicBaseURL: "https://tree.bio",
			Push:          config.PushConfig{Backend: config.PushWebsocket},
			Cache:         config.CacheConfig{ProfileTTL: time.Minute, ViewWindow: time.Minute},
		},
		Store:     store.New(db),
		Publisher: realtime.NewPublisher(backend),
		Hub:       realtime.NewHub(),
		Tokens: auth.NewTokenManager(config.JWTConfig{
			Secret: "test-secret", Issuer: "treebio-api", Audience: "treebio-clients", TTL: time.Hour,
		}),
		Profiles: profiles,
		Views:    views,
	}
	return &testEnv{router: newRouter(New(deps)), deps: deps, backend: backend}
}

func newRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/l/:id", h.RedirectLink)
	r.POST("/api/register", h.Register)
	r.POST("/api/login", h.Login)
	r.GET("/api/realtime/config", h.RealtimeConfig)
	r.GET("/api/public/:username", h.GetPublicProfile)
	r.POST("/api/public/links/:id/click", h.ClickLink)

	protected := r.Group("/api", middleware.JWTAuthMiddleware(h.Tokens))
	protected.GET("/profile", h.GetProfile)
	protected.PUT("/profile", h.UpdateProfile)
	protected.POST("/links", h.CreateLink)
	protected.PUT("/links", h.UpdateLink)
	protected.DELETE("/links", h.DeleteLink)
	protected.POST("/social-links", h.CreateSocialLink)
	protected.PUT("/social-links", h.UpdateSocialLink)
	protected.DELETE("/social-links", h.DeleteSocialLink)
	protected.GET("/analytics", h.GetAnalytics)
	return r
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// register signs a user up and returns the token and user id.
func (e *testEnv) register(t *testing.T, email string) (string, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token, resp.UserID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
