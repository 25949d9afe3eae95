package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"treebio-api/internal/auth"
	"treebio-api/internal/cache"
	"treebio-api/internal/config"
	"treebio-api/internal/handlers"
	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
	"treebio-api/internal/store"
	"treebio-api/internal/testutil"
)

func newDeps(t *testing.T, pushEnabled bool) handlers.Deps {
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

	cfg := &config.Config{
		Environment: config.EnvDevelopment,
		Cache:       config.CacheConfig{ProfileTTL: time.Minute, ViewWindow: time.Minute},
	}
	hub := realtime.NewHub()
	var backend realtime.Backend
	if pushEnabled {
		cfg.Push.Backend = config.PushWebsocket
		backend = realtime.NewHubBackend(hub)
	}
	return handlers.Deps{
		Config:    cfg,
		Store:     store.New(db),
		Publisher: realtime.NewPublisher(backend),
		Hub:       hub,
		Tokens: auth.NewTokenManager(config.JWTConfig{
			Secret: "test-secret", Issuer: "treebio-api", Audience: "treebio-clients", TTL: time.Hour,
		}),
		Profiles: profiles,
		Views:    views,
	}
}

func TestHealth(t *testing.T) {
	r := SetupRoutes(newDeps(t, true))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := SetupRoutes(newDeps(t, true))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/links", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func register(t *testing.T, baseURL, email string) handlers.LoginResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": "password123"})
	resp, err := http.Post(baseURL+"/api/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out handlers.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func dial(t *testing.T, baseURL, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/ws"
	if token != "" {
		u += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := readFrame(t, conn)
	require.Equal(t, realtime.FrameConnected, f.Type)
	require.NotEmpty(t, f.SocketID)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) realtime.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f realtime.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	srv := httptest.NewServer(SetupRoutes(newDeps(t, true)))
	defer srv.Close()

	ada := register(t, srv.URL, "ada@example.com")
	conn := dial(t, srv.URL, ada.Token)

	require.NoError(t, conn.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribe, Channel: realtime.UserChannel("someone-else")}))
	f := readFrame(t, conn)
	require.Equal(t, realtime.FrameError, f.Type)
	require.Equal(t, "forbidden", f.Error)

	require.NoError(t, conn.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribe, Channel: realtime.UserChannel(ada.UserID)}))
	f = readFrame(t, conn)
	require.Equal(t, realtime.FrameSubscribed, f.Type)

	body, _ := json.Marshal(map[string]string{"title": "Blog", "url": "https://blog.example.com"})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/links", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ada.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	f = readFrame(t, conn)
	require.Equal(t, realtime.FrameEvent, f.Type)
	require.Equal(t, realtime.UserChannel(ada.UserID), f.Channel)
	require.Equal(t, realtime.LinkAdded, f.Event.Kind)
	require.Equal(t, "Blog", f.Event.Payload.Link.Title)
}

func TestWebSocket_AnonymousPublicOnly(t *testing.T) {
	srv := httptest.NewServer(SetupRoutes(newDeps(t, true)))
	defer srv.Close()

	conn := dial(t, srv.URL, "")
	require.NoError(t, conn.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribe, Channel: realtime.PublicChannel("ada")}))
	require.Equal(t, realtime.FrameSubscribed, readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribe, Channel: realtime.UserChannel("u1")}))
	require.Equal(t, realtime.FrameError, readFrame(t, conn).Type)
}

func TestWebSocket_UnavailableWithoutPush(t *testing.T) {
	r := SetupRoutes(newDeps(t, false))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/realtime/config", nil))
	require.Contains(t, w.Body.String(), `"enabled":false`)
}
