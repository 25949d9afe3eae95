package client

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

	"treebio-api/internal/models"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// APIClient talks to the HTTP API on behalf of one signed-in user.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient returns an anonymous client; use WithToken after Login.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// WithToken returns a copy of c that authenticates as token.
func (c *APIClient) WithToken(token string) *APIClient {
	cp := *c
	cp.token = token
	return &cp
}

func (c *APIClient) BaseURL() string {
	return c.baseURL
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Session is the result of a successful sign-in.
type Session struct {
	Token   string          `json:"token"`
	UserID  string          `json:"userId"`
	Email   string          `json:"email"`
	Profile *models.Profile `json:"profile"`
}

// Identity returns the synchronizer identity of the session.
func (s *Session) Identity() Identity {
	return Identity{UserID: s.UserID, Token: s.Token}
}

func (c *APIClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/api/login", map[string]string{"email": email, "password": password}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *APIClient) Register(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/api/register", map[string]string{"email": email, "password": password}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RealtimeConfig is the server's push availability.
type RealtimeConfig struct {
	Enabled bool   `json:"enabled"`
	Backend string `json:"backend"`
}

func (c *APIClient) RealtimeConfig(ctx context.Context) (RealtimeConfig, error) {
	var cfg RealtimeConfig
	err := c.do(ctx, http.MethodGet, "/api/realtime/config", nil, &cfg)
	return cfg, err
}

func (c *APIClient) GetProfile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *APIClient) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, http.MethodPut, "/api/profile", upd, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *APIClient) CreateLink(ctx context.Context, in LinkFields) (*models.Link, error) {
	var l models.Link
	if err := c.do(ctx, http.MethodPost, "/api/links", in, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *APIClient) UpdateLink(ctx context.Context, link models.Link) (*models.Link, error) {
	var l models.Link
	if err := c.do(ctx, http.MethodPut, "/api/links", link, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *APIClient) DeleteLink(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/links?id="+url.QueryEscape(id), nil, nil)
}

func (c *APIClient) CreateSocialLink(ctx context.Context, in SocialLinkFields) (*models.SocialLink, error) {
	var sl models.SocialLink
	if err := c.do(ctx, http.MethodPost, "/api/social-links", in, &sl); err != nil {
		return nil, err
	}
	return &sl, nil
}

func (c *APIClient) UpdateSocialLink(ctx context.Context, in models.SocialLink) (*models.SocialLink, error) {
	var sl models.SocialLink
	if err := c.do(ctx, http.MethodPut, "/api/social-links", in, &sl); err != nil {
		return nil, err
	}
	return &sl, nil
}

func (c *APIClient) DeleteSocialLink(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/social-links?id="+url.QueryEscape(id), nil, nil)
}

var _ DataAccess = (*APIClient)(nil)
