package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxResponseBytes = 10 << 20 // 10MiB

// Config holds settings for REST platform clients.
type Config struct {
	// BaseURL is the root of the platform API, e.g. https://platform.example.com
	BaseURL string

	// HTTPClient is shared across clients created by one factory.
	// A default client with a 1 minute timeout is used when nil.
	HTTPClient *http.Client
}

// RESTClient is the JSON-over-HTTP implementation of Client. Identity state
// (session id, user id, username, settings) is guarded by a mutex so a cached
// client can be shared between request goroutines.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	sessionID string
	userID    string
	username  string
	settings  Settings
}

// NewRESTClient creates a fresh, unauthenticated platform client.
func NewRESTClient(cfg Config) *RESTClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}

	return &RESTClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		settings:   Settings{},
	}
}

// NewFactory returns a Factory producing REST clients that share one
// underlying HTTP client.
func NewFactory(cfg Config) Factory {
	return func() Client {
		return NewRESTClient(cfg)
	}
}

// identityResponse is the shape the platform returns on any authentication
// or refresh call.
type identityResponse struct {
	SessionID string `json:"sessionid"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
}

// Login authenticates with username and password.
func (c *RESTClient) Login(ctx context.Context, username, password string) error {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v1/accounts/login", nil, body, false)
	if err != nil {
		return classify(err, ErrInvalidCredentials)
	}

	var identity identityResponse
	if err := json.Unmarshal(data, &identity); err != nil {
		return fmt.Errorf("%w: malformed login response: %s", ErrConnectivity, err)
	}
	if identity.SessionID == "" {
		return fmt.Errorf("%w: login response missing session id", ErrConnectivity)
	}

	c.setIdentity(identity)
	c.mu.Lock()
	c.username = username
	c.mu.Unlock()

	return nil
}

// LoginBySessionID authenticates with an existing session token.
func (c *RESTClient) LoginBySessionID(ctx context.Context, sessionID string) error {
	body := map[string]string{
		"sessionid": sessionID,
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v1/accounts/login_by_sessionid", nil, body, false)
	if err != nil {
		return classify(err, ErrSessionInvalid)
	}

	var identity identityResponse
	if err := json.Unmarshal(data, &identity); err != nil {
		return fmt.Errorf("%w: malformed login response: %s", ErrSessionInvalid, err)
	}
	if identity.SessionID == "" {
		identity.SessionID = sessionID
	}

	c.setIdentity(identity)

	return nil
}

// Refresh pushes local settings upstream and re-derives session state. This
// is how a client constructed purely from a settings blob obtains a session.
func (c *RESTClient) Refresh(ctx context.Context) error {
	c.mu.RLock()
	body := map[string]any{
		"settings": c.settings,
	}
	c.mu.RUnlock()

	data, err := c.do(ctx, http.MethodPost, "/api/v1/accounts/refresh", nil, body, true)
	if err != nil {
		return classify(err, ErrSessionInvalid)
	}

	var identity identityResponse
	if err := json.Unmarshal(data, &identity); err != nil {
		return fmt.Errorf("%w: malformed refresh response: %s", ErrSessionInvalid, err)
	}

	c.setIdentity(identity)

	return nil
}

// TimelineFeed fetches the account's timeline feed.
func (c *RESTClient) TimelineFeed(ctx context.Context) (json.RawMessage, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/feed/timeline", nil, nil, true)
	if err != nil {
		return nil, classify(err, ErrSessionInvalid)
	}
	return data, nil
}

// HashtagMediaChunk fetches a chunk of recent media for a hashtag.
func (c *RESTClient) HashtagMediaChunk(ctx context.Context, name, maxID string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("tab_key", "recent")
	if maxID != "" {
		query.Set("max_id", maxID)
	}

	data, err := c.do(ctx, http.MethodGet, "/api/v1/hashtag/media/chunk", query, nil, true)
	if err != nil {
		return nil, classify(err, ErrSessionInvalid)
	}
	return data, nil
}

// SearchHashtags returns hashtags related to the query.
func (c *RESTClient) SearchHashtags(ctx context.Context, query string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("q", query)

	data, err := c.do(ctx, http.MethodGet, "/api/v1/hashtag/search", params, nil, true)
	if err != nil {
		return nil, classify(err, ErrSessionInvalid)
	}
	return data, nil
}

// SessionID returns the platform-issued session token.
func (c *RESTClient) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// UserID returns the authenticated account's user id.
func (c *RESTClient) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Username returns the authenticated account's username.
func (c *RESTClient) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// Settings returns a copy of the client's local settings.
func (c *RESTClient) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	settings := make(Settings, len(c.settings))
	for k, v := range c.settings {
		settings[k] = v
	}
	return settings
}

// ApplySettings replaces the client's local settings.
func (c *RESTClient) ApplySettings(settings Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
}

func (c *RESTClient) setIdentity(identity identityResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if identity.SessionID != "" {
		c.sessionID = identity.SessionID
	}
	if identity.UserID != "" {
		c.userID = identity.UserID
	}
	if identity.Username != "" {
		c.username = identity.Username
	}
}

// statusError carries a non-2xx platform response through to classify.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("platform returned HTTP %d", e.StatusCode)
}

// do performs one platform request and returns the response body.
// Transport failures and non-200 statuses come back as errors for classify.
func (c *RESTClient) do(ctx context.Context, method, path string, query url.Values, body any, authed bool) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if sessionID := c.SessionID(); sessionID != "" {
			req.Header.Set("Authorization", "Bearer "+sessionID)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	return data, nil
}

// classify maps a transport or status error onto the platform error taxonomy.
// authErr is the sentinel an authentication rejection means in the calling
// context: bad credentials during login, invalid session everywhere else.
func classify(err error, authErr error) error {
	var stErr *statusError
	if errors.As(err, &stErr) {
		switch {
		case stErr.StatusCode == http.StatusUnauthorized || stErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: HTTP %d", authErr, stErr.StatusCode)
		case stErr.StatusCode == http.StatusRequestTimeout || stErr.StatusCode == http.StatusGatewayTimeout:
			return fmt.Errorf("%w: HTTP %d", ErrTimeout, stErr.StatusCode)
		case stErr.StatusCode >= 500:
			return fmt.Errorf("%w: HTTP %d", ErrConnectivity, stErr.StatusCode)
		default:
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("%w: %s", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %s", ErrConnectivity, err)
	}

	return err
}
