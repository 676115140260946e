// Package session orchestrates the platform session lifecycle: credential
// login with bounded retry, session persistence, most-recent-session
// selection, and rehydration of cached clients.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/feedgate/internal/clients"
	"github.com/wolfeidau/feedgate/internal/httputil"
	"github.com/wolfeidau/feedgate/internal/models"
	"github.com/wolfeidau/feedgate/internal/platform"
	"github.com/wolfeidau/feedgate/internal/store"
	"github.com/wolfeidau/feedgate/internal/telemetry"
)

// Config holds tunables for the credential login retry loop.
type Config struct {
	// LoginTimeout bounds each individual login attempt.
	// Default: 30s
	LoginTimeout time.Duration

	// LoginRetryWait is the fixed wait between retried attempts.
	// Default: 1s
	LoginRetryWait time.Duration

	// LoginMaxTries is the total number of attempts, including the first.
	// Default: 3
	LoginMaxTries uint
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.LoginTimeout == 0 {
		c.LoginTimeout = 30 * time.Second
	}
	if c.LoginRetryWait == 0 {
		c.LoginRetryWait = time.Second
	}
	if c.LoginMaxTries == 0 {
		c.LoginMaxTries = 3
	}
}

// Manager is the session manager. It owns the rules for when a session
// record is created, how the current session is selected, and how live
// clients are obtained for account operations.
type Manager struct {
	store   store.SessionStore
	clients *clients.Cache
	cfg     Config
}

// NewManager creates a session manager over the given store and client cache.
func NewManager(st store.SessionStore, cache *clients.Cache, cfg Config) *Manager {
	cfg.ApplyDefaults()

	return &Manager{
		store:   st,
		clients: cache,
		cfg:     cfg,
	}
}

// Login authenticates with username and password. Connectivity and timeout
// failures are retried up to the configured bound with a fixed wait between
// attempts; any other failure surfaces immediately. On success the session
// is persisted and the authenticated client seeded into the cache.
func (m *Manager) Login(ctx context.Context, username, password string) (string, error) {
	metrics := telemetry.GetMetrics()

	client, err := backoff.Retry(ctx, func() (platform.Client, error) {
		metrics.LoginAttemptsTotal.Add(ctx, 1)

		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.LoginTimeout)
		defer cancel()

		client := m.clients.NewClient()
		err := client.Login(attemptCtx, username, password)
		if err == nil {
			return client, nil
		}

		if errors.Is(err, platform.ErrConnectivity) || errors.Is(err, platform.ErrTimeout) {
			metrics.LoginRetriesTotal.Add(ctx, 1)
			zerolog.Ctx(ctx).Warn().Err(err).Str("username", username).Msg("Retryable login failure")
			return nil, err
		}

		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.cfg.LoginRetryWait)),
		backoff.WithMaxTries(m.cfg.LoginMaxTries),
	)
	if err != nil {
		metrics.LoginFailuresTotal.Add(ctx, 1)
		return "", err
	}

	return m.persistSession(ctx, client, username)
}

// LoginBySessionID authenticates with an existing session token. No retry;
// a rejected token surfaces as platform.ErrSessionInvalid. Success persists
// a new session record and seeds the cache.
func (m *Manager) LoginBySessionID(ctx context.Context, sessionID string) (string, error) {
	client := m.clients.NewClient()
	if err := client.LoginBySessionID(ctx, sessionID); err != nil {
		telemetry.GetMetrics().LoginFailuresTotal.Add(ctx, 1)
		return "", err
	}

	return m.persistSession(ctx, client, client.Username())
}

// Logout removes all session records for sessionID and evicts any cached
// client for it. Idempotent, removing a non-existent id is not an error.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	removed, err := m.store.Remove(ctx, func(record *models.SessionRecord) bool {
		return record.SessionID == sessionID
	})
	if err != nil {
		return fmt.Errorf("failed to remove session records: %w", err)
	}

	m.clients.Evict(sessionID)

	if removed > 0 {
		telemetry.GetMetrics().SessionsRemovedTotal.Add(ctx, int64(removed))
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Int("removed", removed).
		Msg("Logged out session")

	return nil
}

// ResolveClient returns the live client for sessionID, falling back to the
// most recently used stored session when sessionID is empty. Returns
// store.ErrNoSession when no explicit id is given and the store is empty.
func (m *Manager) ResolveClient(ctx context.Context, sessionID string) (platform.Client, error) {
	if sessionID != "" {
		return m.clients.Get(ctx, sessionID)
	}

	records, err := m.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}
	if len(records) == 0 {
		return nil, store.ErrNoSession
	}

	// Store order is not recency order, compare last_login explicitly.
	// Malformed settings parse to last_login 0 so they only win when
	// nothing better exists. Ties keep the first record encountered.
	best := records[0]
	bestLastLogin := best.ParseSettings().LastLogin
	for _, record := range records[1:] {
		if lastLogin := record.ParseSettings().LastLogin; lastLogin > bestLastLogin {
			best = record
			bestLastLogin = lastLogin
		}
	}

	if best.SessionID == "" {
		return nil, store.ErrNoSession
	}

	return m.clients.Get(ctx, best.SessionID)
}

// GetSettings returns the settings of the cached client for sessionID,
// rehydrating it if necessary.
func (m *Manager) GetSettings(ctx context.Context, sessionID string) (platform.Settings, error) {
	client, err := m.clients.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return client.Settings(), nil
}

// SetSettings applies a settings blob to a client, refreshes it upstream and
// stores the client in the cache under its resulting session id. An empty
// sessionID applies the settings to a fresh client. The session store is not
// touched either way.
func (m *Manager) SetSettings(ctx context.Context, sessionID string, settings platform.Settings) (string, error) {
	var client platform.Client
	if sessionID == "" {
		client = m.clients.NewClient()
	} else {
		var err error
		client, err = m.clients.Get(ctx, sessionID)
		if err != nil {
			return "", err
		}
	}

	client.ApplySettings(settings)
	if err := client.Refresh(ctx); err != nil {
		return "", err
	}

	m.clients.Set(client)

	return client.SessionID(), nil
}

// TimelineFeed fetches the timeline feed for the resolved session.
func (m *Manager) TimelineFeed(ctx context.Context, sessionID string) (json.RawMessage, error) {
	client, err := m.ResolveClient(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return client.TimelineFeed(ctx)
}

// HashtagMediaChunk fetches recent media for a hashtag using the most recent
// stored session. A leading # on the name is stripped.
func (m *Manager) HashtagMediaChunk(ctx context.Context, name, maxID string) (json.RawMessage, error) {
	client, err := m.ResolveClient(ctx, "")
	if err != nil {
		return nil, err
	}
	return client.HashtagMediaChunk(ctx, strings.TrimLeft(name, "#"), maxID)
}

// SearchHashtags returns hashtags related to the query using the most recent
// stored session. A leading # on the query is stripped.
func (m *Manager) SearchHashtags(ctx context.Context, query string) (json.RawMessage, error) {
	client, err := m.ResolveClient(ctx, "")
	if err != nil {
		return nil, err
	}
	return client.SearchHashtags(ctx, strings.TrimLeft(query, "#"))
}

// persistSession writes a session record for the authenticated client and
// seeds the client cache.
func (m *Manager) persistSession(ctx context.Context, client platform.Client, username string) (string, error) {
	now := time.Now()

	settings, err := models.EncodeSettings(models.SessionSettings{
		LastLogin: float64(now.UnixMilli()) / 1000.0,
		UserID:    client.UserID(),
		Username:  username,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode session settings: %w", err)
	}

	record := &models.SessionRecord{
		SessionID: client.SessionID(),
		Settings:  settings,
		CreatedAt: now,
		UserAgent: httputil.UserAgentFromContext(ctx),
		IPAddress: httputil.ClientIPFromContext(ctx),
	}

	if err := m.store.Insert(ctx, record); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	m.clients.Set(client)

	telemetry.GetMetrics().SessionsCreatedTotal.Add(ctx, 1)
	zerolog.Ctx(ctx).Info().
		Str("session_id", record.SessionID).
		Str("username", username).
		Msg("Session created")

	return client.SessionID(), nil
}
