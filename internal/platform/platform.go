// Package platform models the upstream social-media platform as an opaque
// client capability. The session manager and client cache only depend on the
// Client interface; the REST implementation lives alongside it.
package platform

import (
	"context"
	"encoding/json"
	"errors"
)

// Sentinel errors for platform failure classes. Connectivity and timeout
// failures are retryable during credential login; everything else surfaces
// immediately.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrConnectivity       = errors.New("platform unreachable")
	ErrTimeout            = errors.New("platform request timed out")
	ErrSessionInvalid     = errors.New("session expired or invalid")
)

// Settings is the client-side device and session state the platform
// round-trips. It is treated as an opaque document.
type Settings map[string]any

// Client is a connection to the platform bound to at most one session.
// A fresh client is unauthenticated until Login or LoginBySessionID succeeds.
type Client interface {
	// Login authenticates with username and password.
	Login(ctx context.Context, username, password string) error

	// LoginBySessionID authenticates with a previously issued session token.
	LoginBySessionID(ctx context.Context, sessionID string) error

	// SessionID returns the platform-issued session token, empty until
	// authenticated.
	SessionID() string

	// UserID returns the authenticated account's user id.
	UserID() string

	// Username returns the authenticated account's username.
	Username() string

	// Settings returns the client's current local settings.
	Settings() Settings

	// ApplySettings replaces the client's local settings.
	ApplySettings(settings Settings)

	// Refresh pushes local settings upstream and re-derives session state.
	Refresh(ctx context.Context) error

	// TimelineFeed fetches the account's timeline feed.
	TimelineFeed(ctx context.Context) (json.RawMessage, error)

	// HashtagMediaChunk fetches a chunk of recent media for a hashtag.
	// maxID is an opaque pagination cursor, empty for the first page.
	HashtagMediaChunk(ctx context.Context, name, maxID string) (json.RawMessage, error)

	// SearchHashtags returns hashtags related to the query.
	SearchHashtags(ctx context.Context, query string) (json.RawMessage, error)
}

// Factory constructs fresh, unauthenticated clients.
type Factory func() Client
