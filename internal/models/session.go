package models

import (
	"encoding/json"
	"time"
)

// SessionRecord is one persisted platform session. The session ID is the
// opaque token issued by the platform; account detail lives in the settings
// blob. Records are append-only and removed only by logout.
type SessionRecord struct {
	SessionID string
	Settings  string // JSON blob: last_login, user_id, username

	CreatedAt time.Time

	// Optional audit metadata
	UserAgent string
	IPAddress string
}

// SessionSettings is the decoded form of the settings blob.
type SessionSettings struct {
	LastLogin float64 `json:"last_login"`
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
}

// ParseSettings decodes the settings blob. A missing or malformed blob yields
// the zero value, so recency selection treats the record as last_login 0
// instead of failing.
func (r *SessionRecord) ParseSettings() SessionSettings {
	var settings SessionSettings
	if err := json.Unmarshal([]byte(r.Settings), &settings); err != nil {
		return SessionSettings{}
	}
	return settings
}

// EncodeSettings serializes session settings into the stored blob format.
func EncodeSettings(settings SessionSettings) (string, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
