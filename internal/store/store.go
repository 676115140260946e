package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/feedgate/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrNoSession = errors.New("no stored session")
)

// RecordPredicate selects session records, used by Remove.
type RecordPredicate func(*models.SessionRecord) bool

// SessionStore defines the interface for session record storage.
// Records are append-only; Remove is the only mutation after insert.
// Callers must not rely on the order returned by All for recency,
// recency comes from the last_login value inside the settings blob.
type SessionStore interface {
	// Insert appends a new session record.
	Insert(ctx context.Context, record *models.SessionRecord) error

	// All returns every stored session record.
	All(ctx context.Context) ([]*models.SessionRecord, error)

	// Remove deletes all records matching the predicate and returns the
	// number removed. Removing nothing is not an error.
	Remove(ctx context.Context, match RecordPredicate) (int, error)
}
