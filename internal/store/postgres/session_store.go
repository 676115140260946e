package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/feedgate/internal/models"
	"github.com/wolfeidau/feedgate/internal/store"
)

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		pool: pool,
	}
}

// Insert appends a new session record.
func (s *SessionStore) Insert(ctx context.Context, record *models.SessionRecord) error {
	query := `
		INSERT INTO session_records (
			session_id, settings, user_agent, ip_address, created_at
		) VALUES (
			$1, $2, $3, $4::inet, $5
		)
	`

	// Convert empty IP address to nil for proper INET handling
	var ipAddress any
	if record.IPAddress != "" {
		ipAddress = record.IPAddress
	}

	_, err := s.pool.Exec(ctx, query,
		record.SessionID,
		record.Settings,
		record.UserAgent,
		ipAddress,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session record: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", record.SessionID).
		Msg("Inserted session record")

	return nil
}

// All returns every stored session record.
func (s *SessionStore) All(ctx context.Context) ([]*models.SessionRecord, error) {
	query := `
		SELECT session_id, settings, user_agent, host(ip_address), created_at
		FROM session_records
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query session records: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var records []*models.SessionRecord
	for rows.Next() {
		var record models.SessionRecord
		var ipAddress *string
		if err := rows.Scan(
			&record.SessionID,
			&record.Settings,
			&record.UserAgent,
			&ipAddress,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}

		if ipAddress != nil {
			record.IPAddress = *ipAddress
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session records: %w", mapPostgresError(err))
	}

	return records, nil
}

// Remove deletes all records matching the predicate. The predicate runs
// client-side so the contract stays uniform with the memory store; the
// session table is small enough that a scan is acceptable.
func (s *SessionStore) Remove(ctx context.Context, match store.RecordPredicate) (int, error) {
	records, err := s.All(ctx)
	if err != nil {
		return 0, err
	}

	var sessionIDs []string
	for _, record := range records {
		if match(record) {
			sessionIDs = append(sessionIDs, record.SessionID)
		}
	}

	if len(sessionIDs) == 0 {
		return 0, nil
	}

	query := `DELETE FROM session_records WHERE session_id = ANY($1)`

	result, err := s.pool.Exec(ctx, query, sessionIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session records: %w", mapPostgresError(err))
	}

	count := int(result.RowsAffected())

	log.Debug().
		Int("count", count).
		Msg("Deleted session records")

	return count, nil
}
