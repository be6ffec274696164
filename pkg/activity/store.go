package activity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

// Store persists and reads notification rows. It shares the database
// with the tenancy store but only ever appends to notifications.
type Store struct {
	db *sql.DB
}

// NewStore creates an activity store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert appends one notification row. The caller has already resolved
// the actor and agency scope.
func (s *Store) Insert(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	var subAccountID interface{}
	if n.SubAccountID != "" {
		subAccountID = n.SubAccountID
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (id, notification, user_id, agency_id, sub_account_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, n.ID, n.Notification, n.UserID, n.AgencyID, subAccountID).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to insert notification: %v", tenancy.ErrStoreUnavailable, err)
	}
	return nil
}

// ListByAgency returns the agency's feed entries newest first, each with
// its actor joined in. limit <= 0 means no limit.
func (s *Store) ListByAgency(ctx context.Context, agencyID string, limit int) ([]*Entry, error) {
	query := `
		SELECT n.id, n.notification, n.user_id, n.agency_id, n.sub_account_id, n.created_at,
		       u.id, u.name, u.email, u.avatar_url
		FROM notifications n
		JOIN users u ON u.id = n.user_id
		WHERE n.agency_id = $1
		ORDER BY n.created_at DESC
	`
	args := []interface{}{agencyID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list notifications: %v", tenancy.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var subAccountID sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.Notification.Notification, &entry.UserID,
			&entry.AgencyID, &subAccountID, &entry.CreatedAt,
			&entry.User.ID, &entry.User.Name, &entry.User.Email, &entry.User.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan notification: %v", tenancy.ErrStoreUnavailable, err)
		}
		if subAccountID.Valid {
			entry.SubAccountID = subAccountID.String
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list notifications: %v", tenancy.ErrStoreUnavailable, err)
	}
	return entries, nil
}

// DeleteOlderThan removes notification rows older than retentionDays.
// Used by the janitor to bound feed growth.
func (s *Store) DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE created_at < NOW() - ($1 || ' days')::interval
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prune notifications: %v", tenancy.ErrStoreUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prune notifications: %v", tenancy.ErrStoreUnavailable, err)
	}
	return affected, nil
}

// actorForSubAccount finds any member of the agency owning subAccountID.
// Used when no principal is on the request, for background work.
func (s *Store) actorForSubAccount(ctx context.Context, subAccountID string) (id, name string, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT u.id, u.name
		FROM users u
		JOIN sub_accounts sa ON sa.agency_id = u.agency_id
		WHERE sa.id = $1
		LIMIT 1
	`, subAccountID).Scan(&id, &name)
	if err == sql.ErrNoRows {
		return "", "", ErrNoActor
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to resolve actor: %v", tenancy.ErrStoreUnavailable, err)
	}
	return id, name, nil
}

// userIDByEmail resolves a principal email to its user row id.
func (s *Store) userIDByEmail(ctx context.Context, email string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", ErrNoActor
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to resolve actor: %v", tenancy.ErrStoreUnavailable, err)
	}
	return userID, nil
}

// agencyIDForSubAccount resolves the agency owning subAccountID.
func (s *Store) agencyIDForSubAccount(ctx context.Context, subAccountID string) (string, error) {
	var agencyID string
	err := s.db.QueryRowContext(ctx, `
		SELECT agency_id FROM sub_accounts WHERE id = $1
	`, subAccountID).Scan(&agencyID)
	if err == sql.ErrNoRows {
		return "", tenancy.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to resolve agency: %v", tenancy.ErrStoreUnavailable, err)
	}
	return agencyID, nil
}
