package tenancy

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/platinummonkey/backoffice/pkg/auth"
)

// UserByEmail retrieves a user by their identity key.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	user := &User{}
	var agencyID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, avatar_url, role, agency_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.AvatarURL,
		&user.Role, &agencyID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if agencyID.Valid {
		user.AgencyID = agencyID.String
	}
	return user, nil
}

// UpsertUser creates or refreshes the caller's user row keyed by email.
// Identity fields always come from the verified principal; the role is only
// applied on first creation and defaults to SUBACCOUNT_USER.
func (s *Store) UpsertUser(ctx context.Context, p auth.Principal, role auth.Role) (*User, error) {
	if role == "" {
		role = auth.DefaultRole
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	user := &User{}
	var agencyID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, updated_at = NOW()
		RETURNING id, name, email, avatar_url, role, agency_id, created_at, updated_at
	`, id, p.FullName(), p.Email, p.AvatarURL, role).
		Scan(&user.ID, &user.Name, &user.Email, &user.AvatarURL,
			&user.Role, &agencyID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, storeErr("upsert user", err)
	}
	if agencyID.Valid {
		user.AgencyID = agencyID.String
	}
	return user, nil
}

// UpdateUser applies profile, role and membership changes to an existing
// user. Promoting a user to AGENCY_OWNER of an agency that already has
// one fails with ErrRoleConflict.
func (s *Store) UpdateUser(ctx context.Context, user *User) error {
	var agencyID interface{}
	if user.AgencyID != "" {
		agencyID = user.AgencyID
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, avatar_url = $3, role = $4, agency_id = $5, updated_at = NOW()
		WHERE email = $1
	`, user.Email, user.Name, user.AvatarURL, user.Role, agencyID)
	if err != nil {
		return storeErr("update user", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeErr("update user", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PendingInvitationByEmail retrieves the PENDING invitation addressed to
// email, if any.
func (s *Store) PendingInvitationByEmail(ctx context.Context, email string) (*Invitation, error) {
	inv := &Invitation{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, agency_id, role, status, created_at
		FROM invitations
		WHERE email = $1 AND status = 'PENDING'
	`, email).Scan(&inv.ID, &inv.Email, &inv.AgencyID, &inv.Role, &inv.Status, &inv.CreatedAt)
	if err != nil {
		return nil, storeErr("get invitation", err)
	}
	return inv, nil
}

// UpsertInvitation creates or refreshes a pending invitation. Invitations
// are keyed by email: re-inviting replaces the previous offer.
func (s *Store) UpsertInvitation(ctx context.Context, inv *Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = InvitationPending
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO invitations (id, email, agency_id, role, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET agency_id = EXCLUDED.agency_id, role = EXCLUDED.role,
		    status = EXCLUDED.status, created_at = NOW()
		RETURNING created_at
	`, inv.ID, inv.Email, inv.AgencyID, inv.Role, inv.Status).Scan(&inv.CreatedAt)
	if err != nil {
		return storeErr("upsert invitation", err)
	}
	return nil
}

// AcceptInvitation claims the principal's PENDING invitation and creates the
// membership row in one transaction. The conditional DELETE serializes
// concurrent acceptances: exactly one caller observes the row and proceeds;
// the rest get ErrNotFound and fall back to the steady-state lookup.
//
// Deletion of the invitation is the only durable marker of completion, so
// it is bound to the member write atomically. A user row that exists but
// has no agency yet (provisioned by first touch, before accepting) is
// adopted into the inviting agency. A row that is already onboarded (a
// retry after a crash between commit and response) is left as is and the
// existing membership is returned.
func (s *Store) AcceptInvitation(ctx context.Context, p auth.Principal) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin invitation acceptance", err)
	}
	defer tx.Rollback()

	var agencyID string
	var role auth.Role
	err = tx.QueryRowContext(ctx, `
		DELETE FROM invitations
		WHERE email = $1 AND status = 'PENDING'
		RETURNING agency_id, role
	`, p.Email).Scan(&agencyID, &role)
	if err != nil {
		return nil, storeErr("claim invitation", err)
	}

	// Ownership is only established at agency creation time. Rolling back
	// here preserves the invitation for correction.
	if role == auth.RoleAgencyOwner {
		return nil, ErrRoleConflict
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	// A pre-existing row without a membership (first-touch provisioning)
	// is adopted into the inviting agency. An already-onboarded row is
	// left untouched; the conditional update matches zero rows and the
	// membership is re-read after commit.
	user := &User{}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, avatar_url, role, agency_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE
		SET agency_id = EXCLUDED.agency_id, role = EXCLUDED.role, updated_at = NOW()
		WHERE users.agency_id IS NULL
		RETURNING id, name, email, avatar_url, role, agency_id, created_at, updated_at
	`, id, p.FullName(), p.Email, p.AvatarURL, role, agencyID).
		Scan(&user.ID, &user.Name, &user.Email, &user.AvatarURL,
			&user.Role, &user.AgencyID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, storeErr("create member", err)
	}
	onboarded := err == nil

	if err := commit(tx, "invitation acceptance"); err != nil {
		return nil, err
	}

	if !onboarded {
		return s.UserByEmail(ctx, p.Email)
	}
	return user, nil
}

// DeleteExpiredInvitations removes PENDING invitations older than maxAgeDays.
// Used by the janitor, never by the acceptance path.
func (s *Store) DeleteExpiredInvitations(ctx context.Context, maxAgeDays int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM invitations
		WHERE status = 'PENDING' AND created_at < NOW() - ($1 || ' days')::interval
	`, maxAgeDays)
	if err != nil {
		return 0, storeErr("delete expired invitations", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("delete expired invitations", err)
	}
	return affected, nil
}

// UserPermissions lists all permission rows held by email.
func (s *Store) UserPermissions(ctx context.Context, email string) ([]*Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, sub_account_id, access
		FROM permissions
		WHERE email = $1
	`, email)
	if err != nil {
		return nil, storeErr("list permissions", err)
	}
	defer rows.Close()

	var perms []*Permission
	for rows.Next() {
		perm := &Permission{}
		if err := rows.Scan(&perm.ID, &perm.Email, &perm.SubAccountID, &perm.Access); err != nil {
			return nil, storeErr("scan permission", err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list permissions", err)
	}
	return perms, nil
}

// UpsertPermission writes an access grant keyed by (email, sub_account_id).
// Concurrent calls for the same pair are serialized by the unique
// constraint; the last writer wins and no duplicate row is ever created.
func (s *Store) UpsertPermission(ctx context.Context, perm *Permission) error {
	if perm.ID == "" {
		perm.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO permissions (id, email, sub_account_id, access)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email, sub_account_id) DO UPDATE SET access = EXCLUDED.access
		RETURNING id
	`, perm.ID, perm.Email, perm.SubAccountID, perm.Access).Scan(&perm.ID)
	if err != nil {
		return storeErr("upsert permission", err)
	}
	return nil
}

// SetPermissionAccess flips the access flag on an existing grant.
// Idempotent, last-writer-wins.
func (s *Store) SetPermissionAccess(ctx context.Context, id string, access bool) (*Permission, error) {
	perm := &Permission{}
	err := s.db.QueryRowContext(ctx, `
		UPDATE permissions SET access = $2
		WHERE id = $1
		RETURNING id, email, sub_account_id, access
	`, id, access).Scan(&perm.ID, &perm.Email, &perm.SubAccountID, &perm.Access)
	if err != nil {
		return nil, storeErr("update permission", err)
	}
	return perm, nil
}
