package tenancy

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/platinummonkey/backoffice/pkg/auth"
)

// Store provides access to the tenant graph in PostgreSQL.
type Store struct {
	db       *sql.DB
	sidebars *SidebarTemplates
}

// NewStore creates a Store. templates may be nil, in which case the built-in
// sidebar defaults are used when seeding agencies and subaccounts.
func NewStore(db *sql.DB, templates *SidebarTemplates) *Store {
	if templates == nil {
		templates = DefaultSidebarTemplates()
	}
	return &Store{db: db, sidebars: templates}
}

// DB exposes the underlying handle for packages that share the schema.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpsertAgency creates or updates an agency. On first creation the agency's
// sidebar options are seeded and the user matching the company email is
// linked in as AGENCY_OWNER. This is the only path that establishes an
// owner; a user row for the company email must exist before creation, and
// ErrNotFound rolls the creation back when it does not.
func (s *Store) UpsertAgency(ctx context.Context, agency *Agency) error {
	if agency.ID == "" {
		agency.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin agency upsert", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM agencies WHERE id = $1)`, agency.ID).Scan(&exists)
	if err != nil {
		return storeErr("check agency", err)
	}

	if exists {
		err = tx.QueryRowContext(ctx, `
			UPDATE agencies
			SET name = $2, company_email = $3, white_label = $4, plan = $5,
			    agency_logo = $6, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at
		`, agency.ID, agency.Name, agency.CompanyEmail, agency.WhiteLabel,
			agency.Plan, agency.AgencyLogo).
			Scan(&agency.CreatedAt, &agency.UpdatedAt)
		if err != nil {
			return storeErr("update agency", err)
		}
		return commit(tx, "agency upsert")
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO agencies (id, name, company_email, white_label, plan, agency_logo)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, agency.ID, agency.Name, agency.CompanyEmail, agency.WhiteLabel,
		agency.Plan, agency.AgencyLogo).
		Scan(&agency.CreatedAt, &agency.UpdatedAt)
	if err != nil {
		return storeErr("create agency", err)
	}

	// Link the creating user as owner. The partial unique index rejects a
	// second owner for the same agency.
	result, err := tx.ExecContext(ctx, `
		UPDATE users SET agency_id = $1, role = $2, updated_at = NOW()
		WHERE email = $3
	`, agency.ID, auth.RoleAgencyOwner, agency.CompanyEmail)
	if err != nil {
		return storeErr("link agency owner", err)
	}
	linked, err := result.RowsAffected()
	if err != nil {
		return storeErr("link agency owner", err)
	}
	if linked == 0 {
		// An agency without an owner cannot be operated; the creating
		// user must be provisioned before the agency is created.
		return ErrNotFound
	}

	for _, opt := range s.sidebars.AgencyOptions(agency.ID) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sidebar_options (id, name, icon, link, agency_id)
			VALUES ($1, $2, $3, $4, $5)
		`, opt.ID, opt.Name, opt.Icon, opt.Link, agency.ID)
		if err != nil {
			return storeErr("seed agency sidebar", err)
		}
	}

	return commit(tx, "agency upsert")
}

// AgencyByID retrieves an agency.
func (s *Store) AgencyByID(ctx context.Context, id string) (*Agency, error) {
	agency := &Agency{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, company_email, white_label, plan, agency_logo, created_at, updated_at
		FROM agencies
		WHERE id = $1
	`, id).Scan(&agency.ID, &agency.Name, &agency.CompanyEmail, &agency.WhiteLabel,
		&agency.Plan, &agency.AgencyLogo, &agency.CreatedAt, &agency.UpdatedAt)
	if err != nil {
		return nil, storeErr("get agency", err)
	}
	return agency, nil
}

// DeleteAgency removes an agency. Subaccounts, permissions, invitations,
// notifications and sidebar options cascade at the schema level.
func (s *Store) DeleteAgency(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agencies WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete agency", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeErr("delete agency", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertSubAccount creates or updates a subaccount. Creation requires the
// owning agency to have an AGENCY_OWNER; the owner is seeded an access=true
// permission and the subaccount gets its sidebar options.
func (s *Store) UpsertSubAccount(ctx context.Context, sub *SubAccount) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	var ownerEmail string
	err := s.db.QueryRowContext(ctx, `
		SELECT email FROM users WHERE agency_id = $1 AND role = 'AGENCY_OWNER'
	`, sub.AgencyID).Scan(&ownerEmail)
	if err != nil {
		return storeErr("find agency owner", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin subaccount upsert", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sub_accounts WHERE id = $1)`, sub.ID).Scan(&exists)
	if err != nil {
		return storeErr("check subaccount", err)
	}

	if exists {
		err = tx.QueryRowContext(ctx, `
			UPDATE sub_accounts
			SET name = $2, company_email = $3, sub_account_logo = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at
		`, sub.ID, sub.Name, sub.CompanyEmail, sub.SubAccountLogo).
			Scan(&sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			return storeErr("update subaccount", err)
		}
		return commit(tx, "subaccount upsert")
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sub_accounts (id, agency_id, name, company_email, sub_account_logo)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, sub.ID, sub.AgencyID, sub.Name, sub.CompanyEmail, sub.SubAccountLogo).
		Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return storeErr("create subaccount", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO permissions (id, email, sub_account_id, access)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (email, sub_account_id) DO UPDATE SET access = true
	`, uuid.NewString(), ownerEmail, sub.ID)
	if err != nil {
		return storeErr("seed owner permission", err)
	}

	for _, opt := range s.sidebars.SubAccountOptions(sub.ID) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sidebar_options (id, name, icon, link, sub_account_id)
			VALUES ($1, $2, $3, $4, $5)
		`, opt.ID, opt.Name, opt.Icon, opt.Link, sub.ID)
		if err != nil {
			return storeErr("seed subaccount sidebar", err)
		}
	}

	return commit(tx, "subaccount upsert")
}

// SubAccountByID retrieves a subaccount.
func (s *Store) SubAccountByID(ctx context.Context, id string) (*SubAccount, error) {
	sub := &SubAccount{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, agency_id, name, company_email, sub_account_logo, created_at, updated_at
		FROM sub_accounts
		WHERE id = $1
	`, id).Scan(&sub.ID, &sub.AgencyID, &sub.Name, &sub.CompanyEmail,
		&sub.SubAccountLogo, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, storeErr("get subaccount", err)
	}
	return sub, nil
}

// SubAccountsForAgency lists an agency's subaccounts, oldest first.
func (s *Store) SubAccountsForAgency(ctx context.Context, agencyID string) ([]*SubAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agency_id, name, company_email, sub_account_logo, created_at, updated_at
		FROM sub_accounts
		WHERE agency_id = $1
		ORDER BY created_at ASC
	`, agencyID)
	if err != nil {
		return nil, storeErr("list subaccounts", err)
	}
	defer rows.Close()

	var subs []*SubAccount
	for rows.Next() {
		sub := &SubAccount{}
		if err := rows.Scan(&sub.ID, &sub.AgencyID, &sub.Name, &sub.CompanyEmail,
			&sub.SubAccountLogo, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, storeErr("scan subaccount", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list subaccounts", err)
	}
	return subs, nil
}

// SidebarOptionsForAgency lists the agency-level navigation entries.
func (s *Store) SidebarOptionsForAgency(ctx context.Context, agencyID string) ([]*SidebarOption, error) {
	return s.sidebarOptions(ctx, `agency_id`, agencyID)
}

// SidebarOptionsForSubAccount lists the subaccount-level navigation entries.
func (s *Store) SidebarOptionsForSubAccount(ctx context.Context, subAccountID string) ([]*SidebarOption, error) {
	return s.sidebarOptions(ctx, `sub_account_id`, subAccountID)
}

func (s *Store) sidebarOptions(ctx context.Context, column, id string) ([]*SidebarOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, icon, link, COALESCE(agency_id, ''), COALESCE(sub_account_id, '')
		FROM sidebar_options
		WHERE `+column+` = $1
		ORDER BY created_at ASC
	`, id)
	if err != nil {
		return nil, storeErr("list sidebar options", err)
	}
	defer rows.Close()

	var opts []*SidebarOption
	for rows.Next() {
		opt := &SidebarOption{}
		if err := rows.Scan(&opt.ID, &opt.Name, &opt.Icon, &opt.Link,
			&opt.AgencyID, &opt.SubAccountID); err != nil {
			return nil, storeErr("scan sidebar option", err)
		}
		opts = append(opts, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list sidebar options", err)
	}
	return opts, nil
}

func commit(tx *sql.Tx, op string) error {
	if err := tx.Commit(); err != nil {
		return storeErr("commit "+op, err)
	}
	return nil
}
