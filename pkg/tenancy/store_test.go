package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewStore(db, nil)
	return store, mock, db
}

func TestUpsertAgencyCreate(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM agencies WHERE id = \$1\)`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO agencies`).
		WithArgs("a1", "Acme Agency", "owner@acme.test", false, "basic", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`UPDATE users SET agency_id = \$1, role = \$2`).
		WithArgs("a1", "AGENCY_OWNER", "owner@acme.test").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// One insert per default agency sidebar entry.
	for range DefaultSidebarTemplates().agency {
		mock.ExpectExec(`INSERT INTO sidebar_options`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	agency := &Agency{ID: "a1", Name: "Acme Agency", CompanyEmail: "owner@acme.test", Plan: "basic"}
	err := store.UpsertAgency(context.Background(), agency)
	require.NoError(t, err)
	assert.Equal(t, now, agency.CreatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAgencyCreateWithoutUser(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM agencies WHERE id = \$1\)`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO agencies`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	// No user row carries the company email, so no owner can be linked
	// and the creation rolls back.
	mock.ExpectExec(`UPDATE users SET agency_id = \$1, role = \$2`).
		WithArgs("a1", "AGENCY_OWNER", "ghost@acme.test").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	agency := &Agency{ID: "a1", Name: "Acme Agency", CompanyEmail: "ghost@acme.test"}
	err := store.UpsertAgency(context.Background(), agency)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAgencyUpdate(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM agencies WHERE id = \$1\)`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`UPDATE agencies`).
		WithArgs("a1", "Renamed", "owner@acme.test", true, "pro", "logo.png").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	agency := &Agency{
		ID: "a1", Name: "Renamed", CompanyEmail: "owner@acme.test",
		WhiteLabel: true, Plan: "pro", AgencyLogo: "logo.png",
	}
	err := store.UpsertAgency(context.Background(), agency)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAgency(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM agencies WHERE id = \$1`).
			WithArgs("a1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.DeleteAgency(context.Background(), "a1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM agencies WHERE id = \$1`).
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.DeleteAgency(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("store failure", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM agencies WHERE id = \$1`).
			WithArgs("a1").
			WillReturnError(fmt.Errorf("connection refused"))

		err := store.DeleteAgency(context.Background(), "a1")
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpsertSubAccountCreate(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`SELECT email FROM users WHERE agency_id = \$1 AND role = 'AGENCY_OWNER'`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("owner@acme.test"))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM sub_accounts WHERE id = \$1\)`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO sub_accounts`).
		WithArgs("s1", "a1", "Store Front", "shop@acme.test", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	// The owner is seeded an access=true grant on the new subaccount.
	mock.ExpectExec(`INSERT INTO permissions`).
		WithArgs(sqlmock.AnyArg(), "owner@acme.test", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	for range DefaultSidebarTemplates().subAccount {
		mock.ExpectExec(`INSERT INTO sidebar_options`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	sub := &SubAccount{ID: "s1", AgencyID: "a1", Name: "Store Front", CompanyEmail: "shop@acme.test"}
	require.NoError(t, store.UpsertSubAccount(context.Background(), sub))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSubAccountWithoutOwner(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT email FROM users WHERE agency_id = \$1 AND role = 'AGENCY_OWNER'`).
		WithArgs("a1").
		WillReturnError(sql.ErrNoRows)

	sub := &SubAccount{ID: "s1", AgencyID: "a1", Name: "Store Front"}
	err := store.UpsertSubAccount(context.Background(), sub)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubAccountsForAgency(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "agency_id", "name", "company_email", "sub_account_logo", "created_at", "updated_at",
	}).
		AddRow("s1", "a1", "First", "", "", now, now).
		AddRow("s2", "a1", "Second", "shop@acme.test", "logo.png", now, now)

	mock.ExpectQuery(`SELECT id, agency_id, name, company_email, sub_account_logo, created_at, updated_at\s+FROM sub_accounts`).
		WithArgs("a1").
		WillReturnRows(rows)

	subs, err := store.SubAccountsForAgency(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "First", subs[0].Name)
	assert.Equal(t, "logo.png", subs[1].SubAccountLogo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreErrMapping(t *testing.T) {
	assert.ErrorIs(t, storeErr("get user", sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, storeErr("get user", context.DeadlineExceeded), ErrStoreUnavailable)
	assert.ErrorIs(t, storeErr("get user", errors.New("broken pipe")), ErrStoreUnavailable)

	ownerViolation := &pq.Error{Code: "23505", Constraint: uniqueOwnerIndex}
	assert.ErrorIs(t, storeErr("create member", ownerViolation), ErrRoleConflict)

	otherViolation := &pq.Error{Code: "23505", Constraint: "permissions_email_sub_account_id_key"}
	assert.ErrorIs(t, storeErr("upsert permission", otherViolation), ErrStoreUnavailable)
}
