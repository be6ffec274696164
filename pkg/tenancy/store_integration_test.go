//go:build integration

package tenancy

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/backoffice/pkg/auth"
)

func setupPostgres(t *testing.T, ctx context.Context) (*Store, func()) {
	t.Helper()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connString)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, Migrate(ctx, db))

	cleanup := func() {
		db.Close()
		_ = container.Terminate(ctx)
	}
	return NewStore(db, nil), cleanup
}

func TestIntegration_AgencyLifecycle(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	owner := auth.Principal{ID: "idp-1", Email: "owner@acme.test", FirstName: "Ada", LastName: "Lovelace"}
	_, err := store.UpsertUser(ctx, owner, "")
	require.NoError(t, err)

	agency := &Agency{Name: "Acme", CompanyEmail: owner.Email}
	require.NoError(t, store.UpsertAgency(ctx, agency))
	require.NotEmpty(t, agency.ID)

	t.Run("creation links the owner", func(t *testing.T) {
		user, err := store.UserByEmail(ctx, owner.Email)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAgencyOwner, user.Role)
		assert.Equal(t, agency.ID, user.AgencyID)
	})

	t.Run("creation seeds the sidebar", func(t *testing.T) {
		opts, err := store.SidebarOptionsForAgency(ctx, agency.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, opts)
	})

	t.Run("subaccount creation grants the owner access", func(t *testing.T) {
		sub := &SubAccount{AgencyID: agency.ID, Name: "North Region"}
		require.NoError(t, store.UpsertSubAccount(ctx, sub))

		perms, err := store.UserPermissions(ctx, owner.Email)
		require.NoError(t, err)
		require.Len(t, perms, 1)
		assert.Equal(t, sub.ID, perms[0].SubAccountID)
		assert.True(t, perms[0].Access)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, store.DeleteAgency(ctx, agency.ID))
		subs, err := store.SubAccountsForAgency(ctx, agency.ID)
		require.NoError(t, err)
		assert.Empty(t, subs)
	})
}

func TestIntegration_InvitationAcceptance(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	owner := auth.Principal{ID: "idp-1", Email: "owner@acme.test", FirstName: "Ada"}
	_, err := store.UpsertUser(ctx, owner, "")
	require.NoError(t, err)
	agency := &Agency{Name: "Acme", CompanyEmail: owner.Email}
	require.NoError(t, store.UpsertAgency(ctx, agency))

	t.Run("exactly one concurrent acceptance wins", func(t *testing.T) {
		invitee := auth.Principal{ID: "idp-2", Email: "grace@acme.test", FirstName: "Grace"}
		inv := &Invitation{Email: invitee.Email, AgencyID: agency.ID, Role: auth.RoleSubAccountUser}
		require.NoError(t, store.UpsertInvitation(ctx, inv))

		const attempts = 8
		var wg sync.WaitGroup
		users := make([]*User, attempts)
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				users[i], errs[i] = store.AcceptInvitation(ctx, invitee)
			}(i)
		}
		wg.Wait()

		// One goroutine claims the row; the losers see no pending
		// invitation and report ErrNotFound or converge on the
		// already-created membership.
		var claimed int
		for i := 0; i < attempts; i++ {
			if errs[i] == nil && users[i] != nil {
				claimed++
				assert.Equal(t, agency.ID, users[i].AgencyID)
				assert.Equal(t, auth.RoleSubAccountUser, users[i].Role)
			}
		}
		require.GreaterOrEqual(t, claimed, 1)

		// The invitation row is gone; deletion is the completion marker.
		_, err := store.PendingInvitationByEmail(ctx, invitee.Email)
		assert.ErrorIs(t, err, ErrNotFound)

		user, err := store.UserByEmail(ctx, invitee.Email)
		require.NoError(t, err)
		assert.Equal(t, agency.ID, user.AgencyID)
	})

	t.Run("acceptance adopts a previously provisioned user", func(t *testing.T) {
		invitee := auth.Principal{ID: "idp-4", Email: "alan@acme.test", FirstName: "Alan"}
		_, err := store.UpsertUser(ctx, invitee, "")
		require.NoError(t, err)

		inv := &Invitation{Email: invitee.Email, AgencyID: agency.ID, Role: auth.RoleSubAccountGuest}
		require.NoError(t, store.UpsertInvitation(ctx, inv))

		user, err := store.AcceptInvitation(ctx, invitee)
		require.NoError(t, err)
		assert.Equal(t, agency.ID, user.AgencyID)
		assert.Equal(t, auth.RoleSubAccountGuest, user.Role)

		_, err = store.PendingInvitationByEmail(ctx, invitee.Email)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ownership cannot be granted by invitation", func(t *testing.T) {
		invitee := auth.Principal{ID: "idp-3", Email: "mallory@acme.test"}
		inv := &Invitation{Email: invitee.Email, AgencyID: agency.ID, Role: auth.RoleAgencyOwner}
		require.NoError(t, store.UpsertInvitation(ctx, inv))

		_, err := store.AcceptInvitation(ctx, invitee)
		assert.ErrorIs(t, err, ErrRoleConflict)

		// The offer survives the rejection.
		pending, err := store.PendingInvitationByEmail(ctx, invitee.Email)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAgencyOwner, pending.Role)
	})
}

func TestIntegration_SingleOwnerConstraint(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	owner := auth.Principal{ID: "idp-1", Email: "owner@acme.test"}
	_, err := store.UpsertUser(ctx, owner, "")
	require.NoError(t, err)
	agency := &Agency{Name: "Acme", CompanyEmail: owner.Email}
	require.NoError(t, store.UpsertAgency(ctx, agency))

	// Forcing a second owner row trips the partial unique index.
	usurper := auth.Principal{ID: "idp-2", Email: "usurper@acme.test"}
	u, err := store.UpsertUser(ctx, usurper, "")
	require.NoError(t, err)

	u.Role = auth.RoleAgencyOwner
	u.AgencyID = agency.ID
	err = store.UpdateUser(ctx, u)
	assert.ErrorIs(t, err, ErrRoleConflict)
}

func TestIntegration_PermissionUpsert(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	owner := auth.Principal{ID: "idp-1", Email: "owner@acme.test"}
	_, err := store.UpsertUser(ctx, owner, "")
	require.NoError(t, err)
	agency := &Agency{Name: "Acme", CompanyEmail: owner.Email}
	require.NoError(t, store.UpsertAgency(ctx, agency))
	sub := &SubAccount{AgencyID: agency.ID, Name: "North Region"}
	require.NoError(t, store.UpsertSubAccount(ctx, sub))

	t.Run("repeat grants reuse the row", func(t *testing.T) {
		first := &Permission{Email: "grace@acme.test", SubAccountID: sub.ID, Access: true}
		require.NoError(t, store.UpsertPermission(ctx, first))

		second := &Permission{Email: "grace@acme.test", SubAccountID: sub.ID, Access: false}
		require.NoError(t, store.UpsertPermission(ctx, second))
		assert.Equal(t, first.ID, second.ID)

		perms, err := store.UserPermissions(ctx, "grace@acme.test")
		require.NoError(t, err)
		require.Len(t, perms, 1)
		assert.False(t, perms[0].Access)
	})

	t.Run("toggle by id", func(t *testing.T) {
		perms, err := store.UserPermissions(ctx, "grace@acme.test")
		require.NoError(t, err)
		require.Len(t, perms, 1)

		updated, err := store.SetPermissionAccess(ctx, perms[0].ID, true)
		require.NoError(t, err)
		assert.True(t, updated.Access)
	})
}
