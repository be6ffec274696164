package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/contextkeys"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

func TestSetAccessUpsert(t *testing.T) {
	store := membershipStore()
	var upserted *tenancy.Permission
	store.upsertPermission = func(ctx context.Context, perm *tenancy.Permission) error {
		perm.ID = "p1"
		upserted = perm
		return nil
	}
	recorder := &mockRecorder{}
	engine := NewEngine(store, recorder, nil)

	ctx := contextkeys.WithAgencyID(context.Background(), "a1")
	perm, err := engine.SetAccess(ctx, SetAccessRequest{
		GranterEmail: "user@acme.test",
		SubAccountID: "s1",
		Access:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", perm.ID)
	assert.Equal(t, upserted, perm)

	require.Len(t, recorder.requests, 1)
	assert.Equal(t, "Gave user@acme.test access to s1", recorder.requests[0].Description)
	assert.Equal(t, "a1", recorder.requests[0].AgencyID)
	assert.Equal(t, "s1", recorder.requests[0].SubAccountID)
}

func TestSetAccessUpdateByID(t *testing.T) {
	store := membershipStore()
	store.setPermissionAccess = func(ctx context.Context, id string, access bool) (*tenancy.Permission, error) {
		return &tenancy.Permission{ID: id, Email: "user@acme.test", SubAccountID: "s1", Access: access}, nil
	}
	recorder := &mockRecorder{}
	engine := NewEngine(store, recorder, nil)

	ctx := contextkeys.WithAgencyID(context.Background(), "a1")
	perm, err := engine.SetAccess(ctx, SetAccessRequest{
		PermissionID: "p1",
		GranterEmail: "user@acme.test",
		SubAccountID: "s1",
		Access:       false,
	})
	require.NoError(t, err)
	assert.False(t, perm.Access)

	require.Len(t, recorder.requests, 1)
	assert.Equal(t, "Revoked user@acme.test access to s1", recorder.requests[0].Description)
}

func TestSetAccessInvalidCaller(t *testing.T) {
	store := membershipStore()
	called := false
	store.upsertPermission = func(ctx context.Context, perm *tenancy.Permission) error {
		called = true
		return nil
	}
	recorder := &mockRecorder{}
	engine := NewEngine(store, recorder, nil)

	_, err := engine.SetAccess(context.Background(), SetAccessRequest{SubAccountID: "s1", Access: true})
	assert.ErrorIs(t, err, ErrInvalidCaller)
	assert.False(t, called)
	assert.Empty(t, recorder.requests)
}

func TestSetAccessOutsideAgencyContext(t *testing.T) {
	store := membershipStore()
	store.upsertPermission = func(ctx context.Context, perm *tenancy.Permission) error {
		perm.ID = "p1"
		return nil
	}
	recorder := &mockRecorder{}
	engine := NewEngine(store, recorder, nil)

	_, err := engine.SetAccess(context.Background(), SetAccessRequest{
		GranterEmail: "user@acme.test",
		SubAccountID: "s1",
		Access:       true,
	})
	require.NoError(t, err)
	// No agency scope on the context, so no feed entry.
	assert.Empty(t, recorder.requests)
}

func TestSetAccessStoreFailure(t *testing.T) {
	store := membershipStore()
	store.upsertPermission = func(ctx context.Context, perm *tenancy.Permission) error {
		return tenancy.ErrStoreUnavailable
	}
	recorder := &mockRecorder{}
	engine := NewEngine(store, recorder, nil)

	ctx := contextkeys.WithAgencyID(context.Background(), "a1")
	_, err := engine.SetAccess(ctx, SetAccessRequest{
		GranterEmail: "user@acme.test",
		SubAccountID: "s1",
		Access:       true,
	})
	assert.ErrorIs(t, err, tenancy.ErrStoreUnavailable)
	assert.Empty(t, recorder.requests)
}
