package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/activity"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

type mockRecorder struct {
	requests []activity.Request
	err      error
}

func (m *mockRecorder) Record(ctx context.Context, req activity.Request) error {
	m.requests = append(m.requests, req)
	return m.err
}

type mockRoleSetter struct {
	userID string
	role   auth.Role
	err    error
}

func (m *mockRoleSetter) SetRole(ctx context.Context, userID string, role auth.Role) error {
	m.userID = userID
	m.role = role
	return m.err
}

func invitee() auth.Principal {
	return auth.Principal{ID: "u9", Email: "invitee@acme.test", FirstName: "New", LastName: "Member"}
}

func TestAcceptPendingInvitation(t *testing.T) {
	store := membershipStore()
	store.pendingInvitationByEmail = func(ctx context.Context, email string) (*tenancy.Invitation, error) {
		return &tenancy.Invitation{
			ID: "i1", Email: email, AgencyID: "a1",
			Role: auth.RoleSubAccountUser, Status: tenancy.InvitationPending,
		}, nil
	}
	store.acceptInvitation = func(ctx context.Context, p auth.Principal) (*tenancy.User, error) {
		return &tenancy.User{ID: p.ID, Email: p.Email, Role: auth.RoleSubAccountUser, AgencyID: "a1"}, nil
	}
	recorder := &mockRecorder{}
	metadata := &mockRoleSetter{}
	acceptor := NewAcceptor(store, recorder, metadata, nil)

	agencyID, err := acceptor.Accept(context.Background(), invitee())
	require.NoError(t, err)
	assert.Equal(t, "a1", agencyID)

	require.Len(t, recorder.requests, 1)
	assert.Equal(t, "Joined", recorder.requests[0].Description)
	assert.Equal(t, "a1", recorder.requests[0].AgencyID)

	assert.Equal(t, "u9", metadata.userID)
	assert.Equal(t, auth.RoleSubAccountUser, metadata.role)
}

func TestAcceptNoPendingInvitation(t *testing.T) {
	t.Run("existing member returns steady state", func(t *testing.T) {
		store := membershipStore()
		store.pendingInvitationByEmail = func(ctx context.Context, email string) (*tenancy.Invitation, error) {
			return nil, tenancy.ErrNotFound
		}
		acceptor := NewAcceptor(store, nil, nil, nil)

		agencyID, err := acceptor.Accept(context.Background(), invitee())
		require.NoError(t, err)
		assert.Equal(t, "a1", agencyID)
	})

	t.Run("unknown principal returns no membership", func(t *testing.T) {
		store := membershipStore()
		store.pendingInvitationByEmail = func(ctx context.Context, email string) (*tenancy.Invitation, error) {
			return nil, tenancy.ErrNotFound
		}
		store.userByEmail = func(ctx context.Context, email string) (*tenancy.User, error) {
			return nil, tenancy.ErrNotFound
		}
		acceptor := NewAcceptor(store, nil, nil, nil)

		agencyID, err := acceptor.Accept(context.Background(), invitee())
		require.NoError(t, err)
		assert.Empty(t, agencyID)
	})
}

func TestAcceptOwnerInvitationRejected(t *testing.T) {
	store := membershipStore()
	store.pendingInvitationByEmail = func(ctx context.Context, email string) (*tenancy.Invitation, error) {
		return &tenancy.Invitation{ID: "i1", Email: email, AgencyID: "a1", Role: auth.RoleAgencyOwner}, nil
	}
	recorder := &mockRecorder{}
	acceptor := NewAcceptor(store, recorder, nil, nil)

	_, err := acceptor.Accept(context.Background(), invitee())
	assert.ErrorIs(t, err, tenancy.ErrRoleConflict)
	assert.Empty(t, recorder.requests)
}

func TestAcceptLostRaceFallsBackToSteadyState(t *testing.T) {
	store := membershipStore()
	store.pendingInvitationByEmail = func(ctx context.Context, email string) (*tenancy.Invitation, error) {
		return &tenancy.Invitation{ID: "i1", Email: email, AgencyID: "a1", Role: auth.RoleSubAccountUser}, nil
	}
	store.acceptInvitation = func(ctx context.Context, p auth.Principal) (*tenancy.User, error) {
		return nil, tenancy.ErrNotFound
	}
	store.userByEmail = func(ctx context.Context, email string) (*tenancy.User, error) {
		return &tenancy.User{ID: "u9", Email: email, Role: auth.RoleSubAccountUser, AgencyID: "a1"}, nil
	}
	recorder := &mockRecorder{}
	acceptor := NewAcceptor(store, recorder, nil, nil)

	agencyID, err := acceptor.Accept(context.Background(), invitee())
	require.NoError(t, err)
	assert.Equal(t, "a1", agencyID)
	// The winner records the join, not the loser.
	assert.Empty(t, recorder.requests)
}

func TestAcceptSideEffectFailuresAreNonFatal(t *testing.T) {
	store := membershipStore()
	store.pendingInvitationByEmail = func(ctx context.Context, email string) (*tenancy.Invitation, error) {
		return &tenancy.Invitation{ID: "i1", Email: email, AgencyID: "a1", Role: auth.RoleSubAccountUser}, nil
	}
	store.acceptInvitation = func(ctx context.Context, p auth.Principal) (*tenancy.User, error) {
		return &tenancy.User{ID: p.ID, Email: p.Email, Role: auth.RoleSubAccountUser, AgencyID: "a1"}, nil
	}
	recorder := &mockRecorder{err: activity.ErrNoActor}
	metadata := &mockRoleSetter{err: context.DeadlineExceeded}
	acceptor := NewAcceptor(store, recorder, metadata, nil)

	agencyID, err := acceptor.Accept(context.Background(), invitee())
	require.NoError(t, err)
	assert.Equal(t, "a1", agencyID)
}
