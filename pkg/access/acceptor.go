package access

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/backoffice/pkg/activity"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/contextkeys"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

// Recorder appends activity feed entries. Implemented by
// *activity.Recorder.
type Recorder interface {
	Record(ctx context.Context, req activity.Request) error
}

// RoleSetter pushes role changes to the identity provider's per-user
// metadata. Implemented by the pkg/identity metadata stores.
type RoleSetter interface {
	SetRole(ctx context.Context, userID string, role auth.Role) error
}

// Acceptor converts pending invitations into tenant memberships.
type Acceptor struct {
	store    Store
	recorder Recorder
	metadata RoleSetter
	log      logrus.FieldLogger
}

// NewAcceptor creates an acceptor. recorder and metadata may be nil;
// log defaults to the standard logrus logger.
func NewAcceptor(store Store, recorder Recorder, metadata RoleSetter, log logrus.FieldLogger) *Acceptor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Acceptor{store: store, recorder: recorder, metadata: metadata, log: log}
}

// Accept claims the principal's pending invitation, if one exists, and
// returns the agency the principal now belongs to. With no pending
// invitation the caller's steady-state membership is returned instead;
// the empty string means the principal has no membership at all.
//
// Acceptance happens at most once: the invitation row is deleted in the
// same transaction that creates the membership, and a concurrent caller
// who loses the claim observes the steady state. An invitation carrying
// the owner role fails with tenancy.ErrRoleConflict and is left intact.
func (a *Acceptor) Accept(ctx context.Context, p auth.Principal) (string, error) {
	inv, err := a.store.PendingInvitationByEmail(ctx, p.Email)
	if errors.Is(err, tenancy.ErrNotFound) {
		return a.steadyState(ctx, p.Email)
	}
	if err != nil {
		return "", err
	}

	// Ownership is granted only at agency creation, never by invitation.
	if inv.Role == auth.RoleAgencyOwner {
		return "", tenancy.ErrRoleConflict
	}

	user, err := a.store.AcceptInvitation(ctx, p)
	if errors.Is(err, tenancy.ErrNotFound) {
		// Another acceptance beat us to the claim.
		return a.steadyState(ctx, p.Email)
	}
	if err != nil {
		return "", err
	}

	if a.recorder != nil {
		record := contextkeys.WithPrincipal(ctx, p)
		if err := a.recorder.Record(record, activity.Request{
			Description: "Joined",
			AgencyID:    user.AgencyID,
		}); err != nil {
			a.log.WithError(err).WithField("agency_id", user.AgencyID).
				Warn("failed to record join activity")
		}
	}

	if a.metadata != nil {
		if err := a.metadata.SetRole(ctx, user.ID, user.Role); err != nil {
			a.log.WithError(err).WithField("user_id", user.ID).
				Warn("failed to push role to identity provider")
		}
	}

	return user.AgencyID, nil
}

func (a *Acceptor) steadyState(ctx context.Context, email string) (string, error) {
	user, err := a.store.UserByEmail(ctx, email)
	if errors.Is(err, tenancy.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.AgencyID, nil
}
