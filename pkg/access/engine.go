package access

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/backoffice/pkg/activity"
	"github.com/platinummonkey/backoffice/pkg/contextkeys"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

// SetAccessRequest describes one permission change. PermissionID is
// optional: when empty the grant is upserted by (GranterEmail,
// SubAccountID).
type SetAccessRequest struct {
	PermissionID string `json:"permissionId,omitempty"`
	GranterEmail string `json:"granterEmail"`
	SubAccountID string `json:"subAccountId"`
	Access       bool   `json:"access"`
}

// Engine is the single privileged write path for permission grants.
type Engine struct {
	store    Store
	recorder Recorder
	log      logrus.FieldLogger
}

// NewEngine creates a permission engine. recorder may be nil; log
// defaults to the standard logrus logger.
func NewEngine(store Store, recorder Recorder, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{store: store, recorder: recorder, log: log}
}

// SetAccess grants or revokes GranterEmail's access to a subaccount.
// Repeating a call is idempotent; concurrent calls for the same
// (email, subaccount) pair are serialized by the store's uniqueness
// constraint and the last writer wins.
//
// When the request context carries an agency scope, an activity entry
// describing the change is appended to that agency's feed.
func (e *Engine) SetAccess(ctx context.Context, req SetAccessRequest) (*tenancy.Permission, error) {
	if req.GranterEmail == "" {
		return nil, ErrInvalidCaller
	}

	var perm *tenancy.Permission
	var err error
	if req.PermissionID != "" {
		perm, err = e.store.SetPermissionAccess(ctx, req.PermissionID, req.Access)
	} else {
		perm = &tenancy.Permission{
			Email:        req.GranterEmail,
			SubAccountID: req.SubAccountID,
			Access:       req.Access,
		}
		err = e.store.UpsertPermission(ctx, perm)
	}
	if err != nil {
		return nil, err
	}

	if agencyID := contextkeys.GetAgencyID(ctx); agencyID != "" && e.recorder != nil {
		verb := "Gave"
		if !perm.Access {
			verb = "Revoked"
		}
		if err := e.recorder.Record(ctx, activity.Request{
			Description:  fmt.Sprintf("%s %s access to %s", verb, perm.Email, perm.SubAccountID),
			AgencyID:     agencyID,
			SubAccountID: perm.SubAccountID,
		}); err != nil {
			e.log.WithError(err).WithField("sub_account_id", perm.SubAccountID).
				Warn("failed to record permission change")
		}
	}

	return perm, nil
}
