package activity

import (
	"context"
	"fmt"

	"github.com/platinummonkey/backoffice/pkg/contextkeys"
)

// Recorder resolves the actor and tenant scope for a feed entry and
// appends it.
type Recorder struct {
	store *Store
}

// NewRecorder creates a recorder over store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one activity entry. The acting user is the verified
// principal on ctx when present; otherwise, for background work scoped
// to a subaccount, any member of the owning agency stands in. Returns
// ErrNoActor when neither resolves and ErrMissingTenantReference when
// the request names neither an agency nor a subaccount.
func (r *Recorder) Record(ctx context.Context, req Request) error {
	if req.AgencyID == "" && req.SubAccountID == "" {
		return ErrMissingTenantReference
	}

	var userID, actorName string
	if p, ok := contextkeys.GetPrincipal(ctx); ok && p.Email != "" {
		id, err := r.store.userIDByEmail(ctx, p.Email)
		if err != nil {
			return err
		}
		userID = id
		actorName = p.FullName()
	} else if req.SubAccountID != "" {
		id, name, err := r.store.actorForSubAccount(ctx, req.SubAccountID)
		if err != nil {
			return err
		}
		userID, actorName = id, name
	}
	if userID == "" {
		return ErrNoActor
	}

	agencyID := req.AgencyID
	if agencyID == "" {
		derived, err := r.store.agencyIDForSubAccount(ctx, req.SubAccountID)
		if err != nil {
			return err
		}
		agencyID = derived
	}

	text := req.Description
	if actorName != "" {
		text = fmt.Sprintf("%s | %s", actorName, req.Description)
	}

	return r.store.Insert(ctx, &Notification{
		Notification: text,
		UserID:       userID,
		AgencyID:     agencyID,
		SubAccountID: req.SubAccountID,
	})
}

// Feed returns the agency's activity entries, newest first.
func (r *Recorder) Feed(ctx context.Context, agencyID string, limit int) ([]*Entry, error) {
	return r.store.ListByAgency(ctx, agencyID, limit)
}
