package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound means the requested record does not exist. For principal
	// lookups this is a valid state, not a failure.
	ErrNotFound = errors.New("record not found")

	// ErrStoreUnavailable wraps transient database failures (connection loss,
	// timeouts). Callers may retry: reads are idempotent and the mutating
	// paths are guarded by store-level uniqueness constraints.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrRoleConflict means the operation would establish a second
	// AGENCY_OWNER for an agency, or grant ownership through invitation
	// acceptance. Never retried; it indicates a caller defect.
	ErrRoleConflict = errors.New("agency already has an owner")
)

// uniqueOwnerIndex backs the at-most-one-owner-per-agency invariant.
const uniqueOwnerIndex = "users_one_owner_per_agency"

// storeErr maps a driver error to the package taxonomy. sql.ErrNoRows
// becomes ErrNotFound; a violation of the owner index becomes
// ErrRoleConflict; everything else is wrapped as ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == uniqueOwnerIndex {
		return ErrRoleConflict
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s timed out: %v", ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%w: failed to %s: %v", ErrStoreUnavailable, op, err)
}
