// Package activity records the append-only tenant activity feed.
//
// # Overview
//
// Every mutating operation in the back office leaves a notification row
// describing who did what, scoped to an agency and optionally to one of
// its subaccounts. The Recorder resolves the acting user (the verified
// principal from the request context, or a member of the owning agency
// for background work) and derives the agency from the subaccount when
// only the subaccount is known. Entries are never updated or deleted by
// this package; readers always see them newest first.
//
// # Related Packages
//
//   - pkg/access: writes entries on invitation acceptance and
//     permission changes.
//   - pkg/contextkeys: source of the verified principal.
//   - pkg/tenancy: owns the notifications table schema.
package activity
