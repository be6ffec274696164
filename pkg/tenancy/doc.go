// Package tenancy provides the persistent tenant graph for the back office:
// agencies, their subaccounts, users with roles, per-subaccount access
// grants, and pending invitations.
//
// # Overview
//
// The Store wraps a PostgreSQL database (database/sql + lib/pq) and exposes
// the relational operations the access subsystem needs: point lookups by
// unique key, ON CONFLICT upserts, cascading deletes and ordered scans.
//
// Concurrency discipline is store-level, never in-process, because multiple
// service instances run against the same database:
//
//   - users.email is UNIQUE, so membership creation retries are no-ops
//   - a partial unique index keeps at most one AGENCY_OWNER per agency
//   - permissions are UNIQUE on (email, sub_account_id) and upserted
//   - invitation acceptance claims the row with a conditional DELETE inside
//     the membership transaction, so exactly one concurrent acceptance wins
//
// The activity feed table (notifications) is part of this schema but is
// written through pkg/activity, which treats it as append-only.
//
// # Related Packages
//
//   - pkg/access: business logic layered on the Store
//   - pkg/activity: append-only activity log over the notifications table
package tenancy
