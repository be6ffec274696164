// Package access implements the authorization core of the back office:
// resolving a verified principal into their effective tenant view,
// converting pending invitations into memberships, and mutating
// per-subaccount permission grants.
//
// # Overview
//
// The Resolver loads the caller's user row and fans out to the agency,
// its subaccounts, sidebar options and permission grants, producing an
// AuthContext the presentation layer renders from. Resolution always
// reads current permission state so a caller sees their own grant
// changes immediately.
//
// The Acceptor claims a pending invitation exactly once. The store
// serializes concurrent acceptances; losers fall back to the caller's
// steady-state membership. Ownership is never granted through an
// invitation.
//
// The Engine is the single privileged write path for permission grants,
// upserting by (email, subaccount) and recording an activity entry when
// invoked in an agency context.
//
// # Related Packages
//
//   - pkg/tenancy: the backing entity store.
//   - pkg/activity: feed entries for joins and grant changes.
//   - pkg/identity: role metadata pushed to the identity provider.
//   - pkg/routing: consumes the resolved role and agency id.
package access
