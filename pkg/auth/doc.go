// Package auth defines the identity primitives shared across the back
// office: tenant roles and the verified principal handed to us by the
// identity provider.
//
// Roles form a closed enumeration. Agency-level roles (AGENCY_OWNER,
// AGENCY_ADMIN) manage the agency and everything under it; subaccount-level
// roles (SUBACCOUNT_USER, SUBACCOUNT_GUEST) only ever see subaccounts they
// hold an explicit access grant for.
//
// # Related Packages
//
//   - pkg/tenancy: entity records and persistence
//   - pkg/access: context resolution, invitation acceptance, permission mutation
//   - pkg/routing: role-gated navigation decisions
//   - pkg/identity: the identity-provider boundary that produces Principals
package auth
