// Package identity is the boundary to the external identity provider.
//
// # Overview
//
// The provider authenticates users; this package verifies the bearer
// tokens it issues and maps their claims to a Principal, caching
// verified principals briefly to keep token verification off the hot
// path. Identity caching never extends to permission or membership
// state, which is always read fresh from the store.
//
// Role changes are pushed back to the provider's per-user metadata
// through a MetadataStore. Pushes are best-effort: a failure is logged
// and never blocks the membership transaction that triggered it.
//
// # Related Packages
//
//   - pkg/middleware: verifies request tokens through Verifier.
//   - pkg/access: pushes role changes through MetadataStore.
package identity
