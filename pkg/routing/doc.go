// Package routing decides where an authenticated caller lands after the
// agency entrypoint. The decision is a pure function of the caller's
// resolved role, the agency they belong to, and the request parameters;
// it performs no I/O and holds no state.
//
// # Overview
//
// Decide evaluates rules in a fixed order: callers with no agency are
// sent to onboarding, subaccount-level roles go to the subaccount home,
// and agency-level roles are routed by the request parameters (a plan
// selection wins over a deep-link state, which wins over the agency
// home). Anything else is unauthorized.
//
// # Related Packages
//
//   - pkg/access: produces the AuthContext whose role and agency id
//     feed Decide.
//   - pkg/api: translates Outcome values into HTTP redirects.
package routing
