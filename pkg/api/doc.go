// Package api exposes the back office over HTTP.
//
// # Overview
//
// Server wires the authorization core behind a gorilla/mux router with
// principal verification, request metrics and rate limiting. Handlers
// translate the core's error taxonomy onto HTTP status codes: unknown
// records map to 404, role conflicts to 409, caller and tenant
// reference errors to 400, and store outages to 503.
//
// # Related Packages
//
//   - pkg/access: context resolution, invitation acceptance and
//     permission mutation.
//   - pkg/tenancy: agency and subaccount management.
//   - pkg/activity: the tenant activity feed.
//   - pkg/routing: the landing decision.
package api
