// Package middleware provides HTTP middleware for the back office API:
// principal verification, request metrics, and rate limiting (in-memory
// or Redis-backed for multi-instance deployments).
package middleware
