// Package session implements the Redis-backed session subsystem: opaque
// token generation and keyed hashing, the session record model with soft
// and hard expiry, the persistence layer with its per-account index, and
// the manager that enforces the per-account session cap.
//
// Raw session tokens exist only in transit between the service and the
// client. Every persisted key is an HMAC-SHA256 of the raw token, so a
// compromised store never yields usable credentials.
package session
