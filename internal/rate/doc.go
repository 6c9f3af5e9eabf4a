// Package rate implements the Redis-backed event counter used by every
// abuse control in the service: failed-login escalation, password-reset
// request throttling, and verification-code request throttling.
//
// # Window semantics
//
// Fixed-window counters: atomic INCR + conditional EXPIRE on the first hit
// only, so a window is anchored at first-offense time and is never extended
// by later attempts. When the window lapses the key vanishes and the next
// increment behaves as the first.
//
// Key namespacing is the caller's concern; this package treats keys as
// opaque strings.
package rate
