// Package authedge provides an authentication edge engine with opaque
// session tokens, Redis-backed session lifecycle, and a failed-login
// lockout controller.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authedge is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (Account, LoginResult, Identity). Session
// persistence lives in the session sub-package, fixed-window counting
// under internal/rate, and backend adapters in postgres and notify.
//
// # What this package must NOT do
//
//   - Persist a raw session token anywhere. Only the keyed hash ever
//     reaches Redis.
//   - Reveal through login errors whether an identifier exists.
//   - Perform I/O outside of Engine methods (construction via Builder
//     is allocation-only until Build).
package authedge
