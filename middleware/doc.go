// Package middleware exposes the HTTP session gate built on top of
// authedge.Engine.
//
// # Gate
//
//   - [Gate] — resolves the session token from cookie or header,
//     authenticates it against the engine, and binds the resulting
//     identity into the request context.
//   - [RequireIdentity] — rejects requests that reach it without an
//     identity bound by [Gate].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself. All session decisions are
// delegated to Engine.Authenticate.
//
// # What this package must NOT do
//
//   - Hash or persist session tokens (the session store handles that).
//   - Access Redis directly (Engine handles I/O).
//   - Make authorization decisions beyond authenticated or not.
package middleware
