// Package auth provides pluggable authentication for entfalten.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from engine
// logic. The middleware injects the caller identity into the request
// context; the engine consults the identity's role for policy decisions
// (token-budget clamping, model tier access).
package auth
