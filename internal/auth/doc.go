// Package auth holds the dealership authorization model.
//
// This package implements:
//   - RoleRegistry: the closed, ranked set of staff roles
//   - SessionContext: the current signed-in identity, replaced wholesale on every auth event
//   - AccessGate: the single checkpoint consulted before rendering or mutating protected data
//
// Every decision made here is fail-closed. An unresolved session, a missing
// profile or an unknown role never grants access.
package auth
