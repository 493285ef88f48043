// Package authflow owns the client side of an authentication session:
// acquiring a token through the credential wizard, persisting it across
// restarts, revalidating it against the backend, and tearing it down on
// logout.
//
// Session lifecycle:
//   - SessionController is the single owner of the in-memory session. It has
//     three logical states (unresolved, anonymous, authenticated) and funnels
//     every mutation through Login, Logout, Restore, and Refresh. The
//     persisted stores are strictly write-through caches; nothing else in an
//     application should read them directly.
//   - Revalidator turns user-attention signals (tab visible, window focused)
//     into a best-effort Refresh plus a page epoch bump, so session freshness
//     and screen data freshness stay independent concerns.
//
// Credential wizard:
//   - CredentialFlow walks one of several mutually exclusive verification
//     paths (login, signup, email verification, forgot/reset password, 2FA)
//     against the backend API. Views form an explicit transition graph;
//     moving between views wipes the departing view's transient state.
//
// Event sinks:
//   - EventSink is a light-weight audit emitter describing login, logout,
//     restore, and refresh outcomes. Sinks run best-effort (errors are
//     logged) so you can forward events to a queue or store without blocking
//     the session path.
package authflow
