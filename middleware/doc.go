// Package middleware is a net/http navigation controller for adminAuth.
//
// [Navigator] evaluates adminAuth.Gate on every request and redirects to the login
// or pending-approval page; [RequireAdmin] and [RequirePermission] return 403 for
// sessions without the needed role or section. A [Resolver] decides where the
// session comes from: [FromService] for a single-user dashboard process,
// [FromBearer] for requests carrying an access token.
//
// The package only classifies and redirects. It never changes session state.
package middleware
