// Package jwt verifies, and for tests and self-hosted deployments mints, the access
// tokens a remote auth service hands out. Tokens carry the dashboard identity (uid,
// name, email, role) so a restored session can be checked without a network call.
package jwt
