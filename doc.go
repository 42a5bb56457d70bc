// Package adminAuth is the authentication and role-based authorization core of the
// administrative dashboard. It registers accounts, signs users in and out, persists
// the signed-in identity across restarts, and gates every screen on an approval
// workflow: new accounts start as pending and stay locked out until an administrator
// promotes them.
//
// The same [Service] works over two interchangeable backends chosen once at startup:
// a local store on top of a [storage.Store] (memory, file, or Redis), or a remote
// auth service reached through [RemoteAuthClient] and [RemoteDirectory].
//
// # Architecture boundaries
//
// adminAuth is the public surface. It exposes [Service], [Builder], [Config], the
// [Gate] and the value types ([UserRecord], [SessionUser], [Signal]). Encoding of
// sessions lives in session/, hashing in password/, token checks in jwt/, and the
// HTTP navigation adapter in middleware/.
//
// # What this package must NOT do
//
//   - Keep process-wide mutable state. Every Service is explicitly constructed.
//   - Publish a state change before the session write it depends on has completed.
//   - Store or log plaintext secrets.
package adminAuth
