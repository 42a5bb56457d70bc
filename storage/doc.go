// Package storage defines the string key-value contract that local credential and
// session persistence are written against, plus three implementations of it.
//
// # Implementations
//
//   - [Memory] keeps values in process memory. Values are lost on restart.
//   - [File] keeps all keys in a single JSON document on disk and replaces the
//     document atomically on every write.
//   - [Redis] stores each key as a Redis string under a configurable prefix.
//
// # Architecture boundaries
//
// This package owns bytes-at-rest only. It does not interpret the values it stores;
// encoding of users and sessions belongs to the packages that call it.
//
// # What this package must NOT do
//
//   - Import adminAuth, session, or password (no upward imports).
//   - Retry failed operations. Failures surface once, wrapped in [ErrUnavailable].
package storage
