// Package audit relays security-relevant events (logins, registrations, role
// changes, secret changes) to pluggable sinks.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zerolog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured record with actor, target, IP, outcome, and metadata.
//
// This package never decides which events to emit, and never imports adminAuth.
package audit
