// Package rate throttles failed logins with Redis fixed-window counters.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit. Key prefixes, after the configured prefix:
//   - al:  login failures per email, case-folded
//   - ali: login failures per client IP
//
// A successful login deletes both counters.
package rate
