// Package session persists the signed-in identity in a compact, schema-versioned
// encoding on top of a [storage.Store].
//
// # Encoding
//
// Version 2 is a binary layout of length-prefixed strings followed by a big-endian
// creation timestamp, base64-wrapped for string-valued stores. Version 1 is the
// JSON document {"id","nome","email","role"} written by earlier dashboard releases;
// it is accepted on read and rewritten as version 2.
//
// # Architecture boundaries
//
// This package does not interpret roles or decide access. The Service refreshes the
// stored session after mutations; the Store never refreshes itself.
package session
