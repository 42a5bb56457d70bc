// Package permission maps dashboard roles to the sections they may open.
//
// Permission names are assigned bits in a 64-bit [Mask64] by a [Registry]; a
// [RoleManager] composes one mask per role. [Dashboard] returns the built-in
// catalogue used by the root package's Permits.
//
// The package is a pure in-memory structure. It does not import the root package,
// so role names are the wire strings ("usuario", "premium", "admin").
package permission
