// Package remote is a REST/JSON client for a hosted auth service with a profiles
// table, laid out the way Supabase-style services expose them.
//
// [Client] implements adminAuth.RemoteAuthClient and adminAuth.RemoteDirectory, so it
// plugs into adminAuth.Builder.WithRemote. Access tokens are verified locally with a
// jwt.Manager and persisted in a storage.Store once CommitSession accepts the
// grant SignIn obtained; HTTP statuses map onto the adminAuth
// error sentinels (400/401 invalid credential, 403 permission denied, 404 not found,
// 409/422 duplicate email, everything else and transport failures connectivity).
package remote
