// Package password hashes and verifies account secrets with argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads cost parameters from the stored string, so raising the
// configured cost never locks out existing accounts. [Argon2.NeedsUpgrade] tells the
// caller when a stored hash should be replaced on the next write.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets. Callers supply plaintext and receive hashes.
//   - Import any other adminAuth package.
//   - Log plaintext secrets.
package password
