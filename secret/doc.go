// Package secret implements user secret digests and generation.
//
// # Design
//
// Digests are deterministic unsalted MD5 in lowercase hex, chosen for
// compatibility with digests already persisted by existing user stores.
// The weakness is deliberate and documented on [Digest]; do not "fix" it
// here without a migration path for stored values.
//
// # What this package must NOT do
//
//   - Persist anything.
//   - Log or otherwise expose plaintexts passed to it.
package secret
