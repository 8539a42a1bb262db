// Package twostep implements a two-step authentication engine: password
// verification followed by a single-use numeric challenge delivered
// out-of-band, ending in a signed JWT carrying identity claims.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Protocol
//
// [Engine.Identify] is Step A. It matches submitted credentials against the
// caller-provided [UserStore], creates a pending [LoginRecord], and hands the
// challenge code to the [Notifier]. [Engine.VerifyChallenge] is Step B. It
// matches the submitted code against the unconsumed record, issues a signed
// token, and consumes the record atomically so each code validates at most
// once, even under concurrent submissions.
//
// # Architecture boundaries
//
// twostep is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([UserStore], [LoginStore], [Notifier]) and
// value types. Secret digests live in the secret sub-package, token signing
// in the token sub-package, low-level generation under internal/.
//
// # What this package must NOT do
//
//   - Persist users. The [UserStore] belongs to the caller; the engine only
//     reads it, except for [Engine.Register] which delegates the insert.
//   - Return a secret digest to a client. Every User leaving the engine has
//     the digest cleared.
//   - Swallow login-store write failures. A failed consume surfaces as
//     [ErrLoginStoreUnavailable], never as a successful authentication.
package twostep
