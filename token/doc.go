// Package token signs and verifies the identity claims issued after a
// completed two-step authentication.
//
// # Design
//
// Tokens are JWTs via github.com/golang-jwt/jwt/v5, signed HS256 or
// Ed25519. Claims carry name, role, and email. A zero TTL omits time
// claims entirely, which makes tokens deterministic per (claims, key);
// set a TTL to get exp/iat.
//
// # What this package must NOT do
//
//   - Fetch or rotate keys; the key is fixed for the Manager lifetime.
//   - Consult any store; verification is pure signature checking.
package token
