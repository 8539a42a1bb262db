// Package internal holds low-level generation primitives shared by the
// root package and its sub-packages.
//
// # What this package must NOT do
//
//   - Import twostep or any sibling package.
//   - Hold state; every function is a pure draw from the random source.
package internal
