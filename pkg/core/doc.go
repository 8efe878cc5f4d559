// Package core provides the fundamental types and interfaces for the funcgate package.
//
// This package contains:
//   - Callable and Resolver, the contract between the gateway and a function registry
//   - ParamSet, the three calling conventions a request can carry
//   - Map, the insertion-ordered mapping used by canonical result values
//   - Capability interfaces (Record, Buffer, Instant, Attributer) that let
//     returned types describe their own shape
//   - CallRecord and Journal, the persistence contract for the call journal
//   - Error types for lookup, binding and execution failures
//
// Most users should import the root package github.com/jdziat/funcgate
// instead of this package directly.
package core
