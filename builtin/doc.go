// Package builtin provides ready-made security components for the registry:
// a JWT bearer-token validator, a token-bucket rate limiter, a per-source
// threat monitor, and a hash-chained audit log. RegisterAll wires them up
// with their dependency graph and bootstrap priorities.
//
// The registry knows nothing of these types; they are ordinary factories
// behind the registry.Factory contract, and callers retrieve them with a
// type assertion on registry.Get.
package builtin
