// Package machine defines the in-memory model for declarative state-machine
// playbooks: states, transitions, guards, invariants, forbidden transitions,
// and the playbook surrounding them (setup, steps, teardown, assertions).
//
// Values in this package are immutable after construction. The parser builds
// a Playbook once from a declarative document; every later stage reads it.
// The only sanctioned way to derive a modified machine is Clone, which
// produces a fully independent deep copy. Mutation operators in the mutate
// package rely on this: a mutant never aliases the mutable storage of the
// spec it was derived from.
//
// States are addressed by opaque StateID keys into the spec's state table
// rather than by pointers. The transition graph legitimately contains cycles
// (retry loops, self-loops), and the table representation keeps deep copies
// trivial and cycle-safe.
package machine
