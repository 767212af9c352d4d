// Package idempotency provides the claim store that guarantees each
// (entity, recipient, kind) notification is produced at most once. The only
// correctness-critical primitive is Claim: an atomic create-if-absent on the
// composite key. Backends: Postgres (unique-constraint insert), Redis
// (SETNX), and an in-memory store for tests.
package idempotency

import "context"

// Store maps composite keys to produced markers.
type Store interface {
	// Claim atomically inserts the key if absent. It returns true when the
	// caller won the claim and may proceed to generate and deliver; false
	// means the key already exists and the caller must skip. A false return
	// is a normal outcome, not an error.
	Claim(ctx context.Context, key string) (bool, error)

	// HasClaimed reports whether the key exists without mutating the store.
	HasClaimed(ctx context.Context, key string) (bool, error)
}
