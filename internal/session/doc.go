// Package session holds durable conversation state for the gateway.
//
// # Model
//
// A Session is keyed by (business, customer phone) and moves through the
// ordering states until it reaches a terminal state (completed, cancelled,
// expired). It carries the cart, the choices last presented for selection,
// and a bounded dedupe window of recently processed inbound message IDs
// with the replies they produced.
//
// # Concurrency contract
//
// The session is the only shared mutable state in the webhook pipeline.
// Callers serialize transitions per key by holding the store's lease, and
// every save is guarded by the version the session was loaded with:
//
//	release, err := store.Acquire(ctx, key, leaseTimeout)
//	if err != nil { ... }            // ErrLeaseTimeout: rely on redelivery
//	defer release()
//	sess, err := store.Load(ctx, key)
//	...
//	err = store.Save(ctx, sess, loadedVersion) // ErrVersionConflict: reload
//
// Idle expiry is lazy: stores return stale sessions as-is and callers
// treat anything idle past the configured window as expired, writing the
// expired state back before starting a fresh session for the same key.
// No sweeper goroutine runs.
package session
