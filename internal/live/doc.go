// Package live exposes objectstore collections as live, thread-affine
// collections with batched enumeration and change notifications.
//
// THREAD AFFINITY:
//
// A Connection belongs to the goroutine that opened it. Every collection,
// session, object and token reachable from it checks the calling goroutine
// and fails with a THREAD_AFFINITY_VIOLATION error when used elsewhere.
// A Connection opened on a dispatch.Queue worker is queue-bound: it
// refreshes itself on its queue after every commit to the database.
// Connections opened on plain goroutines deliver notifications when they
// commit, begin a write or call Refresh.
//
// Crossing goroutines requires a Reference: ThreadSafeReference captures a
// collection as an immutable descriptor that can only be resolved into a
// Connection on the destination goroutine.
//
// ENUMERATION:
//
// A Session iterates a collection in batches of at most BatchCapacity
// elements. Inside a write the session enumerates a snapshot. Otherwise it
// reads the live collection and registers with its connection, which
// converts it to a snapshot (detach) before the connection advances to a
// newer version, begins a write or closes. Elements already returned stay
// valid; the next batch reads the snapshot.
//
// NOTIFICATIONS:
//
// Subscribe returns a Token. Without OnQueue, or with the connection's own
// queue, the engine subscription is installed synchronously and its errors
// are returned. With another queue the token is returned first and the
// subscription is attached later on that queue, on a connection opened
// there; an attach racing with Token.Invalidate is abandoned. Attach
// failures are logged and counted, never surfaced.
//
// Callback delivery:
//   - The first delivery has nil changes unless WithInitialChanges is set.
//   - An empty change set is delivered as nil changes.
//   - A change set for a deleted root without deletions is dropped.
//   - Anything else is delivered as a ChangeSet.
package live
