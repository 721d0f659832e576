// Package diag aggregates network diagnostics collected from the mesh.
//
// One collection cycle sends a diagnostic get to the target node and a
// second one to the all-routers multicast group. Replies arrive
// asynchronously, in any order and in any number, and are written to a
// Store keyed by the sender's short address; a newer reply for the
// same key replaces the older one. A collection completes only on
// time: once the collection deadline has passed since the cycle was
// issued, the Gate sweeps entries older than the retention horizon and
// returns everything that remains. The Store is shared by all cycles,
// so a snapshot can include entries refreshed by another cycle.
//
// Nothing here blocks on the network. Callers poll the Engine (or use
// Wait, which polls on a ticker) until the snapshot is ready.
package diag
