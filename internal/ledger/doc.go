// Package ledger records the blocks carved out of an allocation space.
//
// A Ledger is an append-only log of block sizes in creation order. Dropping
// a prefix (after a compaction pass retired it) only advances an index, and
// every shape-changing mutation bumps a generation counter so that a
// Snapshot can later be checked for staleness.
//
// Ledger is not safe for concurrent use; the owning space guards it with its
// structural lock and hands out Snapshots to lock-free readers.
package ledger
