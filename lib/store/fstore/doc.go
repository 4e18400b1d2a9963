// Package fstore implements the durable key-value engine behind the
// store.IStore interface. It keeps the full data set in an in-memory
// index and makes it crash-safe with an append-only log that is
// periodically compacted into snapshot files.
//
// On-disk layout (all inside the data directory):
//
//	data.log / log-NNNN.log   the append-only log of Put/Del records
//	snapshot-NNNN.snap        the newest snapshot (Put records only)
//	MANIFEST                  one line "<gen>:<snapshot>:<log>"
//	*.tmp                     transient files used for atomic publication
//
// Crash consistency rests on a single primitive: POSIX rename
// atomicity. Snapshot files and the manifest are always written to a
// temp file, forced to stable storage and renamed into place, so they
// are either wholly present or absent. Only the log tail can be torn
// by a crash; recovery detects torn records structurally and truncates
// them, while corrupt interior records are fatal and refuse the open.
//
// The index is always the deterministic fold of the snapshot plus the
// intact prefix of the log. Every mutation appends its record before
// the index is updated, so on any durability boundary the persisted
// state is a prefix of the in-memory state, never the reverse.
//
// A Store is intentionally single-goroutine. There are no locks in
// this package; concurrency is provided by the actor in the astore
// package, which is the sole owner of the Store it wraps.
package fstore
