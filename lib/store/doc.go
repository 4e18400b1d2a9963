// Package store defines the interface for the durable key-value store
// and its unified error reporting.
//
// The package focuses on:
//   - A single interface (IStore) shared by every store implementation
//   - A structured error system using typed return codes so callers can
//     react to specific conditions (invalid input, I/O failure, corrupt
//     log, closed store) rather than generic errors
//   - Input validation helpers shared by all implementations
//
// Implementations:
//
//	The module includes two implementations of the IStore interface:
//
//	- File Store (fstore): The durable engine. It owns the in-memory
//	  index, the append-only log and the snapshot/manifest protocol.
//	  It is deliberately not safe for concurrent use; a single
//	  goroutine must own it.
//	  Available in the "github.com/ValentinKolb/kvs/lib/store/fstore" package.
//
//	- Actor Store (astore): Wraps any IStore with a dedicated owner
//	  goroutine and a multi-producer mailbox, making it safe for
//	  concurrent callers such as network handlers. This is the only
//	  supported way to share an fstore between goroutines.
//	  Available in the "github.com/ValentinKolb/kvs/lib/store/astore" package.
//
// The testing package (github.com/ValentinKolb/kvs/lib/store/testing)
// provides a standardized test suite for IStore implementations.
package store
