// Package wal implements the append-only log file backing the store.
//
// The writer maintains its own byte counter instead of consulting the
// file system, so the auto-snapshot check on the write path costs no
// syscall. The counter is advanced by exactly the number of bytes
// handed to the OS write call; a failed write call leaves it untouched.
package wal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Durability Policy
// --------------------------------------------------------------------------

// Mode selects how appended bytes reach stable storage
type Mode int

const (
	// Flush hands bytes to the operating system after each append but
	// never forces them to the device
	Flush Mode = iota
	// FsyncAlways forces file and metadata to stable storage after
	// each append
	FsyncAlways
	// FsyncEveryN forces to stable storage on every N-th successful
	// append; the remainder is forced on Close
	FsyncEveryN
)

// Policy is a durability mode plus its parameter
type Policy struct {
	Mode Mode
	N    uint64 // only meaningful for FsyncEveryN
}

func (p Policy) String() string {
	switch p.Mode {
	case Flush:
		return "flush"
	case FsyncAlways:
		return "fsync"
	case FsyncEveryN:
		return fmt.Sprintf("fsync-every-n:%d", p.N)
	default:
		return fmt.Sprintf("Policy(%d)", p.Mode)
	}
}

// ParsePolicy parses the CLI representation of a durability policy:
// "flush", "fsync" or "fsync-every-n:N".
func ParsePolicy(s string) (Policy, error) {
	switch {
	case s == "flush":
		return Policy{Mode: Flush}, nil
	case s == "fsync":
		return Policy{Mode: FsyncAlways}, nil
	case strings.HasPrefix(s, "fsync-every-n:"):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "fsync-every-n:"), 10, 64)
		if err != nil || n == 0 {
			return Policy{}, fmt.Errorf("invalid durability %q: N must be a positive number", s)
		}
		return Policy{Mode: FsyncEveryN, N: n}, nil
	default:
		return Policy{}, fmt.Errorf("invalid durability %q: must be one of flush, fsync, fsync-every-n:N", s)
	}
}

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

// WAL is an append-only log file with a durability policy and an
// in-process byte counter.
//
// Thread-safety: a WAL must only be used by a single goroutine. The
// store serializes all access through its owning actor.
type WAL struct {
	path    string
	file    *os.File
	policy  Policy
	size    int64  // bytes appended, maintained in-process
	pending uint64 // successful appends since the last device sync

	// syncFn forces the file to the device. It is a field so tests can
	// count or fail device syncs.
	syncFn func(*os.File) error
}

// Open opens the log file at path for appending, creating it if
// missing, and initializes the byte counter from the current length.
func Open(path string, policy Policy) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	return &WAL{
		path:   path,
		file:   file,
		policy: policy,
		size:   info.Size(),
		syncFn: (*os.File).Sync,
	}, nil
}

// Append writes b to the log in a single write call and applies the
// durability policy. It returns the number of bytes written. If the
// write call fails the byte counter is left unchanged; if only the
// device sync fails, the written bytes stay counted and the sync error
// is returned.
func (w *WAL) Append(b []byte) (int, error) {
	n, err := w.file.Write(b)
	if err != nil {
		return 0, err
	}

	w.size += int64(n)

	switch w.policy.Mode {
	case FsyncAlways:
		if err := w.syncFn(w.file); err != nil {
			return n, err
		}
	case FsyncEveryN:
		w.pending++
		if w.pending >= w.policy.N {
			if err := w.syncFn(w.file); err != nil {
				return n, err
			}
			w.pending = 0
		}
	}

	return n, nil
}

// Size returns the in-process byte counter
func (w *WAL) Size() int64 {
	return w.size
}

// Path returns the file path of the log
func (w *WAL) Path() string {
	return w.path
}

// Sync unconditionally forces the log to stable storage
func (w *WAL) Sync() error {
	w.pending = 0
	return w.syncFn(w.file)
}

// Truncate cuts the log to size bytes and resets the counter. Used by
// recovery to drop a torn tail.
func (w *WAL) Truncate(size int64) error {
	if err := w.file.Truncate(size); err != nil {
		return err
	}
	w.size = size
	return nil
}

// Close forces any unsynced appends to the device (for FsyncEveryN)
// and closes the file.
func (w *WAL) Close() error {
	if w.policy.Mode == FsyncEveryN && w.pending > 0 {
		if err := w.syncFn(w.file); err != nil {
			w.file.Close()
			return err
		}
		w.pending = 0
	}
	return w.file.Close()
}
