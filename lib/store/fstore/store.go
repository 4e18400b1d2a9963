package fstore

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ValentinKolb/kvs/lib/logger"
	"github.com/ValentinKolb/kvs/lib/record"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/util"
	"github.com/ValentinKolb/kvs/lib/wal"
)

var Logger = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// DefaultLogPath is used when no log path is configured
const DefaultLogPath = "data.log"

// Config configures the file store
type Config struct {
	// LogPath is the path of the initial log file. Its directory is
	// the data directory holding all snapshots and the manifest.
	LogPath string
	// Durability selects when appended bytes reach stable storage
	Durability wal.Policy
	// MaxLogSize triggers an automatic snapshot once the log reaches
	// this many bytes. Zero disables auto-snapshotting.
	MaxLogSize int64
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store is the durable key-value engine: an in-memory index backed by
// an append-only log, compacted into snapshot files.
//
// Thread-safety: a Store must only ever be used by a single goroutine.
// Wrap it in an astore.Store to share it between concurrent callers.
type Store struct {
	cfg   Config
	dir   string
	index map[string][]byte
	log   *wal.WAL

	gen      uint64
	snapName string // current snapshot file, relative to dir ("" if none)
	logName  string // current log file, relative to dir

	closed bool
}

// Open opens (or creates) the store whose state lives in the directory
// of cfg.LogPath and rebuilds the index from the newest snapshot and
// the log.
func Open(cfg Config) (*Store, error) {
	if cfg.LogPath == "" {
		cfg.LogPath = DefaultLogPath
	}

	s := &Store{
		cfg:   cfg,
		dir:   filepath.Dir(cfg.LogPath),
		index: make(map[string][]byte),
	}

	if err := s.recover(); err != nil {
		return nil, err
	}

	Logger.Debugf("opened store in %s: %d keys, generation %d, log %s (%d bytes)",
		s.dir, len(s.index), s.gen, s.logName, s.log.Size())

	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Set(key, value []byte) error {
	if s.closed {
		return store.NewError(store.RetCStoreClosed, "store is closed")
	}
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	if err := store.ValidateValue(value); err != nil {
		return err
	}

	// log first: a write is only acknowledged once its record has been
	// handed to the OS, and the index never runs ahead of the log on
	// durability boundaries
	if _, err := s.log.Append(record.EncodePut(key, value)); err != nil {
		return store.WrapError(store.RetCIO, "append failed", err)
	}

	v := make([]byte, len(value))
	copy(v, value)
	s.index[string(key)] = v

	return s.maybeSnapshot()
}

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	if s.closed {
		return nil, false, store.NewError(store.RetCStoreClosed, "store is closed")
	}
	if err := store.ValidateKey(key); err != nil {
		return nil, false, err
	}

	value, ok := s.index[string(key)]
	if !ok {
		return nil, false, nil
	}

	v := make([]byte, len(value))
	copy(v, value)
	return v, true, nil
}

func (s *Store) Delete(key []byte) (bool, error) {
	if s.closed {
		return false, store.NewError(store.RetCStoreClosed, "store is closed")
	}
	if err := store.ValidateKey(key); err != nil {
		return false, err
	}

	// a tombstone is only logged for keys that exist; replay treats
	// Del as remove-if-present either way
	if _, ok := s.index[string(key)]; !ok {
		return false, nil
	}

	if _, err := s.log.Append(record.EncodeDel(key)); err != nil {
		return false, store.WrapError(store.RetCIO, "append failed", err)
	}
	delete(s.index, string(key))

	return true, s.maybeSnapshot()
}

func (s *Store) Scan(prefix []byte) ([][]byte, error) {
	if s.closed {
		return nil, store.NewError(store.RetCStoreClosed, "store is closed")
	}

	p := string(prefix)
	matches := make([]string, 0, len(s.index))
	for key := range s.index {
		if strings.HasPrefix(key, p) {
			matches = append(matches, key)
		}
	}
	sort.Strings(matches)

	keys := make([][]byte, len(matches))
	for i, key := range matches {
		keys[i] = []byte(key)
	}
	return keys, nil
}

func (s *Store) Snapshot() (uint64, error) {
	if s.closed {
		return 0, store.NewError(store.RetCStoreClosed, "store is closed")
	}
	return s.snapshot()
}

func (s *Store) Info() (store.StoreInfo, error) {
	if s.closed {
		return store.StoreInfo{}, store.NewError(store.RetCStoreClosed, "store is closed")
	}

	histogram := util.NewSizeHistogram()
	for _, value := range s.index {
		histogram.AddSample(len(value))
	}

	return store.StoreInfo{
		Keys:            len(s.index),
		Generation:      s.gen,
		LogBytes:        s.log.Size(),
		MedianValueSize: histogram.MedianEstimate(),
		AvgValueSize:    histogram.AverageSize(),
	}, nil
}

func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.log.Close(); err != nil {
		return store.WrapError(store.RetCIO, "cannot close log", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// maybeSnapshot compacts the store synchronously once the in-process
// byte counter reaches the configured bound. The check never touches
// the file system.
func (s *Store) maybeSnapshot() error {
	if s.cfg.MaxLogSize <= 0 || s.log.Size() < s.cfg.MaxLogSize {
		return nil
	}

	Logger.Debugf("log reached %d bytes (bound %d), snapshotting", s.log.Size(), s.cfg.MaxLogSize)
	_, err := s.snapshot()
	return err
}
