package fstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/kvs/lib/record"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/wal"
)

// recover rebuilds the in-memory index at open: load the snapshot the
// manifest points to, then replay the log on top of it, truncating any
// torn tail. Snapshots are published via rename and are therefore
// wholly present or absent; only the log tail may be torn.
func (s *Store) recover() error {
	s.logName = filepath.Base(s.cfg.LogPath)

	if m, ok := readManifest(s.dir); ok {
		s.gen = m.gen

		snapPath := filepath.Join(s.dir, m.snapshot)
		switch err := s.loadSnapshot(snapPath); {
		case err == nil:
			s.snapName = m.snapshot
			s.logName = m.log
		case errors.Is(err, os.ErrNotExist):
			// The snapshot the manifest references is gone. Behave as
			// cold start: empty index, log at the default path. The
			// generation is kept so later snapshots never collide with
			// leftover files.
			Logger.Warningf("manifest references missing snapshot %s, starting cold", m.snapshot)
			s.index = make(map[string][]byte)
		default:
			return err
		}
	}

	logPath := filepath.Join(s.dir, s.logName)
	goodOffset, torn, err := s.replayLog(logPath)
	if err != nil {
		return err
	}

	w, err := wal.Open(logPath, s.cfg.Durability)
	if err != nil {
		return store.WrapError(store.RetCIO, fmt.Sprintf("cannot open log %s", logPath), err)
	}

	if torn {
		Logger.Warningf("truncating torn tail of %s at offset %d", logPath, goodOffset)
		if err := w.Truncate(goodOffset); err != nil {
			w.Close()
			return store.WrapError(store.RetCIO, fmt.Sprintf("cannot truncate log %s", logPath), err)
		}
	}

	s.log = w
	return nil
}

// loadSnapshot reads every Put record of a snapshot file into the
// index. Snapshots contain no tombstones and no torn tails; any decode
// failure is corruption and fatal.
func (s *Store) loadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return store.WrapError(store.RetCIO, fmt.Sprintf("cannot open snapshot %s", path), err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<16)
	for {
		rec, _, err := record.Read(r)
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, record.ErrTorn):
			return store.NewError(store.RetCCorruptLog,
				fmt.Sprintf("snapshot %s is truncated", path))
		case err != nil:
			var corrupt *record.CorruptError
			if errors.As(err, &corrupt) {
				return store.WrapError(store.RetCCorruptLog,
					fmt.Sprintf("snapshot %s", path), err)
			}
			return store.WrapError(store.RetCIO, fmt.Sprintf("cannot read snapshot %s", path), err)
		}

		if rec.Kind != record.Put {
			return store.NewError(store.RetCCorruptLog,
				fmt.Sprintf("snapshot %s contains a %s record", path, rec.Kind))
		}
		s.index[string(rec.Key)] = rec.Value
	}
}

// replayLog folds the log into the index and returns the byte offset
// where the last intact record ended. torn reports whether a partial
// record follows that offset; the caller truncates it away. Corrupt
// interior records are fatal, a missing log file replays as empty.
func (s *Store) replayLog(path string) (goodOffset int64, torn bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, store.WrapError(store.RetCIO, fmt.Sprintf("cannot open log %s", path), err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<16)
	var offset int64
	for {
		rec, n, err := record.Read(r)
		switch {
		case err == io.EOF:
			return offset, false, nil
		case errors.Is(err, record.ErrTorn):
			return offset, true, nil
		case err != nil:
			var corrupt *record.CorruptError
			if errors.As(err, &corrupt) {
				return 0, false, store.WrapError(store.RetCCorruptLog,
					fmt.Sprintf("log %s at offset %d", path, offset), err)
			}
			return 0, false, store.WrapError(store.RetCIO, fmt.Sprintf("cannot read log %s", path), err)
		}

		switch rec.Kind {
		case record.Put:
			s.index[string(rec.Key)] = rec.Value
		case record.Del:
			delete(s.index, string(rec.Key))
		}
		offset += int64(n)
	}
}
