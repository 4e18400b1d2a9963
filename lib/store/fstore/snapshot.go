package fstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ValentinKolb/kvs/lib/record"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/wal"
	"github.com/VictoriaMetrics/metrics"
)

var (
	snapshotsTotal   = metrics.NewCounter("kvs_snapshots_total")
	snapshotDuration = metrics.NewHistogram("kvs_snapshot_duration_seconds")
)

// snapshot materializes the live index into a new snapshot file,
// rotates the log and commits both through the manifest. The ordering
// is load-bearing: everything up to the manifest rename is undoable,
// everything after it is cleanup of the superseded generation.
//
//  1. write all live pairs as Put records to a temp file, force it
//  2. rename the temp file to snapshot-<g>.snap
//  3. create a fresh, empty log log-<g>.log
//  4. write the manifest via temp file + rename (the commit point)
//  5. unlink the previous log and snapshot, best-effort
//  6. swap the writer, reset the byte counter, advance the generation
func (s *Store) snapshot() (uint64, error) {
	start := time.Now()

	g := s.gen + 1
	snapName := fmt.Sprintf("snapshot-%04d.snap", g)
	logName := fmt.Sprintf("log-%04d.log", g)
	snapPath := filepath.Join(s.dir, snapName)
	tmpPath := snapPath + ".tmp"

	if err := s.writeSnapshotFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return 0, store.WrapError(store.RetCIO, fmt.Sprintf("cannot write snapshot %s", snapName), err)
	}

	if err := os.Rename(tmpPath, snapPath); err != nil {
		os.Remove(tmpPath)
		return 0, store.WrapError(store.RetCIO, fmt.Sprintf("cannot publish snapshot %s", snapName), err)
	}

	newLog, err := wal.Open(filepath.Join(s.dir, logName), s.cfg.Durability)
	if err != nil {
		os.Remove(snapPath)
		return 0, store.WrapError(store.RetCIO, fmt.Sprintf("cannot create log %s", logName), err)
	}

	// the commit point: after this rename the new generation is the
	// durable state, all failures below are tolerated
	if err := writeManifest(s.dir, manifest{gen: g, snapshot: snapName, log: logName}); err != nil {
		newLog.Close()
		os.Remove(filepath.Join(s.dir, logName))
		os.Remove(snapPath)
		return 0, store.WrapError(store.RetCIO, "cannot commit manifest", err)
	}

	oldLog := s.log
	oldSnap := s.snapName

	s.log = newLog
	s.gen = g
	s.snapName = snapName
	oldLogName := s.logName
	s.logName = logName

	if err := oldLog.Close(); err != nil {
		Logger.Warningf("closing superseded log %s: %v", oldLogName, err)
	}
	if err := os.Remove(filepath.Join(s.dir, oldLogName)); err != nil {
		Logger.Warningf("removing superseded log %s: %v", oldLogName, err)
	}
	if oldSnap != "" {
		if err := os.Remove(filepath.Join(s.dir, oldSnap)); err != nil {
			Logger.Warningf("removing superseded snapshot %s: %v", oldSnap, err)
		}
	}

	snapshotsTotal.Inc()
	snapshotDuration.UpdateDuration(start)
	Logger.Infof("snapshot-%04d: %d keys, log rotated to %s", g, len(s.index), logName)

	return g, nil
}

// writeSnapshotFile writes every live pair to path and forces the file
// to stable storage
func (s *Store) writeSnapshotFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriterSize(f, 1<<20)
	buf := make([]byte, 0, 1<<16)
	for key, value := range s.index {
		buf = record.AppendPut(buf[:0], []byte(key), value)
		if _, err := w.Write(buf); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
