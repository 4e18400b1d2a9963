package fstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	manifestName = "MANIFEST"
)

// manifest is the single file whose atomic rename commits a new
// (snapshot, log) pair as the canonical durable state. It holds one
// text line "<gen>:<snapshot>:<log>" with both file names relative to
// the data directory.
type manifest struct {
	gen      uint64
	snapshot string
	log      string
}

// readManifest reads and parses the manifest in dir. A missing,
// unreadable or malformed manifest reads as absent; partially parsed
// fields are never returned.
func readManifest(dir string) (manifest, bool) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return manifest{}, false
	}

	line := strings.TrimRight(string(data), "\n")
	parts := strings.Split(line, ":")
	if len(parts) != 3 {
		return manifest{}, false
	}

	gen, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || parts[1] == "" || parts[2] == "" {
		return manifest{}, false
	}

	// the manifest must reference files inside the data directory
	if filepath.Base(parts[1]) != parts[1] || filepath.Base(parts[2]) != parts[2] {
		return manifest{}, false
	}

	return manifest{gen: gen, snapshot: parts[1], log: parts[2]}, true
}

// writeManifest atomically publishes m in dir: the line is written to a
// temp file, forced to stable storage and renamed over the manifest.
// The rename is the commit point.
func writeManifest(dir string, m manifest) error {
	tmpPath := filepath.Join(dir, manifestName+".tmp")

	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(f, "%d:%s:%s\n", m.gen, m.snapshot, m.log); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, manifestName)); err != nil {
		os.Remove(tmpPath)
		return err
	}

	syncDir(dir)
	return nil
}

// syncDir forces the directory entry updates to stable storage.
// Best-effort: single-node semantics do not depend on it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
