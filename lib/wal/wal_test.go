package wal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func tempLog(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "data.log")
}

// TestParsePolicy checks the CLI representations of all policies
func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "flush", want: Policy{Mode: Flush}},
		{in: "fsync", want: Policy{Mode: FsyncAlways}},
		{in: "fsync-every-n:3", want: Policy{Mode: FsyncEveryN, N: 3}},
		{in: "fsync-every-n:0", wantErr: true},
		{in: "fsync-every-n:x", wantErr: true},
		{in: "nope", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePolicy(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePolicy(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if back, err := ParsePolicy(got.String()); err != nil || back != got {
			t.Errorf("Policy %v does not round trip through String()", got)
		}
	}
}

// TestAppendAdvancesCounter checks that the counter matches the bytes
// written and the on-disk length
func TestAppendAdvancesCounter(t *testing.T) {
	path := tempLog(t)
	w, err := Open(path, Policy{Mode: Flush})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	payloads := [][]byte{
		[]byte("first"),
		[]byte("second-longer"),
		{},
		bytes.Repeat([]byte("x"), 4096),
	}

	var want int64
	for _, p := range payloads {
		n, err := w.Append(p)
		if err != nil {
			t.Fatal(err)
		}
		if n != len(p) {
			t.Errorf("Append returned %d, want %d", n, len(p))
		}
		want += int64(len(p))
		if w.Size() != want {
			t.Errorf("Size() = %d, want %d", w.Size(), want)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != want {
		t.Errorf("on-disk length %d, counter %d", info.Size(), want)
	}
}

// TestOpenExisting checks the counter is initialized from the current
// file length
func TestOpenExisting(t *testing.T) {
	path := tempLog(t)

	w, err := Open(path, Policy{Mode: Flush})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append([]byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	w, err = Open(path, Policy{Mode: Flush})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.Size() != int64(len("persisted")) {
		t.Errorf("Size() after reopen = %d, want %d", w.Size(), len("persisted"))
	}

	// appends continue at the end of the existing data
	if _, err := w.Append([]byte("!")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "persisted!" {
		t.Errorf("file content %q", data)
	}
}

// TestFsyncAlways checks one device sync per append
func TestFsyncAlways(t *testing.T) {
	w, err := Open(tempLog(t), Policy{Mode: FsyncAlways})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	syncs := 0
	w.syncFn = func(f *os.File) error {
		syncs++
		return f.Sync()
	}

	for i := 0; i < 5; i++ {
		if _, err := w.Append([]byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if syncs != 5 {
		t.Errorf("expected 5 syncs, got %d", syncs)
	}
}

// TestFsyncEveryN checks the sync cadence and the remainder on close
func TestFsyncEveryN(t *testing.T) {
	w, err := Open(tempLog(t), Policy{Mode: FsyncEveryN, N: 3})
	if err != nil {
		t.Fatal(err)
	}

	syncs := 0
	w.syncFn = func(f *os.File) error {
		syncs++
		return f.Sync()
	}

	// three appends reach the boundary: exactly one sync
	for i := 0; i < 3; i++ {
		if _, err := w.Append([]byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if syncs != 1 {
		t.Errorf("expected 1 sync after 3 appends, got %d", syncs)
	}

	// a fourth append causes none until the next boundary
	if _, err := w.Append([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if syncs != 1 {
		t.Errorf("expected still 1 sync after 4 appends, got %d", syncs)
	}

	// close forces the remainder
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if syncs != 2 {
		t.Errorf("expected 2 syncs after close, got %d", syncs)
	}
}

// TestCloseWithoutPending checks close does not force a sync when no
// appends are pending
func TestCloseWithoutPending(t *testing.T) {
	w, err := Open(tempLog(t), Policy{Mode: FsyncEveryN, N: 2})
	if err != nil {
		t.Fatal(err)
	}

	syncs := 0
	w.syncFn = func(f *os.File) error {
		syncs++
		return f.Sync()
	}

	for i := 0; i < 4; i++ {
		if _, err := w.Append([]byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if syncs != 2 {
		t.Errorf("expected 2 syncs, got %d", syncs)
	}
}

// TestTruncate checks the counter follows a truncation
func TestTruncate(t *testing.T) {
	path := tempLog(t)
	w, err := Open(path, Policy{Mode: Flush})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, err := w.Append([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	if err := w.Truncate(4); err != nil {
		t.Fatal(err)
	}
	if w.Size() != 4 {
		t.Errorf("Size() after truncate = %d, want 4", w.Size())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 4 {
		t.Errorf("on-disk length after truncate = %d, want 4", info.Size())
	}
}
