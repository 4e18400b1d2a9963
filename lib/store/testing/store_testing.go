// Package testing provides a standardized test suite for store.IStore
// implementations. Both the file store and the actor store run it to
// guarantee identical observable behavior.
package testing

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ValentinKolb/kvs/lib/record"
	"github.com/ValentinKolb/kvs/lib/store"
)

// StoreFactory creates a fresh, empty store instance for a subtest
type StoreFactory func(t *testing.T) store.IStore

// RunIStoreTests runs the standardized test suite against a store
// implementation.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory(t))
		})

		t.Run("Snapshot", func(t *testing.T) {
			testSnapshot(t, factory(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(t))
		})

		t.Run("Validation", func(t *testing.T) {
			testValidation(t, factory(t))
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, s store.IStore) {
	defer s.Close()

	key := []byte("test-key")
	value := []byte("test-value")

	if err := s.Set(key, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, found, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatalf("Expected key %s to exist after Set", key)
	}
	if !bytes.Equal(result, value) {
		t.Errorf("Expected value %s, got %s", value, result)
	}

	// the returned slice is a copy, not a reference into the store
	result[0] = 'X'
	again, _, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if bytes.Equal(result, again) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	_, found, err = s.Get([]byte("nonexistent-key"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Errorf("Expected nonexistent key to return found=false")
	}

	// empty values are legal
	if err := s.Set([]byte("empty"), nil); err != nil {
		t.Fatalf("Set with empty value failed: %v", err)
	}
	result, found, err = s.Get([]byte("empty"))
	if err != nil || !found {
		t.Fatalf("Get of empty value: found=%v, err=%v", found, err)
	}
	if len(result) != 0 {
		t.Errorf("Expected empty value, got %q", result)
	}
}

func testOverwrite(t *testing.T, s store.IStore) {
	defer s.Close()

	key := []byte("k")

	if err := s.Set(key, []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(key, []byte("v2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, found, err := s.Get(key)
	if err != nil || !found {
		t.Fatalf("Get: found=%v, err=%v", found, err)
	}
	if !bytes.Equal(result, []byte("v2")) {
		t.Errorf("Expected last write to win, got %s", result)
	}
}

func testDelete(t *testing.T, s store.IStore) {
	defer s.Close()

	key := []byte("a")

	if err := s.Set(key, []byte("1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	existed, err := s.Delete(key)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !existed {
		t.Errorf("Delete of present key should report true")
	}

	_, found, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Errorf("Deleted key should not be found")
	}

	// second delete is a no-op reporting false
	existed, err = s.Delete(key)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if existed {
		t.Errorf("Second delete should report false")
	}

	existed, err = s.Delete([]byte("never-existed"))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if existed {
		t.Errorf("Delete of absent key should report false")
	}
}

func testScan(t *testing.T, s store.IStore) {
	defer s.Close()

	pairs := map[string]string{
		"app":     "1",
		"apple":   "2",
		"banana":  "3",
		"apricot": "4",
	}
	for k, v := range pairs {
		if err := s.Set([]byte(k), []byte(v)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := s.Scan([]byte("ap"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	assertKeys(t, keys, []string{"app", "apple", "apricot"})

	keys, err = s.Scan(nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	assertKeys(t, keys, []string{"app", "apple", "apricot", "banana"})

	keys, err = s.Scan([]byte("zzz"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no matches, got %d", len(keys))
	}

	// deleted keys do not appear
	if _, err := s.Delete([]byte("apple")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	keys, err = s.Scan([]byte("ap"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	assertKeys(t, keys, []string{"app", "apricot"})
}

func testSnapshot(t *testing.T, s store.IStore) {
	defer s.Close()

	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		if err := s.Set(key, []byte("value")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	gen, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if gen == 0 {
		t.Errorf("Expected generation above 0, got %d", gen)
	}

	// the generation advances by one per snapshot
	next, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if next != gen+1 {
		t.Errorf("Expected generation %d, got %d", gen+1, next)
	}

	// data is intact after compaction
	_, found, err := s.Get([]byte("key-5"))
	if err != nil || !found {
		t.Errorf("Expected key-5 after snapshot: found=%v, err=%v", found, err)
	}
}

func testInfo(t *testing.T, s store.IStore) {
	defer s.Close()

	for i := 0; i < 5; i++ {
		if err := s.Set([]byte(fmt.Sprintf("k%d", i)), []byte("0123456789")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Keys != 5 {
		t.Errorf("Info.Keys = %d, want 5", info.Keys)
	}
	if info.LogBytes == 0 {
		t.Errorf("Info.LogBytes should be non-zero after writes")
	}
	if info.AvgValueSize != 10 {
		t.Errorf("Info.AvgValueSize = %d, want 10", info.AvgValueSize)
	}
}

func testValidation(t *testing.T, s store.IStore) {
	defer s.Close()

	// empty key
	if err := s.Set(nil, []byte("v")); store.CodeOf(err) != store.RetCInvalidInput {
		t.Errorf("Set with empty key: expected InvalidInput, got %v", err)
	}
	if _, _, err := s.Get(nil); store.CodeOf(err) != store.RetCInvalidInput {
		t.Errorf("Get with empty key: expected InvalidInput, got %v", err)
	}
	if _, err := s.Delete(nil); store.CodeOf(err) != store.RetCInvalidInput {
		t.Errorf("Delete with empty key: expected InvalidInput, got %v", err)
	}

	// oversized key
	bigKey := bytes.Repeat([]byte("k"), record.MaxKeySize+1)
	if err := s.Set(bigKey, []byte("v")); store.CodeOf(err) != store.RetCInvalidInput {
		t.Errorf("Set with oversized key: expected InvalidInput, got %v", err)
	}

	// oversized value
	bigValue := bytes.Repeat([]byte("v"), record.MaxValueSize+1)
	if err := s.Set([]byte("k"), bigValue); store.CodeOf(err) != store.RetCInvalidInput {
		t.Errorf("Set with oversized value: expected InvalidInput, got %v", err)
	}

	// bounds are inclusive
	maxKey := bytes.Repeat([]byte("k"), record.MaxKeySize)
	if err := s.Set(maxKey, []byte("v")); err != nil {
		t.Errorf("Set with maximum key size failed: %v", err)
	}

	// a rejected write leaves no trace
	_, found, err := s.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Errorf("Rejected Set must not modify the index")
	}
}

func testClosed(t *testing.T, s store.IStore) {
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := s.Set([]byte("k"), []byte("v")); store.CodeOf(err) != store.RetCStoreClosed {
		t.Errorf("Set on closed store: expected StoreClosed, got %v", err)
	}
	if _, _, err := s.Get([]byte("k")); store.CodeOf(err) != store.RetCStoreClosed {
		t.Errorf("Get on closed store: expected StoreClosed, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// assertKeys checks the scan result equals want, in order
func assertKeys(t *testing.T, got [][]byte, want []string) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("Expected %d keys, got %d", len(want), len(got))
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("Key %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
