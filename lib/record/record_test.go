package record

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func readAll(t *testing.T, data []byte) ([]Record, int, error) {
	t.Helper()

	r := bufio.NewReader(bytes.NewReader(data))
	var (
		records []Record
		total   int
	)
	for {
		rec, n, err := Read(r)
		if err != nil {
			return records, total, err
		}
		records = append(records, rec)
		total += n
	}
}

// TestPutRoundTrip encodes a Put record and decodes it back
func TestPutRoundTrip(t *testing.T) {
	key := []byte("name")
	value := []byte("Alice")
	encoded := EncodePut(key, value)

	if len(encoded) != EncodedSize(Put, len(key), len(value)) {
		t.Fatalf("encoded size mismatch: got %d, want %d", len(encoded), EncodedSize(Put, len(key), len(value)))
	}

	records, total, err := readAll(t, encoded)
	if err != io.EOF {
		t.Fatalf("expected clean EOF, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if total != len(encoded) {
		t.Errorf("consumed %d bytes, want %d", total, len(encoded))
	}

	rec := records[0]
	if rec.Kind != Put {
		t.Errorf("expected Put, got %s", rec.Kind)
	}
	if !bytes.Equal(rec.Key, key) || !bytes.Equal(rec.Value, value) {
		t.Errorf("round trip mismatch: got (%q, %q)", rec.Key, rec.Value)
	}
}

// TestDelRoundTrip encodes a Del record and decodes it back
func TestDelRoundTrip(t *testing.T) {
	key := []byte("name")
	encoded := EncodeDel(key)

	records, _, err := readAll(t, encoded)
	if err != io.EOF {
		t.Fatalf("expected clean EOF, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Kind != Del {
		t.Errorf("expected Del, got %s", records[0].Kind)
	}
	if !bytes.Equal(records[0].Key, key) {
		t.Errorf("key mismatch: got %q", records[0].Key)
	}
	if records[0].Value != nil {
		t.Errorf("Del record should carry no value, got %q", records[0].Value)
	}
}

// TestEmptyValue checks that a zero-length value is valid
func TestEmptyValue(t *testing.T) {
	encoded := EncodePut([]byte("k"), nil)

	records, _, err := readAll(t, encoded)
	if err != io.EOF {
		t.Fatalf("expected clean EOF, got %v", err)
	}
	if len(records[0].Value) != 0 {
		t.Errorf("expected empty value, got %q", records[0].Value)
	}
}

// TestMultipleRecords decodes a concatenated stream of records
func TestMultipleRecords(t *testing.T) {
	var data []byte
	data = AppendPut(data, []byte("a"), []byte("1"))
	data = AppendDel(data, []byte("a"))
	data = AppendPut(data, []byte("b"), []byte("2"))

	records, total, err := readAll(t, data)
	if err != io.EOF {
		t.Fatalf("expected clean EOF, got %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if total != len(data) {
		t.Errorf("consumed %d bytes, want %d", total, len(data))
	}
	if records[1].Kind != Del {
		t.Errorf("second record should be Del, got %s", records[1].Kind)
	}
}

// TestTornRecords verifies that every truncation point of a valid
// record is reported as torn, never as corrupt
func TestTornRecords(t *testing.T) {
	full := EncodePut([]byte("torn-key"), []byte("torn-value"))

	for cut := 1; cut < len(full); cut++ {
		records, _, err := readAll(t, full[:cut])
		if !errors.Is(err, ErrTorn) {
			t.Errorf("cut at %d: expected ErrTorn, got %v", cut, err)
		}
		if len(records) != 0 {
			t.Errorf("cut at %d: expected no records, got %d", cut, len(records))
		}
	}
}

// TestTornTailAfterIntactRecords checks that records before a torn tail
// decode normally
func TestTornTailAfterIntactRecords(t *testing.T) {
	var data []byte
	data = AppendPut(data, []byte("a"), []byte("1"))
	data = AppendPut(data, []byte("b"), []byte("2"))
	intact := len(data)
	data = append(data, EncodePut([]byte("c"), []byte("3"))[:4]...)

	records, total, err := readAll(t, data)
	if !errors.Is(err, ErrTorn) {
		t.Fatalf("expected ErrTorn, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 intact records, got %d", len(records))
	}
	if total != intact {
		t.Errorf("intact prefix is %d bytes, want %d", total, intact)
	}
}

// TestGarbageTagIsTorn checks that unrecognized tag bytes at the tail
// are treated as torn, not corrupt, so recovery can truncate them
func TestGarbageTagIsTorn(t *testing.T) {
	data := AppendPut(nil, []byte("a"), []byte("1"))
	data = append(data, 0xde, 0xad, 0xbe, 0xef)

	records, _, err := readAll(t, data)
	if !errors.Is(err, ErrTorn) {
		t.Fatalf("expected ErrTorn, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 intact record, got %d", len(records))
	}
}

// TestCorruptLengths verifies that recognized tags with out-of-bounds
// length fields are fatal
func TestCorruptLengths(t *testing.T) {
	tests := []struct {
		name string
		data func() []byte
	}{
		{
			name: "zero key length",
			data: func() []byte {
				return []byte{TagPut, 0, 0, 0, 0}
			},
		},
		{
			name: "key length above bound",
			data: func() []byte {
				buf := []byte{TagPut}
				buf = binary.LittleEndian.AppendUint32(buf, MaxKeySize+1)
				return buf
			},
		},
		{
			name: "value length above bound",
			data: func() []byte {
				buf := []byte{TagPut}
				buf = binary.LittleEndian.AppendUint32(buf, 1)
				buf = append(buf, 'k')
				buf = binary.LittleEndian.AppendUint32(buf, MaxValueSize+1)
				return buf
			},
		},
		{
			name: "zero key length in del",
			data: func() []byte {
				return []byte{TagDel, 0, 0, 0, 0}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := readAll(t, tt.data())
			var corrupt *CorruptError
			if !errors.As(err, &corrupt) {
				t.Fatalf("expected CorruptError, got %v", err)
			}
		})
	}
}

// TestLargestValidRecord checks the upper bounds are accepted
func TestLargestValidRecord(t *testing.T) {
	key := bytes.Repeat([]byte("k"), MaxKeySize)
	value := bytes.Repeat([]byte("v"), MaxValueSize)

	records, _, err := readAll(t, EncodePut(key, value))
	if err != io.EOF {
		t.Fatalf("expected clean EOF, got %v", err)
	}
	if len(records[0].Key) != MaxKeySize || len(records[0].Value) != MaxValueSize {
		t.Errorf("bounds round trip failed")
	}
}
