package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEntryRoundTrip(t *testing.T) {
	payload := []byte(`{"id":"1","name":"Ada"}`)
	b := EncodeEntry(7, payload)

	epoch, got, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry: %v", err)
	}
	if epoch != 7 {
		t.Fatalf("epoch = %d, want 7", epoch)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestEntryRoundTripEmptyPayload(t *testing.T) {
	b := EncodeEntry(0, nil)
	epoch, got, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry: %v", err)
	}
	if epoch != 0 || len(got) != 0 {
		t.Fatalf("epoch=%d len=%d, want 0/0", epoch, len(got))
	}
}

func TestDecodeRejectsCorrupt(t *testing.T) {
	cases := map[string][]byte{
		"empty":       nil,
		"short":       {'C', 'L', 'C', 'H', 1},
		"bad magic":   append([]byte{'X', 'X', 'X', 'X'}, EncodeEntry(1, []byte("v"))[4:]...),
		"bad version": mutate(EncodeEntry(1, []byte("v")), 4, 99),
		"bad kind":    mutate(EncodeEntry(1, []byte("v")), 5, 99),
	}
	for name, b := range cases {
		if _, _, err := DecodeEntry(b); err != ErrCorrupt {
			t.Errorf("%s: err = %v, want ErrCorrupt", name, err)
		}
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	b := EncodeEntry(3, []byte("hello"))
	// claim a longer payload than present
	binary.BigEndian.PutUint32(b[14:18], 1<<30)
	if _, _, err := DecodeEntry(b); err != ErrCorrupt {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func mutate(b []byte, idx int, v byte) []byte {
	out := append([]byte(nil), b...)
	out[idx] = v
	return out
}
