package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindEntry byte = 1
)

var (
	ErrCorrupt = errors.New("collcache: corrupt entry")
	magic4     = [...]byte{'C', 'L', 'C', 'H'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | kind(1=entry) | epoch(u64 be) | vlen(u32 be) | payload(vlen)
//
// The epoch is the region invalidation epoch the entry was written under.
// Readers compare it against the current region epoch; a mismatch means the
// entry predates an invalidation and must be treated as a miss.
func EncodeEntry(epoch uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], epoch)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeEntry(b []byte) (epoch uint64, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return 0, nil, ErrCorrupt
	}

	off := 6

	epoch = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
		return 0, nil, ErrCorrupt
	}

	return epoch, b[off : off+vlen], nil
}
