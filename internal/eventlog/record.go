package eventlog

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding: flags | uvarint keyLen | key | value | crc32c(flags|key|value)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const flagTombstone byte = 1 << 0

// EncodeRecord frames key and value. A nil value is encoded as a tombstone.
func EncodeRecord(key, value []byte) []byte {
	out := make([]byte, 0, 1+binary.MaxVarintLen64+len(key)+len(value)+4)
	var flags byte
	if value == nil {
		flags |= flagTombstone
	}
	out = append(out, flags)
	out = binary.AppendUvarint(out, uint64(len(key)))
	out = append(out, key...)
	out = append(out, value...)

	crc := crc32.Update(0, castagnoli, []byte{flags})
	crc = crc32.Update(crc, castagnoli, key)
	crc = crc32.Update(crc, castagnoli, value)
	return binary.BigEndian.AppendUint32(out, crc)
}

type Decoded struct {
	Key   []byte
	Value []byte // nil for tombstones
}

// DecodeRecord validates framing and checksum. ok is false for corrupt input.
func DecodeRecord(b []byte) (Decoded, bool) {
	if len(b) < 1+1+4 {
		return Decoded{}, false
	}
	flags := b[0]
	klen, n := binary.Uvarint(b[1:])
	if n <= 0 {
		return Decoded{}, false
	}
	start := 1 + n
	rest := len(b) - start - 4
	if rest < 0 || uint64(rest) < klen {
		return Decoded{}, false
	}
	key := b[start : start+int(klen)]
	value := b[start+int(klen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, []byte{flags})
	crc = crc32.Update(crc, castagnoli, key)
	crc = crc32.Update(crc, castagnoli, value)
	if crc != expect {
		return Decoded{}, false
	}
	d := Decoded{Key: append([]byte(nil), key...)}
	if flags&flagTombstone == 0 {
		d.Value = append([]byte{}, value...)
	}
	return d, true
}
