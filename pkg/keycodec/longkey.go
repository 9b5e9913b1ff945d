package keycodec

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// unorderedSeed is the fixed seed spec §4.3 rule 5 names for unordered-
// index hashing ("t1ha2_atonce(bytes, seed=2018)"); substituted with
// xxhash here (see DESIGN.md), seed folded in as a prefix write.
const unorderedSeed = uint64(2018)

// HashUnordered derives the key for an unordered index: always the
// 64-bit hash of the raw value bytes, regardless of length (spec §4.3
// rule 5).
func HashUnordered(raw []byte) []byte {
	d := xxhash.New()
	var seedBuf [8]byte
	binary.LittleEndian.PutUint64(seedBuf[:], unorderedSeed)
	d.Write(seedBuf[:])
	d.Write(raw)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, d.Sum64())
	return buf
}

// shoveLongKey implements spec §4.3 rule 4: a string/opaque longer than
// MaxKeylen is truncated to ShovedKeylen bytes total. Obverse indexes
// keep the head and hash the tail; reverse indexes keep the tail and
// hash the head, so ordering stays correct on whichever side the
// caller chose as discriminative.
func shoveLongKey(raw []byte, reverse bool) []byte {
	out := make([]byte, ShovedKeylen)
	if !reverse {
		head := raw[:MaxKeylen]
		tail := raw[MaxKeylen:]
		copy(out, head)
		binary.BigEndian.PutUint64(out[MaxKeylen:], tailHash(tail))
		return out
	}
	tail := raw[len(raw)-MaxKeylen:]
	head := raw[:len(raw)-MaxKeylen]
	binary.BigEndian.PutUint64(out[:hashSuffixLen], tailHash(head))
	copy(out[hashSuffixLen:], tail)
	return out
}

func tailHash(b []byte) uint64 {
	return xxhash.Sum64(b)
}
