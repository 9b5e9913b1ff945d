package keycodec

import "encoding/binary"

// ConcatComposite joins child keys into one composite key (spec §4.3
// rule 7): by default each child is length-prefixed (16-bit length,
// big-endian) so the boundary is recoverable; tersely drops the
// prefixes entirely, trading recoverability for a shorter key (used
// when the column carries tersely_composite).
func ConcatComposite(children [][]byte, tersely bool) []byte {
	if tersely {
		var total int
		for _, c := range children {
			total += len(c)
		}
		out := make([]byte, 0, total)
		for _, c := range children {
			out = append(out, c...)
		}
		return out
	}
	var total int
	for _, c := range children {
		total += 2 + len(c)
	}
	out := make([]byte, 0, total)
	var lenBuf [2]byte
	for _, c := range children {
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(c)))
		out = append(out, lenBuf[:]...)
		out = append(out, c...)
	}
	return out
}

// TruncateComposite applies rule 4's truncation at the composite
// level: once concatenated, an over-long composite key is shoved the
// same way a single long string would be.
func TruncateComposite(concatenated []byte, reverse bool) []byte {
	if len(concatenated) <= MaxKeylen {
		return concatenated
	}
	return shoveLongKey(concatenated, reverse)
}
