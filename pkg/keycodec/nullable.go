package keycodec

import (
	"encoding/binary"

	"github.com/positive-tech/fpta/pkg/value"
)

// nilNonNumericKey returns the sentinel bytes standing in for NIL on a
// nullable, non-numeric indexed column (spec §4.3 rule 6): chosen so
// NIL sorts strictly below any real value for obverse indexes, and
// strictly above for reverse indexes.
func nilNonNumericKey(width int, reverse bool) []byte {
	out := make([]byte, width)
	if reverse {
		for i := range out {
			out[i] = 0xFF
		}
	}
	// obverse: all-zero already sorts below any notnil_prefix-tagged
	// real value, since NotnilPrefix (0x2A) is nonzero.
	return out
}

// withNotnilPrefix tags a real value's key bytes with the notnil
// sentinel, placed so it stays on the discriminative side of the key
// for the index's direction (spec §4.3 rule 6).
func withNotnilPrefix(raw []byte, reverse bool) []byte {
	out := make([]byte, len(raw)+NotnilPrefixLen)
	if reverse {
		copy(out, raw)
		out[len(out)-1] = NotnilPrefix
	} else {
		out[0] = NotnilPrefix
		copy(out[1:], raw)
	}
	return out
}

// nilKeyForNullable returns the NIL key for a nullable column, or nil
// if kind doesn't need special nullable handling at all.
func nilKeyForNullable(kind value.Kind, reverse bool) []byte {
	switch kind.Base() {
	case value.KindInt32:
		return signedIntKey(int64(value.DenilInt32), 4)
	case value.KindInt64:
		return signedIntKey(value.NilSignedIntKey, 8)
	case value.KindUint16, value.KindUint32, value.KindUint64, value.KindDatetime:
		// unsigned/datetime keys carry no sign-flip transform, so their
		// NIL key is the same-width all-zero (obverse) or all-ones
		// (reverse) value. That is also the key of the real value 0
		// (obverse) or of the maximum value (reverse), just as a signed
		// NIL shares its key with INT_MIN.
		return nilNonNumericKey(kind.FixedWidth(), reverse)
	case value.KindFP32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, floatKeyBits32(value.NilFloatKeyBits32))
		return buf
	case value.KindFP64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, floatKeyBits64(value.NilFloatKeyBits64))
		return buf
	default:
		return nil // non-numeric: handled via withNotnilPrefix/nilNonNumericKey
	}
}
