package keycodec

import (
	"encoding/binary"
	"math"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/value"
)

// signedIntKey flips the sign bit of a two's-complement integer so its
// big-endian unsigned byte encoding sorts the same as the signed value
// (spec §4.3 rule 1: "Signed integers have their sign bit flipped
// before emission").
func signedIntKey(v int64, width int) []byte {
	u := uint64(v) ^ (uint64(1) << (uint(width)*8 - 1))
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, u)
	return buf[8-width:]
}

func unsignedIntKey(v uint64, width int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf[8-width:]
}

// floatKeyBits transforms IEEE-754 bits into a big-endian byte
// sequence whose unsigned ordering matches the float's numeric order
// (spec §4.3 rule 1): negative values get every bit inverted, positive
// values just get the sign bit set, so -0.0 and +0.0 (already
// canonicalised to the same bit pattern by the caller) produce
// identical keys.
func floatKeyBits64(bits uint64) uint64 {
	const sign = uint64(1) << 63
	if bits&sign != 0 {
		return ^bits
	}
	return bits | sign
}

func floatKeyBits32(bits uint32) uint32 {
	const sign = uint32(1) << 31
	if bits&sign != 0 {
		return ^bits
	}
	return bits | sign
}

// FP64Key canonicalises -0.0 to +0.0 and rejects NaN/Inf before
// transforming to a sortable 8-byte key (spec §4.3 rule 1).
func FP64Key(f float64) ([]byte, error) {
	if math.IsNaN(f) {
		return nil, fptaerr.New(fptaerr.EOverflow, "NaN is not key-encodable")
	}
	if math.IsInf(f, 0) {
		return nil, fptaerr.New(fptaerr.EOverflow, "infinite value is not key-encodable")
	}
	if f == 0 {
		f = 0 // canonicalises -0.0 -> +0.0
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, floatKeyBits64(math.Float64bits(f)))
	return buf, nil
}

// FP32Key is FP64Key's 32-bit counterpart.
func FP32Key(f float32) ([]byte, error) {
	if math.IsNaN(float64(f)) {
		return nil, fptaerr.New(fptaerr.EOverflow, "NaN is not key-encodable")
	}
	if math.IsInf(float64(f), 0) {
		return nil, fptaerr.New(fptaerr.EOverflow, "infinite value is not key-encodable")
	}
	if f == 0 {
		f = 0
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, floatKeyBits32(math.Float32bits(f)))
	return buf, nil
}

// numericKey derives the fixed-width key bytes for any scalar numeric
// or datetime kind (spec §4.3 rule 1).
func numericKey(v value.Value) ([]byte, error) {
	switch v.Kind.Base() {
	case value.KindUint16:
		return unsignedIntKey(v.U, 2), nil
	case value.KindInt32:
		return signedIntKey(v.I, 4), nil
	case value.KindUint32:
		return unsignedIntKey(v.U, 4), nil
	case value.KindInt64:
		return signedIntKey(v.I, 8), nil
	case value.KindUint64:
		return unsignedIntKey(v.U, 8), nil
	case value.KindFP32:
		return FP32Key(float32(v.F))
	case value.KindFP64:
		return FP64Key(v.F)
	case value.KindDatetime:
		// datetime is already a monotonic unsigned 64-bit fixed-point
		// value (spec §4.4), so it needs no sign-flip transform.
		return unsignedIntKey(v.DT, 8), nil
	default:
		return nil, fptaerr.New(fptaerr.ETypeMismatch, "kind %s is not numeric", v.Kind)
	}
}
