package value

import "math"

// DENIL sentinels returned by field accessors on a miss (spec §4.1,
// "Observable DENIL values for missing fields"). These must match the
// sentinels keycodec uses for nullable indexed columns (spec §4.3 rule 6).
const (
	DenilUint16 uint16 = 0xFFFF
	DenilInt32  int32  = math.MinInt32
	DenilUint32 uint32 = 0xFFFFFFFF
	DenilInt64  int64  = math.MinInt64
	DenilUint64 uint64 = 0xFFFFFFFFFFFFFFFF
	DenilDatetime uint64 = 0
)

// DenilFP32 is a quiet NaN with a fixed, reproducible bit pattern.
func DenilFP32() float32 { return math.Float32frombits(0x7FC00000) }

// DenilFP64 is a quiet NaN with a fixed, reproducible bit pattern.
func DenilFP64() float64 { return math.Float64frombits(0x7FF8000000000000) }

// NilSignedIntKey is the key-space NIL for a nullable signed-integer
// indexed column: it sorts below any real signed value (spec §4.3 rule 6).
const NilSignedIntKey int64 = math.MinInt64

// NilFloatKeyBits64/32 are the bit patterns for "-quiet-NaN, all mantissa
// bits set" used as the NIL key for nullable float columns (spec §4.3
// rule 6). All-ones happens to satisfy sign=1, exponent=all-1s, mantissa
// all-1s simultaneously.
const (
	NilFloatKeyBits64 uint64 = 0xFFFFFFFFFFFFFFFF
	NilFloatKeyBits32 uint32 = 0xFFFFFFFF
)

// IsDenil reports whether v is the DENIL sentinel for its own kind
// (used by the "DENIL consistency" testable property, spec §8).
func (v Value) IsDenil() bool {
	switch v.Kind.Base() {
	case KindUint16:
		return uint16(v.U) == DenilUint16
	case KindInt32:
		return int32(v.I) == DenilInt32
	case KindUint32:
		return uint32(v.U) == DenilUint32
	case KindInt64:
		return v.I == DenilInt64
	case KindUint64:
		return v.U == DenilUint64
	case KindFP32:
		return math.Float32bits(float32(v.F)) == 0x7FC00000
	case KindFP64:
		return math.Float64bits(v.F) == 0x7FF8000000000000
	case KindDatetime:
		return v.DT == DenilDatetime
	case KindCstr, KindOpaque, KindB96, KindB128, KindB160, KindB256, KindNested:
		return v.Bytes == nil
	default:
		return false
	}
}
