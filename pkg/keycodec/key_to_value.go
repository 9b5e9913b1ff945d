package keycodec

import (
	"encoding/binary"
	"math"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/value"
)

// KeyToValue inverts ValueToKey for a scalar column (spec §4.3
// "Key->Value"): for a key that was truncated+hashed, the result is a
// Shoved value exposing the raw comparison key rather than the
// original data, since the original can't be recovered.
func KeyToValue(column schema.Column, key []byte) (value.Value, error) {
	if !column.Flags().IsOrdered() {
		return value.Shoved(key), nil
	}
	if isFixedNumeric(column.Kind()) {
		return numericKeyToValue(column.Kind(), key)
	}
	switch column.Kind().Base() {
	case value.KindB96, value.KindB128, value.KindB160, value.KindB256:
		return value.Value{Kind: column.Kind(), Bytes: append([]byte{}, key...), BinaryLength: uint32(len(key))}, nil
	case value.KindCstr, value.KindOpaque, value.KindNested:
		body := key
		if column.IsNullable() {
			if len(body) == 0 {
				return value.Value{}, fptaerr.New(fptaerr.ESchemaCorrupted, "empty key for nullable string column")
			}
			if column.Flags().IsReverse() {
				body = body[:len(body)-NotnilPrefixLen]
			} else {
				body = body[NotnilPrefixLen:]
			}
		}
		if len(body) == ShovedKeylen {
			return value.Shoved(append([]byte{}, body...)), nil
		}
		return value.Value{Kind: column.Kind(), Bytes: append([]byte{}, body...), BinaryLength: uint32(len(body))}, nil
	default:
		return value.Value{}, fptaerr.New(fptaerr.ETypeMismatch, "kind %s has no key decoding", column.Kind())
	}
}

func numericKeyToValue(kind value.Kind, key []byte) (value.Value, error) {
	switch kind.Base() {
	case value.KindUint16:
		return value.Uint16(uint16(beUint(key))), nil
	case value.KindInt32:
		u := beUint(key) ^ (uint64(1) << 31)
		return value.Int32(int32(u)), nil
	case value.KindUint32:
		return value.Uint32(uint32(beUint(key))), nil
	case value.KindInt64:
		u := beUint(key) ^ (uint64(1) << 63)
		return value.Int64(int64(u)), nil
	case value.KindUint64:
		return value.Uint64(beUint(key)), nil
	case value.KindFP32:
		bits := uint32(beUint(key))
		return value.FP32(decodeFloatKey32(bits)), nil
	case value.KindFP64:
		bits := beUint(key)
		return value.FP64(decodeFloatKey64(bits)), nil
	case value.KindDatetime:
		return value.Datetime(beUint(key)), nil
	default:
		return value.Value{}, fptaerr.New(fptaerr.ETypeMismatch, "kind %s is not numeric", kind)
	}
}

func beUint(key []byte) uint64 {
	var buf [8]byte
	copy(buf[8-len(key):], key)
	return binary.BigEndian.Uint64(buf[:])
}

func decodeFloatKey32(bits uint32) float32 {
	const sign = uint32(1) << 31
	if bits&sign != 0 {
		bits = bits &^ sign
	} else {
		bits = ^bits
	}
	return math.Float32frombits(bits)
}

func decodeFloatKey64(bits uint64) float64 {
	const sign = uint64(1) << 63
	if bits&sign != 0 {
		bits = bits &^ sign
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}
