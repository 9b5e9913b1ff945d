package value

import "fmt"

// Pseudo marks a Value as a range-endpoint placeholder rather than a
// real stored value (spec §4.2 "Pseudo-values begin/end are open range
// endpoints; epsilon pairs with any side to select a single-key point").
type Pseudo uint8

const (
	PseudoNone Pseudo = iota
	PseudoBegin
	PseudoEnd
	PseudoEpsilon
	PseudoInvalid
	// PseudoShoved marks a key-derived value returned in place of an
	// original value that exceeded max_keylen (spec §4.3 "Key->Value").
	PseudoShoved
)

// Value is the tagged union every column value, query argument, and
// cursor range endpoint is expressed as (spec §4.2).
//
// Constructors set BinaryLength = ^uint32(0) for kinds that don't carry
// an explicit length, so callers can tell "unset" from "zero-length"
// defensively.
type Value struct {
	Kind         Kind
	Pseudo       Pseudo
	BinaryLength uint32

	I  int64
	U  uint64
	F  float64
	DT uint64

	// Bytes backs Cstr/Opaque/B96../Nested/Shoved payloads. For copy=false
	// callers (spec §4.3 "value_to_key") this may alias caller storage.
	Bytes []byte
}

const unsetLen = ^uint32(0)

func Null() Value { return Value{Kind: KindNull, BinaryLength: unsetLen} }

func Begin() Value { return Value{Pseudo: PseudoBegin, BinaryLength: unsetLen} }
func End() Value    { return Value{Pseudo: PseudoEnd, BinaryLength: unsetLen} }
func Epsilon() Value { return Value{Pseudo: PseudoEpsilon, BinaryLength: unsetLen} }
func Invalid() Value { return Value{Pseudo: PseudoInvalid, BinaryLength: unsetLen} }

func Uint16(v uint16) Value { return Value{Kind: KindUint16, U: uint64(v), BinaryLength: unsetLen} }
func Int32(v int32) Value   { return Value{Kind: KindInt32, I: int64(v), BinaryLength: unsetLen} }
func Uint32(v uint32) Value { return Value{Kind: KindUint32, U: uint64(v), BinaryLength: unsetLen} }
func FP32(v float32) Value  { return Value{Kind: KindFP32, F: float64(v), BinaryLength: unsetLen} }
func Int64(v int64) Value   { return Value{Kind: KindInt64, I: v, BinaryLength: unsetLen} }
func Uint64(v uint64) Value { return Value{Kind: KindUint64, U: v, BinaryLength: unsetLen} }
func FP64(v float64) Value  { return Value{Kind: KindFP64, F: v, BinaryLength: unsetLen} }
func Datetime(v uint64) Value {
	return Value{Kind: KindDatetime, DT: v, BinaryLength: unsetLen}
}

func fixed(k Kind, b []byte, want int) (Value, error) {
	if len(b) != want {
		return Value{}, fmt.Errorf("value: %s wants %d bytes, got %d", k, want, len(b))
	}
	return Value{Kind: k, Bytes: b, BinaryLength: uint32(len(b))}, nil
}

func B96(b []byte) (Value, error)  { return fixed(KindB96, b, 12) }
func B128(b []byte) (Value, error) { return fixed(KindB128, b, 16) }
func B160(b []byte) (Value, error) { return fixed(KindB160, b, 20) }
func B256(b []byte) (Value, error) { return fixed(KindB256, b, 32) }

// Cstr wraps a UTF-8 string; the tuple codec appends the implicit
// terminator on insert, so the stored byte length is len(s)+1.
func Cstr(s string) Value {
	b := []byte(s)
	return Value{Kind: KindCstr, Bytes: b, BinaryLength: uint32(len(b))}
}

func Opaque(b []byte) Value {
	return Value{Kind: KindOpaque, Bytes: b, BinaryLength: uint32(len(b))}
}

// Nested wraps the raw bytes of a sub-tuple.
func Nested(b []byte) Value {
	return Value{Kind: KindNested, Bytes: b, BinaryLength: uint32(len(b))}
}

// Shoved returns a value standing in for a truncated+hashed long key
// (spec §4.3 "Key->Value"): it carries the comparison key, not the
// original data.
func Shoved(key []byte) Value {
	return Value{Kind: KindOpaque, Pseudo: PseudoShoved, Bytes: key, BinaryLength: uint32(len(key))}
}

// IsNil reports whether v represents a logical NIL for a nullable column
// (as opposed to a pseudo range-endpoint).
func (v Value) IsNil() bool { return v.Pseudo == PseudoNone && v.Kind == KindNull }

func (v Value) String() string {
	switch v.Pseudo {
	case PseudoBegin:
		return "<begin>"
	case PseudoEnd:
		return "<end>"
	case PseudoEpsilon:
		return "<epsilon>"
	case PseudoInvalid:
		return "<invalid>"
	}
	switch v.Kind.Base() {
	case KindNull:
		return "null"
	case KindUint16, KindUint32, KindUint64:
		return fmt.Sprintf("%d", v.U)
	case KindInt32, KindInt64:
		return fmt.Sprintf("%d", v.I)
	case KindFP32, KindFP64:
		return fmt.Sprintf("%g", v.F)
	case KindDatetime:
		return Format(v.DT)
	case KindCstr:
		return string(v.Bytes)
	default:
		return fmt.Sprintf("%x", v.Bytes)
	}
}
