// Package value implements the tagged value container and type system
// shared by tuples, schemas, and key derivation (spec §3, §4.2).
package value

// Kind is a tuple field's storage type. It occupies the low 5 bits of a
// descriptor's type field (spec §3 "Descriptor"); values 0-15 are base
// types and ArrayFlag marks "array_of(T)".
type Kind uint8

const (
	KindNull Kind = iota // also used as the composite-index marker, see schema.Column.IsComposite
	KindUint16
	KindInt32
	KindUint32
	KindFP32
	KindInt64
	KindUint64
	KindFP64
	KindDatetime
	KindB96
	KindB128
	KindB160
	KindB256
	KindCstr
	KindOpaque
	KindNested
	numKinds
)

// ArrayFlag, OR'd into a Kind, marks a descriptor as array_of(base kind).
const ArrayFlag Kind = 0x10

// Base strips the array flag, returning the element kind.
func (k Kind) Base() Kind { return k &^ ArrayFlag }

// IsArray reports whether k carries the array_of flag.
func (k Kind) IsArray() bool { return k&ArrayFlag != 0 }

func (k Kind) String() string {
	names := [numKinds]string{
		"null", "uint16", "int32", "uint32", "fp32", "int64", "uint64",
		"fp64", "datetime", "b96", "b128", "b160", "b256", "cstr",
		"opaque", "nested",
	}
	base := k.Base()
	suffix := ""
	if k.IsArray() {
		suffix = "[]"
	}
	if int(base) < len(names) {
		return names[base] + suffix
	}
	return "kind(?)"
}

// FixedWidth returns the inline byte width of fixed-size kinds (0 for
// variable-length kinds cstr/opaque/nested and for null).
func (k Kind) FixedWidth() int {
	switch k.Base() {
	case KindUint16:
		return 2
	case KindInt32, KindUint32, KindFP32:
		return 4
	case KindInt64, KindUint64, KindFP64, KindDatetime:
		return 8
	case KindB96:
		return 12
	case KindB128:
		return 16
	case KindB160:
		return 20
	case KindB256:
		return 32
	default:
		return 0
	}
}

// IsVariableLength reports whether values of this kind carry a varlen
// header in the payload region (spec §4.1 "Insert").
func (k Kind) IsVariableLength() bool {
	switch k.Base() {
	case KindCstr, KindOpaque, KindNested:
		return true
	default:
		return k.IsArray()
	}
}

// IsInlineable16 reports whether a scalar of this kind fits the 16-bit
// inline descriptor payload slot (spec §4.1 "for fixed <=16-bit values").
func (k Kind) IsInlineable16() bool {
	return !k.IsArray() && k.Base() == KindUint16
}

// group membership used by tuple lookup filters and value compatibility.
func (k Kind) IsAnyInt() bool {
	switch k.Base() {
	case KindInt32, KindInt64:
		return true
	}
	return false
}

func (k Kind) IsAnyUint() bool {
	switch k.Base() {
	case KindUint16, KindUint32, KindUint64:
		return true
	}
	return false
}

func (k Kind) IsAnyFP() bool {
	switch k.Base() {
	case KindFP32, KindFP64:
		return true
	}
	return false
}

func (k Kind) isAnyNumber() bool {
	return k.IsAnyInt() || k.IsAnyUint() || k.IsAnyFP()
}
