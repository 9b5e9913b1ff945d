package tuple

import (
	"encoding/binary"
	"math"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/value"
)

// Filter selects which descriptors a lookup/erase call should consider,
// mirroring the OR-group masks in spec §3 "Lookup" (any_int, any_uint,
// any_fp, any_number, any).
type Filter struct {
	Kind    value.Kind
	AnyInt  bool
	AnyUint bool
	AnyFP   bool
	AnyAny  bool
}

// ExactKind builds a filter matching a single concrete kind.
func ExactKind(k value.Kind) Filter { return Filter{Kind: k} }

// Any matches every live descriptor regardless of kind.
func Any() Filter { return Filter{AnyAny: true} }

func (f Filter) matches(k value.Kind) bool {
	if f.AnyAny {
		return true
	}
	if f.AnyInt {
		return k.IsAnyInt()
	}
	if f.AnyUint {
		return k.IsAnyUint()
	}
	if f.AnyFP {
		return k.IsAnyFP()
	}
	return k == f.Kind
}

func fixedBytes(v value.Value) []byte {
	switch v.Kind.Base() {
	case value.KindInt32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(int32(v.I)))
		return b
	case value.KindUint32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v.U))
		return b
	case value.KindFP32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v.F)))
		return b
	case value.KindInt64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v.I))
		return b
	case value.KindUint64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v.U)
		return b
	case value.KindFP64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.F))
		return b
	case value.KindDatetime:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v.DT)
		return b
	default:
		return v.Bytes
	}
}

func parseFixed(kind value.Kind, b []byte) value.Value {
	switch kind.Base() {
	case value.KindInt32:
		return value.Int32(int32(binary.LittleEndian.Uint32(b)))
	case value.KindUint32:
		return value.Uint32(binary.LittleEndian.Uint32(b))
	case value.KindFP32:
		return value.FP32(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case value.KindInt64:
		return value.Int64(int64(binary.LittleEndian.Uint64(b)))
	case value.KindUint64:
		return value.Uint64(binary.LittleEndian.Uint64(b))
	case value.KindFP64:
		return value.FP64(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case value.KindDatetime:
		return value.Datetime(binary.LittleEndian.Uint64(b))
	default:
		cp := make([]byte, len(b))
		copy(cp, b)
		return value.Value{Kind: kind, Bytes: cp, BinaryLength: uint32(len(cp))}
	}
}

// storeField writes v's payload (inline or out-of-line) and appends a
// descriptor for it under tag.
func (pt *Rw) storeField(tag uint16, v value.Value) error {
	if tag > MaxColumnTag {
		return fptaerr.New(fptaerr.EInval, "column tag %d exceeds max %d", tag, MaxColumnTag)
	}
	if v.Kind.IsInlineable16() {
		return pt.appendDescriptor(v.Kind, tag, uint16(v.U))
	}
	if v.Kind.Base() == value.KindCstr {
		raw := append(append([]byte{}, v.Bytes...), 0) // implicit terminator
		off, err := pt.putVarlen(raw, uint32(len(v.Bytes)))
		if err != nil {
			return err
		}
		return pt.appendDescriptor(v.Kind, tag, uint16(off))
	}
	if v.Kind.IsVariableLength() {
		off, err := pt.putVarlen(v.Bytes, uint32(len(v.Bytes)))
		if err != nil {
			return err
		}
		return pt.appendDescriptor(v.Kind, tag, uint16(off))
	}
	// fixed-width with ex-data (int32/uint32/fp32/int64/uint64/fp64/
	// datetime/b96../256): payload holds a plain unit offset, no varlen
	// header, since the width is implied by the type.
	off, err := pt.putFixed(v.Kind, fixedBytes(v))
	if err != nil {
		return err
	}
	return pt.appendDescriptor(v.Kind, tag, uint16(off))
}

// Insert appends a new descriptor unconditionally, even if one with the
// same tag already exists (spec §3 "Lookup": "insert appends
// unconditionally").
func (pt *Rw) Insert(tag uint16, v value.Value) error {
	return pt.storeField(tag, v)
}

// Upsert replaces the first descriptor matching tag, or appends one if
// none matches (spec §3 "Lookup": "first match wins for upsert").
func (pt *Rw) Upsert(tag uint16, v value.Value) error {
	if idx, ok := pt.findFirst(tag, Any()); ok {
		pt.deadenAt(idx)
	}
	return pt.storeField(tag, v)
}

// Update replaces the first descriptor matching tag if it exists (that
// descriptor is marked dead and a new one is appended), otherwise
// reports fptaerr.ENotFound (spec §3 "Lookup": "update edits
// the first match only").
func (pt *Rw) Update(tag uint16, v value.Value) error {
	idx, ok := pt.findFirst(tag, Any())
	if !ok {
		return fptaerr.New(fptaerr.ENotFound, "no field with tag %d", tag)
	}
	pt.deadenAt(idx)
	return pt.storeField(tag, v)
}

// deadenAt marks the descriptor at unit index idx as DEAD and accounts
// its (and any out-of-line payload's) units as junk.
func (pt *Rw) deadenAt(idx uint32) {
	d := descriptor(unit32(pt.buf, idx))
	k := d.kind()
	if !k.IsInlineable16() {
		off := uint32(d.payload())
		if k.IsVariableLength() || k.Base() == value.KindCstr {
			brutto, _, _ := pt.varlenAt(off)
			pt.junk += brutto
		} else {
			pt.junk += unitsFor(uint32(k.FixedWidth()))
		}
	}
	putUnit32(pt.buf, idx, uint32(withDeadTag(d)))
	pt.junk++
}

// findFirst returns the unit index of the first live descriptor whose
// tag and filter match, scanning head..pivot as spec §3 "Lookup"
// requires.
func (pt *Rw) findFirst(tag uint16, f Filter) (uint32, bool) {
	for i := pt.head; i < pt.pivot; i++ {
		d := descriptor(unit32(pt.buf, i))
		if d.isDead() || d.tag() != tag {
			continue
		}
		if !f.matches(d.kind()) {
			continue
		}
		return i, true
	}
	return 0, false
}

// Get returns the first live value with the given tag.
func (pt *Rw) Get(tag uint16, f Filter) (value.Value, bool) {
	idx, ok := pt.findFirst(tag, f)
	if !ok {
		return value.Value{}, false
	}
	return pt.valueAt(idx), true
}

// GetAll returns every live value with the given tag, in descriptor
// order (duplicate tags are legal, spec §3 "Lookup").
func (pt *Rw) GetAll(tag uint16, f Filter) []value.Value {
	var out []value.Value
	for i := pt.head; i < pt.pivot; i++ {
		d := descriptor(unit32(pt.buf, i))
		if d.isDead() || d.tag() != tag || !f.matches(d.kind()) {
			continue
		}
		out = append(out, pt.valueAt(i))
	}
	return out
}

func (pt *Rw) valueAt(idx uint32) value.Value {
	d := descriptor(unit32(pt.buf, idx))
	k := d.kind()
	if k.IsInlineable16() {
		return value.Uint16(d.payload())
	}
	off := uint32(d.payload())
	if k.Base() == value.KindCstr {
		_, logicalLen, data := pt.varlenAt(off)
		return value.Value{Kind: k, Bytes: append([]byte{}, data[:logicalLen]...), BinaryLength: logicalLen}
	}
	if k.IsVariableLength() {
		_, logicalLen, data := pt.varlenAt(off)
		return value.Value{Kind: k, Bytes: append([]byte{}, data...), BinaryLength: logicalLen}
	}
	width := k.FixedWidth()
	return parseFixed(k, pt.buf[off*UnitSize:off*UnitSize+uint32(width)])
}

// Erase marks every live descriptor matching tag+filter as dead and
// returns the count erased (spec §3 "Erase").
func (pt *Rw) Erase(tag uint16, f Filter) int {
	n := 0
	for i := pt.head; i < pt.pivot; i++ {
		d := descriptor(unit32(pt.buf, i))
		if d.isDead() || d.tag() != tag || !f.matches(d.kind()) {
			continue
		}
		pt.deadenAt(i)
		n++
	}
	return n
}

// EraseField erases a single descriptor already located by the caller
// (e.g. from a GetAll scan), mirroring fptu_erase_field's by-pointer form.
func (pt *Rw) EraseField(tag uint16, occurrence int) bool {
	seen := 0
	for i := pt.head; i < pt.pivot; i++ {
		d := descriptor(unit32(pt.buf, i))
		if d.isDead() || d.tag() != tag {
			continue
		}
		if seen == occurrence {
			pt.deadenAt(i)
			return true
		}
		seen++
	}
	return false
}
