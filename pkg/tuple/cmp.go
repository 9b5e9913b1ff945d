package tuple

import (
	"bytes"
	"sort"

	"github.com/positive-tech/fpta/pkg/value"
)

// field is a (tag, kind, payload-bytes) triple used for physical-order-
// independent comparison (spec §3 "Comparison").
type field struct {
	tag   uint16
	kind  uint8
	bytes []byte
}

func fieldsOf(ro Ro) []field {
	count := unit32(ro.Units, 0)
	out := make([]field, 0, count)
	for i := uint32(0); i < count; i++ {
		d := descriptor(unit32(ro.Units, 1+i))
		if d.isDead() {
			continue
		}
		k := d.kind()
		var payload []byte
		if k.IsInlineable16() {
			payload = []byte{byte(d.payload()), byte(d.payload() >> 8)}
		} else {
			off := uint32(d.payload())
			if k.IsVariableLength() || k.Base() == value.KindCstr {
				hdr := unit32(ro.Units, off)
				logicalLen := hdr & 0xFFFF
				start := (off + 1) * UnitSize
				payload = append([]byte{}, ro.Units[start:start+logicalLen]...)
			} else {
				width := uint32(k.FixedWidth())
				start := off * UnitSize
				payload = append([]byte{}, ro.Units[start:start+width]...)
			}
		}
		out = append(out, field{tag: d.tag(), kind: uint8(k), bytes: payload})
	}
	return out
}

func sortedFields(ro Ro) []field {
	fs := fieldsOf(ro)
	sort.Slice(fs, func(i, j int) bool { return fieldLess(fs[i], fs[j]) })
	return fs
}

func fieldLess(a, b field) bool {
	if a.tag != b.tag {
		return a.tag < b.tag
	}
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return bytes.Compare(a.bytes, b.bytes) < 0
}

func fieldEqual(a, b field) bool {
	return a.tag == b.tag && a.kind == b.kind && bytes.Equal(a.bytes, b.bytes)
}

// CmpTuples implements spec §3 "Comparison": equality is physical-
// order-independent (multisets of (tag,kind,payload) match); ordering
// is lexicographic over the sorted descriptor sequence, used internally
// by the secondary-index row comparator.
func CmpTuples(a, b Ro) int {
	fa := sortedFields(a)
	fb := sortedFields(b)
	n := len(fa)
	if len(fb) < n {
		n = len(fb)
	}
	for i := 0; i < n; i++ {
		if fieldEqual(fa[i], fb[i]) {
			continue
		}
		if fieldLess(fa[i], fb[i]) {
			return -1
		}
		return 1
	}
	switch {
	case len(fa) < len(fb):
		return -1
	case len(fa) > len(fb):
		return 1
	default:
		return 0
	}
}

// EqualTuples reports whether a and b contain the same multiset of
// live fields, ignoring physical descriptor order.
func EqualTuples(a, b Ro) bool { return CmpTuples(a, b) == 0 }
