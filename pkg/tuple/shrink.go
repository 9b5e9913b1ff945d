package tuple

import "github.com/positive-tech/fpta/pkg/value"

// Shrink rebuilds pt in place: dead descriptors are dropped, live
// payload is relocated into a compacted tail region, and junk resets to
// zero (spec §3 "Compaction (shrink)"). Shrink is idempotent.
func (pt *Rw) Shrink() {
	if pt.junk == 0 {
		return
	}
	live := pt.descriptors()

	// Extract every live payload into a freestanding copy before any
	// relocation write begins: relocation writes forward from pivot+1,
	// which can overlap still-unread source payload further out, so the
	// read pass and the write pass must not interleave.
	type extracted struct {
		tag        uint16
		kind       value.Kind
		inline     uint16
		data       []byte
		logicalLen uint32
		isVarlen   bool
	}
	var extractedFields []extracted
	for _, d := range live {
		if d.isDead() {
			continue
		}
		k := d.kind()
		if k.IsInlineable16() {
			extractedFields = append(extractedFields, extracted{tag: d.tag(), kind: k, inline: d.payload()})
			continue
		}
		off := uint32(d.payload())
		if k.IsVariableLength() || k.Base() == value.KindCstr {
			_, logicalLen, data := pt.varlenAt(off)
			cp := append([]byte{}, data...)
			if k.Base() == value.KindCstr {
				cp = append(cp, 0) // keep the implicit terminator
			}
			extractedFields = append(extractedFields, extracted{
				tag: d.tag(), kind: k, data: cp,
				logicalLen: logicalLen, isVarlen: true,
			})
		} else {
			width := k.FixedWidth()
			extractedFields = append(extractedFields, extracted{
				tag: d.tag(), kind: k,
				data: append([]byte{}, pt.buf[off*UnitSize:off*UnitSize+uint32(width)]...),
			})
		}
	}

	newTail := pt.pivot + 1
	newDescs := make([]descriptor, 0, len(extractedFields))
	for _, f := range extractedFields {
		if f.kind.IsInlineable16() {
			newDescs = append(newDescs, makeDescriptor(f.kind, f.tag, f.inline))
			continue
		}
		var newOff uint32
		if f.isVarlen {
			newOff, _ = pt.relocateVarlen(&newTail, f.data, f.logicalLen)
		} else {
			newOff, _ = pt.relocateFixed(&newTail, f.data)
		}
		newDescs = append(newDescs, makeDescriptor(f.kind, f.tag, uint16(newOff)))
	}

	newHead := pt.pivot - uint32(len(newDescs))
	for i, d := range newDescs {
		putUnit32(pt.buf, newHead+uint32(i), uint32(d))
	}
	pt.head = newHead
	pt.tail = newTail
	pt.junk = 0
}

// relocateFixed writes cp at *tail (advancing it) and returns the unit
// offset written.
func (pt *Rw) relocateFixed(tail *uint32, cp []byte) (uint32, error) {
	off := *tail
	copy(pt.buf[off*UnitSize:], cp)
	*tail += unitsFor(uint32(len(cp)))
	return off, nil
}

func (pt *Rw) relocateVarlen(tail *uint32, cp []byte, logicalLen uint32) (uint32, error) {
	off := *tail
	brutto := unitsFor(uint32(len(cp)) + UnitSize)
	putUnit32(pt.buf, off, makeVarlenHeader(brutto, logicalLen))
	copy(pt.buf[(off+1)*UnitSize:], cp)
	*tail += brutto
	return off, nil
}

// CondShrink runs Shrink only if there is junk to reclaim, and reports
// whether compaction happened -- callers use the return value to decide
// whether previously saved payload offsets are now invalid (spec §3
// "Compaction (shrink)").
func (pt *Rw) CondShrink() bool {
	if pt.junk == 0 {
		return false
	}
	pt.Shrink()
	return true
}
