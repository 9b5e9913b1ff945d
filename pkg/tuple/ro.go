package tuple

import "github.com/positive-tech/fpta/pkg/fptaerr"

// Ro is the read-only, wire/shared-memory form of a tuple (spec §3
// "Tuple (read-only form, Ro)"): a header unit, a descriptor array
// immediately following it (no head-room slack), and payload. Unlike
// Rw, a live Ro has no reserved-but-unused descriptor slots: TakeNoshrink
// always compacts away that slack so the byte form is minimal, even
// though Shrink/CondShrink (removing DEAD descriptors and junk payload)
// remains a separate, explicit step.
type Ro struct {
	Units []byte // raw bytes, TotalBytes() == len(Units), a multiple of UnitSize
}

// TotalBytes returns the serialized size in bytes.
func (ro Ro) TotalBytes() int { return len(ro.Units) }

// TakeNoshrink packages pt's current content as an Ro without first
// compacting junk (spec §3 "take_noshrink"): dead descriptors and
// garbage payload units, if any, travel along for the ride.
func (pt *Rw) TakeNoshrink() Ro {
	count := pt.pivot - pt.head
	totalUnits := 1 + count + 1 + (pt.tail - pt.pivot - 1)
	out := make([]byte, totalUnits*UnitSize)
	putUnit32(out, 0, count)
	for i := uint32(0); i < count; i++ {
		putUnit32(out, 1+i, unit32(pt.buf, pt.head+i))
	}
	newPivot := 1 + count
	payloadLen := (pt.tail - pt.pivot - 1) * UnitSize
	copy(out[(newPivot+1)*UnitSize:], pt.buf[(pt.pivot+1)*UnitSize:(pt.pivot+1)*UnitSize+payloadLen])

	// Descriptor payload offsets are relative to the tuple header, so
	// shifting the pivot from pt.pivot to newPivot requires rewriting
	// every out-of-line offset by the same delta.
	delta := int64(pt.pivot) - int64(newPivot)
	for i := uint32(0); i < count; i++ {
		d := descriptor(unit32(out, 1+i))
		if d.isDead() || d.kind().IsInlineable16() {
			continue
		}
		newOff := uint32(int64(d.payload()) - delta)
		putUnit32(out, 1+i, uint32(makeDescriptor(d.kind(), d.tag(), uint16(newOff))))
	}
	putUnit32(out, newPivot, 0)
	return Ro{Units: out}
}

// Take compacts junk first, then packages the result (spec §3
// "take"): the common case, used whenever the caller doesn't need to
// preserve previously saved payload pointers across the call.
func (pt *Rw) Take() Ro {
	pt.Shrink()
	return pt.TakeNoshrink()
}

// CheckAndGetBufferSize validates ro and returns the buffer size Fetch
// would need to reconstruct it with room for moreItems additional
// descriptors and moreBytes additional payload (spec §3 "Validation").
func CheckAndGetBufferSize(ro Ro, moreItems uint32, moreBytes uint32) (uint32, error) {
	if reason := CheckRo(ro); reason != "" {
		return 0, fptaerr.New(fptaerr.ESchemaCorrupted, "%s", reason)
	}
	count := unit32(ro.Units, 0)
	return Space(count+moreItems, uint32(len(ro.Units))+moreBytes), nil
}

// Fetch parses a serialized Ro into a fresh mutable Rw over
// bufferSpace, reserving room for moreItems additional descriptors
// (spec §3 "fetch").
func Fetch(ro Ro, bufferSpace []byte, moreItems uint32) (*Rw, error) {
	if reason := CheckRo(ro); reason != "" {
		return nil, fptaerr.New(fptaerr.ESchemaCorrupted, "%s", reason)
	}
	count := unit32(ro.Units, 0)
	pt, err := Init(bufferSpace, count+moreItems)
	if err != nil {
		return nil, err
	}

	// Descriptors land at the new head..pivot, which differs from the
	// source's 1..1+count layout, so offsets need the same delta-shift
	// TakeNoshrink uses in reverse.
	srcPivot := uint32(1 + count)
	delta := int64(pt.pivot) - int64(srcPivot)
	for i := uint32(0); i < count; i++ {
		d := descriptor(unit32(ro.Units, 1+i))
		putUnit32(pt.buf, pt.head-count+i, uint32(d))
		if !d.isDead() && !d.kind().IsInlineable16() {
			newOff := uint32(int64(d.payload()) + delta)
			nd := makeDescriptor(d.kind(), d.tag(), uint16(newOff))
			putUnit32(pt.buf, pt.head-count+i, uint32(nd))
		}
	}
	pt.head -= count

	payloadLen := uint32(len(ro.Units)) - (srcPivot+1)*UnitSize
	copy(pt.buf[(pt.pivot+1)*UnitSize:], ro.Units[(srcPivot+1)*UnitSize:(srcPivot+1)*UnitSize+payloadLen])
	pt.tail = pt.pivot + 1 + payloadLen/UnitSize
	return pt, nil
}
