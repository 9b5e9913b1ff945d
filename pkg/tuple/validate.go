package tuple

import (
	"fmt"

	"github.com/positive-tech/fpta/pkg/value"
)

// CheckRo validates a serialized tuple, returning a short human-readable
// reason or "" if the tuple is well-formed (spec §3 "Validation").
func CheckRo(ro Ro) string {
	if len(ro.Units)%UnitSize != 0 {
		return "total_bytes is not a multiple of unit size"
	}
	totalUnits := uint32(len(ro.Units)) / UnitSize
	if totalUnits < 2 {
		return "buffer too small to hold a header and terminator"
	}
	count := unit32(ro.Units, 0)
	if count > Limit {
		return "descriptor count exceeds limit"
	}
	pivot := 1 + count
	if pivot+1 > totalUnits {
		return "descriptor count overruns buffer"
	}
	if unit32(ro.Units, pivot) != 0 {
		return "pivot terminator is not zero"
	}
	tail := totalUnits

	for i := uint32(0); i < count; i++ {
		d := descriptor(unit32(ro.Units, 1+i))
		if d.isDead() {
			continue
		}
		k := d.kind()
		if k.IsInlineable16() {
			continue
		}
		off := uint32(d.payload())
		if off <= pivot || off >= tail {
			return fmt.Sprintf("descriptor %d payload offset out of range", i)
		}
		if k.IsVariableLength() || k.Base() == value.KindCstr {
			hdr := unit32(ro.Units, off)
			brutto := hdr >> 16
			logicalLen := hdr & 0xFFFF
			if off+brutto > tail {
				return fmt.Sprintf("descriptor %d varlen brutto overruns buffer", i)
			}
			declaredBytes := (brutto - 1) * UnitSize
			if k.Base() == value.KindCstr {
				if logicalLen+1 > declaredBytes {
					return fmt.Sprintf("descriptor %d cstr length inconsistent with brutto", i)
				}
				term := ro.Units[(off+1)*UnitSize+logicalLen]
				if term != 0 {
					return fmt.Sprintf("descriptor %d cstr missing terminator", i)
				}
			} else if logicalLen > declaredBytes {
				return fmt.Sprintf("descriptor %d varlen length exceeds brutto", i)
			}
		} else {
			width := uint32(k.FixedWidth())
			if off+unitsFor(width) > tail {
				return fmt.Sprintf("descriptor %d fixed payload overruns buffer", i)
			}
		}
	}
	return ""
}

// Check validates a live mutable tuple by checking it against its own
// TakeNoshrink snapshot (spec §3 "Validation").
func (pt *Rw) Check() string {
	if pt.head > pt.pivot || pt.pivot > pt.tail || pt.tail > pt.end {
		return "cursor invariant head<=pivot<=tail<=end violated"
	}
	return CheckRo(pt.TakeNoshrink())
}
