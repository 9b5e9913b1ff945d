package tuple

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/value"
)

// Rw is a mutable tuple under construction (spec §3 "Tuple (mutable
// form, Rw)"). Its five cursors are unit indices into buf:
//
//	0 .. head)        unused head-room reserved for future descriptors
//	head .. pivot)    live and dead descriptors, most-recent nearest head
//	pivot             terminator unit (always zero)
//	pivot+1 .. tail)  payload, varlen records and fixed ex-data
//	tail .. end)      unused tail-room reserved for future payload
type Rw struct {
	buf                     []byte
	head, pivot, tail, end  uint32
	junk                    uint32
}

// Init lays out a fresh Rw over a caller-provided buffer (spec §3
// "Construction"), reserving itemsLimit descriptor slots.
func Init(buf []byte, itemsLimit uint32) (*Rw, error) {
	end := uint32(len(buf)) / UnitSize
	pivot := 1 + itemsLimit
	if pivot+1 > end {
		return nil, fptaerr.New(fptaerr.ENoSpace, "buffer too small for %d items", itemsLimit)
	}
	rw := &Rw{buf: buf, head: pivot, pivot: pivot, tail: pivot + 1, end: end}
	putUnit32(rw.buf, 0, 0)
	putUnit32(rw.buf, pivot, 0)
	return rw, nil
}

// Alloc returns a newly allocated Rw sized exactly to Space(itemsLimit,
// dataBytes) (spec §3 "Construction").
func Alloc(itemsLimit uint32, dataBytes uint32) (*Rw, error) {
	sz := Space(itemsLimit, dataBytes)
	if sz > BufferLimit {
		return nil, fptaerr.New(fptaerr.ETooLarge, "requested tuple buffer %d exceeds limit %d", sz, BufferLimit)
	}
	return Init(make([]byte, sz), itemsLimit)
}

// Clear resets pt to the empty tuple without reallocating, preserving
// its descriptor-slot reservation.
func (pt *Rw) Clear() {
	pt.head = pt.pivot
	pt.tail = pt.pivot + 1
	pt.junk = 0
	putUnit32(pt.buf, 0, 0)
	putUnit32(pt.buf, pt.pivot, 0)
}

// Space4Items returns the number of descriptor slots still free.
func (pt *Rw) Space4Items() uint32 { return pt.head }

// Space4Data returns the number of whole payload units still free.
func (pt *Rw) Space4Data() uint32 { return pt.end - pt.tail }

// Junkspace returns the number of units (descriptor + payload) marked
// dead, reclaimable by Shrink.
func (pt *Rw) Junkspace() uint32 { return pt.junk }

func (pt *Rw) descriptors() []descriptor {
	n := pt.pivot - pt.head
	out := make([]descriptor, n)
	for i := uint32(0); i < n; i++ {
		out[i] = descriptor(unit32(pt.buf, pt.head+i))
	}
	return out
}

// reserveDescriptor allocates one new descriptor slot at --head and
// returns its unit index.
func (pt *Rw) reserveDescriptor() (uint32, error) {
	if pt.head == 0 {
		return 0, fptaerr.New(fptaerr.ENoSpace, "no free descriptor slots")
	}
	pt.head--
	return pt.head, nil
}

func unitsFor(n uint32) uint32 { return (n + UnitSize - 1) / UnitSize }

// reservePayload allocates nUnits of payload space at tail and returns
// its starting unit index (offset from the header, as descriptors
// record it).
func (pt *Rw) reservePayload(nUnits uint32) (uint32, error) {
	if pt.tail+nUnits > pt.end {
		return 0, fptaerr.New(fptaerr.ENoSpace, "payload of %d units does not fit", nUnits)
	}
	off := pt.tail
	pt.tail += nUnits
	return off, nil
}

// putFixed writes a >16-bit fixed-width value (int32/uint32/fp32/int64/
// uint64/fp64/datetime/b96../256) into newly reserved payload units.
func (pt *Rw) putFixed(kind value.Kind, raw []byte) (uint32, error) {
	n := unitsFor(uint32(len(raw)))
	off, err := pt.reservePayload(n)
	if err != nil {
		return 0, err
	}
	copy(pt.buf[off*UnitSize:], raw)
	return off, nil
}

// varlen header: brutto (total units incl. header, 16 bits) | logical
// length (opaque bytes, cstr bytes, array element count, or nested
// tuple bytes; 16 bits).
func makeVarlenHeader(bruttoUnits uint32, logicalLen uint32) uint32 {
	return (bruttoUnits&0xFFFF)<<16 | (logicalLen & 0xFFFF)
}

func (pt *Rw) putVarlen(payload []byte, logicalLen uint32) (uint32, error) {
	bruttoBytes := uint32(len(payload)) + UnitSize // +1 unit for the varlen header itself
	n := unitsFor(bruttoBytes)
	off, err := pt.reservePayload(n)
	if err != nil {
		return 0, err
	}
	putUnit32(pt.buf, off, makeVarlenHeader(n, logicalLen))
	copy(pt.buf[(off+1)*UnitSize:], payload)
	return off, nil
}

func (pt *Rw) varlenAt(off uint32) (brutto uint32, logicalLen uint32, data []byte) {
	hdr := unit32(pt.buf, off)
	brutto = hdr >> 16
	logicalLen = hdr & 0xFFFF
	start := (off + 1) * UnitSize
	data = pt.buf[start : start+logicalLen]
	return
}

func (pt *Rw) appendDescriptor(kind value.Kind, tag uint16, payload uint16) error {
	idx, err := pt.reserveDescriptor()
	if err != nil {
		return err
	}
	putUnit32(pt.buf, idx, uint32(makeDescriptor(kind, tag, payload)))
	return nil
}
