// Package tuple implements the linearised record format described in
// spec §3 ("Tuple codec"): a header unit, a descriptor array that grows
// downward from a pivot, and a payload region that grows upward from
// the same pivot, so that a whole record can be handed across process
// boundaries as a flat byte slice with O(1) field lookup by tag.
//
// Ported from the layout in fast_positive/tuples.h: head/tail/pivot/end
// cursors measured in 4-byte units. Unlike the original, which exposes
// a tuple as a raw *unit pointer, Rw and Ro here own or borrow a Go
// byte slice respectively (spec REDESIGN FLAGS, "owned buffer + borrowed
// view instead of raw pointers").
package tuple

import "encoding/binary"

// UnitSize is the tuple's atomic granularity: every cursor (head, tail,
// pivot, end) is a count of 4-byte units, never raw bytes.
const UnitSize = 4

const (
	bitsPerField  = 16
	typeIDBits    = 5
	reserveBits   = 1
	columnTagBits = bitsPerField - typeIDBits - reserveBits // 10

	// Limit bounds descriptor counts and per-field payload length alike.
	Limit = 1<<bitsPerField - 1

	// MaxTupleBytes is the largest tuple this codec will construct.
	MaxTupleBytes = Limit * UnitSize

	columnTagMask = 1<<columnTagBits - 1
	// colDead marks an erased descriptor slot: its column tag is
	// rewritten to this value and it is skipped by lookups.
	colDead = columnTagMask

	// MaxColumnTag is the largest column tag an insert may use.
	MaxColumnTag = colDead - 1

	payloadBits = bitsPerField
	payloadMask = 1<<payloadBits - 1

	// BufferLimit is the hard ceiling on an allocated tuple buffer.
	BufferLimit = MaxTupleBytes * 2
)

func unit32(buf []byte, idx uint32) uint32 {
	return binary.LittleEndian.Uint32(buf[idx*UnitSize:])
}

func putUnit32(buf []byte, idx uint32, v uint32) {
	binary.LittleEndian.PutUint32(buf[idx*UnitSize:], v)
}

// Space returns the minimum buffer size, in bytes, that fits itemsLimit
// descriptors and dataBytes of payload (spec §3 "Construction").
func Space(itemsLimit uint32, dataBytes uint32) uint32 {
	dataUnits := (dataBytes + UnitSize - 1) / UnitSize
	// header(1) + reserved descriptor slots + pivot terminator(1) + payload
	return (1 + itemsLimit + 1 + dataUnits) * UnitSize
}
