package tuple

import "github.com/positive-tech/fpta/pkg/value"

// descriptor is the packed 32-bit field header (spec §3 "Descriptor"):
// 5 bits type, 1 bit array flag, 10 bits column tag, 16 bits payload.
// For inline-fitting fixed values (uint16) the payload bits ARE the
// value; otherwise they hold an offset in units from the tuple header
// to a payload record.
type descriptor uint32

func makeDescriptor(kind value.Kind, tag uint16, payload uint16) descriptor {
	d := uint32(payload) & payloadMask
	d |= (uint32(tag) & columnTagMask) << bitsPerField
	d |= uint32(kind.Base()) << (bitsPerField + columnTagBits + reserveBits)
	if kind.IsArray() {
		d |= 1 << (bitsPerField + columnTagBits)
	}
	return descriptor(d)
}

func (d descriptor) tag() uint16 {
	return uint16((uint32(d) >> bitsPerField) & columnTagMask)
}

func (d descriptor) kind() value.Kind {
	base := value.Kind((uint32(d) >> (bitsPerField + columnTagBits + reserveBits)))
	isArray := (uint32(d)>>(bitsPerField+columnTagBits))&1 != 0
	if isArray {
		return base | value.ArrayFlag
	}
	return base
}

func (d descriptor) payload() uint16 {
	return uint16(uint32(d) & payloadMask)
}

func (d descriptor) isDead() bool {
	return d.tag() == colDead
}

func withDeadTag(d descriptor) descriptor {
	return descriptor((uint32(d) &^ (columnTagMask << bitsPerField)) | (colDead << bitsPerField))
}
