// Package schema implements the catalog of table and column metadata:
// packed shove identifiers, the per-table schema record, the process
// dictionary of symbolic names, and table create/drop/refresh against
// the storage catalog (spec §3 "Schema record", §5 "Describe columns").
package schema

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/positive-tech/fpta/pkg/value"
)

// Shove is a 64-bit packed identifier: 54 bits of name hash, 5 bits of
// index flags, 5 bits of data type (spec §3 "A shove is a 64-bit packed
// identifier").
type Shove uint64

const (
	shoveDataTypeBits = 5
	shoveIndexBits    = 5
	shoveLowBits      = shoveDataTypeBits + shoveIndexBits // 10
	shoveNameBits     = 64 - shoveLowBits                  // 54
	shoveNameMask      = uint64(1)<<shoveNameBits - 1
)

// MakeShove packs a name hash, index flags, and data type into one
// Shove. nameHash is truncated to its low 54 bits.
func MakeShove(nameHash uint64, flags IndexFlags, kind value.Kind) Shove {
	nameHash &= shoveNameMask
	return Shove(nameHash<<shoveLowBits | uint64(flags)<<shoveDataTypeBits | uint64(kind))
}

// DataType returns the packed column/value kind.
func (s Shove) DataType() value.Kind { return value.Kind(uint64(s) & 0x1F) }

// Flags returns the packed index flags.
func (s Shove) Flags() IndexFlags { return IndexFlags((uint64(s) >> shoveDataTypeBits) & 0x1F) }

// NameHash returns the high 54 bits identifying the symbolic name.
func (s Shove) NameHash() uint64 { return uint64(s) >> shoveLowBits }

// SameColumn reports whether a and b name the same column: they agree
// outside the low 10 bits, so data type and index flags may differ
// between otherwise-identical shoves (spec §3 "shove_eq").
func SameColumn(a, b Shove) bool { return a.NameHash() == b.NameHash() }

// nameHashSeed is a fixed constant distinguishing this name-hash domain
// from any other xxhash use in the process (spec §5 "t1ha2_atonce(upper(name),
// seed = fixed constant)"; substituted with xxhash, see DESIGN.md).
const nameHashSeed = "fpta-schema-name-v1\x00"

// HashName computes the 54-bit name hash used as a shove's high bits.
// Names are case-folded to upper case first, per spec §5.
func HashName(name string) uint64 {
	h := xxhash.New()
	h.WriteString(nameHashSeed)
	h.WriteString(strings.ToUpper(name))
	return h.Sum64() & shoveNameMask
}

// ColumnShove builds the shove for a described column.
func ColumnShove(name string, flags IndexFlags, kind value.Kind) Shove {
	return MakeShove(HashName(name), flags, kind)
}
