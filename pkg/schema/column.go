package schema

import "github.com/positive-tech/fpta/pkg/value"

// IndexFlags packs a column's indexing behavior into the shove's 5
// index-flag bits (spec §3's "index_flags: 5 bits"). Rather than OR'ing
// bare bit macros at call sites (the REDESIGN FLAGS "enum constructor
// functions instead of bitwise macro flags" rule), callers build an
// IndexFlags value through the named constructors below and read it back
// through the Is* predicates.
type IndexFlags uint8

const (
	flagIndexed  IndexFlags = 1 << 0
	flagUnique   IndexFlags = 1 << 1
	flagOrdered  IndexFlags = 1 << 2
	flagReverse  IndexFlags = 1 << 3
	flagNullable IndexFlags = 1 << 4
)

// NotIndexed describes a plain column carrying no index.
func NotIndexed(nullable bool) IndexFlags {
	if nullable {
		return flagNullable
	}
	return 0
}

// Primary describes the table's single primary index: always unique
// and ordered.
func Primary(reverse bool) IndexFlags {
	f := flagIndexed | flagUnique | flagOrdered
	if reverse {
		f |= flagReverse
	}
	return f
}

// SecondaryOrdered describes a comparator-ordered secondary index.
func SecondaryOrdered(unique, reverse, nullable bool) IndexFlags {
	f := flagIndexed | flagOrdered
	if unique {
		f |= flagUnique
	}
	if reverse {
		f |= flagReverse
	}
	if nullable {
		f |= flagNullable
	}
	return f
}

// SecondaryUnordered describes a hash-ordered secondary index (no
// range scans, only point/duplicate lookups).
func SecondaryUnordered(unique, nullable bool) IndexFlags {
	f := flagIndexed
	if unique {
		f |= flagUnique
	}
	if nullable {
		f |= flagNullable
	}
	return f
}

func (f IndexFlags) IsIndexed() bool  { return f&flagIndexed != 0 }
func (f IndexFlags) IsUnique() bool   { return f&flagUnique != 0 }
func (f IndexFlags) IsOrdered() bool  { return f&flagOrdered != 0 }
func (f IndexFlags) IsReverse() bool  { return f&flagReverse != 0 }
func (f IndexFlags) IsNullable() bool { return f&flagNullable != 0 }

// Priority buckets a column the way spec §5 "Create table" sorts them
// among everything but the primary column (1 secondary, 2 non-indexed
// non-nullable, 3 non-indexed nullable). The primary index's bit
// pattern (unique+ordered+indexed+non-nullable) is indistinguishable
// from a unique ordered secondary's, so priority 0 is reserved
// separately by position: CreateTable always keeps column 0 as the
// table's primary key and sorts the remaining columns with Priority.
func (f IndexFlags) Priority() int {
	switch {
	case f.IsIndexed():
		return 1
	case !f.IsNullable():
		return 2
	default:
		return 3
	}
}

// Column is one described field: its symbolic name plus the packed
// shove carrying its type and index behavior.
type Column struct {
	Name  string
	Shove Shove
}

func (c Column) Kind() value.Kind    { return c.Shove.DataType() }
func (c Column) Flags() IndexFlags   { return c.Shove.Flags() }
func (c Column) IsIndexed() bool     { return c.Flags().IsIndexed() }
func (c Column) IsNullable() bool    { return c.Flags().IsNullable() }

// IsComposite reports whether this column is a synthetic composite
// index descriptor rather than a real scalar field (spec §3 "Composite
// column": "Synthetic column of type=null carrying only an index").
func (c Column) IsComposite() bool {
	return c.Kind().Base() == value.KindNull && c.IsIndexed()
}
