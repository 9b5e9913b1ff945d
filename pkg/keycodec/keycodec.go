// Package keycodec derives bytewise-comparable index keys from typed
// values and table rows (spec §4.3 "Key derivation"): the single
// entry point every index (primary, secondary, composite) uses to turn
// a column value into the bytes the storage engine actually orders.
package keycodec

import (
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/value"
)

const (
	// NotnilPrefixLen is the one-byte sentinel prepended/appended to a
	// nullable non-numeric column's real values (spec §4.3 rule 6).
	NotnilPrefixLen = 1
	// NotnilPrefix is that sentinel byte.
	NotnilPrefix byte = 0x2A

	// MaxKeylen is the longest string/opaque key stored verbatim
	// (spec §4.3 rule 3): the shoved length minus the 8-byte hash, so a
	// shoved key's MaxKeylen-byte prefix plus its hash fill ShovedKeylen.
	MaxKeylen = ShovedKeylen - hashSuffixLen

	// ShovedKeylen is the fixed key length used once a string/opaque
	// key is truncated-and-hashed (spec §4.3 rule 4).
	ShovedKeylen = 64

	// hashSuffixLen is the width of the truncation hash appended
	// (obverse) or prepended (reverse) to a shoved key.
	hashSuffixLen = 8
)

// Comparator selects which ordering the storage engine applies to a
// key (spec §4.3: "chosen from {default_lex, reverse, integer,
// reverse_dup, integer_dup}", spec §6).
type Comparator uint8

const (
	DefaultLex Comparator = iota
	Reverse
	Integer
	ReverseDup
	IntegerDup
)

// Key is a derived, bytewise-comparable key plus enough metadata to
// recover the comparator it must be stored/compared under.
type Key struct {
	Bytes      []byte
	Pseudo     value.Pseudo // PseudoNone for a real key
	Comparator Comparator
}

func isFixedNumeric(k value.Kind) bool {
	b := k.Base()
	if k.IsArray() {
		return false
	}
	switch b {
	case value.KindUint16, value.KindInt32, value.KindUint32, value.KindFP32,
		value.KindInt64, value.KindUint64, value.KindFP64, value.KindDatetime:
		return true
	}
	return false
}

// ComparatorFor picks the engine comparator for a column's index flags
// and declared kind (spec §4.3 rule 1 & rule 5, spec §6 comparator set).
func ComparatorFor(flags schema.IndexFlags, kind value.Kind) Comparator {
	if !flags.IsOrdered() {
		return Integer // unordered index: key is always a hash, spec rule 5
	}
	if isFixedNumeric(kind) {
		if flags.IsUnique() {
			return Integer
		}
		return IntegerDup
	}
	if flags.IsReverse() {
		if flags.IsUnique() {
			return Reverse
		}
		return ReverseDup
	}
	return DefaultLex
}
