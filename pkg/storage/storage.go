// Package storage defines the engine-agnostic key/value contract every
// index, cursor, and txn component is built on (spec §6 "Underlying
// engine contract"): named sub-databases with mdbx-style flag
// combinations, MVCC read/write transactions, and the cursor op
// vocabulary libmdbx exposes directly. Two backends satisfy it:
// pkg/storage/memkv (goleveldb, for tests and embedding) and
// pkg/storage/mdbxengine (the real thing).
//
// Naming follows erigon-lib's kv package: Tx/RoTx/RwTx become
// RTx/WTx here since "Tx" alone is ambiguous with the tuple package's
// unrelated abbreviations; GetOne/View/Update are carried over
// verbatim because they already read naturally. There is no ForEach:
// iteration goes through Cursor.
package storage

import (
	"context"

	"github.com/positive-tech/fpta/pkg/fptaerr"
)

// Dbi is an engine-assigned handle to a named sub-database. It is only
// valid for the lifetime of the process that opened it and must be
// revalidated through the handle cache (pkg/txn) across schema changes.
type Dbi uint32

// BaseKeyFlag selects the primary ordering/interpretation of a
// sub-database's keys.
type BaseKeyFlag uint8

const (
	KeyDefault BaseKeyFlag = iota
	KeyReverse
	KeyInteger
)

// DupKind selects how (and whether) a sub-database stores multiple
// values under one key.
type DupKind uint8

const (
	NoDup DupKind = iota
	DupSort
	DupFixed
	IntegerDup
	ReverseDup
)

// DbiFlags is the validated flag word passed to CreateDbi/OpenDbi,
// following spec §6's cross product "{default|reverse_key|integer_key}
// x {no_dup|dup_sort x {plain|dup_fixed|integer_dup|reverse_dup}}".
// Reimplemented as a constructor function plus an opaque bit word
// (spec §9 "macro-enum bit flags") rather than letting callers compose
// raw bits, so illegal combinations can't be expressed.
type DbiFlags uint16

const (
	dbiReverseKey DbiFlags = 1 << iota
	dbiIntegerKey
	dbiDupSort
	dbiDupFixed
	dbiIntegerDup
	dbiReverseDup
	dbiCreate
)

// MakeDbiFlags validates and packs a sub-database's flag combination.
// DupFixed/IntegerDup/ReverseDup all imply DupSort; KeyInteger and
// KeyReverse are mutually exclusive with each other (but not with a
// dup kind).
func MakeDbiFlags(base BaseKeyFlag, dup DupKind, create bool) (DbiFlags, error) {
	var f DbiFlags
	switch base {
	case KeyDefault:
	case KeyReverse:
		f |= dbiReverseKey
	case KeyInteger:
		f |= dbiIntegerKey
	default:
		return 0, fptaerr.New(fptaerr.EFlag, "unknown base key flag %d", base)
	}
	switch dup {
	case NoDup:
	case DupSort:
		f |= dbiDupSort
	case DupFixed:
		f |= dbiDupSort | dbiDupFixed
	case IntegerDup:
		f |= dbiDupSort | dbiIntegerDup
	case ReverseDup:
		f |= dbiDupSort | dbiReverseDup
	default:
		return 0, fptaerr.New(fptaerr.EFlag, "unknown dup kind %d", dup)
	}
	if create {
		f |= dbiCreate
	}
	return f, nil
}

func (f DbiFlags) IsReverseKey() bool   { return f&dbiReverseKey != 0 }
func (f DbiFlags) IsIntegerKey() bool   { return f&dbiIntegerKey != 0 }
func (f DbiFlags) IsDupSort() bool      { return f&dbiDupSort != 0 }
func (f DbiFlags) IsDupFixed() bool     { return f&dbiDupFixed != 0 }
func (f DbiFlags) IsIntegerDup() bool   { return f&dbiIntegerDup != 0 }
func (f DbiFlags) IsReverseDup() bool   { return f&dbiReverseDup != 0 }
func (f DbiFlags) WantsCreate() bool    { return f&dbiCreate != 0 }
func (f DbiFlags) WithCreate() DbiFlags { return f | dbiCreate }

// Op is one of the cursor primitives spec §6 requires of the engine.
type Op uint8

const (
	OpFirst Op = iota
	OpLast
	OpNext
	OpPrev
	OpNextDup
	OpPrevDup
	OpNextNoDup
	OpPrevNoDup
	OpNextMultiple
	OpPrevMultiple
	OpFirstDup
	OpLastDup
	OpSetKey
	OpSetRange
	OpGetBoth
	OpGetBothRange
	OpGetCurrent
)

// ReplaceFlags controls Replace/cursor-Put semantics.
type ReplaceFlags uint8

const (
	ReplaceCurrent ReplaceFlags = 1 << iota
	ReplaceNoDupData
	ReplaceNoOverwrite
)

// DbiStat mirrors spec §6's dbi_stat.
type DbiStat struct {
	Entries       uint64
	Depth         uint32
	BranchPages   uint64
	LeafPages     uint64
	OverflowPages uint64
	PageSize      uint32
	ModTxnID      uint64
}

// TxnInfo mirrors spec §6's txn_info, the numbers enough_for_restart
// (pkg/txn) uses to decide whether a long reader should restart.
type TxnInfo struct {
	ReaderLag      uint64
	SpaceRetired   uint64
	SpaceLeftover  uint64
	SpaceLimitSoft uint64
	SpaceLimitHard uint64
}

// Durability is the arg to Engine.Open (spec §6).
type Durability uint8

const (
	ReadOnly Durability = iota
	Sync
	Lazy
	Weak
)

// Regime is a bitmask of geometry/IO hints (spec §6 "regime flags").
type Regime uint8

const (
	RegimeDefault                Regime = 0
	RegimeFriendlyForWriteback   Regime = 1 << iota
	RegimeFriendlyForHDD
	RegimeFriendlyForCompaction
	RegimeSafeRAM
)

// Geometry is the storage file's size/growth plan (spec §6). A
// negative field means "unchanged for an existing DB / default for a
// new one".
type Geometry struct {
	SizeLower       int64
	SizeUpper       int64
	GrowthStep      int64
	ShrinkThreshold int64
	PageSize        int64
}

// Config is what RegisterEngine constructors take: a filesystem path
// (empty for a pure in-memory backend) plus the durability/regime/
// geometry triple every Engine.Open understands.
type Config struct {
	Path       string
	Durability Durability
	Regime     Regime
	Geometry   Geometry
}

// Engine is a storage adapter: an opened environment capable of
// producing read and write transactions.
type Engine interface {
	View(ctx context.Context, fn func(RTx) error) error
	Update(ctx context.Context, fn func(WTx) error) error
	BeginRo(ctx context.Context) (RTx, error)
	BeginRw(ctx context.Context) (WTx, error)
	Close() error
}

// RTx is a read-only (or the read half of a read-write) transaction.
type RTx interface {
	// OpenDbi resolves name to a handle, creating it first if flags
	// carries WithCreate() and it does not yet exist. Read txns must
	// not set the create bit; doing so is ContractError(EPerm).
	OpenDbi(name string, flags DbiFlags) (Dbi, error)

	// GetOne returns the value for key, or ok=false if absent. The
	// returned slice is only valid for the life of the txn: copy it
	// before the txn ends or before issuing a write in the same txn.
	// Both backends in this module already return a fresh copy (see
	// DESIGN.md "is_dirty/is_same").
	GetOne(dbi Dbi, key []byte) (val []byte, ok bool, err error)

	Cursor(dbi Dbi) (Cursor, error)
	Stat(dbi Dbi) (DbiStat, error)
	EstimateRange(dbi Dbi, fromKey, fromData, toKey, toData []byte) (uint64, error)
	Info() (TxnInfo, error)
	Sequence(dbi Dbi) (uint64, error)

	Rollback()
}

// WTx extends RTx with the mutating half of the contract.
type WTx interface {
	RTx

	CreateDbi(name string, flags DbiFlags) (Dbi, error)
	DropDbi(dbi Dbi) error

	Put(dbi Dbi, key, val []byte) error
	// Delete removes key (all duplicates if val is nil, else exactly
	// that (key,val) pair on a dup-sort dbi).
	Delete(dbi Dbi, key, val []byte) error
	// Replace mirrors spec §6's replace(): it returns the data it
	// overwrote (if any) alongside the flag-governed insert semantics.
	Replace(dbi Dbi, key, newData []byte, flags ReplaceFlags) (old []byte, hadOld bool, err error)
	IncrementSequence(dbi Dbi, amount uint64) (uint64, error)

	RwCursor(dbi Dbi) (Cursor, error)

	Commit() error
}

// Cursor is the engine's positionable iterator. Get issues one of the
// Op primitives; a miss is reported as ok=false rather than an error,
// matching spec §7's "end-of-data ... uses a distinct negative-one
// value" rather than folding NoData into the error taxonomy.
type Cursor interface {
	Get(op Op, key, data []byte) (k, v []byte, ok bool, err error)
	Put(key, val []byte, flags ReplaceFlags) error
	Delete(flags ReplaceFlags) error
	Count() (uint64, error)
	Close()
}
