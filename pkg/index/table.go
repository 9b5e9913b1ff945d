// Package index coordinates a table's primary and secondary
// sub-databases: one mutation path (Put/Delete/ColumnInplace) drives
// every derived index so they never drift out of sync with the
// primary store (spec §4.4 "Index maintenance").
package index

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/storage"
)

// Table binds a decoded schema to the live engine handles for its
// primary store (Dbis[0]) and every indexed column's secondary store
// (Dbis[i] for i >= 1 where Schema.Columns[i].IsIndexed()). Non-indexed
// columns never get a dbi; Dbis[i] is the zero Dbi for them and must
// not be dereferenced.
type Table struct {
	Schema *schema.Schema
	Dbis   []storage.Dbi
}

// dbiFlagsFor picks the DbiFlags for column i of s (spec §4.4
// "Secondary stores use the engine's duplicate-sorted mode unless the
// secondary index is declared unique ... dup_fixed/integer_dup/
// reverse_dup on the value side when the primary key is of a
// corresponding form").
//
// See DESIGN.md's "keycodec.Comparator -> storage.BaseKeyFlag/DupKind
// mapping" decision: every dbi here uses KeyDefault, since keycodec
// already pre-transforms key bytes so plain lexicographic comparison
// is always correct; requesting the engine's native IntegerKey/
// ReverseKey/IntegerDup/ReverseDup comparators on top of that would
// misorder them (mdbx's IntegerKey in particular compares as a
// native-endian machine int, not our deliberately big-endian,
// sign-flipped encoding). DupFixed is still used as a size hint
// wherever it applies, since it changes no comparator.
func dbiFlagsFor(column schema.Column, primary schema.Column, isPrimary bool) (storage.DbiFlags, error) {
	dup := storage.NoDup
	if !column.Flags().IsUnique() {
		if primary.Kind().FixedWidth() > 0 {
			dup = storage.DupFixed
		} else {
			dup = storage.DupSort
		}
	}
	if isPrimary && dup != storage.NoDup {
		// schema.Primary() always forces flagUnique, so this never
		// actually fires; kept as a defensive invariant check rather
		// than a silent wrong-flags dbi.
		return 0, fptaerr.New(fptaerr.EOops, "primary column resolved to a non-unique dup kind")
	}
	return storage.MakeDbiFlags(storage.KeyDefault, dup, false)
}

// hasDbi reports whether column i of s owns a sub-database: the
// primary column always does (handle 0); every other column does iff
// it is indexed (spec §4.4 "Handle i (i >= 1) for each indexed
// column").
func hasDbi(s *schema.Schema, i int) bool {
	return i == 0 || s.Columns[i].IsIndexed()
}

// Create opens (creating) every sub-database a fresh table needs, as
// the last step of schema.CreateTable (spec §5 "Create table": "create
// each sub-database with the flags derived from the index kind").
func Create(tx storage.WTx, s *schema.Schema) (*Table, error) {
	dbis := make([]storage.Dbi, len(s.Columns))
	primary := s.Primary()
	for i, c := range s.Columns {
		if !hasDbi(s, i) {
			continue
		}
		flags, err := dbiFlagsFor(c, primary, i == 0)
		if err != nil {
			return nil, err
		}
		dbi, err := tx.CreateDbi(schema.DbiName(c.Shove), flags)
		if err != nil {
			return nil, err
		}
		dbis[i] = dbi
	}
	return &Table{Schema: s, Dbis: dbis}, nil
}

// Open resolves the sub-database handles for an already-created table
// directly against tx, with no handle-cache validation in front of it
// (spec §4.7 "Handle cache" covers caching this across txns; Table
// itself just needs the handles for one txn's lifetime).
func Open(tx storage.RTx, s *schema.Schema) (*Table, error) {
	return OpenResolved(s, func(c schema.Column, flags storage.DbiFlags) (storage.Dbi, error) {
		return tx.OpenDbi(schema.DbiName(c.Shove), flags)
	})
}

// OpenResolved is Open generalized over how a column's shove resolves
// to a live Dbi, so pkg/txn's handle cache can sit in front of the raw
// per-txn OpenDbi call and apply its TSN-staleness rules (spec §4.7
// "Handle cache") instead of Table always resolving directly.
func OpenResolved(s *schema.Schema, resolve func(column schema.Column, flags storage.DbiFlags) (storage.Dbi, error)) (*Table, error) {
	dbis := make([]storage.Dbi, len(s.Columns))
	primary := s.Primary()
	for i, c := range s.Columns {
		if !hasDbi(s, i) {
			continue
		}
		flags, err := dbiFlagsFor(c, primary, i == 0)
		if err != nil {
			return nil, err
		}
		dbi, err := resolve(c, flags)
		if err != nil {
			return nil, err
		}
		dbis[i] = dbi
	}
	return &Table{Schema: s, Dbis: dbis}, nil
}

// Drop removes every one of tbl's sub-databases (spec §5 "Drop table":
// "drop every associated sub-database").
func Drop(tx storage.WTx, tbl *Table) error {
	for i := range tbl.Schema.Columns {
		if !hasDbi(tbl.Schema, i) {
			continue
		}
		if err := tx.DropDbi(tbl.Dbis[i]); err != nil {
			return err
		}
	}
	return nil
}
