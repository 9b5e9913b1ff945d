package index

import (
	"bytes"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/keycodec"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/tuple"
	"github.com/positive-tech/fpta/pkg/value"
)

// Mode selects which of the three row-level write verbs drives Put's
// behavior at steps 3-4 of the insert path (spec §4.4 "Insert path").
type Mode uint8

const (
	ModeInsert Mode = iota
	ModeUpdate
	ModeUpsert
)

// secondaryChange is one column's before/after key, used to decide
// whether step 6 needs to touch that column's secondary store at all.
type secondaryChange struct {
	index  int
	oldKey []byte // nil if the row had no previous entry
	newKey []byte
}

// putPlan is the outcome of steps 1-5 (spec §4.4): everything step 6
// needs to actually mutate the stores, computed without having
// mutated anything yet. ValidatePut stops here; Put continues to
// execute it.
type putPlan struct {
	pk       []byte
	newBytes []byte
	hadOld   bool
	noop     bool
	changes  []secondaryChange
}

// planPut runs the insert path's validate phase (spec §4.4 steps 1-5),
// entirely through reads: no GetOne/Put/Delete call here observes a
// write, so it is exactly "validate_put" when the caller stops here,
// and exactly the first half of Put otherwise.
func planPut(tx storage.RTx, tbl *Table, row *tuple.Rw, mode Mode) (*putPlan, error) {
	s := tbl.Schema

	// Step 1: every non-indexed, non-composite, non-nullable column
	// must be present.
	for i, c := range s.Columns {
		if i == 0 || c.IsIndexed() || c.IsNullable() {
			continue
		}
		if _, ok := row.Get(uint16(i), tuple.Any()); !ok {
			return nil, fptaerr.New(fptaerr.EColumnMissing, "required column %q missing from row", c.Name)
		}
	}

	// Step 2: derive the primary key.
	pk, err := keycodec.RowToKey(s, 0, row, true)
	if err != nil {
		return nil, err
	}
	if pk.Pseudo != value.PseudoNone {
		return nil, fptaerr.New(fptaerr.EInval, "row's primary key resolved to a pseudo value")
	}

	old, hadOld, err := tx.GetOne(tbl.Dbis[0], pk.Bytes)
	if err != nil {
		return nil, err
	}

	// Step 3.
	if mode == ModeInsert && hadOld {
		return nil, fptaerr.New(fptaerr.EKeyExist, "primary key already exists")
	}
	if mode == ModeUpdate && !hadOld {
		return nil, fptaerr.New(fptaerr.ENotFound, "no row with this primary key to update")
	}

	newBytes := row.Take().Units

	// Step 4.
	if mode != ModeInsert && hadOld && bytes.Equal(old, newBytes) {
		return &putPlan{pk: pk.Bytes, newBytes: newBytes, hadOld: true, noop: true}, nil
	}

	var oldRow *tuple.Rw
	if hadOld {
		oldRow, err = parseRow(old)
		if err != nil {
			return nil, err
		}
	}

	// Step 5.
	var changes []secondaryChange
	for i, c := range s.Columns {
		if i == 0 || !c.IsIndexed() {
			continue
		}
		newKey, err := keycodec.RowToKey(s, i, row, true)
		if err != nil {
			return nil, err
		}
		var oldKeyBytes []byte
		if oldRow != nil {
			oldKey, err := keycodec.RowToKey(s, i, oldRow, true)
			if err != nil {
				return nil, err
			}
			oldKeyBytes = oldKey.Bytes
		}
		if c.Flags().IsUnique() {
			if existingPK, ok, err := tx.GetOne(tbl.Dbis[i], newKey.Bytes); err != nil {
				return nil, err
			} else if ok && !bytes.Equal(existingPK, pk.Bytes) {
				return nil, fptaerr.New(fptaerr.EKeyExist, "secondary index %q already has this key", c.Name)
			}
		}
		changes = append(changes, secondaryChange{index: i, oldKey: oldKeyBytes, newKey: newKey.Bytes})
	}

	return &putPlan{pk: pk.Bytes, newBytes: newBytes, hadOld: hadOld, changes: changes}, nil
}
