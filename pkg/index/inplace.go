package index

import (
	"bytes"
	"math"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/keycodec"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/tuple"
	"github.com/positive-tech/fpta/pkg/value"
)

// InplaceOp selects the atomic read-modify-write applied to one field
// by ColumnInplace (spec §4.4 "Column-level inplace update").
type InplaceOp uint8

const (
	OpSaturatedAdd InplaceOp = iota
	OpSaturatedSub
	OpSaturatedMul
	OpSaturatedDiv
	OpMin
	OpMax
	OpBes
)

// Result reports whether ColumnInplace actually changed the field
// (spec §4.4: "Result is Ok if value changed, NoData if unchanged").
type Result uint8

const (
	ResultOk Result = iota
	ResultNoData
)

// BesAlphaFromFraction validates a direct smoothing factor (spec §4.4
// "bes ... accepts an extra argument: a double in (0,1)").
func BesAlphaFromFraction(f float64) (float64, error) {
	if !(f > 0 && f < 1) {
		return 0, fptaerr.New(fptaerr.EInval, "bes fraction alpha must be in (0,1), got %g", f)
	}
	return f, nil
}

// BesAlphaFromExponent validates and expands the power-of-two form
// (spec §4.4 "... or a negative integer N in (-24,0) meaning alpha =
// 2^N").
func BesAlphaFromExponent(n int) (float64, error) {
	if !(n > -24 && n < 0) {
		return 0, fptaerr.New(fptaerr.EInval, "bes exponent alpha must be in (-24,0), got %d", n)
	}
	return math.Pow(2, float64(n)), nil
}

// ColumnInplace performs an atomic read-modify-write on row pk's
// column columnIndex, reconciling any secondary (or composite member)
// affected by the change, then writes the updated tuple back (spec
// §4.4 "Column-level inplace update").
func ColumnInplace(tx storage.WTx, tbl *Table, pk []byte, columnIndex int, op InplaceOp, operand value.Value, alpha float64) (Result, error) {
	if columnIndex == 0 {
		return 0, fptaerr.New(fptaerr.EPerm, "the primary column cannot be updated inplace")
	}
	s := tbl.Schema
	if columnIndex < 0 || columnIndex >= len(s.Columns) {
		return 0, fptaerr.New(fptaerr.EInval, "column index %d out of range", columnIndex)
	}
	column := s.Columns[columnIndex]
	if column.IsComposite() {
		return 0, fptaerr.New(fptaerr.ETypeMismatch, "composite column %q has no scalar value to update inplace", column.Name)
	}

	raw, ok, err := tx.GetOne(tbl.Dbis[0], pk)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fptaerr.New(fptaerr.ENotFound, "no row with this primary key")
	}
	row, err := parseRow(raw)
	if err != nil {
		return 0, err
	}

	old, ok := row.Get(uint16(columnIndex), tuple.Any())
	if !ok {
		if !column.IsNullable() {
			return 0, fptaerr.New(fptaerr.EColumnMissing, "column %q missing from row", column.Name)
		}
		old = value.Null()
	}
	if !value.Compatible(column.Kind(), operand) {
		return 0, fptaerr.New(fptaerr.ETypeMismatch, "operand kind %s incompatible with column kind %s", operand.Kind, column.Kind())
	}

	affected := affectedColumns(s, columnIndex)
	oldKeys := make(map[int][]byte, len(affected))
	for _, i := range affected {
		k, err := keycodec.RowToKey(s, i, row, true)
		if err != nil {
			return 0, err
		}
		oldKeys[i] = k.Bytes
	}

	newVal, err := applyOp(column.Kind(), op, old, operand, alpha)
	if err != nil {
		return 0, err
	}
	if sameValue(column.Kind(), old, newVal) {
		return ResultNoData, nil
	}

	if err := row.Update(uint16(columnIndex), newVal); err != nil {
		return 0, err
	}

	for _, i := range affected {
		newKey, err := keycodec.RowToKey(s, i, row, true)
		if err != nil {
			return 0, err
		}
		c := s.Columns[i]
		if c.Flags().IsUnique() {
			if existingPK, ok, err := tx.GetOne(tbl.Dbis[i], newKey.Bytes); err != nil {
				return 0, err
			} else if ok && !bytes.Equal(existingPK, pk) {
				return 0, fptaerr.New(fptaerr.EKeyExist, "secondary index %q already has this key", c.Name)
			}
		}
		if !bytes.Equal(oldKeys[i], newKey.Bytes) {
			if err := tx.Delete(tbl.Dbis[i], oldKeys[i], pk); err != nil {
				return 0, err
			}
			if err := tx.Put(tbl.Dbis[i], newKey.Bytes, pk); err != nil {
				return 0, err
			}
		}
	}

	newBytes := row.Take().Units
	if err := tx.Put(tbl.Dbis[0], pk, newBytes); err != nil {
		return 0, err
	}
	return ResultOk, nil
}

// affectedColumns lists every indexed column whose derived key can
// change when columnIndex's value changes: the column itself (if
// indexed) plus any composite index that counts it among its members
// (spec §4.4 "Updating a column that participates in any index
// triggers the normal secondary-maintenance protocol").
func affectedColumns(s *schema.Schema, columnIndex int) []int {
	var out []int
	if s.Columns[columnIndex].IsIndexed() {
		out = append(out, columnIndex)
	}
	for _, comp := range s.Composites {
		for _, m := range comp.Members {
			if m != columnIndex {
				continue
			}
			if i, err := s.ColumnIndex(comp.Shove); err == nil {
				out = append(out, i)
			}
			break
		}
	}
	return out
}
