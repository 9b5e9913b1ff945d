package keycodec

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/tuple"
	"github.com/positive-tech/fpta/pkg/value"
)

// Row is the minimal row accessor RowToKey needs: a field lookup by
// column ordinal. *tuple.Rw satisfies it once wrapped by RowField,
// since tuple descriptors are tagged by column ordinal.
type Row interface {
	Get(tag uint16, f tuple.Filter) (value.Value, bool)
}

// RowToKey reads column columnIndex out of row and derives its index
// key (spec §4.3 "row_to_key(schema, column_index, row, key, copy)"):
// a missing field on a non-nullable indexed column is ColumnMissing;
// on a nullable one it is the DENIL key.
func RowToKey(s *schema.Schema, columnIndex int, row Row, copyBytes bool) (Key, error) {
	if columnIndex < 0 || columnIndex >= len(s.Columns) {
		return Key{}, fptaerr.New(fptaerr.EInval, "column index %d out of range", columnIndex)
	}
	column := s.Columns[columnIndex]
	if column.IsComposite() {
		return rowToCompositeKey(s, columnIndex, row, copyBytes)
	}

	v, ok := row.Get(uint16(columnIndex), tuple.Any())
	if !ok {
		if !column.IsNullable() {
			return Key{}, fptaerr.New(fptaerr.EColumnMissing, "required column %q missing from row", column.Name)
		}
		v = value.Null()
	}
	return ValueToKey(column, v, copyBytes)
}

func rowToCompositeKey(s *schema.Schema, columnIndex int, row Row, copyBytes bool) (Key, error) {
	column := s.Columns[columnIndex]
	var comp *schema.Composite
	for i := range s.Composites {
		if schema.SameColumn(s.Composites[i].Shove, column.Shove) {
			comp = &s.Composites[i]
			break
		}
	}
	if comp == nil {
		return Key{}, fptaerr.New(fptaerr.ESchemaCorrupted, "composite column %q has no composite record", column.Name)
	}

	children := make([][]byte, 0, len(comp.Members))
	for _, memberIdx := range comp.Members {
		k, err := RowToKey(s, memberIdx, row, true)
		if err != nil {
			return Key{}, err
		}
		children = append(children, k.Bytes)
	}
	cmp := ComparatorFor(column.Flags(), value.KindNull)
	concatenated := ConcatComposite(children, comp.Tersely)
	body := TruncateComposite(concatenated, column.Flags().IsReverse())
	return Key{Bytes: maybeCopy(body, copyBytes), Comparator: cmp}, nil
}
