package cursor

import (
	"bytes"

	"github.com/positive-tech/fpta/pkg/keycodec"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/value"
)

// LocateValue seeks the cursor to the row whose key matches v (spec
// §4.5 "Locate"): SET_KEY for an exact match, SET_RANGE (plus the
// descending fix-up) for the first row at or after v. A point/epsilon
// range configured at Open is abandoned — the cursor is repositioned
// to wherever v resolves, ignoring the prior {from,to}.
func (c *Cursor) LocateValue(exactly bool, v value.Value) (bool, error) {
	key, err := keycodec.ValueToKey(c.tbl.Schema.Columns[c.columnIndex], v, true)
	if err != nil {
		return false, err
	}
	return c.locateKey(exactly, key.Bytes, nil)
}

// LocateRow seeks using a representative row: the indexed column's
// value is extracted via RowToKey, and — for a non-unique secondary —
// the row's primary key is extracted too so an exact locate can
// disambiguate among duplicates sharing that key.
func (c *Cursor) LocateRow(exactly bool, row keycodec.Row) (bool, error) {
	key, err := keycodec.RowToKey(c.tbl.Schema, c.columnIndex, row, true)
	if err != nil {
		return false, err
	}
	var data []byte
	if !c.column.isUnique {
		pk, err := keycodec.RowToKey(c.tbl.Schema, 0, row, true)
		if err != nil {
			return false, err
		}
		data = pk.Bytes
	}
	return c.locateKey(exactly, key.Bytes, data)
}

func (c *Cursor) locateKey(exactly bool, key, data []byte) (bool, error) {
	if exactly {
		// Subsequent Step() calls should walk duplicates under this
		// exact key, not an unbounded NEXT/PREV scan.
		c.kind = rangePoint
		c.pointBytes = key
	} else {
		// An inexact locate just repositions the cursor; iteration from
		// here is a plain unbounded scan in the cursor's direction.
		c.kind = rangeNormal
	}
	c.fromBytes, c.toBytes = nil, nil

	var k, v []byte
	var ok bool
	var err error
	switch {
	case exactly && data != nil:
		k, v, ok, err = c.raw.Get(storage.OpGetBoth, key, data)
	case exactly:
		k, v, ok, err = c.raw.Get(storage.OpSetKey, key, nil)
	case data != nil:
		k, v, ok, err = c.raw.Get(storage.OpGetBothRange, key, data)
	default:
		k, v, ok, err = c.raw.Get(storage.OpSetRange, key, nil)
		if err == nil && ok && c.descending && bytes.Compare(k, key) > 0 {
			k, v, ok, err = c.raw.Get(storage.OpPrevNoDup, nil, nil)
			if err == nil && ok && !c.column.isUnique {
				k, v, ok, err = c.raw.Get(storage.OpLastDup, nil, nil)
			}
		} else if err == nil && !ok && c.descending {
			k, v, ok, err = c.raw.Get(storage.OpLast, nil, nil)
		}
	}
	if err != nil {
		return false, err
	}
	c.positioned = true
	if exactly {
		// An exact locate never falls back to a neighboring key: success
		// means "this row", failure means NoData.
		if !ok {
			c.exhaust()
			return false, nil
		}
		row, pk, err := c.fetchRow(k, v)
		if err != nil {
			return false, err
		}
		c.hasLanded = true
		c.afterLast, c.noData = false, false
		c.current = &Row{Key: append([]byte(nil), k...), PK: pk, Value: row}
		return true, nil
	}
	if err := c.land(k, v, ok); err != nil {
		return false, err
	}
	return c.current != nil, nil
}
