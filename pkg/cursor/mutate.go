package cursor

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/keycodec"
)

// DeleteAtCursor removes the current row from the primary store and
// every secondary index, then steps in the cursor's natural direction
// so it lands on the row the caller would expect to see next (spec
// §4.5 "Delete at cursor"). The column the cursor itself iterates is
// removed through the underlying engine cursor (keeping its position
// consistent for the follow-up step); every other affected dbi is
// removed through the transaction directly.
func (c *Cursor) DeleteAtCursor() error {
	if c.wtx == nil {
		return fptaerr.New(fptaerr.EPerm, "cursor was opened against a read-only transaction")
	}
	if c.current == nil {
		return fptaerr.New(fptaerr.ENotFound, "cursor has no current row to delete")
	}
	pk := c.current.PK
	row := c.current.Value

	s := c.tbl.Schema
	for i, col := range s.Columns {
		if i != 0 && !col.IsIndexed() {
			continue
		}
		if i == c.columnIndex {
			continue
		}
		key, err := keycodec.RowToKey(s, i, row, true)
		if err != nil {
			return err
		}
		val := pk
		if i == 0 {
			val = nil // primary store entries are never dup-sort
		}
		if err := c.wtx.Delete(c.tbl.Dbis[i], key.Bytes, val); err != nil {
			return err
		}
	}
	if err := c.raw.Delete(0); err != nil {
		return err
	}

	k, v, ok, err := c.stepOp()
	if err != nil {
		return err
	}
	return c.land(k, v, ok)
}
