package cursor

import (
	"bytes"

	"github.com/positive-tech/fpta/pkg/storage"
)

// Restart caps transaction lag (spec §4.5 "Restart (rerere)"): it
// remembers the current position, swaps in a freshly renewed
// transaction, reopens the engine cursor, and reseeks to SET_RANGE on
// the remembered key (GET_BOTH_RANGE with the remembered data for
// non-unique indexes). The caller is responsible for renewing newTx
// (commit/rollback the stale one, begin a fresh one at the current
// schema generation) before calling this.
//
// Observable guarantee: after Restart, the cursor is at a row whose
// key is >= the remembered key (ascending) or <= it (descending), or
// at NoData if none exists.
func (c *Cursor) Restart(newTx storage.RTx) error {
	if c.current == nil {
		return nil
	}
	rememberedKey := append([]byte(nil), c.current.Key...)
	var rememberedData []byte
	if !c.column.isUnique {
		rememberedData = append([]byte(nil), c.current.PK...)
	}

	c.raw.Close()
	var wtx storage.WTx
	var raw storage.Cursor
	var err error
	if w, ok := newTx.(storage.WTx); ok {
		wtx = w
		raw, err = w.RwCursor(c.tbl.Dbis[c.columnIndex])
	} else {
		raw, err = newTx.Cursor(c.tbl.Dbis[c.columnIndex])
	}
	if err != nil {
		return err
	}
	c.tx = newTx
	c.wtx = wtx
	c.raw = raw

	var k, v []byte
	var ok bool
	if rememberedData != nil {
		k, v, ok, err = raw.Get(storage.OpGetBothRange, rememberedKey, rememberedData)
	} else {
		k, v, ok, err = raw.Get(storage.OpSetRange, rememberedKey, nil)
	}
	if err != nil {
		return err
	}

	if c.descending {
		switch {
		case !ok:
			k, v, ok, err = raw.Get(storage.OpLast, nil, nil)
		case !bytes.Equal(k, rememberedKey):
			k, v, ok, err = raw.Get(storage.OpPrevNoDup, nil, nil)
			if err == nil && ok && !c.column.isUnique {
				k, v, ok, err = raw.Get(storage.OpLastDup, nil, nil)
			}
		}
		if err != nil {
			return err
		}
	}

	c.positioned = true
	return c.land(k, v, ok)
}
