package cursor

import (
	"bytes"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/index"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/tuple"
	"github.com/positive-tech/fpta/pkg/value"
)

// seekInitial performs cursor_open's initial positioning (spec §4.5
// "Open ... unless dont_fetch, seeks to the first matching row").
func (c *Cursor) seekInitial() error {
	var k, v []byte
	var ok bool
	var err error

	switch c.kind {
	case rangePoint:
		k, v, ok, err = c.raw.Get(storage.OpSetKey, c.pointBytes, nil)
	case rangeEpsilonLatch:
		op := storage.OpFirst
		if c.latchExtreme == value.PseudoEnd {
			op = storage.OpLast
		}
		k, v, ok, err = c.raw.Get(op, nil, nil)
		if err == nil && ok {
			c.latchedKey = append([]byte(nil), k...)
		}
	default: // rangeNormal
		if !c.descending {
			if c.fromBytes == nil {
				k, v, ok, err = c.raw.Get(storage.OpFirst, nil, nil)
			} else {
				k, v, ok, err = c.raw.Get(storage.OpSetRange, c.fromBytes, nil)
			}
		} else {
			k, v, ok, err = c.seekDescendingStart()
		}
	}
	if err != nil {
		return err
	}
	c.positioned = true
	return c.land(k, v, ok)
}

// seekDescendingStart implements spec §4.5's "Descending cursors"
// fix-up for the initial range seek: a SET_RANGE-like operation
// followed by stepping back if it overshot, or jumping to LAST on a
// miss, then (for dup-sort columns) sliding to the last duplicate
// under the landed key.
func (c *Cursor) seekDescendingStart() (k, v []byte, ok bool, err error) {
	if c.toBytes == nil {
		return c.raw.Get(storage.OpLast, nil, nil)
	}
	k, v, ok, err = c.raw.Get(storage.OpSetRange, c.toBytes, nil)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		k, v, ok, err = c.raw.Get(storage.OpLast, nil, nil)
		if err != nil || !ok {
			return k, v, ok, err
		}
	} else if bytes.Compare(k, c.toBytes) >= 0 {
		k, v, ok, err = c.raw.Get(storage.OpPrevNoDup, nil, nil)
		if err != nil || !ok {
			return k, v, ok, err
		}
	}
	if !c.column.isUnique {
		if k2, v2, ok2, err2 := c.raw.Get(storage.OpLastDup, nil, nil); err2 == nil && ok2 {
			k, v, ok = k2, v2, ok2
		} else if err2 != nil {
			return nil, nil, false, err2
		}
	}
	return k, v, ok, nil
}

// land runs the scan-step loop (spec §4.5 "Scan step") starting from a
// just-fetched candidate: bounds-check, filter, and step again on
// rejection, until a row is accepted or the range is exhausted.
func (c *Cursor) land(k, v []byte, ok bool) error {
	for {
		if !ok {
			c.exhaust()
			return nil
		}
		if c.outOfBounds(k) {
			c.exhaust()
			return nil
		}
		row, pk, err := c.fetchRow(k, v)
		if err != nil {
			return err
		}
		if c.filter == nil || c.filter(row) {
			c.afterLast = false
			c.noData = false
			c.hasLanded = true
			c.current = &Row{Key: append([]byte(nil), k...), PK: pk, Value: row}
			return nil
		}
		k, v, ok, err = c.stepOp()
		if err != nil {
			return err
		}
	}
}

func (c *Cursor) outOfBounds(k []byte) bool {
	switch c.kind {
	case rangeNormal:
		if !c.descending {
			return c.toBytes != nil && bytes.Compare(k, c.toBytes) >= 0
		}
		return c.fromBytes != nil && bytes.Compare(k, c.fromBytes) < 0
	case rangePoint:
		return !bytes.Equal(k, c.pointBytes)
	case rangeEpsilonLatch:
		return !bytes.Equal(k, c.latchedKey)
	default:
		return false
	}
}

func (c *Cursor) stepOp() (k, v []byte, ok bool, err error) {
	op := storage.OpNext
	switch {
	case c.kind == rangeNormal && c.descending:
		op = storage.OpPrev
	case (c.kind == rangePoint || c.kind == rangeEpsilonLatch) && !c.descending:
		op = storage.OpNextDup
	case (c.kind == rangePoint || c.kind == rangeEpsilonLatch) && c.descending:
		op = storage.OpPrevDup
	}
	return c.raw.Get(op, nil, nil)
}

func (c *Cursor) fetchRow(k, v []byte) (*tuple.Rw, []byte, error) {
	if c.column.isPrimary {
		row, err := index.DecodeRow(v)
		return row, append([]byte(nil), k...), err
	}
	c.Stats.PkLookups++
	raw, ok, err := c.tx.GetOne(c.tbl.Dbis[0], v)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fptaerr.New(fptaerr.EIndexCorrupted, "secondary entry points at a missing primary row")
	}
	row, err := index.DecodeRow(raw)
	return row, append([]byte(nil), v...), err
}

func (c *Cursor) exhaust() {
	c.afterLast = true
	c.current = nil
	if !c.hasLanded {
		c.noData = true
	}
}

// Step advances the cursor to the next matching row in its configured
// direction. It returns false once the range is exhausted.
func (c *Cursor) Step() (bool, error) {
	if !c.positioned {
		if err := c.seekInitial(); err != nil {
			return false, err
		}
		return c.current != nil, nil
	}
	if c.afterLast {
		return false, nil
	}
	k, v, ok, err := c.stepOp()
	if err != nil {
		return false, err
	}
	if err := c.land(k, v, ok); err != nil {
		return false, err
	}
	return c.current != nil, nil
}
