package memkv

import (
	"bytes"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// cursor implements storage.Cursor over one dbi's slice of the flat
// goleveldb keyspace. A nil w means the cursor came from RTx.Cursor
// and Put/Delete are rejected; a non-nil w (set by wtx.RwCursor) lets
// it mutate through the owning write transaction's undo-tracked path.
type cursor struct {
	t      *rtx
	ent    *dbiEntry
	prefix []byte
	it     iterator.Iterator
	valid  bool
	w      *wtx
}

func newCursor(t *rtx, ent *dbiEntry) *cursor {
	prefix := escapeSegment(ent.name)
	return &cursor{t: t, ent: ent, prefix: prefix, it: t.newIterator(util.BytesPrefix(prefix))}
}

// currentKey decodes the user key segment out of the iterator's
// current physical key.
func (c *cursor) currentKey() []byte {
	rest := c.it.Key()[len(c.prefix):]
	key, _ := unescapeSegment(rest)
	return key
}

func (c *cursor) decode() (k, v []byte) {
	rest := c.it.Key()[len(c.prefix):]
	key, n := unescapeSegment(rest)
	if c.ent.flags.IsDupSort() {
		data, _ := unescapeSegment(rest[n:])
		return key, data
	}
	return key, append([]byte{}, c.it.Value()...)
}

func (c *cursor) landed(ok bool) (k, v []byte, found bool, err error) {
	c.valid = ok
	if err := c.it.Error(); err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return nil, nil, false, nil
	}
	k, v = c.decode()
	return k, v, true, nil
}

// seek repositions the iterator at the first physical key >= target
// within the dbi's prefix range (goleveldb iterators clamp Seek to
// their own Range automatically).
func (c *cursor) seek(target []byte) (bool, error) {
	ok := c.it.Seek(target)
	c.valid = ok
	if err := c.it.Error(); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *cursor) stepWhileSameKey(forward bool, startKey []byte) (bool, error) {
	for {
		var ok bool
		if forward {
			ok = c.it.Next()
		} else {
			ok = c.it.Prev()
		}
		if err := c.it.Error(); err != nil {
			c.valid = false
			return false, err
		}
		if !ok {
			c.valid = false
			return false, nil
		}
		if !bytes.Equal(c.currentKey(), startKey) {
			c.valid = true
			return true, nil
		}
	}
}

// Get implements every Op spec §6 requires of the engine's cursor
// primitives. A miss reports found=false with err==nil (spec §7
// "end-of-data ... distinct negative-one value" rather than an error).
func (c *cursor) Get(op storage.Op, key, data []byte) ([]byte, []byte, bool, error) {
	switch op {
	case storage.OpFirst:
		return c.landed(c.it.First())
	case storage.OpLast:
		return c.landed(c.it.Last())
	case storage.OpNext:
		return c.landed(c.it.Next())
	case storage.OpPrev:
		return c.landed(c.it.Prev())
	case storage.OpGetCurrent:
		if !c.valid {
			return nil, nil, false, nil
		}
		k, v := c.decode()
		return k, v, true, nil

	case storage.OpNextNoDup:
		if !c.ent.flags.IsDupSort() {
			return c.landed(c.it.Next())
		}
		if !c.valid {
			return c.landed(c.it.Next())
		}
		start := c.currentKey()
		ok, err := c.stepWhileSameKey(true, start)
		if err != nil {
			return nil, nil, false, err
		}
		return c.landed(ok)
	case storage.OpPrevNoDup:
		if !c.ent.flags.IsDupSort() {
			return c.landed(c.it.Prev())
		}
		if !c.valid {
			return c.landed(c.it.Prev())
		}
		start := c.currentKey()
		ok, err := c.stepWhileSameKey(false, start)
		if err != nil {
			return nil, nil, false, err
		}
		return c.landed(ok)

	case storage.OpNextDup:
		if !c.valid {
			return nil, nil, false, nil
		}
		start := c.currentKey()
		ok := c.it.Next()
		if err := c.it.Error(); err != nil {
			return nil, nil, false, err
		}
		if !ok || !bytes.Equal(c.currentKey(), start) {
			return nil, nil, false, nil
		}
		k, v := c.decode()
		return k, v, true, nil
	case storage.OpPrevDup:
		if !c.valid {
			return nil, nil, false, nil
		}
		start := c.currentKey()
		ok := c.it.Prev()
		if err := c.it.Error(); err != nil {
			return nil, nil, false, err
		}
		if !ok || !bytes.Equal(c.currentKey(), start) {
			return nil, nil, false, nil
		}
		k, v := c.decode()
		return k, v, true, nil

	case storage.OpFirstDup:
		if !c.valid {
			return nil, nil, false, nil
		}
		ok, err := c.seek(rowKey(c.ent.name, c.currentKey()))
		if err != nil {
			return nil, nil, false, err
		}
		return c.landed(ok)
	case storage.OpLastDup:
		if !c.valid {
			return nil, nil, false, nil
		}
		start := c.currentKey()
		var lastK, lastV []byte
		ok, err := c.seek(rowKey(c.ent.name, start))
		if err != nil || !ok {
			return nil, nil, false, err
		}
		for c.valid && bytes.Equal(c.currentKey(), start) {
			lastK, lastV = c.decode()
			if !c.it.Next() {
				c.valid = false
				break
			}
			if err := c.it.Error(); err != nil {
				return nil, nil, false, err
			}
		}
		// re-seek onto the last duplicate we saw, since the loop above
		// walked one step past it.
		c.seek(rowKeyDup(c.ent.name, start, lastV))
		return lastK, lastV, lastK != nil, nil

	case storage.OpSetKey:
		ok, err := c.seek(rowKey(c.ent.name, key))
		if err != nil {
			return nil, nil, false, err
		}
		if !ok || !bytes.Equal(c.currentKey(), key) {
			c.valid = false
			return nil, nil, false, nil
		}
		k, v := c.decode()
		return k, v, true, nil
	case storage.OpSetRange:
		ok, err := c.seek(rowKey(c.ent.name, key))
		if err != nil {
			return nil, nil, false, err
		}
		return c.landed(ok)
	case storage.OpGetBoth:
		if !c.ent.flags.IsDupSort() {
			return nil, nil, false, fptaerr.New(fptaerr.EFlag, "GET_BOTH requires a dup-sort sub-database")
		}
		ok, err := c.seek(rowKeyDup(c.ent.name, key, data))
		if err != nil {
			return nil, nil, false, err
		}
		if !ok {
			c.valid = false
			return nil, nil, false, nil
		}
		k, v := c.decode()
		if !bytes.Equal(k, key) || !bytes.Equal(v, data) {
			c.valid = false
			return nil, nil, false, nil
		}
		return k, v, true, nil
	case storage.OpGetBothRange:
		if !c.ent.flags.IsDupSort() {
			return nil, nil, false, fptaerr.New(fptaerr.EFlag, "GET_BOTH_RANGE requires a dup-sort sub-database")
		}
		ok, err := c.seek(rowKeyDup(c.ent.name, key, data))
		if err != nil {
			return nil, nil, false, err
		}
		if !ok {
			c.valid = false
			return nil, nil, false, nil
		}
		k, v := c.decode()
		if !bytes.Equal(k, key) {
			c.valid = false
			return nil, nil, false, nil
		}
		return k, v, true, nil

	case storage.OpNextMultiple, storage.OpPrevMultiple:
		// memkv has no page-batched multi-value fetch; fall back to a
		// single NEXT_DUP/PREV_DUP step, which is always a legal (if
		// slower) substitute per spec §6's op vocabulary.
		if op == storage.OpNextMultiple {
			return c.Get(storage.OpNextDup, key, data)
		}
		return c.Get(storage.OpPrevDup, key, data)
	}
	return nil, nil, false, fptaerr.New(fptaerr.EInval, "unknown cursor op %d", op)
}

func (c *cursor) Put(key, val []byte, flags storage.ReplaceFlags) error {
	if c.w == nil {
		return fptaerr.New(fptaerr.EPerm, "cursor is read-only")
	}
	if c.ent.flags.IsDupSort() {
		physKey := rowKeyDup(c.ent.name, key, val)
		if flags&storage.ReplaceNoDupData != 0 {
			if _, ok, _ := c.w.get(physKey); ok {
				return fptaerr.New(fptaerr.EKeyExist, "duplicate (key,data) pair already exists")
			}
		}
		return c.w.rawPut(physKey, val)
	}
	physKey := rowKey(c.ent.name, key)
	if flags&storage.ReplaceNoOverwrite != 0 {
		if _, ok, _ := c.w.get(physKey); ok {
			return fptaerr.New(fptaerr.EKeyExist, "key already exists")
		}
	}
	return c.w.rawPut(physKey, val)
}

func (c *cursor) Delete(flags storage.ReplaceFlags) error {
	if c.w == nil {
		return fptaerr.New(fptaerr.EPerm, "cursor is read-only")
	}
	if !c.valid {
		return fptaerr.New(fptaerr.ECursor, "cursor not positioned")
	}
	if flags&storage.ReplaceNoDupData != 0 && c.ent.flags.IsDupSort() {
		return c.w.deleteAllDups(c.ent, c.currentKey())
	}
	physKey := append([]byte{}, c.it.Key()...)
	return c.w.rawDelete(physKey)
}

func (c *cursor) Count() (uint64, error) {
	if !c.valid {
		return 0, fptaerr.New(fptaerr.ECursor, "cursor not positioned")
	}
	if !c.ent.flags.IsDupSort() {
		return 1, nil
	}
	start := c.currentKey()
	dup := newCursor(c.t, c.ent)
	defer dup.Close()
	ok, err := dup.seek(rowKey(c.ent.name, start))
	if err != nil {
		return 0, err
	}
	var n uint64
	for ok && bytes.Equal(dup.currentKey(), start) {
		n++
		ok = dup.it.Next()
		if err := dup.it.Error(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (c *cursor) Close() {
	c.it.Release()
}
