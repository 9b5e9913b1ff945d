package mdbxengine

import (
	"errors"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/storage"
)

// cursor wraps mdbx.Cursor. The Op vocabulary is a near-verbatim pass
// through: libmdbx is exactly the system spec §6's cursor primitives
// describe, so unlike memkv's cursor.go there is no emulation layer —
// every Op below is one mdbx.CursorOp call.
type cursor struct {
	txn      *mdbx.Txn
	c        *mdbx.Cursor
	writable bool
}

var opTable = map[storage.Op]mdbx.CursorOp{
	storage.OpFirst:          mdbx.First,
	storage.OpLast:           mdbx.Last,
	storage.OpNext:           mdbx.Next,
	storage.OpPrev:           mdbx.Prev,
	storage.OpNextDup:        mdbx.NextDup,
	storage.OpPrevDup:        mdbx.PrevDup,
	storage.OpNextNoDup:      mdbx.NextNoDup,
	storage.OpPrevNoDup:      mdbx.PrevNoDup,
	storage.OpNextMultiple:   mdbx.NextMultiple,
	storage.OpPrevMultiple:   mdbx.PrevMultiple,
	storage.OpFirstDup:       mdbx.FirstDup,
	storage.OpLastDup:        mdbx.LastDup,
	storage.OpSetKey:         mdbx.SetKey,
	storage.OpSetRange:       mdbx.SetRange,
	storage.OpGetBoth:        mdbx.GetBoth,
	storage.OpGetBothRange:   mdbx.GetBothRange,
	storage.OpGetCurrent:     mdbx.GetCurrent,
}

func (c *cursor) Get(op storage.Op, key, data []byte) ([]byte, []byte, bool, error) {
	mop, ok := opTable[op]
	if !ok {
		return nil, nil, false, fptaerr.New(fptaerr.EInval, "unknown cursor op %d", op)
	}
	k, v, err := c.c.Get(key, data, mop)
	if err != nil {
		if errors.Is(err, mdbx.NotFound) {
			return nil, nil, false, nil
		}
		return nil, nil, false, translateErr(err)
	}
	return append([]byte{}, k...), append([]byte{}, v...), true, nil
}

func (c *cursor) Put(key, val []byte, flags storage.ReplaceFlags) error {
	if !c.writable {
		return fptaerr.New(fptaerr.EPerm, "cursor is read-only")
	}
	return translateErr(c.c.Put(key, val, toPutFlags(flags)))
}

func (c *cursor) Delete(flags storage.ReplaceFlags) error {
	if !c.writable {
		return fptaerr.New(fptaerr.EPerm, "cursor is read-only")
	}
	var mf mdbx.PutFlags
	if flags&storage.ReplaceNoDupData != 0 {
		mf = mdbx.NoDupData
	}
	return translateErr(c.c.Del(mf))
}

func (c *cursor) Count() (uint64, error) {
	n, err := c.c.Count()
	if err != nil {
		return 0, translateErr(err)
	}
	return n, nil
}

func (c *cursor) Close() {
	c.c.Close()
}
