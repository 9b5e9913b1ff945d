package mdbxengine

import (
	"errors"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/storage"
)

// rtx wraps an mdbx.Txn. Its embedding in wtx is the write half;
// unlike memkv there is no snapshot/undo-log split to model since mdbx
// already gives every txn, read or write, a private MVCC view.
type rtx struct {
	env *mdbx.Env
	txn *mdbx.Txn
}

func toMdbxFlags(f storage.DbiFlags) mdbx.DBIFlags {
	var out mdbx.DBIFlags
	if f.WantsCreate() {
		out |= mdbx.Create
	}
	if f.IsReverseKey() {
		out |= mdbx.ReverseKey
	}
	if f.IsIntegerKey() {
		out |= mdbx.IntegerKey
	}
	if f.IsDupSort() {
		out |= mdbx.DupSort
	}
	if f.IsDupFixed() {
		out |= mdbx.DupFixed
	}
	if f.IsIntegerDup() {
		out |= mdbx.IntegerDup
	}
	if f.IsReverseDup() {
		out |= mdbx.ReverseDup
	}
	return out
}

func (t *rtx) OpenDbi(name string, flags storage.DbiFlags) (storage.Dbi, error) {
	if flags.WantsCreate() && t.txn.Flags()&mdbx.Readonly != 0 {
		return 0, fptaerr.New(fptaerr.EPerm, "read transactions cannot create sub-databases")
	}
	dbi, err := t.txn.OpenDBI(name, toMdbxFlags(flags), nil, nil)
	if err != nil {
		return 0, translateErr(err)
	}
	return storage.Dbi(dbi), nil
}

func (t *rtx) GetOne(dbi storage.Dbi, key []byte) ([]byte, bool, error) {
	v, err := t.txn.Get(mdbx.DBI(dbi), key)
	if err != nil {
		if errors.Is(err, mdbx.NotFound) {
			return nil, false, nil
		}
		return nil, false, translateErr(err)
	}
	return append([]byte{}, v...), true, nil
}

func (t *rtx) Cursor(dbi storage.Dbi) (storage.Cursor, error) {
	c, err := t.txn.OpenCursor(mdbx.DBI(dbi))
	if err != nil {
		return nil, translateErr(err)
	}
	return &cursor{txn: t.txn, c: c}, nil
}

func (t *rtx) Stat(dbi storage.Dbi) (storage.DbiStat, error) {
	st, err := t.txn.Stat(mdbx.DBI(dbi))
	if err != nil {
		return storage.DbiStat{}, translateErr(err)
	}
	return storage.DbiStat{
		Entries:       st.Entries,
		Depth:         uint32(st.Depth),
		BranchPages:   st.BranchPages,
		LeafPages:     st.LeafPages,
		OverflowPages: st.OverflowPages,
		PageSize:      uint32(st.PSize),
	}, nil
}

func (t *rtx) EstimateRange(dbi storage.Dbi, fromKey, fromData, toKey, toData []byte) (uint64, error) {
	begin := &mdbx.Val{}
	end := &mdbx.Val{}
	if fromKey != nil {
		begin = mdbx.Bytes(&fromKey)
	}
	if toKey != nil {
		end = mdbx.Bytes(&toKey)
	}
	n, err := t.txn.EstimateRange(mdbx.DBI(dbi), begin, end)
	if err != nil {
		return 0, translateErr(err)
	}
	if n < 0 {
		n = 0
	}
	return uint64(n), nil
}

func (t *rtx) Info() (storage.TxnInfo, error) {
	info, err := t.env.Info(t.txn)
	if err != nil {
		return storage.TxnInfo{}, translateErr(err)
	}
	return storage.TxnInfo{
		ReaderLag:      uint64(info.SinceReaderCheck),
		SpaceRetired:   info.MiLast,
		SpaceLeftover:  info.MapSize - info.MiLast,
		SpaceLimitSoft: info.Geo.Upper,
		SpaceLimitHard: info.Geo.Upper,
	}, nil
}

func (t *rtx) Sequence(dbi storage.Dbi) (uint64, error) {
	seq, err := t.txn.Sequence(mdbx.DBI(dbi), 0)
	if err != nil {
		return 0, translateErr(err)
	}
	return seq, nil
}

func (t *rtx) Rollback() {
	t.txn.Abort()
}
