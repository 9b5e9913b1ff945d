package mdbxengine

import (
	"runtime"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/storage"
)

// wtx is the write half. mdbx enforces one writer per environment
// internally (BeginTxn(nil, 0) blocks until any other write txn
// commits or aborts), so unlike memkv there is no separate writeMu and
// no undo log: Commit/Abort map straight onto mdbx's own atomicity.
type wtx struct {
	rtx
}

func toPutFlags(f storage.ReplaceFlags) mdbx.PutFlags {
	var out mdbx.PutFlags
	if f&storage.ReplaceCurrent != 0 {
		out |= mdbx.Current
	}
	if f&storage.ReplaceNoDupData != 0 {
		out |= mdbx.NoDupData
	}
	if f&storage.ReplaceNoOverwrite != 0 {
		out |= mdbx.NoOverwrite
	}
	return out
}

func (w *wtx) CreateDbi(name string, flags storage.DbiFlags) (storage.Dbi, error) {
	dbi, err := w.txn.OpenDBI(name, toMdbxFlags(flags.WithCreate()), nil, nil)
	if err != nil {
		return 0, translateErr(err)
	}
	return storage.Dbi(dbi), nil
}

func (w *wtx) DropDbi(dbi storage.Dbi) error {
	return translateErr(w.txn.Drop(mdbx.DBI(dbi), true))
}

func (w *wtx) Put(dbi storage.Dbi, key, val []byte) error {
	return translateErr(w.txn.Put(mdbx.DBI(dbi), key, val, 0))
}

func (w *wtx) Delete(dbi storage.Dbi, key, val []byte) error {
	return translateErr(w.txn.Del(mdbx.DBI(dbi), key, val))
}

func (w *wtx) Replace(dbi storage.Dbi, key, newData []byte, flags storage.ReplaceFlags) ([]byte, bool, error) {
	old, ok, err := w.GetOne(dbi, key)
	if err != nil {
		return nil, false, err
	}
	if flags&storage.ReplaceNoOverwrite != 0 && ok {
		return old, true, fptaerr.New(fptaerr.EKeyExist, "key already exists")
	}
	if flags&storage.ReplaceCurrent != 0 && !ok {
		return nil, false, fptaerr.New(fptaerr.ENotFound, "no current entry to replace")
	}
	if err := w.txn.Put(mdbx.DBI(dbi), key, newData, toPutFlags(flags&^storage.ReplaceNoOverwrite)); err != nil {
		return nil, false, translateErr(err)
	}
	return old, ok, nil
}

func (w *wtx) IncrementSequence(dbi storage.Dbi, amount uint64) (uint64, error) {
	prev, err := w.txn.Sequence(mdbx.DBI(dbi), amount)
	if err != nil {
		return 0, translateErr(err)
	}
	return prev, nil
}

func (w *wtx) RwCursor(dbi storage.Dbi) (storage.Cursor, error) {
	c, err := w.txn.OpenCursor(mdbx.DBI(dbi))
	if err != nil {
		return nil, translateErr(err)
	}
	return &cursor{txn: w.txn, c: c, writable: true}, nil
}

func (w *wtx) Commit() error {
	defer runtime.UnlockOSThread()
	_, err := w.txn.Commit()
	return translateErr(err)
}

func (w *wtx) Rollback() {
	defer runtime.UnlockOSThread()
	w.txn.Abort()
}
