package memkv

import (
	"encoding/binary"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type undoOp struct {
	key    []byte
	hadOld bool
	old    []byte
}

// wtx is the sole live write transaction (engine.writeMu serialises
// BeginRw calls). Mutations apply straight to the underlying db so
// the writer reads its own uncommitted writes; Rollback replays an
// undo log in reverse rather than buffering a batch, which keeps
// read-your-own-writes trivial at the cost of Commit being "already
// done" rather than atomic-on-apply. Acceptable for an embedded/test
// backend; mdbxengine gets real transactional atomicity from libmdbx.
type wtx struct {
	rtx
	undo       []undoOp
	dirCreated []storage.Dbi
	dirDropped []*dbiEntry
}

func (w *wtx) recordUndo(physKey []byte) {
	old, ok, _ := w.get(physKey)
	w.undo = append(w.undo, undoOp{key: append([]byte{}, physKey...), hadOld: ok, old: old})
}

func (w *wtx) rawPut(physKey, val []byte) error {
	w.recordUndo(physKey)
	return w.e.db.Put(physKey, val, nil)
}

func (w *wtx) rawDelete(physKey []byte) error {
	w.recordUndo(physKey)
	return w.e.db.Delete(physKey, nil)
}

func (w *wtx) OpenDbi(name string, flags storage.DbiFlags) (storage.Dbi, error) {
	existed := w.e.dbis.exists(name)
	id, err := w.e.dbis.open([]byte(name), flags, flags.WantsCreate())
	if err == nil && !existed && flags.WantsCreate() {
		w.dirCreated = append(w.dirCreated, id)
	}
	return id, err
}

func (w *wtx) CreateDbi(name string, flags storage.DbiFlags) (storage.Dbi, error) {
	existed := w.e.dbis.exists(name)
	id, err := w.e.dbis.open([]byte(name), flags, true)
	if err == nil && !existed {
		w.dirCreated = append(w.dirCreated, id)
	}
	return id, err
}

func (w *wtx) DropDbi(dbi storage.Dbi) error {
	ent, err := w.e.dbis.entry(dbi)
	if err != nil {
		return err
	}
	prefix := escapeSegment(ent.name)
	it := w.e.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte{}, it.Key()...))
	}
	if err := it.Error(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := w.rawDelete(k); err != nil {
			return err
		}
	}
	w.e.dbis.drop(dbi)
	w.dirDropped = append(w.dirDropped, ent)
	return nil
}

func (w *wtx) Put(dbi storage.Dbi, key, val []byte) error {
	ent, err := w.e.dbis.entry(dbi)
	if err != nil {
		return err
	}
	if ent.flags.IsDupSort() {
		return w.rawPut(rowKeyDup(ent.name, key, val), val)
	}
	return w.rawPut(rowKey(ent.name, key), val)
}

func (w *wtx) deleteAllDups(ent *dbiEntry, key []byte) error {
	prefix := rowKey(ent.name, key)
	it := w.e.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte{}, it.Key()...))
	}
	if err := it.Error(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := w.rawDelete(k); err != nil {
			return err
		}
	}
	return nil
}

func (w *wtx) Delete(dbi storage.Dbi, key, val []byte) error {
	ent, err := w.e.dbis.entry(dbi)
	if err != nil {
		return err
	}
	if ent.flags.IsDupSort() {
		if val != nil {
			return w.rawDelete(rowKeyDup(ent.name, key, val))
		}
		return w.deleteAllDups(ent, key)
	}
	return w.rawDelete(rowKey(ent.name, key))
}

func (w *wtx) Replace(dbi storage.Dbi, key, newData []byte, flags storage.ReplaceFlags) ([]byte, bool, error) {
	ent, err := w.e.dbis.entry(dbi)
	if err != nil {
		return nil, false, err
	}
	if ent.flags.IsDupSort() {
		return nil, false, fptaerr.New(fptaerr.EFlag, "Replace is not defined on dup-sort sub-databases")
	}
	physKey := rowKey(ent.name, key)
	old, hadOld, err := w.get(physKey)
	if err != nil {
		return nil, false, err
	}
	if flags&storage.ReplaceNoOverwrite != 0 && hadOld {
		return old, true, fptaerr.New(fptaerr.EKeyExist, "key already exists")
	}
	if flags&storage.ReplaceCurrent != 0 && !hadOld {
		return nil, false, fptaerr.New(fptaerr.ENotFound, "no current entry to replace")
	}
	if err := w.rawPut(physKey, newData); err != nil {
		return nil, false, err
	}
	return old, hadOld, nil
}

func (w *wtx) IncrementSequence(dbi storage.Dbi, amount uint64) (uint64, error) {
	ent, err := w.e.dbis.entry(dbi)
	if err != nil {
		return 0, err
	}
	skey := systemKey(concatSegments([]byte("seq:"), ent.name))
	raw, ok, err := w.get(skey)
	if err != nil {
		return 0, err
	}
	var cur uint64
	if ok {
		cur = binary.BigEndian.Uint64(raw)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], cur+amount)
	if err := w.rawPut(skey, buf[:]); err != nil {
		return 0, err
	}
	return cur, nil
}

func (w *wtx) RwCursor(dbi storage.Dbi) (storage.Cursor, error) {
	ent, err := w.e.dbis.entry(dbi)
	if err != nil {
		return nil, err
	}
	c := newCursor(&w.rtx, ent)
	c.w = w
	return c, nil
}

func (w *wtx) Commit() error {
	w.e.writeMu.Unlock()
	return nil
}

func (w *wtx) Rollback() {
	for i := len(w.undo) - 1; i >= 0; i-- {
		u := w.undo[i]
		if u.hadOld {
			w.e.db.Put(u.key, u.old, nil)
		} else {
			w.e.db.Delete(u.key, nil)
		}
	}
	for _, id := range w.dirCreated {
		w.e.dbis.drop(id)
	}
	for _, ent := range w.dirDropped {
		w.e.dbis.restore(ent)
	}
	w.e.writeMu.Unlock()
}
