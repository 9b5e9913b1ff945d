package memkv

import (
	"encoding/binary"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// rtx is a read-only transaction pinned to a goleveldb Snapshot taken
// at BeginRo time, giving it a consistent point-in-time view
// regardless of concurrent writers (spec §5 "a write txn's effects
// become visible to later-begun txns only after commit").
//
// wtx embeds an rtx with snap == nil; its reads fall through to the
// live db, which is safe because only one write txn runs at a time
// (engine.writeMu) and because its own writes are applied immediately
// (see wtx.rawPut/rawDelete) — giving read-your-own-writes for free.
type rtx struct {
	e    *engine
	snap *leveldb.Snapshot
}

func (t *rtx) get(physKey []byte) ([]byte, bool, error) {
	var v []byte
	var err error
	if t.snap != nil {
		v, err = t.snap.Get(physKey, nil)
	} else {
		v, err = t.e.db.Get(physKey, nil)
	}
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return append([]byte{}, v...), true, nil
}

func (t *rtx) newIterator(rng *util.Range) iterator.Iterator {
	if t.snap != nil {
		return t.snap.NewIterator(rng, nil)
	}
	return t.e.db.NewIterator(rng, nil)
}

func (t *rtx) OpenDbi(name string, flags storage.DbiFlags) (storage.Dbi, error) {
	if flags.WantsCreate() {
		return 0, fptaerr.New(fptaerr.EPerm, "read transactions cannot create sub-databases")
	}
	return t.e.dbis.open([]byte(name), flags, false)
}

func (t *rtx) GetOne(dbi storage.Dbi, key []byte) ([]byte, bool, error) {
	ent, err := t.e.dbis.entry(dbi)
	if err != nil {
		return nil, false, err
	}
	if ent.flags.IsDupSort() {
		return nil, false, fptaerr.New(fptaerr.EInval, "GetOne is ambiguous on a dup-sort sub-database; use a Cursor")
	}
	return t.get(rowKey(ent.name, key))
}

func (t *rtx) Cursor(dbi storage.Dbi) (storage.Cursor, error) {
	ent, err := t.e.dbis.entry(dbi)
	if err != nil {
		return nil, err
	}
	return newCursor(t, ent), nil
}

func (t *rtx) Stat(dbi storage.Dbi) (storage.DbiStat, error) {
	ent, err := t.e.dbis.entry(dbi)
	if err != nil {
		return storage.DbiStat{}, err
	}
	prefix := escapeSegment(ent.name)
	it := t.newIterator(util.BytesPrefix(prefix))
	defer it.Release()
	var n uint64
	for it.Next() {
		n++
	}
	if err := it.Error(); err != nil {
		return storage.DbiStat{}, err
	}
	// memkv is not page-structured; only Entries carries real meaning,
	// the rest report zero rather than a fabricated estimate.
	return storage.DbiStat{Entries: n}, nil
}

func (t *rtx) EstimateRange(dbi storage.Dbi, fromKey, fromData, toKey, toData []byte) (uint64, error) {
	ent, err := t.e.dbis.entry(dbi)
	if err != nil {
		return 0, err
	}
	name := escapeSegment(ent.name)
	start := name
	if fromKey != nil {
		if ent.flags.IsDupSort() && fromData != nil {
			start = concatSegments(name, escapeSegment(fromKey), escapeSegment(fromData))
		} else {
			start = concatSegments(name, escapeSegment(fromKey))
		}
	}
	limit := util.BytesPrefix(name).Limit
	if toKey != nil {
		if ent.flags.IsDupSort() && toData != nil {
			limit = concatSegments(name, escapeSegment(toKey), escapeSegment(toData))
		} else {
			limit = concatSegments(name, escapeSegment(toKey))
		}
	}
	it := t.newIterator(&util.Range{Start: start, Limit: limit})
	defer it.Release()
	var n uint64
	for it.Next() {
		n++
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	// memkv counts exactly rather than sampling the B+tree geometry, a
	// strictly-better approximation (error 0) than spec §8's bound.
	return n, nil
}

func (t *rtx) Info() (storage.TxnInfo, error) {
	// No reader-lag/space-retired concept applies to a goleveldb
	// snapshot; zero values mean "no pressure", which is always true
	// here since memkv has no reclaim-on-commit cost.
	return storage.TxnInfo{}, nil
}

func (t *rtx) Sequence(dbi storage.Dbi) (uint64, error) {
	ent, err := t.e.dbis.entry(dbi)
	if err != nil {
		return 0, err
	}
	raw, ok, err := t.get(systemKey(concatSegments([]byte("seq:"), ent.name)))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (t *rtx) Rollback() {
	if t.snap != nil {
		t.snap.Release()
	}
}
