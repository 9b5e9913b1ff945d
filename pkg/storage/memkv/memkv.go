// Package memkv is the embedded/testing storage.Engine backend,
// grounded almost directly on the teacher's pkg/storage/leveldb.go
// (same open/Get/Put/iterator shape around github.com/syndtr/goleveldb)
// but extended with goleveldb Snapshots for MVCC read txns and a
// single-writer undo log for write txns, plus an order-preserving
// key-escaping scheme (encode.go) that lets one flat goleveldb
// keyspace emulate libmdbx's multiple named, flag-configured
// sub-databases.
package memkv

import (
	"context"
	"sync"

	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	ldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

func init() {
	storage.RegisterEngine("memkv", func(cfg storage.Config) (storage.Engine, error) {
		return Open(cfg)
	})
}

// Open returns a storage.Engine backed by goleveldb. cfg.Path == ""
// opens a pure in-memory store; otherwise it opens/creates a database
// directory at cfg.Path.
func Open(cfg storage.Config) (storage.Engine, error) {
	var st ldbstorage.Storage
	if cfg.Path == "" {
		st = ldbstorage.NewMemStorage()
	} else {
		s, err := ldbstorage.OpenFile(cfg.Path, false)
		if err != nil {
			return nil, err
		}
		st = s
	}
	db, err := leveldb.Open(st, &opt.Options{})
	if err != nil {
		return nil, err
	}
	e := &engine{db: db}
	e.dbis = newDbiDirectory()
	return e, nil
}

type engine struct {
	db *leveldb.DB

	writeMu sync.Mutex // one write txn at a time, spec §5 "one writer per env"

	dbis *dbiDirectory
}

func (e *engine) View(ctx context.Context, fn func(storage.RTx) error) error {
	rtx, err := e.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer rtx.Rollback()
	return fn(rtx)
}

func (e *engine) Update(ctx context.Context, fn func(storage.WTx) error) error {
	wtx, err := e.BeginRw(ctx)
	if err != nil {
		return err
	}
	if err := fn(wtx); err != nil {
		wtx.Rollback()
		return err
	}
	return wtx.Commit()
}

func (e *engine) BeginRo(ctx context.Context) (storage.RTx, error) {
	snap, err := e.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &rtx{e: e, snap: snap}, nil
}

func (e *engine) BeginRw(ctx context.Context) (storage.WTx, error) {
	e.writeMu.Lock()
	return &wtx{rtx: rtx{e: e}}, nil
}

func (e *engine) Close() error {
	return e.db.Close()
}
