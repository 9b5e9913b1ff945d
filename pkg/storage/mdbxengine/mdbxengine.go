// Package mdbxengine is the production storage.Engine backend: a thin
// adapter over github.com/erigontech/mdbx-go/mdbx, the same binding
// AKJUS-bsc-erigon's erigon-lib/kv/mdbx package wraps (that package's
// source isn't present in the retrieval pack, only erigon-lib/kv's
// table-name constants and interface shapes are, so this file follows
// mdbx-go's own documented API surface rather than a copied file).
// Every method here is a direct translation of storage.Engine's
// contract onto mdbx.Env/mdbx.Txn/mdbx.Cursor: named sub-databases
// become mdbx DBIs, MVCC read/write txns are the engine's native
// transaction model (no undo log needed, unlike memkv), and the
// Op vocabulary maps onto mdbx.CursorOp almost one-for-one since
// libmdbx is the system spec §6 was written to describe.
package mdbxengine

import (
	"context"
	"os"
	"runtime"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/storage"
)

func init() {
	storage.RegisterEngine("mdbxengine", func(cfg storage.Config) (storage.Engine, error) {
		return Open(cfg)
	})
}

// Open creates or opens an mdbx environment at cfg.Path.
func Open(cfg storage.Config) (storage.Engine, error) {
	if cfg.Path == "" {
		return nil, fptaerr.New(fptaerr.EInval, "mdbxengine requires a non-empty Config.Path")
	}
	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, err
	}
	if err := env.SetMaxDBs(dbiLimit); err != nil {
		env.Close()
		return nil, err
	}
	if g := cfg.Geometry; g != (storage.Geometry{}) {
		if err := env.SetGeometry(
			int(g.SizeLower), int(g.SizeLower), int(g.SizeUpper),
			int(g.GrowthStep), int(g.ShrinkThreshold), int(g.PageSize),
		); err != nil {
			env.Close()
			return nil, err
		}
	}
	flags := envFlags(cfg)
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		env.Close()
		return nil, err
	}
	if err := env.Open(cfg.Path, flags, 0o644); err != nil {
		env.Close()
		return nil, err
	}
	return &engine{env: env}, nil
}

// dbiLimit bounds how many named sub-databases one environment can
// hold; fpta tables rarely need more than a handful of indexes each.
const dbiLimit = 1024

func envFlags(cfg storage.Config) mdbx.EnvFlags {
	var f mdbx.EnvFlags
	switch cfg.Durability {
	case storage.ReadOnly:
		f |= mdbx.Readonly
	case storage.Sync:
		// default durability; no extra flag needed
	case storage.Lazy:
		f |= mdbx.SafeNoSync
	case storage.Weak:
		f |= mdbx.UtterlyNoSync
	}
	if cfg.Regime&storage.RegimeFriendlyForWriteback != 0 {
		f |= mdbx.WriteMap
	}
	if cfg.Regime&storage.RegimeFriendlyForHDD != 0 {
		f |= mdbx.NoReadahead
	}
	if cfg.Regime&storage.RegimeFriendlyForCompaction != 0 {
		f |= mdbx.NoMemInit
	}
	if cfg.Regime&storage.RegimeSafeRAM != 0 {
		f |= mdbx.LifoReclaim
	}
	return f
}

type engine struct {
	env *mdbx.Env
}

func (e *engine) View(ctx context.Context, fn func(storage.RTx) error) error {
	rt, err := e.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer rt.Rollback()
	return fn(rt)
}

func (e *engine) Update(ctx context.Context, fn func(storage.WTx) error) error {
	wt, err := e.BeginRw(ctx)
	if err != nil {
		return err
	}
	if err := fn(wt); err != nil {
		wt.Rollback()
		return err
	}
	return wt.Commit()
}

func (e *engine) BeginRo(ctx context.Context) (storage.RTx, error) {
	txn, err := e.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, translateErr(err)
	}
	return &rtx{env: e.env, txn: txn}, nil
}

// BeginRw pins the calling goroutine to its OS thread for the life of
// the write transaction: mdbx (like lmdb) requires a write txn's
// commit/abort to happen on the same native thread that began it.
func (e *engine) BeginRw(ctx context.Context) (storage.WTx, error) {
	runtime.LockOSThread()
	txn, err := e.env.BeginTxn(nil, 0)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, translateErr(err)
	}
	return &wtx{rtx: rtx{env: e.env, txn: txn}}, nil
}

func (e *engine) Close() error {
	e.env.Close()
	return nil
}
