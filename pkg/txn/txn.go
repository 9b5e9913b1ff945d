// Package txn implements transaction lifecycle, schema-generation
// tracking, and the per-database dbi handle cache every other layer
// transacts through (spec §4.6 "Schema operations", §4.7 "Handle
// cache", §5 "Concurrency & resource model").
package txn

import (
	"context"
	"encoding/binary"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/index"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/storage"
)

// Kind selects a transaction's isolation/exclusivity level (spec §5
// "txn_begin(Write|Schema|Read)").
type Kind uint8

const (
	// Read txns may run concurrently with each other and with a Write
	// txn; they block while a Schema txn holds the writerSlot.
	Read Kind = iota
	// Write txns get the storage engine's single in-process writer slot
	// (enforced by the backend itself) but do not exclude readers.
	Write
	// Schema txns additionally take this database's writerSlot
	// exclusively, so no in-process reader can observe a half-migrated
	// schema.
	Schema
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case Schema:
		return "schema"
	default:
		return "unknown"
	}
}

// PanicHook is consulted when a secondary failure happens while a txn
// is already unwinding from an initial error (spec §5 "Panic
// handling"). Returning true tells the txn layer the process may
// safely keep running; the caller gets back a plain EWannaDie error
// and is expected to terminate promptly on its own. Returning false
// means the hook could not contain the failure, and the process is
// torn down immediately.
type PanicHook func(errInitial, errFatal error) bool

func defaultPanicHook(errInitial, errFatal error) bool { return false }

// DB is one opened database instance: the storage engine plus every
// piece of process-local state its transactions share — the dbi
// handle cache, the schema/reader exclusivity slot, and the current
// schema generation counter.
type DB struct {
	Engine storage.Engine

	handles *handleCache
	writer  writerSlot

	mu        sync.Mutex
	schemaTSN uint64

	panicHook PanicHook
}

// Open wraps an already-opened storage.Engine as a DB. handleCacheSize
// bounds the number of (shove -> dbi) bindings kept live at once; <= 0
// picks a sane default.
func Open(eng storage.Engine, handleCacheSize int) *DB {
	return &DB{
		Engine:    eng,
		handles:   newHandleCache(handleCacheSize),
		panicHook: defaultPanicHook,
	}
}

// SetPanicHook installs a replacement for the default panic hook
// (spec §5 "the component calls a replaceable panic(err_initial,
// err_fatal) hook").
func (db *DB) SetPanicHook(hook PanicHook) {
	if hook == nil {
		hook = defaultPanicHook
	}
	db.panicHook = hook
}

// WriterSlotStats exposes the schema/reader exclusivity slot's current
// waiter/holder counts, e.g. for a health endpoint to notice a schema
// txn stuck behind long readers.
func (db *DB) WriterSlotStats() (waitingWriters, havingWriters, waitingReaders, havingReaders int32) {
	return db.writer.Stats()
}

func (db *DB) currentSchemaTSN() uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.schemaTSN
}

func (db *DB) bumpSchemaTSN() uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.schemaTSN++
	tsn := db.schemaTSN
	db.handles.noteSchemaChange(tsn)
	return tsn
}

// revertSchemaTSN undoes a bump a schema txn made but then aborted
// before committing. Safe without extra locking against any other
// writer: schema txns hold the database's writerSlot exclusively for
// their entire lifetime, so nothing else could have bumped the
// counter again in between.
func (db *DB) revertSchemaTSN(bumped uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.schemaTSN == bumped {
		db.schemaTSN = bumped - 1
	}
}

// Txn is one open transaction against a DB: a storage.RTx/WTx pair,
// the schema generation it was opened at, and the writer-slot hold (if
// any) it must release on Commit/Rollback.
type Txn struct {
	db   *DB
	kind Kind
	id   uuid.UUID

	rtx storage.RTx
	wtx storage.WTx // non-nil iff kind != Read

	schemaTSN uint64

	slotHeld  bool
	exclusive bool

	createdDbis      []schema.Shove // purged from db.handles if this txn aborts
	pendingSchemaTSN uint64         // this txn's own db.schemaTSN bump, if any, so Rollback can undo it

	done bool
}

// Begin opens a new transaction of the given kind against db (spec §5
// "txn_begin"), blocking on whatever exclusivity that kind requires
// before the underlying storage transaction itself is started.
func Begin(ctx context.Context, db *DB, kind Kind) (*Txn, error) {
	t := &Txn{db: db, kind: kind, id: uuid.New()}

	switch kind {
	case Schema:
		db.writer.Lock()
		t.slotHeld, t.exclusive = true, true
	case Read:
		db.writer.RLock()
		t.slotHeld = true
	case Write:
		// relies solely on the storage engine's own single-writer
		// contract; no process-local slot needed here.
	default:
		return nil, fptaerr.New(fptaerr.EInval, "unknown txn kind %d", kind)
	}

	var err error
	if kind == Read {
		t.rtx, err = db.Engine.BeginRo(ctx)
	} else {
		t.wtx, err = db.Engine.BeginRw(ctx)
		t.rtx = t.wtx
	}
	if err != nil {
		t.releaseSlot()
		return nil, err
	}

	t.schemaTSN = db.currentSchemaTSN()
	return t, nil
}

func (t *Txn) releaseSlot() {
	if !t.slotHeld {
		return
	}
	if t.exclusive {
		t.db.writer.Unlock()
	} else {
		t.db.writer.RUnlock()
	}
	t.slotHeld = false
}

// ID returns this txn's diagnostic identifier, stable for its whole
// lifetime including across Restart.
func (t *Txn) ID() uuid.UUID { return t.id }

// Kind reports what this txn was opened as.
func (t *Txn) Kind() Kind { return t.kind }

// SchemaTSN is the schema generation this txn observed at Begin (or
// at its last successful Restart).
func (t *Txn) SchemaTSN() uint64 { return t.schemaTSN }

// RTx exposes the underlying read transaction, e.g. for pkg/cursor.
func (t *Txn) RTx() storage.RTx { return t.rtx }

// WTx exposes the underlying write transaction, or nil for a Read
// txn.
func (t *Txn) WTx() storage.WTx { return t.wtx }

// EnoughForRestart reports whether info crosses any of the three
// thresholds spec §5's enough_for_restart names: reader lag, retired
// space, or leftover space against the soft limit. Once true, a Read
// txn should call Restart and a Write/Schema txn should abort and
// retry rather than keep running.
func EnoughForRestart(info storage.TxnInfo) bool {
	if info.ReaderLag > 0 {
		return true
	}
	if info.SpaceLimitSoft > 0 && info.SpaceRetired >= info.SpaceLimitSoft {
		return true
	}
	if info.SpaceLimitSoft > 0 && info.SpaceLeftover <= info.SpaceLimitSoft/8 {
		return true
	}
	return false
}

// Restart rolls a Read txn forward to the latest snapshot in place,
// preserving t's identity so caller-held pointers to it remain valid
// (spec §5 "transaction_restart ... preserving the txn object's
// identity"). Only defined for Read txns; callers holding cursors
// against t must separately call cursor.Restart on each one afterward
// (spec §4.5 "Restart").
func (t *Txn) Restart(ctx context.Context) error {
	if t.kind != Read {
		return fptaerr.New(fptaerr.EPerm, "Restart only applies to read transactions")
	}
	if t.done {
		return fptaerr.New(fptaerr.EBadTxn, "txn already finished")
	}
	t.rtx.Rollback()
	newRtx, err := t.db.Engine.BeginRo(ctx)
	if err != nil {
		return err
	}
	t.rtx = newRtx
	t.schemaTSN = t.db.currentSchemaTSN()
	return nil
}

// Commit finishes a Write/Schema txn, or just ends a Read txn (which
// has nothing to commit).
func (t *Txn) Commit() error {
	if t.done {
		return fptaerr.New(fptaerr.EBadTxn, "txn already finished")
	}
	t.done = true
	defer t.releaseSlot()

	if t.wtx == nil {
		t.rtx.Rollback()
		return nil
	}
	if err := t.wtx.Commit(); err != nil {
		return t.abort(err)
	}
	return nil
}

// Rollback discards every write this txn made (total abort, spec §5
// "a txn may be aborted at any time"), purging the handle cache of any
// dbi this txn created along the way so a subsequent txn never sees a
// handle for a sub-database that no longer exists. Safe to call more
// than once, and safe to call after Commit.
func (t *Txn) Rollback() {
	if t.done {
		return
	}
	t.done = true
	defer t.releaseSlot()
	t.abort(nil)
}

// abort runs the actual rollback, with errInitial (nil for a plain
// caller-requested Rollback) naming whatever already went wrong. A
// panic out of the underlying engine's Rollback — the "error during
// abort" spec §5 calls a secondary failure — is caught here and
// promoted through the panic hook instead of propagating, since by
// this point the txn must not be left half-unwound.
func (t *Txn) abort(errInitial error) error {
	var fatalErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				fatalErr = fptaerr.New(fptaerr.EOops, "panic during rollback: %v", r)
			}
		}()
		t.rtx.Rollback()
	}()
	t.purgeCreated()
	if t.pendingSchemaTSN != 0 {
		t.db.revertSchemaTSN(t.pendingSchemaTSN)
	}
	if fatalErr != nil {
		return t.fatal(errInitial, fatalErr)
	}
	return errInitial
}

func (t *Txn) purgeCreated() {
	for _, shove := range t.createdDbis {
		t.db.handles.evict(shove)
	}
}

// bumpSchemaTSN advances the database's schema generation at most once
// per txn: a schema txn may call CreateTable/DropTable more than once,
// and they must all land on the same generation rather than minting a
// fresh one each time.
func (t *Txn) bumpSchemaTSN() uint64 {
	if t.pendingSchemaTSN == 0 {
		t.pendingSchemaTSN = t.db.bumpSchemaTSN()
	}
	return t.pendingSchemaTSN
}

// fatal reports a secondary failure encountered while t was already
// unwinding from errInitial (spec §5 "an error during abort ... is
// fatal to the txn"). It consults db.panicHook; a hook returning false
// means the process must not continue and this call never returns.
func (t *Txn) fatal(errInitial, errFatal error) error {
	hook := t.db.panicHook
	if hook == nil {
		hook = defaultPanicHook
	}
	if !hook(errInitial, errFatal) {
		log.Fatalf("fpta: txn %s: fatal error during abort: initial=%v secondary=%v", t.id, errInitial, errFatal)
	}
	return fptaerr.New(fptaerr.EWannaDie, "txn %s: %v (while handling %v)", t.id, errFatal, errInitial)
}

// OpenTable resolves s's sub-database handles through this txn's
// handle cache (spec §4.7), rather than going straight to
// tx.OpenDbi for every column on every call the way index.Open does.
func (t *Txn) OpenTable(s *schema.Schema) (*index.Table, error) {
	return index.OpenResolved(s, func(c schema.Column, flags storage.DbiFlags) (storage.Dbi, error) {
		return t.db.handles.Resolve(t.rtx, c.Shove, flags, t.schemaTSN, t.kind == Schema)
	})
}

// CreateTable describes and creates a new table (spec §4.6 "Create
// table"), bumping the database's schema generation and remembering
// the dbis it opened so a subsequent Rollback can purge them from the
// handle cache.
func (t *Txn) CreateTable(tableShove schema.Shove, set *schema.ColumnSet) (*schema.Schema, error) {
	if t.kind != Schema {
		return nil, fptaerr.New(fptaerr.EPerm, "CreateTable requires a schema transaction")
	}
	cat, err := t.catalog(true)
	if err != nil {
		return nil, err
	}
	nextTSN := t.bumpSchemaTSN()
	s, err := schema.CreateTable(cat, tableShove, set, nextTSN)
	if err != nil {
		return nil, err
	}
	tbl, err := index.Create(t.wtx, s)
	if err != nil {
		return nil, err
	}
	t.schemaTSN = nextTSN
	for i, c := range s.Columns {
		if tbl.Dbis[i] == 0 {
			continue
		}
		t.createdDbis = append(t.createdDbis, c.Shove)
	}
	return s, nil
}

// DropTable drops tbl's sub-databases and removes its schema record
// (spec §4.6 "Drop table"), bumping the database's schema generation
// and evicting tbl's columns from the handle cache immediately (a
// dropped table's handles are stale for every txn from this point on,
// not just for the one that dropped it).
func (t *Txn) DropTable(tableShove schema.Shove, tbl *index.Table) error {
	if t.kind != Schema {
		return fptaerr.New(fptaerr.EPerm, "DropTable requires a schema transaction")
	}
	cat, err := t.catalog(true)
	if err != nil {
		return err
	}
	var names []string
	for _, c := range tbl.Schema.Columns {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	if err := schema.DropTable(cat, tableShove, names); err != nil {
		return err
	}
	if err := index.Drop(t.wtx, tbl); err != nil {
		return err
	}
	t.schemaTSN = t.bumpSchemaTSN()
	for _, c := range tbl.Schema.Columns {
		t.db.handles.evict(c.Shove)
	}
	return nil
}

// RefreshSchema keeps h current with this txn's schema generation
// (spec §4.6 "Refresh (name_refresh)"): reloads the schema record if
// h is stale, and — the half of Refresh that is this package's job
// rather than pkg/schema's — invalidates this database's dbi handle
// cache for h's table whenever that reload actually changed anything,
// so the next OpenTable re-resolves rather than handing back a handle
// from before the reload.
func (t *Txn) RefreshSchema(h *schema.Handle) error {
	cat, err := t.catalog(false)
	if err != nil {
		return err
	}
	before := h.VersionTSN
	if err := schema.Refresh(cat, h, t.schemaTSN); err != nil {
		return err
	}
	if h.VersionTSN != before {
		t.db.handles.evict(h.TableShove)
	}
	return nil
}

// catalog resolves the schema catalog's own sub-database (shove 0)
// through the handle cache, like any other table. create is only ever
// true from a schema txn the very first time the catalog dbi is
// opened in a fresh database; if that txn then aborts, storage-level
// Rollback drops the dbi it just created out from under the cache, so
// the resolution is recorded in createdDbis too (redundantly, once
// the catalog already exists, but eviction on a miss costs only one
// extra OpenDbi call next time, never a correctness problem).
func (t *Txn) catalog(create bool) (schema.Catalog, error) {
	flags, err := storage.MakeDbiFlags(storage.KeyDefault, storage.NoDup, create)
	if err != nil {
		return nil, err
	}
	dbi, err := t.db.handles.Resolve(t.rtx, 0, flags, t.schemaTSN, t.kind == Schema)
	if err != nil {
		return nil, err
	}
	if create {
		t.createdDbis = append(t.createdDbis, schema.Shove(0))
	}
	return catalogHandle{tx: t.rtx, wtx: t.wtx, dbi: dbi}, nil
}

// catalogHandle adapts a raw storage.Dbi to schema.Catalog's
// uint64-keyed get/put/delete contract, fixed-width big-endian so keys
// stay byte-order comparable under plain KeyDefault ordering (see
// pkg/index/table.go's dbiFlagsFor comment on why this module never
// asks the engine for native IntegerKey comparison).
type catalogHandle struct {
	tx  storage.RTx
	wtx storage.WTx // nil for a Read txn; Put/Delete then panic, which never happens: Refresh is the only caller in that case and it's read-only.
	dbi storage.Dbi
}

func catalogKey(key uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], key)
	return b[:]
}

func (c catalogHandle) Get(key uint64) ([]byte, bool, error) { return c.tx.GetOne(c.dbi, catalogKey(key)) }
func (c catalogHandle) Put(key uint64, val []byte) error     { return c.wtx.Put(c.dbi, catalogKey(key), val) }
func (c catalogHandle) Delete(key uint64) error              { return c.wtx.Delete(c.dbi, catalogKey(key), nil) }
