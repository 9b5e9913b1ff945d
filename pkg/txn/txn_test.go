package txn_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/storage/memkv"
	"github.com/positive-tech/fpta/pkg/txn"
	"github.com/positive-tech/fpta/pkg/value"
)

func newDB(t *testing.T) *txn.DB {
	t.Helper()
	eng, err := memkv.Open(storage.Config{})
	if err != nil {
		t.Fatalf("memkv.Open: %v", err)
	}
	return txn.Open(eng, 0)
}

func widgetColumns(t *testing.T) (schema.Shove, *schema.ColumnSet) {
	t.Helper()
	cs := schema.NewColumnSet()
	if err := cs.AddPrimary("id", value.KindUint64, false); err != nil {
		t.Fatalf("AddPrimary: %v", err)
	}
	if err := cs.Add("name", value.KindCstr, schema.SecondaryOrdered(false, false, false)); err != nil {
		t.Fatalf("Add name: %v", err)
	}
	shove := schema.MakeShove(schema.HashName("widgets"), 0, value.KindNull)
	return shove, cs
}

func createWidgets(t *testing.T, db *txn.DB) *schema.Schema {
	t.Helper()
	tx, err := txn.Begin(context.Background(), db, txn.Schema)
	if err != nil {
		t.Fatalf("Begin(Schema): %v", err)
	}
	shove, cs := widgetColumns(t)
	s, err := tx.CreateTable(shove, cs)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return s
}

func TestCreateTableThenOpenTableInReadTxn(t *testing.T) {
	db := newDB(t)
	s := createWidgets(t, db)

	rtx, err := txn.Begin(context.Background(), db, txn.Read)
	if err != nil {
		t.Fatalf("Begin(Read): %v", err)
	}
	defer rtx.Rollback()

	tbl, err := rtx.OpenTable(s)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	if tbl.Dbis[0] == 0 {
		t.Fatal("primary dbi handle is zero")
	}
	if tbl.Dbis[1] == 0 {
		t.Fatal("name column's secondary dbi handle is zero")
	}
}

func TestOpenTableReusesCachedHandleAcrossTxns(t *testing.T) {
	db := newDB(t)
	s := createWidgets(t, db)

	var first, second storage.Dbi
	for i, dst := range []*storage.Dbi{&first, &second} {
		rtx, err := txn.Begin(context.Background(), db, txn.Read)
		if err != nil {
			t.Fatalf("Begin(Read) #%d: %v", i, err)
		}
		tbl, err := rtx.OpenTable(s)
		if err != nil {
			t.Fatalf("OpenTable #%d: %v", i, err)
		}
		*dst = tbl.Dbis[0]
		rtx.Rollback()
	}
	if first != second {
		t.Fatalf("primary dbi handle changed across txns: %d != %d", first, second)
	}
}

func TestDropTableEvictsHandleCache(t *testing.T) {
	db := newDB(t)
	s := createWidgets(t, db)

	stx, err := txn.Begin(context.Background(), db, txn.Schema)
	if err != nil {
		t.Fatalf("Begin(Schema): %v", err)
	}
	tbl, err := stx.OpenTable(s)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	shove := schema.MakeShove(schema.HashName("widgets"), 0, value.KindNull)
	if err := stx.DropTable(shove, tbl); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if err := stx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx, err := txn.Begin(context.Background(), db, txn.Read)
	if err != nil {
		t.Fatalf("Begin(Read): %v", err)
	}
	defer rtx.Rollback()
	if _, err := rtx.OpenTable(s); err == nil {
		t.Fatal("OpenTable on a dropped table unexpectedly succeeded")
	}
}

func TestRefreshSchemaDetectsChange(t *testing.T) {
	db := newDB(t)
	s := createWidgets(t, db)
	shove := schema.MakeShove(schema.HashName("widgets"), 0, value.KindNull)

	rtx, err := txn.Begin(context.Background(), db, txn.Read)
	if err != nil {
		t.Fatalf("Begin(Read): %v", err)
	}
	defer rtx.Rollback()

	h := &schema.Handle{TableShove: shove, Schema: s, VersionTSN: s.VersionTSN}
	if err := rtx.RefreshSchema(h); err != nil {
		t.Fatalf("RefreshSchema (up to date): %v", err)
	}
	if h.VersionTSN != s.VersionTSN {
		t.Fatalf("RefreshSchema changed an up-to-date handle: %d != %d", h.VersionTSN, s.VersionTSN)
	}

	// Simulate an older handle that predates this read txn's schema_tsn.
	stale := &schema.Handle{TableShove: shove, Schema: s, VersionTSN: s.VersionTSN - 1}
	if err := rtx.RefreshSchema(stale); err != nil {
		t.Fatalf("RefreshSchema (stale): %v", err)
	}
	if stale.VersionTSN != rtx.SchemaTSN() {
		t.Fatalf("RefreshSchema left stale.VersionTSN = %d, want %d", stale.VersionTSN, rtx.SchemaTSN())
	}
}

func TestCreateTableRequiresSchemaTxn(t *testing.T) {
	db := newDB(t)
	rtx, err := txn.Begin(context.Background(), db, txn.Read)
	if err != nil {
		t.Fatalf("Begin(Read): %v", err)
	}
	defer rtx.Rollback()

	shove, cs := widgetColumns(t)
	if _, err := rtx.CreateTable(shove, cs); !errIs(err, fptaerr.EPerm) {
		t.Fatalf("CreateTable from a read txn = %v, want EPerm", err)
	}
}

func TestRollbackPurgesCreatedHandleCacheEntry(t *testing.T) {
	db := newDB(t)

	stx, err := txn.Begin(context.Background(), db, txn.Schema)
	if err != nil {
		t.Fatalf("Begin(Schema): %v", err)
	}
	shove, cs := widgetColumns(t)
	if _, err := stx.CreateTable(shove, cs); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	stx.Rollback()

	// The table never committed, so a fresh schema txn must be able to
	// describe it again from scratch without EKeyExist tripping over a
	// leftover catalog entry or a stale cached handle confusing re-creation.
	stx2, err := txn.Begin(context.Background(), db, txn.Schema)
	if err != nil {
		t.Fatalf("Begin(Schema) #2: %v", err)
	}
	defer stx2.Rollback()
	shove2, cs2 := widgetColumns(t)
	if _, err := stx2.CreateTable(shove2, cs2); err != nil {
		t.Fatalf("CreateTable after rollback: %v", err)
	}
}

func TestSchemaTxnExcludesConcurrentReader(t *testing.T) {
	db := newDB(t)
	createWidgets(t, db)

	stx, err := txn.Begin(context.Background(), db, txn.Schema)
	if err != nil {
		t.Fatalf("Begin(Schema): %v", err)
	}

	readerStarted := make(chan struct{})
	readerDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(readerStarted)
		rtx, err := txn.Begin(context.Background(), db, txn.Read)
		if err != nil {
			t.Errorf("Begin(Read) from goroutine: %v", err)
			return
		}
		defer rtx.Rollback()
		close(readerDone)
	}()

	<-readerStarted
	// Give the reader a moment to actually block on the writer slot
	// before we release it; this is a best-effort timing check, not a
	// correctness guarantee (a slow scheduler could let it past this
	// point even with the slot held, which would only make the test
	// pass trivially, never fail spuriously).
	select {
	case <-readerDone:
		t.Fatal("reader completed while a schema txn was still open")
	case <-time.After(20 * time.Millisecond):
	}

	if err := stx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	wg.Wait()
}

func TestEnoughForRestart(t *testing.T) {
	cases := []struct {
		name string
		info storage.TxnInfo
		want bool
	}{
		{"fresh", storage.TxnInfo{SpaceLeftover: 1000, SpaceLimitSoft: 1000}, false},
		{"lagging", storage.TxnInfo{ReaderLag: 1, SpaceLimitSoft: 1000}, true},
		{"retired-past-soft-limit", storage.TxnInfo{SpaceRetired: 1000, SpaceLimitSoft: 1000}, true},
		{"leftover-near-zero", storage.TxnInfo{SpaceLeftover: 1, SpaceLimitSoft: 1000}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := txn.EnoughForRestart(c.info); got != c.want {
				t.Fatalf("EnoughForRestart(%+v) = %v, want %v", c.info, got, c.want)
			}
		})
	}
}

func TestReadTxnRestartPreservesIdentity(t *testing.T) {
	db := newDB(t)
	createWidgets(t, db)

	rtx, err := txn.Begin(context.Background(), db, txn.Read)
	if err != nil {
		t.Fatalf("Begin(Read): %v", err)
	}
	defer rtx.Rollback()

	id := rtx.ID()
	if err := rtx.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if rtx.ID() != id {
		t.Fatalf("Restart changed txn identity: %s != %s", rtx.ID(), id)
	}
}

func TestRestartRejectedForWriteTxn(t *testing.T) {
	db := newDB(t)
	wtx, err := txn.Begin(context.Background(), db, txn.Write)
	if err != nil {
		t.Fatalf("Begin(Write): %v", err)
	}
	defer wtx.Rollback()
	if err := wtx.Restart(context.Background()); !errIs(err, fptaerr.EPerm) {
		t.Fatalf("Restart on a write txn = %v, want EPerm", err)
	}
}

func errIs(err error, code fptaerr.Code) bool {
	fe, ok := err.(*fptaerr.Err)
	return ok && fe.Code == code
}
