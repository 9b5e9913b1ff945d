package cursor_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/positive-tech/fpta/pkg/cursor"
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/index"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/storage/memkv"
	"github.com/positive-tech/fpta/pkg/tuple"
	"github.com/positive-tech/fpta/pkg/value"
)

type catalogAdapter struct {
	tx  storage.WTx
	dbi storage.Dbi
}

func catKey(key uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], key)
	return b[:]
}

func (c catalogAdapter) Get(key uint64) ([]byte, bool, error) { return c.tx.GetOne(c.dbi, catKey(key)) }
func (c catalogAdapter) Put(key uint64, val []byte) error     { return c.tx.Put(c.dbi, catKey(key), val) }
func (c catalogAdapter) Delete(key uint64) error              { return c.tx.Delete(c.dbi, catKey(key), nil) }

// peopleSchema mirrors pkg/index's test fixture: a unique numeric
// primary key, a unique ordered secondary (email), a non-unique
// ordered secondary (dept), and a non-indexed column (age).
func peopleSchema(t *testing.T, tx storage.WTx) *schema.Schema {
	t.Helper()
	flags, err := storage.MakeDbiFlags(storage.KeyDefault, storage.NoDup, true)
	if err != nil {
		t.Fatalf("MakeDbiFlags: %v", err)
	}
	catDbi, err := tx.CreateDbi(schema.CatalogDbiName(), flags)
	if err != nil {
		t.Fatalf("create catalog dbi: %v", err)
	}
	cat := catalogAdapter{tx: tx, dbi: catDbi}

	cs := schema.NewColumnSet()
	if err := cs.AddPrimary("id", value.KindUint64, false); err != nil {
		t.Fatalf("AddPrimary: %v", err)
	}
	if err := cs.Add("email", value.KindCstr, schema.SecondaryOrdered(true, false, false)); err != nil {
		t.Fatalf("Add email: %v", err)
	}
	if err := cs.Add("dept", value.KindCstr, schema.SecondaryOrdered(false, false, false)); err != nil {
		t.Fatalf("Add dept: %v", err)
	}
	if err := cs.Add("age", value.KindInt32, schema.NotIndexed(false)); err != nil {
		t.Fatalf("Add age: %v", err)
	}

	tableShove := schema.MakeShove(schema.HashName("people"), 0, value.KindNull)
	s, err := schema.CreateTable(cat, tableShove, cs, 1)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return s
}

func col(t *testing.T, s *schema.Schema, name string) int {
	t.Helper()
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	t.Fatalf("column %q not found in schema", name)
	return -1
}

func buildRow(t *testing.T, s *schema.Schema, id uint64, email, dept string, age int32) *tuple.Rw {
	t.Helper()
	row, err := tuple.Alloc(8, 256)
	if err != nil {
		t.Fatalf("tuple.Alloc: %v", err)
	}
	if err := row.Insert(uint16(col(t, s, "id")), value.Uint64(id)); err != nil {
		t.Fatalf("insert id: %v", err)
	}
	if err := row.Insert(uint16(col(t, s, "email")), value.Cstr(email)); err != nil {
		t.Fatalf("insert email: %v", err)
	}
	if err := row.Insert(uint16(col(t, s, "dept")), value.Cstr(dept)); err != nil {
		t.Fatalf("insert dept: %v", err)
	}
	if err := row.Insert(uint16(col(t, s, "age")), value.Int32(age)); err != nil {
		t.Fatalf("insert age: %v", err)
	}
	return row
}

func withPeople(t *testing.T, rows [][4]any) (storage.Engine, *schema.Schema) {
	t.Helper()
	eng, err := memkv.Open(storage.Config{})
	if err != nil {
		t.Fatalf("memkv.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	var s *schema.Schema
	err = eng.Update(context.Background(), func(tx storage.WTx) error {
		s = peopleSchema(t, tx)
		tbl, err := index.Create(tx, s)
		if err != nil {
			return err
		}
		for _, r := range rows {
			row := buildRow(t, s, r[0].(uint64), r[1].(string), r[2].(string), r[3].(int32))
			if err := index.Put(tx, tbl, row, index.ModeInsert); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed table: %v", err)
	}
	return eng, s
}

func seedRows() [][4]any {
	return [][4]any{
		{uint64(1), "alice@example.com", "eng", int32(30)},
		{uint64(2), "bob@example.com", "eng", int32(25)},
		{uint64(3), "carol@example.com", "sales", int32(40)},
		{uint64(4), "dave@example.com", "sales", int32(35)},
	}
}

func TestOpenAscendingFullRangeOnPrimary(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	var ids []uint64
	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Begin(), To: value.End()})
		if err != nil {
			return err
		}
		defer c.Close()
		for row := c.Current(); row != nil; {
			v, ok := row.Value.Get(uint16(idCol), tuple.Any())
			if !ok {
				t.Fatalf("id missing from decoded row")
			}
			ids = append(ids, v.U)
			more, err := c.Step()
			if err != nil {
				return err
			}
			if !more {
				break
			}
			row = c.Current()
		}
		if !c.AfterLast() {
			t.Fatalf("expected AfterLast after exhausting the scan")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	want := []uint64{1, 2, 3, 4}
	if len(ids) != len(want) {
		t.Fatalf("got %v rows, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestOpenDescendingOnPrimary(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	var ids []uint64
	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Begin(), To: value.End(), Descending: true})
		if err != nil {
			return err
		}
		defer c.Close()
		for row := c.Current(); row != nil; {
			v, _ := row.Value.Get(uint16(idCol), tuple.Any())
			ids = append(ids, v.U)
			more, err := c.Step()
			if err != nil {
				return err
			}
			if !more {
				break
			}
			row = c.Current()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	want := []uint64{4, 3, 2, 1}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestOpenEmptyRangeYieldsNoData(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Uint64(100), To: value.End()})
		if err != nil {
			return err
		}
		defer c.Close()
		if c.Current() != nil {
			t.Fatalf("expected no current row past the last key")
		}
		if !c.NoData() {
			t.Fatalf("expected NoData for a range entirely past the last key")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestOpenZeroedRangeIsPoint(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{
			From: value.Uint64(2), To: value.Uint64(2), ZeroedRangeIsPoint: true,
		})
		if err != nil {
			return err
		}
		defer c.Close()
		if c.Current() == nil {
			t.Fatalf("expected a matching row for the point range")
		}
		v, _ := c.Current().Value.Get(uint16(idCol), tuple.Any())
		if v.U != 2 {
			t.Fatalf("got id %d, want 2", v.U)
		}
		more, err := c.Step()
		if err != nil {
			return err
		}
		if more {
			t.Fatalf("expected exactly one row for a primary point range")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestOpenEpsilonWithConcreteIsPoint(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Epsilon(), To: value.Uint64(3)})
		if err != nil {
			return err
		}
		defer c.Close()
		if c.Current() == nil {
			t.Fatalf("expected a matching row")
		}
		v, _ := c.Current().Value.Get(uint16(idCol), tuple.Any())
		if v.U != 3 {
			t.Fatalf("got id %d, want 3", v.U)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestOpenEpsilonLatchesFirstSeenExtreme(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	deptCol := col(t, s, "dept")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, deptCol, cursor.Options{From: value.Begin(), To: value.Epsilon()})
		if err != nil {
			return err
		}
		defer c.Close()
		count := 0
		for row := c.Current(); row != nil; {
			count++
			more, err := c.Step()
			if err != nil {
				return err
			}
			if !more {
				break
			}
			row = c.Current()
		}
		if count != 2 {
			t.Fatalf("expected both rows sharing the first dept value, got %d", count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSecondaryCursorCountsPkLookups(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	emailCol := col(t, s, "email")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, emailCol, cursor.Options{From: value.Begin(), To: value.End()})
		if err != nil {
			return err
		}
		defer c.Close()
		n := uint64(0)
		for row := c.Current(); row != nil; n++ {
			more, err := c.Step()
			if err != nil {
				return err
			}
			if !more {
				n++
				break
			}
			row = c.Current()
		}
		if c.Stats.PkLookups != n {
			t.Fatalf("expected PkLookups to track rows fetched (%d), got %d", n, c.Stats.PkLookups)
		}
		if n == 0 {
			t.Fatalf("expected at least one row")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestFilterSkipsNonMatchingRows(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")
	ageCol := col(t, s, "age")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		filter := func(row *tuple.Rw) bool {
			v, _ := row.Get(uint16(ageCol), tuple.Any())
			return v.I >= 35
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Begin(), To: value.End(), Filter: filter})
		if err != nil {
			return err
		}
		defer c.Close()
		var ids []uint64
		for row := c.Current(); row != nil; {
			v, _ := row.Value.Get(uint16(idCol), tuple.Any())
			ids = append(ids, v.U)
			more, err := c.Step()
			if err != nil {
				return err
			}
			if !more {
				break
			}
			row = c.Current()
		}
		if len(ids) != 2 || ids[0] != 3 || ids[1] != 4 {
			t.Fatalf("expected [3 4], got %v", ids)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestLocateValueExactAndInexact(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Begin(), To: value.End(), DontFetch: true})
		if err != nil {
			return err
		}
		defer c.Close()

		found, err := c.LocateValue(true, value.Uint64(3))
		if err != nil {
			return err
		}
		if !found {
			t.Fatalf("expected an exact match for id 3")
		}
		v, _ := c.Current().Value.Get(uint16(idCol), tuple.Any())
		if v.U != 3 {
			t.Fatalf("got id %d, want 3", v.U)
		}

		found, err = c.LocateValue(false, value.Uint64(10))
		if err != nil {
			return err
		}
		if found {
			t.Fatalf("expected no row at or after id 10")
		}
		if !c.NoData() && !c.AfterLast() {
			t.Fatalf("expected the cursor to report exhaustion past the last key")
		}

		found, err = c.LocateValue(true, value.Uint64(99))
		if err != nil {
			return err
		}
		if found {
			t.Fatalf("expected no exact match for a missing id")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestDeleteAtCursorRemovesPrimaryAndSecondaries(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")
	emailCol := col(t, s, "email")
	deptCol := col(t, s, "dept")

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Uint64(2), To: value.Uint64(2), ZeroedRangeIsPoint: true})
		if err != nil {
			return err
		}
		defer c.Close()
		if c.Current() == nil {
			t.Fatalf("expected to land on id 2 before deleting")
		}
		if err := c.DeleteAtCursor(); err != nil {
			return err
		}

		if _, ok, _ := tx.GetOne(tbl.Dbis[idCol], catKey(2)); ok {
			t.Fatalf("primary entry for id 2 still present after DeleteAtCursor")
		}
		if _, ok, _ := tx.GetOne(tbl.Dbis[emailCol], []byte("bob@example.com")); ok {
			t.Fatalf("unique secondary entry for bob still present after DeleteAtCursor")
		}
		pk, ok, err := tx.GetOne(tbl.Dbis[deptCol], []byte("eng"))
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("remaining eng row's secondary entry should still exist")
		}
		if string(pk) != string(catKey(1)) {
			t.Fatalf("eng secondary should now only point at id 1, got %x", pk)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestDeleteAtCursorRequiresWriteTxn(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Begin(), To: value.End()})
		if err != nil {
			return err
		}
		defer c.Close()
		err = c.DeleteAtCursor()
		if !errIs(err, fptaerr.EPerm) {
			t.Fatalf("expected EPerm deleting through a read-only cursor, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestApplyVisitorPaging(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Begin(), To: value.End()})
		if err != nil {
			return err
		}
		defer c.Close()

		var seen []uint64
		res, err := cursor.ApplyVisitor(c, 1, 2, func(row *cursor.Row) (bool, error) {
			v, _ := row.Value.Get(uint16(idCol), tuple.Any())
			seen = append(seen, v.U)
			return true, nil
		}, cursor.VisitOptions{})
		if err != nil {
			return err
		}
		if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
			t.Fatalf("expected [2 3] visited after skipping 1, got %v", seen)
		}
		if res.Count != 2 {
			t.Fatalf("expected count 2, got %d", res.Count)
		}
		if res.PageTop == nil {
			t.Fatalf("expected a non-nil page_top: more than skip rows existed")
		}
		if res.PageBottom == nil {
			t.Fatalf("expected a non-nil page_bottom: the scan did not exhaust")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestApplyVisitorPageTopIsNilWhenSkipExceedsRows(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Begin(), To: value.End()})
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := cursor.ApplyVisitor(c, 100, 10, func(row *cursor.Row) (bool, error) {
			t.Fatalf("visitor should not be called when skip exceeds the row count")
			return true, nil
		}, cursor.VisitOptions{})
		if err != nil {
			return err
		}
		if res.PageTop != nil {
			t.Fatalf("expected nil page_top when fewer than skip rows exist")
		}
		if res.Count != 0 {
			t.Fatalf("expected count 0, got %d", res.Count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRestartLandsAtOrAfterRememberedKey(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		c, err := cursor.Open(tx, tbl, idCol, cursor.Options{From: value.Begin(), To: value.End()})
		if err != nil {
			return err
		}
		defer c.Close()
		if _, err := c.Step(); err != nil { // now on id 2
			return err
		}
		v, _ := c.Current().Value.Get(uint16(idCol), tuple.Any())
		if v.U != 2 {
			t.Fatalf("expected to be on id 2 before restart, got %d", v.U)
		}

		if err := c.Restart(tx); err != nil {
			return err
		}
		v, _ = c.Current().Value.Get(uint16(idCol), tuple.Any())
		if v.U != 2 {
			t.Fatalf("expected restart to land back on id 2, got %d", v.U)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestEstimateReturnsCountForRange(t *testing.T) {
	eng, s := withPeople(t, seedRows())
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		n, err := cursor.Estimate(tx, tbl, []cursor.EstimateRequest{
			{ColumnIndex: idCol, From: value.Begin(), To: value.End()},
		})
		if err != nil {
			return err
		}
		if len(n) != 1 {
			t.Fatalf("expected one estimate result")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func errIs(err error, code fptaerr.Code) bool {
	fe, ok := err.(*fptaerr.Err)
	return ok && fe.Code == code
}
