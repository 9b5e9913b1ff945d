package index_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/index"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/storage/memkv"
	"github.com/positive-tech/fpta/pkg/tuple"
	"github.com/positive-tech/fpta/pkg/value"
)

// catalogAdapter satisfies schema.Catalog against a plain storage dbi,
// standing in for the handle-cache-backed catalog pkg/txn will supply.
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

// peopleSchema describes a table with a unique numeric primary key, a
// unique ordered secondary, a non-unique ordered secondary, a required
// non-indexed column, and a nullable one. CreateTable re-sorts columns
// by priority so tests resolve field indices by name via col().
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
	if err := cs.Add("nickname", value.KindCstr, schema.NotIndexed(true)); err != nil {
		t.Fatalf("Add nickname: %v", err)
	}

	tableShove := schema.MakeShove(schema.HashName("people"), 0, value.KindNull)
	s, err := schema.CreateTable(cat, tableShove, cs, 1)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return s
}

// col resolves a column's position in s.Columns by name, since
// CreateTable re-sorts everything but the primary by priority/shove.
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

func buildRow(t *testing.T, s *schema.Schema, id uint64, email, dept string, age int32, nick string, withNick bool) *tuple.Rw {
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
	if withNick {
		if err := row.Insert(uint16(col(t, s, "nickname")), value.Cstr(nick)); err != nil {
			t.Fatalf("insert nickname: %v", err)
		}
	}
	return row
}

func withTable(t *testing.T) (storage.Engine, *schema.Schema) {
	t.Helper()
	eng, err := memkv.Open(storage.Config{})
	if err != nil {
		t.Fatalf("memkv.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	var s *schema.Schema
	err = eng.Update(context.Background(), func(tx storage.WTx) error {
		s = peopleSchema(t, tx)
		_, err := index.Create(tx, s)
		return err
	})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return eng, s
}

func TestPutInsertThenDuplicatePrimaryFails(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		row := buildRow(t, s, 1, "a@example.com", "eng", 30, "", false)
		return index.Put(tx, tbl, row, index.ModeInsert)
	})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err = eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		row := buildRow(t, s, 1, "b@example.com", "sales", 40, "", false)
		return index.Put(tx, tbl, row, index.ModeInsert)
	})
	if !errIs(err, fptaerr.EKeyExist) {
		t.Fatalf("expected EKeyExist on duplicate primary key, got %v", err)
	}
}

func TestPutSecondaryUniqueViolation(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.Put(tx, tbl, buildRow(t, s, 1, "same@example.com", "eng", 30, "", false), index.ModeInsert)
	})
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}

	err = eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.Put(tx, tbl, buildRow(t, s, 2, "same@example.com", "sales", 40, "", false), index.ModeInsert)
	})
	if !errIs(err, fptaerr.EKeyExist) {
		t.Fatalf("expected EKeyExist on duplicate unique secondary key, got %v", err)
	}
}

func TestPutUpdateNoopWhenUnchanged(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()

	if err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.Put(tx, tbl, buildRow(t, s, 1, "a@example.com", "eng", 30, "", false), index.ModeInsert)
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		row := buildRow(t, s, 1, "a@example.com", "eng", 30, "", false)
		return index.Put(tx, tbl, row, index.ModeUpdate)
	})
	if err != nil {
		t.Fatalf("no-op update should succeed: %v", err)
	}
}

func TestPutUpdateOnMissingKeyFails(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		row := buildRow(t, s, 1, "a@example.com", "eng", 30, "", false)
		return index.Put(tx, tbl, row, index.ModeUpdate)
	})
	if !errIs(err, fptaerr.ENotFound) {
		t.Fatalf("expected ENotFound updating a missing primary key, got %v", err)
	}
}

// TestIndexCoherenceAcrossUpdate checks spec's index/primary coherence
// property across an update that changes both the unique and the
// non-unique secondary's derived key: the old secondary entries must
// disappear and the new ones must resolve back to the same row.
func TestIndexCoherenceAcrossUpdate(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()
	emailCol := col(t, s, "email")
	deptCol := col(t, s, "dept")

	if err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.Put(tx, tbl, buildRow(t, s, 1, "old@example.com", "eng", 30, "", false), index.ModeInsert)
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	if err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		row := buildRow(t, s, 1, "new@example.com", "sales", 31, "", false)
		return index.Put(tx, tbl, row, index.ModeUpdate)
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	err := eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		if _, ok, _ := tx.GetOne(tbl.Dbis[emailCol], []byte("old@example.com")); ok {
			t.Fatalf("stale unique secondary entry still present after update")
		}
		if _, ok, _ := tx.GetOne(tbl.Dbis[deptCol], []byte("eng")); ok {
			t.Fatalf("stale non-unique secondary entry still present after update")
		}
		pk, ok, err := tx.GetOne(tbl.Dbis[emailCol], []byte("new@example.com"))
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("new unique secondary entry missing after update")
		}
		if string(pk) != string(catKey(1)) {
			t.Fatalf("unique secondary entry points at wrong primary key: %x", pk)
		}
		pk, ok, err = tx.GetOne(tbl.Dbis[deptCol], []byte("sales"))
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("new non-unique secondary entry missing after update")
		}
		if string(pk) != string(catKey(1)) {
			t.Fatalf("non-unique secondary entry points at wrong primary key: %x", pk)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestDeleteRemovesSecondaries(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()
	idCol := col(t, s, "id")
	emailCol := col(t, s, "email")

	if err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.Put(tx, tbl, buildRow(t, s, 1, "a@example.com", "eng", 30, "", false), index.ModeInsert)
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.DeleteByKey(tx, tbl, catKey(1))
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	err = eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		if _, ok, _ := tx.GetOne(tbl.Dbis[idCol], catKey(1)); ok {
			t.Fatalf("primary entry still present after delete")
		}
		if _, ok, _ := tx.GetOne(tbl.Dbis[emailCol], []byte("a@example.com")); ok {
			t.Fatalf("unique secondary entry still present after delete")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestColumnInplaceSaturatedAdd(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()
	ageCol := col(t, s, "age")

	if err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.Put(tx, tbl, buildRow(t, s, 1, "a@example.com", "eng", 30, "", false), index.ModeInsert)
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		res, err := index.ColumnInplace(tx, tbl, catKey(1), ageCol, index.OpSaturatedAdd, value.Int32(5), 0)
		if err != nil {
			return err
		}
		if res != index.ResultOk {
			t.Fatalf("expected ResultOk, got %v", res)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inplace add: %v", err)
	}

	err = eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		res, err := index.ColumnInplace(tx, tbl, catKey(1), ageCol, index.OpSaturatedAdd, value.Int32(0), 0)
		if err != nil {
			return err
		}
		if res != index.ResultNoData {
			t.Fatalf("expected ResultNoData for a zero delta, got %v", res)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inplace no-op: %v", err)
	}
}

func TestColumnInplaceSaturatedAddClampsAtMax(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()
	ageCol := col(t, s, "age")

	if err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.Put(tx, tbl, buildRow(t, s, 1, "a@example.com", "eng", 2147483647, "", false), index.ModeInsert)
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		res, err := index.ColumnInplace(tx, tbl, catKey(1), ageCol, index.OpSaturatedAdd, value.Int32(10), 0)
		if err != nil {
			return err
		}
		if res != index.ResultNoData {
			t.Fatalf("expected ResultNoData: value was already saturated at int32 max, got %v", res)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inplace saturate: %v", err)
	}
}

func TestColumnInplaceBes(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()
	ageCol := col(t, s, "age")

	if err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.Put(tx, tbl, buildRow(t, s, 1, "a@example.com", "eng", 100, "", false), index.ModeInsert)
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	alpha, err := index.BesAlphaFromFraction(0.5)
	if err != nil {
		t.Fatalf("BesAlphaFromFraction: %v", err)
	}

	err = eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		res, err := index.ColumnInplace(tx, tbl, catKey(1), ageCol, index.OpBes, value.Int32(200), alpha)
		if err != nil {
			return err
		}
		if res != index.ResultOk {
			t.Fatalf("expected ResultOk, got %v", res)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inplace bes: %v", err)
	}

	err = eng.View(ctx, func(tx storage.RTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		raw, ok, err := tx.GetOne(tbl.Dbis[0], catKey(1))
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("row missing")
		}
		_ = raw
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	if _, err := index.BesAlphaFromExponent(-1); err != nil {
		t.Fatalf("BesAlphaFromExponent(-1): %v", err)
	}
	if _, err := index.BesAlphaFromExponent(0); err == nil {
		t.Fatalf("expected BesAlphaFromExponent(0) to be rejected")
	}
	if _, err := index.BesAlphaFromFraction(0); err == nil {
		t.Fatalf("expected BesAlphaFromFraction(0) to be rejected")
	}
}

func TestColumnInplaceRejectsPrimaryColumn(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()
	idCol := col(t, s, "id")

	if err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		return index.Put(tx, tbl, buildRow(t, s, 1, "a@example.com", "eng", 30, "", false), index.ModeInsert)
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		_, err = index.ColumnInplace(tx, tbl, catKey(1), idCol, index.OpSaturatedAdd, value.Uint64(1), 0)
		return err
	})
	if !errIs(err, fptaerr.EPerm) {
		t.Fatalf("expected EPerm updating the primary column inplace, got %v", err)
	}
}

func TestValidatePutDoesNotMutate(t *testing.T) {
	eng, s := withTable(t)
	ctx := context.Background()
	idCol := col(t, s, "id")

	err := eng.Update(ctx, func(tx storage.WTx) error {
		tbl, err := index.Open(tx, s)
		if err != nil {
			return err
		}
		row := buildRow(t, s, 1, "a@example.com", "eng", 30, "", false)
		if err := index.ValidatePut(tx, tbl, row, index.ModeInsert); err != nil {
			return err
		}
		if _, ok, _ := tx.GetOne(tbl.Dbis[idCol], catKey(1)); ok {
			t.Fatalf("validate_put must not write the primary store")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("validate put: %v", err)
	}
}

func errIs(err error, code fptaerr.Code) bool {
	fe, ok := err.(*fptaerr.Err)
	return ok && fe.Code == code
}
