// Package storagetest is a conformance suite run against every
// storage.Engine backend (spec §6), adapted from the teacher's
// pkg/sorted/kvtest: one exported TestEngine function exercising the
// same behavioral contract — set/get/delete, ranged iteration,
// batch-style mutation — generalized from a flat string KeyValue to
// the sub-database/cursor/dup-sort contract storage.Engine offers.
package storagetest

import (
	"context"
	"testing"

	"github.com/positive-tech/fpta/pkg/storage"
)

// TestEngine runs the shared conformance suite against eng. Callers
// (memkv, mdbxengine) invoke it from their own *_test.go with a fresh
// engine so failures are attributed to the right package.
func TestEngine(t *testing.T, eng storage.Engine) {
	t.Helper()
	ctx := context.Background()

	testPlainPutGetDelete(t, ctx, eng)
	testRangeScan(t, ctx, eng)
	testDupSort(t, ctx, eng)
	testRollbackUndoesWrites(t, ctx, eng)
	testReplaceFlags(t, ctx, eng)
	testSequence(t, ctx, eng)
}

func testPlainPutGetDelete(t *testing.T, ctx context.Context, eng storage.Engine) {
	t.Helper()
	err := eng.Update(ctx, func(tx storage.WTx) error {
		dbi, err := tx.CreateDbi("plain", 0)
		if err != nil {
			return err
		}
		if err := tx.Put(dbi, []byte("foo"), []byte("bar")); err != nil {
			return err
		}
		v, ok, err := tx.GetOne(dbi, []byte("foo"))
		if err != nil {
			return err
		}
		if !ok || string(v) != "bar" {
			t.Fatalf("GetOne(foo) = %q, %v; want bar, true", v, ok)
		}
		if err := tx.Delete(dbi, []byte("foo"), nil); err != nil {
			return err
		}
		if _, ok, err := tx.GetOne(dbi, []byte("foo")); err != nil || ok {
			t.Fatalf("GetOne(foo) after delete = ok=%v err=%v; want false, nil", ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = eng.View(ctx, func(tx storage.RTx) error {
		dbi, err := tx.OpenDbi("plain", 0)
		if err != nil {
			return err
		}
		if _, ok, err := tx.GetOne(dbi, []byte("foo")); err != nil || ok {
			t.Fatalf("GetOne(foo) in a fresh view = ok=%v err=%v; want false, nil", ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func testRangeScan(t *testing.T, ctx context.Context, eng storage.Engine) {
	t.Helper()
	rows := []string{"a", "b", "c", "d"}
	err := eng.Update(ctx, func(tx storage.WTx) error {
		dbi, err := tx.CreateDbi("range", 0)
		if err != nil {
			return err
		}
		for _, k := range rows {
			if err := tx.Put(dbi, []byte(k), []byte(k+"v")); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = eng.View(ctx, func(tx storage.RTx) error {
		dbi, err := tx.OpenDbi("range", 0)
		if err != nil {
			return err
		}
		cur, err := tx.Cursor(dbi)
		if err != nil {
			return err
		}
		defer cur.Close()
		var got []string
		for k, v, ok, err := cur.Get(storage.OpFirst, nil, nil); ; k, v, ok, err = cur.Get(storage.OpNext, nil, nil) {
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if string(v) != string(k)+"v" {
				t.Fatalf("range scan pair mismatch: k=%q v=%q", k, v)
			}
			got = append(got, string(k))
		}
		if len(got) != len(rows) {
			t.Fatalf("range scan visited %v, want %v", got, rows)
		}
		for i := range rows {
			if got[i] != rows[i] {
				t.Fatalf("range scan order = %v, want %v", got, rows)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func testDupSort(t *testing.T, ctx context.Context, eng storage.Engine) {
	t.Helper()
	flags, err := storage.MakeDbiFlags(storage.KeyDefault, storage.DupSort, false)
	if err != nil {
		t.Fatal(err)
	}
	err = eng.Update(ctx, func(tx storage.WTx) error {
		dbi, err := tx.CreateDbi("dup", flags)
		if err != nil {
			return err
		}
		for _, d := range []string{"x", "y", "z"} {
			if err := tx.Put(dbi, []byte("k"), []byte(d)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = eng.View(ctx, func(tx storage.RTx) error {
		dbi, err := tx.OpenDbi("dup", flags)
		if err != nil {
			return err
		}
		cur, err := tx.Cursor(dbi)
		if err != nil {
			return err
		}
		defer cur.Close()
		var dups []string
		_, v, ok, err := cur.Get(storage.OpSetKey, []byte("k"), nil)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("SET_KEY on dup-sort dbi found nothing")
		}
		dups = append(dups, string(v))
		for {
			_, v, ok, err := cur.Get(storage.OpNextDup, nil, nil)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			dups = append(dups, string(v))
		}
		want := []string{"x", "y", "z"}
		if len(dups) != len(want) {
			t.Fatalf("dup scan = %v, want %v", dups, want)
		}
		for i := range want {
			if dups[i] != want[i] {
				t.Fatalf("dup scan order = %v, want %v", dups, want)
			}
		}
		n, err := cur.Count()
		if err != nil {
			return err
		}
		if n != 3 {
			t.Fatalf("Count() = %d, want 3", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func testRollbackUndoesWrites(t *testing.T, ctx context.Context, eng storage.Engine) {
	t.Helper()
	if err := eng.Update(ctx, func(tx storage.WTx) error {
		_, err := tx.CreateDbi("rollback", 0)
		return err
	}); err != nil {
		t.Fatalf("Update (setup): %v", err)
	}

	wtx, err := eng.BeginRw(ctx)
	if err != nil {
		t.Fatalf("BeginRw: %v", err)
	}
	dbi, err := wtx.OpenDbi("rollback", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := wtx.Put(dbi, []byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := wtx.GetOne(dbi, []byte("a")); !ok || string(v) != "1" {
		t.Fatalf("read-your-own-write failed: %q, %v", v, ok)
	}
	wtx.Rollback()

	err = eng.View(ctx, func(tx storage.RTx) error {
		dbi, err := tx.OpenDbi("rollback", 0)
		if err != nil {
			return err
		}
		if _, ok, err := tx.GetOne(dbi, []byte("a")); err != nil || ok {
			t.Fatalf("GetOne(a) after rollback = ok=%v err=%v; want false, nil", ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func testReplaceFlags(t *testing.T, ctx context.Context, eng storage.Engine) {
	t.Helper()
	err := eng.Update(ctx, func(tx storage.WTx) error {
		dbi, err := tx.CreateDbi("replace", 0)
		if err != nil {
			return err
		}
		if _, _, err := tx.Replace(dbi, []byte("k"), []byte("v1"), storage.ReplaceNoOverwrite); err != nil {
			return err
		}
		_, _, err = tx.Replace(dbi, []byte("k"), []byte("v2"), storage.ReplaceNoOverwrite)
		if err == nil {
			t.Fatal("Replace with ReplaceNoOverwrite on an existing key should have failed")
		}
		old, hadOld, err := tx.Replace(dbi, []byte("k"), []byte("v2"), storage.ReplaceCurrent)
		if err != nil {
			return err
		}
		if !hadOld || string(old) != "v1" {
			t.Fatalf("Replace(ReplaceCurrent) old = %q, %v; want v1, true", old, hadOld)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func testSequence(t *testing.T, ctx context.Context, eng storage.Engine) {
	t.Helper()
	err := eng.Update(ctx, func(tx storage.WTx) error {
		dbi, err := tx.CreateDbi("seq", 0)
		if err != nil {
			return err
		}
		first, err := tx.IncrementSequence(dbi, 1)
		if err != nil {
			return err
		}
		second, err := tx.IncrementSequence(dbi, 5)
		if err != nil {
			return err
		}
		if first != 0 || second != 1 {
			t.Fatalf("sequence = %d, %d; want 0, 1", first, second)
		}
		cur, err := tx.Sequence(dbi)
		if err != nil {
			return err
		}
		if cur != 6 {
			t.Fatalf("Sequence() = %d, want 6", cur)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}
