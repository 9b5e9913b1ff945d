package memkv

import (
	"context"
	"testing"

	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/storage/storagetest"
)

func TestMemkvConformance(t *testing.T) {
	eng, err := Open(storage.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer eng.Close()
	storagetest.TestEngine(t, eng)
}

func TestOpenFileBacked(t *testing.T) {
	dir := t.TempDir()
	eng, err := Open(storage.Config{Path: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer eng.Close()
	storagetest.TestEngine(t, eng)
}

func TestMakeDbiFlagsComposesDupKinds(t *testing.T) {
	flags, err := storage.MakeDbiFlags(storage.KeyInteger, storage.DupFixed, false)
	if err != nil {
		t.Fatalf("MakeDbiFlags: %v", err)
	}
	if !flags.IsIntegerKey() || !flags.IsDupSort() || !flags.IsDupFixed() {
		t.Fatalf("flags = %v; want integer-key + dup-sort + dup-fixed all set", flags)
	}
}

func TestOpenDbiRejectsEmptyName(t *testing.T) {
	eng, err := Open(storage.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer eng.Close()

	err = eng.Update(context.Background(), func(tx storage.WTx) error {
		_, err := tx.CreateDbi("", 0)
		return err
	})
	if err == nil {
		t.Fatal("expected an error creating a dbi with an empty name")
	}
}
