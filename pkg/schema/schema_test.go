package schema

import (
	"testing"

	"github.com/positive-tech/fpta/pkg/value"
)

type memCatalog map[uint64][]byte

func (m memCatalog) Get(key uint64) ([]byte, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}
func (m memCatalog) Put(key uint64, v []byte) error { m[key] = append([]byte{}, v...); return nil }
func (m memCatalog) Delete(key uint64) error        { delete(m, key); return nil }

func TestShovePacking(t *testing.T) {
	s := MakeShove(0x3FFFFFFFFFFFFF, SecondaryOrdered(true, false, true), value.KindInt64)
	if s.DataType() != value.KindInt64 {
		t.Fatalf("DataType = %v, want int64", s.DataType())
	}
	if !s.Flags().IsUnique() || !s.Flags().IsOrdered() || !s.Flags().IsNullable() {
		t.Fatalf("Flags round-trip failed: %v", s.Flags())
	}
	other := MakeShove(s.NameHash(), Primary(false), value.KindUint32)
	if !SameColumn(s, other) {
		t.Fatal("shoves with same name hash must be SameColumn regardless of low bits")
	}
	diff := MakeShove(s.NameHash()^1, s.Flags(), s.DataType())
	if SameColumn(s, diff) {
		t.Fatal("shoves with different name hash must not be SameColumn")
	}
}

func TestValidateName(t *testing.T) {
	good := []string{"a", "Column1", "my_col", "with.dot"}
	for _, n := range good {
		if err := ValidateName(n); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", n, err)
		}
	}
	bad := []string{"", "1abc", "bad name", "no-dash"}
	for _, n := range bad {
		if err := ValidateName(n); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", n)
		}
	}
}

func TestDbiNameStable(t *testing.T) {
	s := ColumnShove("orders", NotIndexed(false), value.KindUint64)
	n1 := DbiName(s)
	n2 := DbiName(s)
	if n1 != n2 || len(n1) != dbiNameLen {
		t.Fatalf("DbiName not stable/right-length: %q", n1)
	}
	if CatalogDbiName() != DbiName(0) {
		t.Fatal("CatalogDbiName must equal DbiName(0)")
	}
}

func TestColumnSetDuplicateRejected(t *testing.T) {
	cs := NewColumnSet()
	if err := cs.AddPrimary("id", value.KindUint64, false); err != nil {
		t.Fatal(err)
	}
	if err := cs.Add("name", value.KindCstr, NotIndexed(false)); err != nil {
		t.Fatal(err)
	}
	if err := cs.Add("NAME", value.KindCstr, NotIndexed(false)); err == nil {
		t.Fatal("expected collision error for case-insensitive duplicate name")
	}
}

func TestDescribeCompositeIndex(t *testing.T) {
	cs := NewColumnSet()
	cs.AddPrimary("id", value.KindUint64, false)
	cs.Add("first", value.KindCstr, NotIndexed(false))
	cs.Add("last", value.KindCstr, NotIndexed(false))

	if err := cs.DescribeCompositeIndex("full_name", SecondaryOrdered(false, false, false), false, []string{"first", "last"}); err != nil {
		t.Fatal(err)
	}
	if len(cs.Composites) != 1 || len(cs.Composites[0].Members) != 2 {
		t.Fatalf("composite not recorded: %+v", cs.Composites)
	}

	// a composite may not reference another composite.
	cs.Add("extra", value.KindCstr, NotIndexed(false))
	if err := cs.DescribeCompositeIndex("nested", SecondaryOrdered(false, false, false), false, []string{"full_name", "extra"}); err == nil {
		t.Fatal("expected rejection of composite-of-composite")
	}
}

func TestCreateDropTableRoundtrip(t *testing.T) {
	cat := memCatalog{}
	cs := NewColumnSet()
	cs.AddPrimary("id", value.KindUint64, false)
	cs.Add("email", value.KindCstr, SecondaryOrdered(true, false, false))
	cs.Add("age", value.KindInt32, NotIndexed(true))

	tableShove := ColumnShove("users", NotIndexed(false), value.KindNested)
	schemaRec, err := CreateTable(cat, tableShove, cs, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(schemaRec.Columns) != 3 {
		t.Fatalf("Columns = %d, want 3", len(schemaRec.Columns))
	}
	if schemaRec.Columns[0].Name != "id" {
		t.Fatalf("primary column must stay first, got %q", schemaRec.Columns[0].Name)
	}

	raw, ok, err := cat.Get(uint64(tableShove))
	if err != nil || !ok {
		t.Fatalf("table not persisted: ok=%v err=%v", ok, err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Columns) != 3 {
		t.Fatalf("decoded Columns = %d, want 3", len(decoded.Columns))
	}

	dict, err := readDict(cat)
	if err != nil {
		t.Fatal(err)
	}
	if len(dict) != 3 {
		t.Fatalf("dict = %v, want 3 entries", dict)
	}

	if err := DropTable(cat, tableShove, cs.Names()); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cat.Get(uint64(tableShove)); ok {
		t.Fatal("table entry survived DropTable")
	}
	dict, _ = readDict(cat)
	if len(dict) != 0 {
		t.Fatalf("dict not pruned after drop: %v", dict)
	}
}

func TestRefreshStaleness(t *testing.T) {
	cat := memCatalog{}
	cs := NewColumnSet()
	cs.AddPrimary("id", value.KindUint64, false)
	tableShove := ColumnShove("t", NotIndexed(false), value.KindNested)
	if _, err := CreateTable(cat, tableShove, cs, 5); err != nil {
		t.Fatal(err)
	}

	h := &Handle{TableShove: tableShove, VersionTSN: 5}
	if err := Refresh(cat, h, 5); err != nil {
		t.Fatalf("fresh handle should not error: %v", err)
	}
	if err := Refresh(cat, h, 3); err == nil {
		t.Fatal("handle newer than txn schema tsn must report SchemaChanged")
	}
}
