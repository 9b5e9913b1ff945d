package schema

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/value"
)

// Composite is a synthetic index over the concatenated keys of several
// real columns (spec §3 "Composite column"). Members is a list of
// indices into the owning ColumnSet/Schema's Columns slice.
type Composite struct {
	Name    string
	Shove   Shove
	Members []int
	Tersely bool
}

// ColumnSet is the mutable builder used to describe a table before
// CreateTable commits it (spec §5 "Describe columns").
type ColumnSet struct {
	Columns    []Column
	Composites []Composite

	byHash     map[uint64]int // name hash -> index into Columns, for dup detection
	primaryIdx int            // index of the column added via AddPrimary, or -1
}

func NewColumnSet() *ColumnSet {
	return &ColumnSet{byHash: make(map[uint64]int), primaryIdx: -1}
}

// Add validates and appends a regular column (spec §5 "column_set_add"):
// rejects invalid names and duplicate shoves (by name hash).
func (cs *ColumnSet) Add(name string, kind value.Kind, flags IndexFlags) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	h := HashName(name)
	if _, dup := cs.byHash[h]; dup {
		return fptaerr.New(fptaerr.EKeyExist, "column %q collides with an existing name/hash", name)
	}
	cs.byHash[h] = len(cs.Columns)
	cs.Columns = append(cs.Columns, Column{Name: name, Shove: MakeShove(h, flags, kind)})
	return nil
}

// AddPrimary adds the table's single primary-index column. A
// column's shove can't distinguish "primary" from "unique ordered
// secondary" (both consume the same index-flag bits), so the builder
// tracks which column is primary by position instead (spec §3 "the
// primary index is index 0").
func (cs *ColumnSet) AddPrimary(name string, kind value.Kind, reverse bool) error {
	if cs.primaryIdx >= 0 {
		return fptaerr.New(fptaerr.EInval, "table already has a primary column %q", cs.Columns[cs.primaryIdx].Name)
	}
	if err := cs.Add(name, kind, Primary(reverse)); err != nil {
		return err
	}
	cs.primaryIdx = len(cs.Columns) - 1
	return nil
}

// DescribeCompositeIndex appends a composite over already-described
// member columns (spec §5 "describe_composite_index"). Members must
// name regular, non-composite columns already added to cs.
func (cs *ColumnSet) DescribeCompositeIndex(name string, flags IndexFlags, tersely bool, members []string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	h := HashName(name)
	if _, dup := cs.byHash[h]; dup {
		return fptaerr.New(fptaerr.EKeyExist, "composite %q collides with an existing name/hash", name)
	}
	if len(members) < 2 {
		return fptaerr.New(fptaerr.EInval, "composite %q needs at least 2 members", name)
	}
	idxs := make([]int, 0, len(members))
	for _, m := range members {
		i, ok := cs.byHash[HashName(m)]
		if !ok {
			return fptaerr.New(fptaerr.EColumnMissing, "composite %q member %q not yet described", name, m)
		}
		if cs.Columns[i].IsComposite() {
			return fptaerr.New(fptaerr.EInval, "composite %q may not include composite member %q", name, m)
		}
		idxs = append(idxs, i)
	}
	for _, other := range cs.Composites {
		if sameMemberSet(other.Members, idxs) {
			return fptaerr.New(fptaerr.ESimilarIndex, "composite %q duplicates %q's member set", name, other.Name)
		}
		if isPrefix(other.Members, idxs) || isPrefix(idxs, other.Members) {
			return fptaerr.New(fptaerr.ESimilarIndex, "composite %q member order is a prefix of %q", name, other.Name)
		}
	}

	cs.byHash[h] = len(cs.Columns)
	shove := MakeShove(h, flags, value.KindNull)
	cs.Columns = append(cs.Columns, Column{Name: name, Shove: shove})
	cs.Composites = append(cs.Composites, Composite{Name: name, Shove: shove, Members: idxs, Tersely: tersely})
	return nil
}

func sameMemberSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]bool, len(a))
	for _, m := range a {
		seen[m] = true
	}
	for _, m := range b {
		if !seen[m] {
			return false
		}
	}
	return true
}

func isPrefix(a, b []int) bool {
	if len(a) >= len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Names returns every symbolic name described in this set, for folding
// into the catalog dictionary.
func (cs *ColumnSet) Names() []string {
	out := make([]string, 0, len(cs.Columns))
	for _, c := range cs.Columns {
		out = append(out, c.Name)
	}
	return out
}
