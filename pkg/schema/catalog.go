package schema

import (
	"sort"

	"github.com/positive-tech/fpta/pkg/fptaerr"
)

// Catalog is the minimal contract schema needs against the storage
// layer's catalog sub-database (spec §3 "Schema catalog": "a single
// ordered key/value sub-database keyed by 64-bit shove"). The
// concrete implementation lives in pkg/storage; schema only needs
// get/put/delete by key to stay decoupled from any one engine.
type Catalog interface {
	Get(key uint64) ([]byte, bool, error)
	Put(key uint64, value []byte) error
	Delete(key uint64) error
}

const dictKey = 0

func readDict(cat Catalog) ([]string, error) {
	raw, ok, err := cat.Get(dictKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return DecodeDict(raw), nil
}

// CreateTable commits a new table's schema into the catalog (spec §5
// "Create table"): sorts columns by (index_priority, shove) keeping
// the primary first, re-validates, requires the target shove doesn't
// already exist, folds names into the catalog dictionary, and writes
// the schema record.
func CreateTable(cat Catalog, tableShove Shove, set *ColumnSet, tsn uint64) (*Schema, error) {
	if set.primaryIdx < 0 {
		return nil, fptaerr.New(fptaerr.EInval, "column set has no primary column")
	}
	if _, exists, err := cat.Get(uint64(tableShove)); err != nil {
		return nil, err
	} else if exists {
		return nil, fptaerr.New(fptaerr.EKeyExist, "table shove %d already present", uint64(tableShove))
	}

	primary := set.Columns[set.primaryIdx]
	rest := make([]Column, 0, len(set.Columns)-1)
	for i, c := range set.Columns {
		if i != set.primaryIdx {
			rest = append(rest, c)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		pi, pj := rest[i].Flags().Priority(), rest[j].Flags().Priority()
		if pi != pj {
			return pi < pj
		}
		return rest[i].Shove < rest[j].Shove
	})
	columns := append([]Column{primary}, rest...)

	// rebuild Composites in the new column order.
	oldIndexOf := make(map[uint64]int, len(set.Columns))
	for i, c := range set.Columns {
		oldIndexOf[uint64(c.Shove)] = i
	}
	newIndexOf := make(map[int]int, len(columns))
	for i, c := range columns {
		newIndexOf[oldIndexOf[uint64(c.Shove)]] = i
	}
	composites := make([]Composite, len(set.Composites))
	for i, comp := range set.Composites {
		members := make([]int, len(comp.Members))
		for j, m := range comp.Members {
			members[j] = newIndexOf[m]
		}
		composites[i] = Composite{Name: comp.Name, Shove: comp.Shove, Members: members, Tersely: comp.Tersely}
	}

	s := &Schema{VersionTSN: tsn, Columns: columns, Composites: composites}
	encoded := s.Encode()
	if err := cat.Put(uint64(tableShove), encoded); err != nil {
		return nil, err
	}

	dict, err := readDict(cat)
	if err != nil {
		return nil, err
	}
	dict = MergeDict(dict, set.Names())
	if err := cat.Put(dictKey, EncodeDict(dict)); err != nil {
		return nil, err
	}

	decoded, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	for i := range decoded.Columns {
		decoded.Columns[i].Name = columns[i].Name
	}
	return decoded, nil
}

// DropTable removes a table's schema record and prunes its names from
// the catalog dictionary (spec §5 "Drop table").
func DropTable(cat Catalog, tableShove Shove, names []string) error {
	if _, exists, err := cat.Get(uint64(tableShove)); err != nil {
		return err
	} else if !exists {
		return fptaerr.New(fptaerr.ENotFound, "table shove %d not present", uint64(tableShove))
	}
	dict, err := readDict(cat)
	if err != nil {
		return err
	}
	if err := cat.Put(dictKey, EncodeDict(RemoveDict(dict, names))); err != nil {
		return err
	}
	return cat.Delete(uint64(tableShove))
}

// Handle is a cached binding between a table shove and its decoded
// schema, tagged with the TSN it was read at (spec §4.7 "Handle
// cache"). Refresh keeps it current across schema changes.
type Handle struct {
	TableShove Shove
	Schema     *Schema
	VersionTSN uint64
}

// Refresh reloads h's schema from the catalog if the handle is stale
// relative to txnSchemaTSN (spec §5 "Refresh (name_refresh)").
func Refresh(cat Catalog, h *Handle, txnSchemaTSN uint64) error {
	if h.VersionTSN > txnSchemaTSN {
		return fptaerr.New(fptaerr.ESchemaChanged, "handle tsn %d newer than txn schema tsn %d", h.VersionTSN, txnSchemaTSN)
	}
	if h.VersionTSN >= txnSchemaTSN {
		return nil
	}
	raw, ok, err := cat.Get(uint64(h.TableShove))
	if err != nil {
		return err
	}
	if !ok {
		return fptaerr.New(fptaerr.ENotFound, "table shove %d no longer present", uint64(h.TableShove))
	}
	s, err := Decode(raw)
	if err != nil {
		return err
	}
	h.Schema = s
	h.VersionTSN = txnSchemaTSN
	return nil
}
