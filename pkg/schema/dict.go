package schema

import (
	"sort"
	"strings"

	"github.com/positive-tech/fpta/pkg/strutil"
)

// dictSeparator is the delimiter between symbolic names in the catalog
// dictionary record (spec §3 "Schema catalog": "TAB-delimited list of
// original-case symbolic names").
const dictSeparator = "\t"

// EncodeDict serialises names in descending name-hash order, preserving
// their original case, as the catalog's dict entry (shove 0).
func EncodeDict(names []string) []byte {
	sorted := append([]string(nil), names...)
	sort.Slice(sorted, func(i, j int) bool {
		return HashName(sorted[i]) > HashName(sorted[j])
	})
	return []byte(strings.Join(sorted, dictSeparator))
}

// DecodeDict parses a dict entry back into its ordered name list. The
// dictionary is re-read on every schema.Refresh of every handle sharing
// a database. Each name goes through strutil.StringFromBytes, which
// returns a shared string only for its small fixed word list (file,
// claim, etc.); any other name is a fresh string per split.
func DecodeDict(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var names []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == dictSeparator[0] {
			names = append(names, strutil.StringFromBytes(raw[start:i]))
			start = i + 1
		}
	}
	return names
}

// MergeDict folds a new table's names into the catalog dictionary
// (spec §5 "Create table": "fold the set's dictionary into the catalog
// dictionary, preserving original case"), skipping names already
// present (by hash, since hash identity is what the catalog keys on).
func MergeDict(existing []string, add []string) []string {
	seen := make(map[uint64]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, n := range existing {
		seen[HashName(n)] = true
	}
	for _, n := range add {
		h := HashName(n)
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, n)
	}
	return out
}

// RemoveDict returns the catalog dictionary with every name in drop
// removed (spec §5 "Drop table": "rebuild it omitting every symbol that
// belonged only to the dropped table").
func RemoveDict(existing []string, drop []string) []string {
	remove := make(map[uint64]bool, len(drop))
	for _, n := range drop {
		remove[HashName(n)] = true
	}
	out := make([]string, 0, len(existing))
	for _, n := range existing {
		if remove[HashName(n)] {
			continue
		}
		out = append(out, n)
	}
	return out
}
