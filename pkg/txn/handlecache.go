package txn

import (
	"sync"

	"github.com/positive-tech/fpta/internal/sieve"
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/storage"
)

// dbiEntry is one cached (shove -> handle) binding, tagged with the
// schema generation it was resolved at (spec §4.7 "Handle cache":
// "(shove, handle, tsn) entries").
type dbiEntry struct {
	dbi storage.Dbi
	tsn uint64
}

// handleCache validates a cached dbi against the three TSN-staleness
// rules in spec §4.7 before handing it back, re-resolving through
// OpenDbi whenever the cached entry can't be trusted as-is. One
// instance is shared by every Txn opened against the same DB; the
// mutex guards it for non-schema txns only, since a schema txn
// already holds the database's writer slot exclusively and so can't
// race any other txn here (spec §5 "guarded by a mutex for non-schema
// txns; schema txns hold the rw-lock exclusively").
type handleCache struct {
	mu    sync.Mutex
	cache *sieve.Sieve[uint64, dbiEntry]

	lastSchemaTSN uint64
}

func newHandleCache(capacity int) *handleCache {
	if capacity <= 0 {
		capacity = 64
	}
	return &handleCache{cache: sieve.New[uint64, dbiEntry](capacity, nil)}
}

// noteSchemaChange records the database's latest schema generation,
// bumped whenever CreateTable/DropTable commits (spec §4.7's "db's
// last known schema TSN").
func (hc *handleCache) noteSchemaChange(tsn uint64) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if tsn > hc.lastSchemaTSN {
		hc.lastSchemaTSN = tsn
	}
}

// Resolve returns a handle for shove valid as of txnSchemaTSN,
// reopening it against tx when the cached entry (if any) can't answer
// that directly.
//
// A proactive sweep of every cached slot at txn begin (as spec §4.7
// literally describes) isn't implemented: Sieve has no enumeration
// primitive to walk (see internal/sieve.Sieve), and every access
// already re-validates its entry against lastSchemaTSN below, so a
// slot that would have been evicted by the sweep is instead simply
// re-resolved the next time anyone asks for it — same outcome, paid
// lazily instead of upfront. Recorded as a deliberate simplification,
// not an oversight.
func (hc *handleCache) Resolve(tx storage.RTx, shove schema.Shove, flags storage.DbiFlags, txnSchemaTSN uint64, isSchemaTxn bool) (storage.Dbi, error) {
	if !isSchemaTxn {
		hc.mu.Lock()
		defer hc.mu.Unlock()
	}

	key := uint64(shove)
	if entry, ok := hc.cache.Get(key); ok {
		switch {
		case entry.tsn == txnSchemaTSN:
			return entry.dbi, nil
		case entry.tsn > txnSchemaTSN && entry.tsn < hc.lastSchemaTSN:
			return 0, fptaerr.New(fptaerr.ESchemaChanged,
				"shove %d: cached handle was resolved at schema tsn %d, newer than this txn's %d",
				uint64(shove), entry.tsn, txnSchemaTSN)
		}
	}

	dbi, err := tx.OpenDbi(schema.DbiName(shove), flags)
	if err != nil {
		if fe, ok := err.(*fptaerr.Err); ok && fe.Code == fptaerr.EFlag {
			// mdbxengine maps mdbx.Incompatible to EFlag (see
			// pkg/storage/mdbxengine/errors.go): the name exists but
			// with flags that no longer match, i.e. the sub-database
			// was dropped and recreated under a new shape. Evict so the
			// next caller doesn't keep tripping over it, and surface
			// ENotFound so the caller recreates the table handle from
			// scratch rather than retrying a doomed OpenDbi.
			hc.cache.Delete(key)
			return 0, fptaerr.New(fptaerr.ENotFound, "shove %d: handle incompatible with current schema", uint64(shove))
		}
		return 0, err
	}

	hc.cache.Add(key, dbiEntry{dbi: dbi, tsn: txnSchemaTSN})
	return dbi, nil
}

// evict drops any cached entry for shove, e.g. after DropTable.
func (hc *handleCache) evict(shove schema.Shove) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.cache.Delete(uint64(shove))
}
