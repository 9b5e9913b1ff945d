package memkv

import (
	"sync"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/storage"
)

type dbiEntry struct {
	id    storage.Dbi
	name  []byte
	flags storage.DbiFlags
}

// dbiDirectory maps sub-database names to handles. It is process-
// lifetime only: unlike mdbxengine, which persists real named
// databases inside the environment, memkv's directory is rebuilt
// empty on every Open. That is fine for its stated role (storagetest
// and unit tests run within one process) and is called out explicitly
// rather than silently pretended away.
type dbiDirectory struct {
	mu   sync.Mutex
	byNm map[string]*dbiEntry
	byID map[storage.Dbi]*dbiEntry
	next uint32
}

func newDbiDirectory() *dbiDirectory {
	return &dbiDirectory{
		byNm: make(map[string]*dbiEntry),
		byID: make(map[storage.Dbi]*dbiEntry),
		next: 1,
	}
}

func (d *dbiDirectory) open(name []byte, flags storage.DbiFlags, allowCreate bool) (storage.Dbi, error) {
	if len(name) == 0 {
		return 0, fptaerr.New(fptaerr.EName, "empty sub-database name")
	}
	if name[0] == 0x00 {
		return 0, fptaerr.New(fptaerr.EName, "sub-database name must not start with a NUL byte")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if ent, ok := d.byNm[string(name)]; ok {
		return ent.id, nil
	}
	if !allowCreate {
		return 0, fptaerr.New(fptaerr.ENotFound, "sub-database %q not found", name)
	}
	ent := &dbiEntry{id: storage.Dbi(d.next), name: append([]byte{}, name...), flags: flags}
	d.next++
	d.byNm[string(name)] = ent
	d.byID[ent.id] = ent
	return ent.id, nil
}

func (d *dbiDirectory) exists(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.byNm[name]
	return ok
}

func (d *dbiDirectory) drop(id storage.Dbi) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ent, ok := d.byID[id]; ok {
		delete(d.byNm, string(ent.name))
		delete(d.byID, id)
	}
}

func (d *dbiDirectory) restore(ent *dbiEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byNm[string(ent.name)] = ent
	d.byID[ent.id] = ent
}

func (d *dbiDirectory) entry(id storage.Dbi) (*dbiEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ent, ok := d.byID[id]
	if !ok {
		return nil, fptaerr.New(fptaerr.EBadDbi, "unknown sub-database handle %d", id)
	}
	return ent, nil
}
