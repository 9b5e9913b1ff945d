package storage

import (
	"fmt"
	"sync"
)

// Ctor opens (and if necessary creates) an Engine from Config.
type Ctor func(Config) (Engine, error)

var (
	ctorsMu sync.Mutex
	ctors   = make(map[string]Ctor)
)

// RegisterEngine registers a backend constructor under name, the way
// the teacher's sorted.RegisterKeyValue registered a KeyValue
// constructor keyed by jsonconfig "type" string. memkv and mdbxengine
// both call this from an init().
func RegisterEngine(name string, ctor Ctor) {
	ctorsMu.Lock()
	defer ctorsMu.Unlock()
	if name == "" || ctor == nil {
		panic("storage: empty name or nil constructor")
	}
	if _, dup := ctors[name]; dup {
		panic("storage: duplicate registration of engine " + name)
	}
	ctors[name] = ctor
}

// NewEngine opens the named backend with cfg.
func NewEngine(name string, cfg Config) (Engine, error) {
	ctorsMu.Lock()
	ctor, ok := ctors[name]
	ctorsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown engine %q", name)
	}
	return ctor(cfg)
}
