package storage

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/jsonconfig"
)

// ConfigFromJSON decodes a storage.Config out of a jsonconfig.Obj, the
// way the teacher decoded each server component's config out of the
// same Obj type. Every optional key defaults to "unchanged for an
// existing DB / default for a new one" per Geometry's own doc comment;
// obj.Validate() at the end rejects any key this function didn't read,
// the same unknown-key check every jsonconfig consumer is expected to
// run.
func ConfigFromJSON(obj jsonconfig.Obj) (Config, error) {
	cfg := Config{
		Path: obj.OptionalString("path", ""),
	}

	durability, err := decodeDurability(obj.OptionalString("durability", "sync"))
	if err != nil {
		return Config{}, err
	}
	cfg.Durability = durability

	regime, err := decodeRegime(obj.OptionalList("regime"))
	if err != nil {
		return Config{}, err
	}
	cfg.Regime = regime

	geom := obj.OptionalObject("geometry")
	cfg.Geometry = Geometry{
		SizeLower:       int64(geom.OptionalInt("size_lower", -1)),
		SizeUpper:       int64(geom.OptionalInt("size_upper", -1)),
		GrowthStep:      int64(geom.OptionalInt("growth_step", -1)),
		ShrinkThreshold: int64(geom.OptionalInt("shrink_threshold", -1)),
		PageSize:        int64(geom.OptionalInt("page_size", -1)),
	}
	if err := geom.Validate(); err != nil {
		return Config{}, err
	}

	if err := obj.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeDurability(s string) (Durability, error) {
	switch s {
	case "readonly":
		return ReadOnly, nil
	case "sync":
		return Sync, nil
	case "lazy":
		return Lazy, nil
	case "weak":
		return Weak, nil
	default:
		return 0, fptaerr.New(fptaerr.EInval, "unknown durability %q", s)
	}
}

var regimeFlagNames = map[string]Regime{
	"friendly_for_writeback":  RegimeFriendlyForWriteback,
	"friendly_for_hdd":        RegimeFriendlyForHDD,
	"friendly_for_compaction": RegimeFriendlyForCompaction,
	"safe_ram":                RegimeSafeRAM,
}

func decodeRegime(names []string) (Regime, error) {
	var r Regime
	for _, name := range names {
		flag, ok := regimeFlagNames[name]
		if !ok {
			return 0, fptaerr.New(fptaerr.EInval, "unknown regime flag %q", name)
		}
		r |= flag
	}
	return r, nil
}

// NewEngineFromJSON decodes cfg from obj and opens the named backend
// with it in one step, the way a deployment's top-level config maps a
// backend "type" string straight to its jsonconfig Obj.
func NewEngineFromJSON(name string, obj jsonconfig.Obj) (Engine, error) {
	cfg, err := ConfigFromJSON(obj)
	if err != nil {
		return nil, err
	}
	return NewEngine(name, cfg)
}
