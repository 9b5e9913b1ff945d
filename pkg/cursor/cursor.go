// Package cursor implements ranged, filtered iteration over one
// column's sub-database (spec §4.5 "Cursor engine"): ascending or
// descending scans with begin/end/epsilon range endpoints, an optional
// row filter evaluated through a primary-store lookup for secondary
// cursors, restart-after-lag, and paged visitor application.
package cursor

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/index"
	"github.com/positive-tech/fpta/pkg/keycodec"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/tuple"
	"github.com/positive-tech/fpta/pkg/value"
)

// Filter inspects a fully-decoded row and reports whether it belongs in
// the result set (spec §4.5 "evaluate it on the full row").
type Filter func(row *tuple.Rw) bool

// Options configures Open (spec §4.5 "cursor_open").
type Options struct {
	From, To           value.Value
	Filter             Filter
	DontFetch          bool
	ZeroedRangeIsPoint bool
	Descending         bool
}

// rangeKind classifies how {From,To} collapsed once pseudo-values were
// resolved (spec §4.5 "Range interpretation").
type rangeKind uint8

const (
	rangeNormal rangeKind = iota // from <= key < to (half-open, direction-dependent)
	rangePoint                   // key == a single concrete key
	rangeEpsilonLatch             // key == whichever extreme row's key is first seen
)

// Row is one fetched result: its index key, the primary key it
// resolves to (equal to Key for a primary cursor), and the decoded row
// once fetched from the primary store.
type Row struct {
	Key   []byte
	PK    []byte
	Value *tuple.Rw
}

// Stats accumulates per-cursor counters (spec §4.5 "count it under
// pk_lookups").
type Stats struct {
	PkLookups uint64
}

// Cursor is a positioned, directional iterator over one column's
// sub-database.
type Cursor struct {
	tx          storage.RTx
	wtx         storage.WTx // non-nil iff opened against a write transaction
	tbl         *index.Table
	columnIndex int
	raw         storage.Cursor
	column      columnInfo

	descending bool
	zeroPoint  bool
	filter     Filter

	kind        rangeKind
	fromBytes   []byte // nil => unbounded low (Begin)
	toBytes     []byte // nil => unbounded high (End)
	pointBytes  []byte // set when kind == rangePoint
	latchExtreme value.Pseudo // Begin or End, the side that resolves rangeEpsilonLatch
	latchedKey  []byte       // set once rangeEpsilonLatch has seen its first row

	positioned bool
	hasLanded  bool
	afterLast  bool
	noData     bool
	current    *Row

	Stats Stats
}

type columnInfo struct {
	isPrimary bool
	isUnique  bool
}

// Open validates, resolves the range, opens an engine cursor on the
// column's sub-database, and — unless DontFetch — seeks to the first
// matching row (spec §4.5 "Open").
func Open(tx storage.RTx, tbl *index.Table, columnIndex int, opts Options) (*Cursor, error) {
	if columnIndex < 0 || columnIndex >= len(tbl.Schema.Columns) {
		return nil, fptaerr.New(fptaerr.EInval, "column index %d out of range", columnIndex)
	}
	column := tbl.Schema.Columns[columnIndex]
	if tbl.Dbis[columnIndex] == 0 && columnIndex != 0 {
		return nil, fptaerr.New(fptaerr.ENoIndex, "column %q is not indexed", column.Name)
	}
	if opts.From.Pseudo == value.PseudoNone && !value.Compatible(column.Kind(), opts.From) {
		return nil, fptaerr.New(fptaerr.ETypeMismatch, "from value incompatible with column %q", column.Name)
	}
	if opts.To.Pseudo == value.PseudoNone && !value.Compatible(column.Kind(), opts.To) {
		return nil, fptaerr.New(fptaerr.ETypeMismatch, "to value incompatible with column %q", column.Name)
	}

	fromKey, err := keycodec.ValueToKey(column, opts.From, true)
	if err != nil {
		return nil, err
	}
	toKey, err := keycodec.ValueToKey(column, opts.To, true)
	if err != nil {
		return nil, err
	}

	var wtx storage.WTx
	var raw storage.Cursor
	if w, ok := tx.(storage.WTx); ok {
		wtx = w
		raw, err = w.RwCursor(tbl.Dbis[columnIndex])
	} else {
		raw, err = tx.Cursor(tbl.Dbis[columnIndex])
	}
	if err != nil {
		return nil, err
	}

	c := &Cursor{
		tx:          tx,
		wtx:         wtx,
		tbl:         tbl,
		columnIndex: columnIndex,
		raw:         raw,
		column:      columnInfo{isPrimary: columnIndex == 0, isUnique: column.Flags().IsUnique() || columnIndex == 0},
		descending:  opts.Descending,
		zeroPoint:   opts.ZeroedRangeIsPoint,
		filter:      opts.Filter,
	}

	if err := c.resolveRange(fromKey, toKey); err != nil {
		raw.Close()
		return nil, err
	}

	if opts.DontFetch {
		return c, nil
	}
	if err := c.seekInitial(); err != nil {
		raw.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cursor) resolveRange(fromKey, toKey keycodec.Key) error {
	switch {
	case fromKey.Pseudo == value.PseudoEpsilon && toKey.Pseudo == value.PseudoEpsilon:
		return fptaerr.New(fptaerr.EInval, "from and to cannot both be epsilon")

	case fromKey.Pseudo == value.PseudoEpsilon:
		if toKey.Pseudo == value.PseudoBegin || toKey.Pseudo == value.PseudoEnd {
			c.kind = rangeEpsilonLatch
			c.latchExtreme = toKey.Pseudo
			return nil
		}
		c.kind = rangePoint
		c.pointBytes = toKey.Bytes
		return nil

	case toKey.Pseudo == value.PseudoEpsilon:
		if fromKey.Pseudo == value.PseudoBegin || fromKey.Pseudo == value.PseudoEnd {
			c.kind = rangeEpsilonLatch
			c.latchExtreme = fromKey.Pseudo
			return nil
		}
		c.kind = rangePoint
		c.pointBytes = fromKey.Bytes
		return nil

	default:
		if fromKey.Pseudo != value.PseudoBegin {
			c.fromBytes = fromKey.Bytes
		}
		if toKey.Pseudo != value.PseudoEnd {
			c.toBytes = toKey.Bytes
		}
		if c.zeroPoint && c.fromBytes != nil && c.toBytes != nil && bytesEqual(c.fromBytes, c.toBytes) {
			c.kind = rangePoint
			c.pointBytes = c.fromBytes
			return nil
		}
		c.kind = rangeNormal
		return nil
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close releases the underlying engine cursor. Safe to call more than
// once.
func (c *Cursor) Close() {
	if c.raw != nil {
		c.raw.Close()
		c.raw = nil
	}
}

// Current returns the row the cursor is positioned on, or nil if the
// cursor has not found a matching row (NoData) or has stepped past the
// end of the range (AfterLast).
func (c *Cursor) Current() *Row { return c.current }

// NoData reports whether the range is provably empty.
func (c *Cursor) NoData() bool { return c.noData }

// AfterLast reports whether the cursor has stepped past the last
// matching row in the direction of travel.
func (c *Cursor) AfterLast() bool { return c.afterLast }
