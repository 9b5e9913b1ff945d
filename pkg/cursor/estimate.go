package cursor

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/index"
	"github.com/positive-tech/fpta/pkg/keycodec"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/value"
)

// EstimateRequest names one (column, from, to) triple to estimate (spec
// §4.5 "Estimate").
type EstimateRequest struct {
	ColumnIndex int
	From, To    value.Value
}

// Estimate reports the engine's approximate row count for each request,
// in order, by translating the value bounds to index keys and
// delegating to the backend's EstimateRange. Unordered indexes (hash
// columns with IsOrdered() false) only support point estimates — From
// and To must resolve to the same key — since there is no meaningful
// notion of "between" over an unordered key space.
func Estimate(tx storage.RTx, tbl *index.Table, reqs []EstimateRequest) ([]uint64, error) {
	out := make([]uint64, len(reqs))
	for i, r := range reqs {
		if r.ColumnIndex < 0 || r.ColumnIndex >= len(tbl.Schema.Columns) {
			return nil, fptaerr.New(fptaerr.EInval, "column index %d out of range", r.ColumnIndex)
		}
		column := tbl.Schema.Columns[r.ColumnIndex]
		if tbl.Dbis[r.ColumnIndex] == 0 && r.ColumnIndex != 0 {
			return nil, fptaerr.New(fptaerr.ENoIndex, "column %q is not indexed", column.Name)
		}

		fromKey, err := keycodec.ValueToKey(column, r.From, true)
		if err != nil {
			return nil, err
		}
		toKey, err := keycodec.ValueToKey(column, r.To, true)
		if err != nil {
			return nil, err
		}

		if r.ColumnIndex != 0 && !column.Flags().IsOrdered() {
			if !bytesEqual(fromKey.Bytes, toKey.Bytes) {
				return nil, fptaerr.New(fptaerr.EInval, "column %q is unordered: only point estimates are supported", column.Name)
			}
		}

		n, err := tx.EstimateRange(tbl.Dbis[r.ColumnIndex], fromKey.Bytes, nil, toKey.Bytes, nil)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
