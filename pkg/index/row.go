package index

import (
	"github.com/positive-tech/fpta/pkg/tuple"
)

// DecodeRow reconstructs a mutable tuple from bytes read back out of
// the primary store, e.g. the "current row" spec §4.4's insert/delete/
// inplace paths read before comparing or mutating. Exported so
// pkg/cursor can materialize rows from the same primary-store bytes
// without duplicating the buffer-sizing dance.
func DecodeRow(raw []byte) (*tuple.Rw, error) {
	ro := tuple.Ro{Units: raw}
	size, err := tuple.CheckAndGetBufferSize(ro, 0, 0)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	return tuple.Fetch(ro, buf, 0)
}

func parseRow(raw []byte) (*tuple.Rw, error) { return DecodeRow(raw) }
