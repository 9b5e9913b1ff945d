package index

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/keycodec"
	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/tuple"
)

// DeleteByKey removes the row keyed by pk and every one of its
// secondary entries (spec §4.4 "Delete": "derive primary key, fetch
// current row, remove from primary store, then remove
// (sec_key(col, row) -> pk) from every secondary").
func DeleteByKey(tx storage.WTx, tbl *Table, pk []byte) error {
	old, ok, err := tx.GetOne(tbl.Dbis[0], pk)
	if err != nil {
		return err
	}
	if !ok {
		return fptaerr.New(fptaerr.ENotFound, "no row with this primary key")
	}
	oldRow, err := parseRow(old)
	if err != nil {
		return err
	}
	if err := tx.Delete(tbl.Dbis[0], pk, nil); err != nil {
		return err
	}
	s := tbl.Schema
	for i, c := range s.Columns {
		if i == 0 || !c.IsIndexed() {
			continue
		}
		k, err := keycodec.RowToKey(s, i, oldRow, true)
		if err != nil {
			return err
		}
		if err := tx.Delete(tbl.Dbis[i], k.Bytes, pk); err != nil {
			return err
		}
	}
	return nil
}

// Delete derives row's primary key and removes it via DeleteByKey
// (spec §4.4 "Delete").
func Delete(tx storage.WTx, tbl *Table, row *tuple.Rw) error {
	pk, err := keycodec.RowToKey(tbl.Schema, 0, row, true)
	if err != nil {
		return err
	}
	return DeleteByKey(tx, tbl, pk.Bytes)
}
