package index

import (
	"bytes"

	"github.com/positive-tech/fpta/pkg/storage"
	"github.com/positive-tech/fpta/pkg/tuple"
)

// ValidatePut runs the insert path's steps 1-5 as a read-only
// simulation (spec §4.4 "Callers who want to pre-check without risking
// abort use validate_put, which runs steps 1-5 as a read-only
// simulation"). It reports the same error Put would fail with, but
// never mutates anything.
func ValidatePut(tx storage.RTx, tbl *Table, row *tuple.Rw, mode Mode) error {
	_, err := planPut(tx, tbl, row, mode)
	return err
}

// Put runs the full insert path (spec §4.4 "Insert path" steps 1-6):
// validates, derives keys, checks constraints, then writes the primary
// tuple and reconciles every secondary index against it.
//
// A KeyExist surfaced here, past planning, would mean the engine state
// changed between planPut's reads and this call's writes under a
// concurrency model that doesn't allow that within one txn (spec §5:
// one writer at a time) -- so step 6 itself never re-observes a
// conflict; if storage still returns one, the caller's transaction is
// left to abort per spec §4.4's "constraint failure is not recoverable
// locally" rule rather than being papered over here.
func Put(tx storage.WTx, tbl *Table, row *tuple.Rw, mode Mode) error {
	plan, err := planPut(tx, tbl, row, mode)
	if err != nil {
		return err
	}
	if plan.noop {
		return nil
	}
	if err := tx.Put(tbl.Dbis[0], plan.pk, plan.newBytes); err != nil {
		return err
	}
	for _, ch := range plan.changes {
		if ch.oldKey != nil && bytes.Equal(ch.oldKey, ch.newKey) {
			continue
		}
		if ch.oldKey != nil {
			if err := tx.Delete(tbl.Dbis[ch.index], ch.oldKey, plan.pk); err != nil {
				return err
			}
		}
		if err := tx.Put(tbl.Dbis[ch.index], ch.newKey, plan.pk); err != nil {
			return err
		}
	}
	return nil
}
