package mdbxengine

import (
	"errors"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/positive-tech/fpta/pkg/fptaerr"
)

// translateErr maps mdbx-go's sentinel errors onto the shared error
// taxonomy so callers never need to know which backend they're on.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mdbx.NotFound):
		return fptaerr.New(fptaerr.ENotFound, "%v", err)
	case errors.Is(err, mdbx.KeyExist):
		return fptaerr.New(fptaerr.EKeyExist, "%v", err)
	case errors.Is(err, mdbx.BadDBI):
		return fptaerr.New(fptaerr.EBadDbi, "%v", err)
	case errors.Is(err, mdbx.Incompatible):
		return fptaerr.New(fptaerr.EFlag, "%v", err)
	case errors.Is(err, mdbx.Busy), errors.Is(err, mdbx.BadRslot):
		return fptaerr.New(fptaerr.EPerm, "%v", err)
	default:
		return err
	}
}
