package cursor

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Visitor inspects one visited row. A false return (or an error) stops
// the scan early, before limit is reached.
type Visitor func(row *Row) (keepGoing bool, err error)

// VisitOptions configures ApplyVisitor. Concurrency > 1 fans the
// visitor calls for one page out across an errgroup bounded by a
// semaphore, for visitors that only read outside data and don't depend
// on call order; the default (0 or 1) is strictly sequential, which is
// required whenever the visitor mutates through the cursor or depends
// on visiting rows in order. With Concurrency > 1 a false return from
// the visitor does not stop anything: every row of the fetched page is
// visited and counted.
type VisitOptions struct {
	Concurrency int
}

// VisitResult is what ApplyVisitor returns for caller-side paging.
type VisitResult struct {
	Count     uint64
	PageTop   []byte // nil means "begin": fewer than skip rows existed
	PageBottom []byte // nil means "end": the scan exhausted
}

// ApplyVisitor advances skip rows, then calls visitor on up to limit
// further rows (spec §4.5 "Visitor"), reporting paging bounds so the
// caller can resume with a fresh cursor positioned at PageBottom, the
// first row not visited.
func ApplyVisitor(c *Cursor, skip, limit uint64, visitor Visitor, opts VisitOptions) (VisitResult, error) {
	var res VisitResult

	for i := uint64(0); i < skip; i++ {
		if c.Current() == nil {
			return res, nil // fewer than skip rows exist: PageTop stays nil (begin)
		}
		if _, err := c.Step(); err != nil {
			return res, err
		}
	}

	if c.Current() != nil {
		res.PageTop = append([]byte(nil), c.Current().Key...)
	}

	if opts.Concurrency > 1 {
		return applyVisitorConcurrent(c, limit, visitor, opts.Concurrency, res)
	}
	return applyVisitorSequential(c, limit, visitor, res)
}

func applyVisitorSequential(c *Cursor, limit uint64, visitor Visitor, res VisitResult) (VisitResult, error) {
	for res.Count < limit {
		row := c.Current()
		if row == nil {
			return res, nil // scan exhausted: PageBottom stays nil (end)
		}
		keepGoing, err := visitor(row)
		if err != nil {
			return res, err
		}
		res.Count++
		if _, err := c.Step(); err != nil {
			return res, err
		}
		if !keepGoing {
			break
		}
	}
	if row := c.Current(); row != nil {
		res.PageBottom = append([]byte(nil), row.Key...)
	}
	return res, nil
}

// applyVisitorConcurrent collects up to limit rows sequentially off the
// cursor first (cursor iteration itself is never safe to parallelize),
// then fans the independent visitor calls for that batch out across a
// bounded worker pool.
func applyVisitorConcurrent(c *Cursor, limit uint64, visitor Visitor, concurrency int, res VisitResult) (VisitResult, error) {
	var batch []*Row
	for uint64(len(batch)) < limit {
		row := c.Current()
		if row == nil {
			break
		}
		batch = append(batch, row)
		if _, err := c.Step(); err != nil {
			return res, err
		}
	}
	if row := c.Current(); row != nil {
		res.PageBottom = append([]byte(nil), row.Key...)
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	g, ctx := errgroup.WithContext(context.Background())
	stop := make([]bool, len(batch))
	for i, row := range batch {
		i, row := i, row
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			keepGoing, err := visitor(row)
			stop[i] = !keepGoing
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Count = uint64(len(batch))
	return res, nil
}
