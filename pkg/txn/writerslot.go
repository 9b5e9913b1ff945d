package txn

import "github.com/positive-tech/fpta/pkg/syncutil"

// writerSlot enforces spec §5's process-local exclusivity rule: a
// Schema txn takes it exclusively (Lock), blocking every in-process
// reader until it commits or rolls back; a Read txn takes it shared
// (RLock), so any number of readers can run together but none can run
// alongside a schema change. A plain Write txn touches neither — it
// relies entirely on the storage engine's own single-writer contract
// (spec §5: schema txns "serialize against in-process readers (but
// NOT against readers in other processes — the engine handles
// cross-process via MVCC)").
type writerSlot struct {
	syncutil.RWMutexTracker
}
