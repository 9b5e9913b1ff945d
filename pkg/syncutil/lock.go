/*
Copyright 2013 The Camlistore Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package syncutil

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// RWMutexTracker is a sync.RWMutex that additionally tracks how many
// goroutines are waiting on / holding each side, and records the stack
// of whoever holds the exclusive lock — used by pkg/txn to diagnose a
// schema txn stuck waiting on readers (spec §5 "schema-level txns
// additionally take a process-local read-write lock").
type RWMutexTracker struct {
	mu sync.RWMutex

	// Atomic counters for number waiting and having read and write locks.
	nwaitr int32
	nwaitw int32
	nhaver int32
	nhavew int32 // should always be 0 or 1

	hmu    sync.Mutex
	holder []byte
}

const stackBufSize = 64 << 10

func (m *RWMutexTracker) Lock() {
	atomic.AddInt32(&m.nwaitw, 1)
	m.mu.Lock()
	atomic.AddInt32(&m.nwaitw, -1)
	atomic.AddInt32(&m.nhavew, 1)

	m.hmu.Lock()
	if len(m.holder) == 0 {
		m.holder = make([]byte, stackBufSize)
	}
	m.holder = m.holder[:runtime.Stack(m.holder[:stackBufSize], false)]
	m.hmu.Unlock()
}

func (m *RWMutexTracker) Unlock() {
	m.hmu.Lock()
	m.holder = m.holder[:0]
	m.hmu.Unlock()

	atomic.AddInt32(&m.nhavew, -1)
	m.mu.Unlock()
}

// Stats reports current waiter/holder counts for diagnostics.
func (m *RWMutexTracker) Stats() (waitingWriters, havingWriters, waitingReaders, havingReaders int32) {
	return atomic.LoadInt32(&m.nwaitw), atomic.LoadInt32(&m.nhavew),
		atomic.LoadInt32(&m.nwaitr), atomic.LoadInt32(&m.nhaver)
}

func (m *RWMutexTracker) RLock() {
	atomic.AddInt32(&m.nwaitr, 1)
	m.mu.RLock()
	atomic.AddInt32(&m.nwaitr, -1)
	atomic.AddInt32(&m.nhaver, 1)
}

func (m *RWMutexTracker) RUnlock() {
	atomic.AddInt32(&m.nhaver, -1)
	m.mu.RUnlock()
}

// Holder returns the stack trace of the current exclusive lock holder's stack
// when it acquired the lock (with Lock). It returns the empty string if the lock
// is not currently held.
func (m *RWMutexTracker) Holder() string {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	return string(m.holder)
}
