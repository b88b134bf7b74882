package event

import (
	"sync"
)

// snapshotPool provides sync.Pool for high-frequency snapshot events.
// Snapshots arrive on every book update; pooling keeps the hotpath
// allocation-light.
//
// Usage:
//
//	ev := AcquireSnapshot()
//	ev.Book = book
//	// ... dispatch event ...
//	ReleaseSnapshot(ev)  // Return to pool after processing
var snapshotPool = sync.Pool{
	New: func() interface{} {
		return &Snapshot{}
	},
}

// AcquireSnapshot gets a Snapshot event from the pool.
// The returned event has zero values and must be initialized.
func AcquireSnapshot() *Snapshot {
	return snapshotPool.Get().(*Snapshot)
}

// ReleaseSnapshot returns a Snapshot event to the pool.
// The event is reset before being pooled; the book it carried must not be
// retained by the releaser.
func ReleaseSnapshot(ev *Snapshot) {
	if ev == nil {
		return
	}
	ev.Book = nil
	snapshotPool.Put(ev)
}
