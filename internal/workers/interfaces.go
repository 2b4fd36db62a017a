// Package workers provides the background triggers that drive sync cycles:
// a periodic job, a local-change listener, and a server notification
// listener. Each worker calls a shared trigger; the engine's single-flight
// gate makes overlapping triggers harmless.
package workers

// Worker is the interface implemented by every background worker.
// Run starts the worker's goroutine and returns immediately; Stop blocks
// until the worker has shut down.
type Worker interface {
	Run()
	Stop()
}

// SyncTrigger requests a sync cycle. Implementations are expected to be
// cheap and non-blocking when a cycle is already in flight.
type SyncTrigger func()
