// Package cpu binds worker goroutines to OS threads and, where the platform
// allows it, to a single logical CPU.
package cpu

import "runtime"

// coreFor maps a worker id onto a valid CPU index.
func coreFor(workerID int) int {
	n := runtime.NumCPU()
	if n <= 0 {
		return 0
	}
	id := workerID % n
	if id < 0 {
		id += n
	}
	return id
}

// Pin locks the calling goroutine to its OS thread and pins that thread to
// the CPU chosen for workerID. The returned release func restores the
// thread's previous affinity and unlocks it; it must be called from the same
// goroutine once the worker exits.
//
// Pinning is best-effort: when the platform refuses it, the goroutine stays
// locked to its thread and the error is returned alongside release.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()
	restore, err := pinToCore(coreFor(workerID))
	if err != nil {
		return runtime.UnlockOSThread, err
	}

	return func() {
		if restore() != nil {
			// a thread stuck on one core must not go back to the scheduler;
			// exiting while locked makes the runtime discard it
			return
		}
		runtime.UnlockOSThread()
	}, nil
}
