package spawn

import (
	"context"
	"sync/atomic"
)

// PendingHandle is a Handle whose pid and exit result arrive asynchronously,
// from the PMS rendezvous rather than from a locally-owned child process.
// It is safe for the owner (PMS) to call SetPid/Resolve from a different
// goroutine than the one calling Wait.
type PendingHandle struct {
	pid  atomic.Int32
	exit chan ExitResult
}

// NewPendingHandle returns a Handle with no pid yet known.
func NewPendingHandle() *PendingHandle {
	return &PendingHandle{exit: make(chan ExitResult, 1)}
}

// Pid returns the pid once PMS has observed ProcessLaunched, or 0 before.
func (h *PendingHandle) Pid() int32 { return h.pid.Load() }

// SetPid records the pid learned from the child's ProcessLaunched frame.
func (h *PendingHandle) SetPid(pid int32) { h.pid.Store(pid) }

// Resolve delivers the terminal exit outcome, waking Wait.
func (h *PendingHandle) Resolve(res ExitResult) {
	select {
	case h.exit <- res:
	default:
	}
}

// Wait blocks until Resolve is called or ctx is cancelled.
func (h *PendingHandle) Wait(ctx context.Context) (ExitResult, error) {
	select {
	case res := <-h.exit:
		return res, nil
	case <-ctx.Done():
		return ExitResult{}, ctx.Err()
	}
}

// Stop is a no-op: a fire-and-forget privileged child has no locally-owned
// process to signal. Termination relies on the supervising task's
// cancellation and the child's own PMS-driven lifecycle.
func (h *PendingHandle) Stop() {}
