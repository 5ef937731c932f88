package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/kernel"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
	"github.com/PenumbraOS/pinitd-sub000/internal/workerside"
)

// Worker holds every long-lived resource the worker role owns.
type Worker struct {
	cfg       Config
	lock      *kernel.Lock
	logger    zerolog.Logger
	local     *registry.Local
	forwarder *workerside.EventForwarder
}

// NewWorker wires the worker role's dependencies. Its stored-state is
// always the dummy variant: the worker never persists enabled-state, the
// controller is authoritative (spec §3/§4.4).
func NewWorker(cfg Config) (*Worker, error) {
	lock, err := provideLock(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := provideWorkerLogger(cfg)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	adapter := provideStandardAdapter()
	local, forwarder := provideWorkerLocal(cfg, adapter, logger)

	return &Worker{cfg: cfg, lock: lock, logger: logger, local: local, forwarder: forwarder}, nil
}

// Run connects to the controller and serves commands until ctx is
// cancelled, then releases the worker's lock file.
func (w *Worker) Run(ctx context.Context) error {
	sig := kernel.Signals()
	defer kernel.StopSignals(sig)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- workerside.Run(runCtx, w.cfg.WorkerLinkAddr, w.local, w.forwarder, w.logger)
	}()

	var runErr error
	select {
	case <-sig:
	case runErr = <-errCh:
	case <-ctx.Done():
	}
	cancel()

	w.local.Shutdown()
	if err := w.lock.Release(); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
