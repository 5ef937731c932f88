package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/spawn"
	"github.com/PenumbraOS/pinitd-sub000/internal/state"
)

// restartDelay is the fixed pause between a terminal exit and the next
// restart attempt (spec §4.4 step f).
const restartDelay = 1000 * time.Millisecond

// ErrUnknownService is returned by any operation naming a service that was
// never inserted (or has since been removed).
var ErrUnknownService = fmt.Errorf("unknown service")

// ErrNotEnabled is returned by Start when the service's enabled flag is false.
var ErrNotEnabled = fmt.Errorf("service not enabled")

// UpdateSink receives a snapshot every time a service's state changes under
// the registry mutex. The worker wires this to push ServiceUpdate frames to
// the controller; the controller wires it to nothing (or to its own
// subscribers) since its mirror is driven the other way.
type UpdateSink func(ServiceStatus)

// Local is the authoritative per-service state machine and restart loop
// shared by both the controller (for its own-identity services) and the
// worker (for all of its services, since everything it supervises already
// runs under its own identity).
type Local struct {
	mu       sync.Mutex
	services map[string]*Service

	// advisoryMu serialises privileged ("zygote") launches: only one may be
	// in flight at a time since they share a single OS-level trigger
	// channel (spec §4.4).
	advisoryMu sync.Mutex

	store   state.Store
	stats   *state.StatsStore
	logger  zerolog.Logger
	onUpdate UpdateSink

	standard   spawn.Adapter
	privileged spawn.Adapter

	// selfIdentity is the OS identity this registry's role runs under.
	selfIdentity config.Identity
}

// New builds a Local registry. onUpdate may be nil.
func New(selfIdentity config.Identity, store state.Store, stats *state.StatsStore, standard, privileged spawn.Adapter, logger zerolog.Logger, onUpdate UpdateSink) *Local {
	return &Local{
		services:     make(map[string]*Service),
		store:        store,
		stats:        stats,
		logger:       logger,
		onUpdate:     onUpdate,
		standard:     standard,
		privileged:   privileged,
		selfIdentity: selfIdentity,
	}
}

// InsertUnit creates or replaces a Service from a validated config. A newly
// inserted service starts Stopped and takes its enabled flag from the
// store's persisted state.
func (l *Local) InsertUnit(cfg config.ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.services[cfg.Name] = &Service{
		Config:  cfg,
		State:   RunState{Kind: Stopped},
		Enabled: l.store.IsEnabled(cfg.Name),
	}
	return nil
}

// RemoveUnit stops the service (if running) then deletes its record.
func (l *Local) RemoveUnit(ctx context.Context, name string) error {
	if err := l.Stop(name); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.services[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	delete(l.services, name)
	return nil
}

// Start begins supervising name. If waitForStart, Start blocks until the
// supervising task has attempted its first spawn (success or failure).
func (l *Local) Start(ctx context.Context, name, pinitID string, waitForStart bool) error {
	l.mu.Lock()
	svc, ok := l.services[name]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	if !svc.Enabled {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotEnabled, name)
	}
	if svc.State.Kind == Running {
		l.mu.Unlock()
		return nil
	}
	if svc.monitor != nil {
		svc.monitor.cancel()
	}
	if pinitID == "" {
		pinitID = uuid.NewString()
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	done := make(chan struct{})
	svc.monitor = &monitorHandle{cancel: cancel, done: done}
	l.mu.Unlock()

	go l.superviseTask(taskCtx, name, pinitID, started, done)

	if waitForStart {
		select {
		case <-started:
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			// Spawn failed before publishing "spawned".
		}
	}
	return nil
}

// superviseTask implements the restart loop described in spec §4.4. It holds
// only the registry pointer and the service name, re-acquiring the mutex
// each time it needs state, per the cancel-safety design note.
func (l *Local) superviseTask(ctx context.Context, name, pinitID string, started chan struct{}, done chan struct{}) {
	defer close(done)

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.mu.Lock()
		svc, ok := l.services[name]
		if !ok {
			l.mu.Unlock()
			return
		}
		svc.State = RunState{Kind: Starting, PinitID: pinitID}
		cfg := svc.Config
		l.publishLocked(svc)
		l.mu.Unlock()

		if l.stats != nil {
			l.stats.RecordStart(name, !first)
		}

		adapter, release := l.selectAdapter(cfg.Identity)
		handle, err := adapter.Spawn(ctx, spawn.Request{
			ServiceName: name,
			Command:     cfg.Command,
			Identity:    cfg.Identity,
			NiceName:    cfg.NiceName,
			SeInfo:      cfg.SeInfo,
			PinitID:     pinitID,
		})
		if release != nil {
			release()
		}

		if err != nil {
			l.logger.Error().Err(err).Str("service", name).Msg("spawn failed")
			l.mu.Lock()
			if svc, ok := l.services[name]; ok {
				svc.State = RunState{Kind: Failed, Reason: err.Error()}
				svc.monitor = nil
				l.publishLocked(svc)
			}
			l.mu.Unlock()
			if first {
				select {
				case started <- struct{}{}:
				default:
				}
			}
			return
		}

		if first {
			select {
			case started <- struct{}{}:
			default:
			}
			first = false
		}

		l.mu.Lock()
		if svc, ok := l.services[name]; ok {
			svc.State = RunState{Kind: Running, Pid: handle.Pid()}
			l.publishLocked(svc)
		}
		l.mu.Unlock()

		// Wait on a context independent of ctx: Stop() cancels ctx to kill
		// the child, and if Wait raced that same cancellation it could
		// return before the real exit was observed, leaving the service
		// stuck at Stopping. The child is already being killed via ctx
		// inside the adapter; this call only needs to see its real exit.
		result, waitErr := handle.Wait(context.Background())
		if waitErr != nil {
			l.logger.Error().Err(waitErr).Str("service", name).Msg("wait for exit failed")
			l.mu.Lock()
			if svc, ok := l.services[name]; ok {
				svc.State = RunState{Kind: Failed, Reason: waitErr.Error()}
				svc.monitor = nil
				l.publishLocked(svc)
			}
			l.mu.Unlock()
			return
		}

		l.mu.Lock()
		svc, ok = l.services[name]
		if !ok {
			l.mu.Unlock()
			return
		}
		expectedStop := svc.State.Kind == Stopping
		failed := result.Code != 0 && !expectedStop
		if failed {
			svc.State = RunState{Kind: Failed, Reason: result.Message}
		} else {
			svc.State = RunState{Kind: Stopped}
		}
		enabled := svc.Enabled
		policy := svc.Config.Restart
		l.publishLocked(svc)
		l.mu.Unlock()

		if l.stats != nil {
			l.stats.RecordExit(name, result.Code, result.Message, failed)
		}

		shouldRestart := (policy == config.RestartAlways || (failed && policy == config.RestartOnFailure)) &&
			!expectedStop && enabled
		if !shouldRestart {
			l.mu.Lock()
			if svc, ok := l.services[name]; ok {
				svc.monitor = nil
			}
			l.mu.Unlock()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
		pinitID = uuid.NewString()
	}
}

// SetPrivilegedAdapter wires the privileged ("zygote") spawn backend in after
// construction. It exists to break the construction-order cycle between Local
// and PMS: PMS needs a *Local to report rendezvous completions to, and the
// privileged adapter needs PMS as its Rendezvous, so the adapter can only be
// attached once both objects exist.
func (l *Local) SetPrivilegedAdapter(a spawn.Adapter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.privileged = a
}

// selectAdapter chooses the standard or privileged backend for identity,
// returning an optional release func that must run after Spawn returns
// (used to release the advisory privileged-spawn mutex).
func (l *Local) selectAdapter(identity config.Identity) (spawn.Adapter, func()) {
	l.mu.Lock()
	privileged := l.privileged
	l.mu.Unlock()

	if identity != l.selfIdentity && privileged != nil {
		l.advisoryMu.Lock()
		return privileged, l.advisoryMu.Unlock
	}
	return l.standard, nil
}

// publishLocked notifies onUpdate of svc's current snapshot. Must be called
// while l.mu is held, matching how the Rust original keeps publication
// inside the same critical section as the mutation it reports.
func (l *Local) publishLocked(svc *Service) {
	if l.onUpdate != nil {
		l.onUpdate(svc.snapshot())
	}
}

// Stop transitions a Running service to Stopping and cancels the supervising
// task's context, which makes the standard adapter kill its child. No signal
// is sent to a privileged child, even once PMS has reported its pid. Stop
// never waits for exit; the task itself completes the transition to Stopped.
func (l *Local) Stop(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	svc, ok := l.services[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	switch svc.State.Kind {
	case Running:
		svc.State = RunState{Kind: Stopping}
		l.publishLocked(svc)
		if svc.monitor != nil {
			svc.monitor.cancel()
		}
	default:
		l.logger.Warn().Str("service", name).Str("state", svc.State.String()).Msg("stop on non-running service")
	}
	return nil
}

// Restart stops then starts name, reusing pinitID for the new attempt.
func (l *Local) Restart(ctx context.Context, name, pinitID string, waitForStart bool) error {
	if err := l.Stop(name); err != nil {
		return err
	}
	return l.Start(ctx, name, pinitID, waitForStart)
}

// Enable flips the enabled flag on and persists it. Idempotent.
func (l *Local) Enable(name string) error {
	l.mu.Lock()
	svc, ok := l.services[name]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	if svc.Enabled {
		l.mu.Unlock()
		l.logger.Warn().Str("service", name).Msg("enable on already-enabled service")
		return nil
	}
	svc.Enabled = true
	l.mu.Unlock()
	return l.store.Enable(name)
}

// Disable flips the enabled flag off and persists it. Idempotent. It does
// not by itself stop a running service.
func (l *Local) Disable(name string) error {
	l.mu.Lock()
	svc, ok := l.services[name]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	if !svc.Enabled {
		l.mu.Unlock()
		l.logger.Warn().Str("service", name).Msg("disable on already-disabled service")
		return nil
	}
	svc.Enabled = false
	l.mu.Unlock()
	return l.store.Disable(name)
}

// Reload re-parses the unit file at the service's stored path. If the
// result is unchanged it is a no-op; otherwise the config is swapped in and,
// if the service was enabled, it is restarted.
func (l *Local) Reload(ctx context.Context, name string, reparsed config.ServiceConfig) error {
	l.mu.Lock()
	svc, ok := l.services[name]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	if svc.Config.Equal(&reparsed) {
		l.mu.Unlock()
		return nil
	}
	svc.Config = reparsed
	enabled := svc.Enabled
	l.mu.Unlock()

	if enabled {
		return l.Restart(ctx, name, uuid.NewString(), false)
	}
	return nil
}

// Status returns a snapshot for one service.
func (l *Local) Status(name string) (ServiceStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, ok := l.services[name]
	if !ok {
		return ServiceStatus{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return svc.snapshot(), nil
}

// ListAll returns a snapshot of every registered service.
func (l *Local) ListAll() []ServiceStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ServiceStatus, 0, len(l.services))
	for _, svc := range l.services {
		out = append(out, svc.snapshot())
	}
	return out
}

// SetRunning is the PMS-side entry point (spec §4.7 step 5): once a
// privileged child's ProcessLaunched rendezvous completes, PMS updates the
// service directly to Running{pid} without going through a local spawn.
func (l *Local) SetRunning(name string, pid int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, ok := l.services[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	svc.State = RunState{Kind: Running, Pid: pid}
	l.publishLocked(svc)
	return nil
}

// Shutdown calls Stop on every service and returns. Because it goes through
// Stop, each Running->Stopping transition is published through onUpdate like
// any other stop. It writes no stored-state itself; the store already
// rewrites its file on every Enable/Disable. Callers are expected to exit
// the process once Shutdown returns.
func (l *Local) Shutdown() {
	l.mu.Lock()
	names := make([]string, 0, len(l.services))
	for name := range l.services {
		names = append(names, name)
	}
	l.mu.Unlock()

	for _, name := range names {
		if err := l.Stop(name); err != nil {
			l.logger.Error().Err(err).Str("service", name).Msg("stop during shutdown")
		}
	}
}

// ApplyUpdate applies an externally-observed snapshot unconditionally to
// the mirror entry for name. Used by the controller's mirror of
// worker-identity services: it must never originate state itself (spec
// §4.4 observability contract).
func (l *Local) ApplyUpdate(status ServiceStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, ok := l.services[status.Name]
	if !ok {
		return
	}
	svc.State = status.State
	svc.Enabled = status.Enabled
}
