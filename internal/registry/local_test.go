package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/spawn"
)

// memStore is an in-memory state.Store fake for tests that need real
// enable/disable persistence semantics without touching disk.
type memStore struct {
	mu      sync.Mutex
	enabled map[string]bool
}

func newMemStore(initiallyEnabled ...string) *memStore {
	s := &memStore{enabled: map[string]bool{}}
	for _, n := range initiallyEnabled {
		s.enabled[n] = true
	}
	return s
}

func (s *memStore) IsEnabled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[name]
}

func (s *memStore) Enable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[name] = true
	return nil
}

func (s *memStore) Disable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enabled, name)
	return nil
}

func (s *memStore) EnabledNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.enabled))
	for n := range s.enabled {
		out = append(out, n)
	}
	return out
}

// fakeHandle is a controllable spawn.Handle: Wait blocks on exitCh until
// either a result is pushed or ctx is cancelled.
type fakeHandle struct {
	pid    int32
	exitCh chan spawn.ExitResult
}

func (h *fakeHandle) Pid() int32 { return h.pid }

func (h *fakeHandle) Wait(ctx context.Context) (spawn.ExitResult, error) {
	select {
	case r := <-h.exitCh:
		return r, nil
	case <-ctx.Done():
		return spawn.ExitResult{}, ctx.Err()
	}
}

func (h *fakeHandle) Stop() {}

// fakeAdapter hands out fakeHandles and records every spawn request, so a
// test can push an exit result onto the latest handle's channel.
type fakeAdapter struct {
	mu       sync.Mutex
	nextPid  int32
	handles  []*fakeHandle
	spawnErr error
}

func (a *fakeAdapter) Spawn(ctx context.Context, req spawn.Request) (spawn.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.spawnErr != nil {
		return nil, a.spawnErr
	}
	a.nextPid++
	h := &fakeHandle{pid: a.nextPid, exitCh: make(chan spawn.ExitResult, 1)}
	a.handles = append(a.handles, h)
	// Mirrors StandardAdapter: cancelling the spawn ctx kills the child, which
	// the real OS reports back as an exit a moment later rather than cutting
	// the Wait call itself short.
	go func() {
		<-ctx.Done()
		select {
		case h.exitCh <- spawn.ExitResult{Code: 137, Message: "killed"}:
		default:
		}
	}()
	return h, nil
}

func (a *fakeAdapter) latest() *fakeHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handles[len(a.handles)-1]
}

func (a *fakeAdapter) spawnCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.handles)
}

func testLocal(store *memStore, adapter *fakeAdapter) *Local {
	return New(config.IdentityShell, store, nil, adapter, nil, zerolog.Nop(), nil)
}

func testCfg(name string) config.ServiceConfig {
	return config.ServiceConfig{
		Name:     name,
		Identity: config.IdentityShell,
		Command:  config.CommandSpec{Kind: config.CommandShell, Cmdline: "true"},
		Restart:  config.RestartNone,
	}
}

func TestInsertUnitTakesEnabledFromStore(t *testing.T) {
	store := newMemStore("already-enabled")
	l := testLocal(store, &fakeAdapter{})

	require.NoError(t, l.InsertUnit(testCfg("already-enabled")))
	require.NoError(t, l.InsertUnit(testCfg("not-enabled")))

	st, err := l.Status("already-enabled")
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Equal(t, Stopped, st.State.Kind)

	st, err = l.Status("not-enabled")
	require.NoError(t, err)
	assert.False(t, st.Enabled)
}

func TestStartRequiresEnabled(t *testing.T) {
	l := testLocal(newMemStore(), &fakeAdapter{})
	require.NoError(t, l.InsertUnit(testCfg("svc")))

	err := l.Start(context.Background(), "svc", "pinit-1", false)
	assert.ErrorIs(t, err, ErrNotEnabled)
}

func TestStartUnknownServiceFails(t *testing.T) {
	l := testLocal(newMemStore(), &fakeAdapter{})
	err := l.Start(context.Background(), "nope", "pinit-1", false)
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestStartTransitionsToRunningAndStopTransitionsBack(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{}
	l := testLocal(store, adapter)
	require.NoError(t, l.InsertUnit(testCfg("svc")))
	require.NoError(t, l.Enable("svc"))

	require.NoError(t, l.Start(context.Background(), "svc", "pinit-1", true))

	require.Eventually(t, func() bool {
		st, _ := l.Status("svc")
		return st.State.Kind == Running
	}, time.Second, 5*time.Millisecond)
	st, err := l.Status("svc")
	require.NoError(t, err)
	assert.NotZero(t, st.State.Pid)

	require.NoError(t, l.Stop("svc"))

	require.Eventually(t, func() bool {
		st, _ := l.Status("svc")
		return st.State.Kind == Stopped
	}, time.Second, 5*time.Millisecond)
}

func TestRestartPolicyNoneDoesNotRespawnOnFailure(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{}
	l := testLocal(store, adapter)
	cfg := testCfg("svc")
	cfg.Restart = config.RestartNone
	require.NoError(t, l.InsertUnit(cfg))
	require.NoError(t, l.Enable("svc"))

	require.NoError(t, l.Start(context.Background(), "svc", "pinit-1", true))
	adapter.latest().exitCh <- spawn.ExitResult{Code: 1, Message: "boom"}

	require.Eventually(t, func() bool {
		st, _ := l.Status("svc")
		return st.State.Kind == Failed
	}, time.Second, 5*time.Millisecond)

	// Give any erroneous restart loop a chance to fire before asserting it didn't.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, adapter.spawnCount())
}

func TestRestartPolicyAlwaysRespawnsAfterDelay(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{}
	l := testLocal(store, adapter)
	cfg := testCfg("svc")
	cfg.Restart = config.RestartAlways
	require.NoError(t, l.InsertUnit(cfg))
	require.NoError(t, l.Enable("svc"))

	require.NoError(t, l.Start(context.Background(), "svc", "pinit-1", true))
	adapter.latest().exitCh <- spawn.ExitResult{Code: 0}

	require.Eventually(t, func() bool {
		return adapter.spawnCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		st, _ := l.Status("svc")
		return st.State.Kind == Running
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Stop("svc"))
}

func TestDisableDoesNotStopARunningService(t *testing.T) {
	store := newMemStore()
	l := testLocal(store, &fakeAdapter{})
	require.NoError(t, l.InsertUnit(testCfg("svc")))
	require.NoError(t, l.Enable("svc"))
	require.NoError(t, l.Start(context.Background(), "svc", "pinit-1", true))
	require.Eventually(t, func() bool {
		st, _ := l.Status("svc")
		return st.State.Kind == Running
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Disable("svc"))

	st, err := l.Status("svc")
	require.NoError(t, err)
	assert.Equal(t, Running, st.State.Kind)
	assert.False(t, st.Enabled)

	require.NoError(t, l.Stop("svc"))
}

func TestStopOnStartingServiceWarnsAndNoOps(t *testing.T) {
	l := testLocal(newMemStore(), &fakeAdapter{})
	require.NoError(t, l.InsertUnit(testCfg("svc")))
	require.NoError(t, l.Enable("svc"))

	l.mu.Lock()
	l.services["svc"].State = RunState{Kind: Starting, PinitID: "pinit-1"}
	l.mu.Unlock()

	require.NoError(t, l.Stop("svc"))

	st, err := l.Status("svc")
	require.NoError(t, err)
	assert.Equal(t, Starting, st.State.Kind)
}

func TestApplyUpdateMirrorsWithoutOriginatingState(t *testing.T) {
	l := testLocal(newMemStore(), &fakeAdapter{})
	require.NoError(t, l.InsertUnit(testCfg("svc")))

	l.ApplyUpdate(ServiceStatus{Name: "svc", State: RunState{Kind: Running, Pid: 99}, Enabled: true})

	st, err := l.Status("svc")
	require.NoError(t, err)
	assert.Equal(t, Running, st.State.Kind)
	assert.EqualValues(t, 99, st.State.Pid)
	assert.True(t, st.Enabled)
}

func TestReloadNoOpWhenConfigUnchanged(t *testing.T) {
	l := testLocal(newMemStore(), &fakeAdapter{})
	cfg := testCfg("svc")
	require.NoError(t, l.InsertUnit(cfg))

	require.NoError(t, l.Reload(context.Background(), "svc", cfg))

	st, err := l.Status("svc")
	require.NoError(t, err)
	assert.Equal(t, Stopped, st.State.Kind)
}
