// Package workerproc owns the controller-side lifecycle of the worker
// process: spawning it under its privileged identity with a bounded number
// of retries, and maintaining the reconnecting RPC link across any number
// of subsequent drops.
package workerproc

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/protocol"
	"github.com/PenumbraOS/pinitd-sub000/internal/rpclink"
	"github.com/PenumbraOS/pinitd-sub000/internal/spawn"
)

const (
	// MaxSpawnAttempts is the recommended retry count from spec §4.6.
	MaxSpawnAttempts = 5
	// SpawnRetryDelay is the pause between unsuccessful spawn attempts.
	SpawnRetryDelay = 5 * time.Second
	// ConnectAttemptTimeout bounds how long one attempt waits for the
	// worker to dial back in.
	ConnectAttemptTimeout = 500 * time.Millisecond
)

// Manager supervises the worker's lifecycle: initial spawn-with-retry, and
// a background reconnect loop for the rest of the controller's life.
type Manager struct {
	listener net.Listener
	trigger  spawn.Trigger
	identity config.Identity

	updates chan<- protocol.ServiceUpdate
	logger  zerolog.Logger

	mu   sync.Mutex
	link *rpclink.Link

	waitMu  sync.Mutex
	waiters []chan struct{}
}

// New binds a Manager to ln, the loopback listener the worker dials back
// into once its privileged launch completes.
func New(ln net.Listener, trigger spawn.Trigger, workerIdentity config.Identity, updates chan<- protocol.ServiceUpdate, logger zerolog.Logger) *Manager {
	return &Manager{listener: ln, trigger: trigger, identity: workerIdentity, updates: updates, logger: logger}
}

// Start spawns the worker with up to MaxSpawnAttempts retries, then keeps a
// background task alive that transparently reconnects on every future drop.
// It returns once the first connection is established; it returns an error
// (fatal to the controller, per spec §4.6) if every attempt failed.
func (m *Manager) Start(ctx context.Context) error {
	accepted := make(chan net.Conn)
	go m.acceptLoop(ctx, accepted)

	conn, err := m.connectWithRetries(ctx, accepted)
	if err != nil {
		return err
	}
	m.setLink(rpclink.New(conn, m.updates, m.logger))

	go m.superviseLink(ctx, accepted)
	return nil
}

func (m *Manager) acceptLoop(ctx context.Context, accepted chan<- net.Conn) {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		select {
		case accepted <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

func (m *Manager) connectWithRetries(ctx context.Context, accepted <-chan net.Conn) (net.Conn, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving own executable: %w", err)
	}

	for attempt := 1; attempt <= MaxSpawnAttempts; attempt++ {
		cmdline := self + " worker"
		if err := m.trigger(ctx, m.identity, "", "", "", cmdline, nil); err != nil {
			m.logger.Warn().Err(err).Int("attempt", attempt).Msg("worker launch trigger failed")
		} else {
			select {
			case conn := <-accepted:
				return conn, nil
			case <-time.After(ConnectAttemptTimeout):
				m.logger.Warn().Int("attempt", attempt).Msg("worker did not connect in time")
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if attempt < MaxSpawnAttempts {
			select {
			case <-time.After(SpawnRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("worker failed to connect after %d attempts", MaxSpawnAttempts)
}

func (m *Manager) superviseLink(ctx context.Context, accepted <-chan net.Conn) {
	for {
		link := m.CurrentLink()
		if link == nil {
			return
		}
		select {
		case <-link.Disconnected():
			m.logger.Warn().Msg("worker link disconnected, awaiting reconnect")
			select {
			case conn := <-accepted:
				m.setLink(rpclink.New(conn, m.updates, m.logger))
				m.logger.Info().Msg("worker reconnected")
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) setLink(l *rpclink.Link) {
	m.mu.Lock()
	m.link = l
	m.mu.Unlock()
	m.notifyWaiters()
}

// CurrentLink returns the active link, or nil if none has ever connected.
func (m *Manager) CurrentLink() *rpclink.Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link
}

// WaitConnected blocks until the worker link is connected, or ctx is
// cancelled. Every caller waiting when a reconnect completes is released
// together, in the order they started waiting (spec testable property 7).
func (m *Manager) WaitConnected(ctx context.Context) (*rpclink.Link, error) {
	for {
		if l := m.CurrentLink(); l != nil && l.IsConnected() {
			return l, nil
		}
		ch := m.registerWaiter()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Manager) registerWaiter() chan struct{} {
	ch := make(chan struct{})
	m.waitMu.Lock()
	m.waiters = append(m.waiters, ch)
	m.waitMu.Unlock()
	return ch
}

func (m *Manager) notifyWaiters() {
	m.waitMu.Lock()
	waiters := m.waiters
	m.waiters = nil
	m.waitMu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}
