// Package pms implements the Process Management Service: the rendezvous
// point that authenticates every freshly-spawned privileged process via its
// pre-issued launch token before letting it keep running, and guards
// against accidental double spawns under the same service name.
package pms

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/spawn"
)

// HandshakeTimeout bounds how long PMS waits for a connection's first frame
// (spec §5).
const HandshakeTimeout = 2 * time.Second

type pendingEntry struct {
	serviceName string
	handle      *spawn.PendingHandle
}

type registration struct {
	conn    net.Conn
	handle  *spawn.PendingHandle
	pinitID string
}

// Registry is the subset of the local registry PMS drives directly.
type Registry interface {
	SetRunning(name string, pid int32) error
}

// Service is the PMS rendezvous point. Its two maps are guarded by
// independent mutexes; lock order is always pinitIDs before registrations,
// to prevent deadlock (spec §5/§9).
type Service struct {
	pinitMu  sync.Mutex
	pinitIDs map[string]pendingEntry

	regMu         sync.Mutex
	registrations map[string]registration

	registry Registry
	logger   zerolog.Logger
}

// New builds a PMS bound to reg, which receives the direct Running{pid}
// transition once a privileged child's rendezvous completes.
func New(reg Registry, logger zerolog.Logger) *Service {
	return &Service{
		pinitIDs:      make(map[string]pendingEntry),
		registrations: make(map[string]registration),
		registry:      reg,
		logger:        logger,
	}
}

// Register reserves pinitID for serviceName, ahead of the trigger that will
// cause a child to present itself. It implements spawn.Rendezvous.
func (s *Service) Register(serviceName, pinitID string) spawn.Handle {
	h := spawn.NewPendingHandle()
	s.pinitMu.Lock()
	s.pinitIDs[pinitID] = pendingEntry{serviceName: serviceName, handle: h}
	s.pinitMu.Unlock()
	return h
}

// Cancel releases a registration whose trigger never fired.
func (s *Service) Cancel(pinitID string) {
	s.pinitMu.Lock()
	delete(s.pinitIDs, pinitID)
	s.pinitMu.Unlock()
}
