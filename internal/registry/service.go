package registry

import (
	"context"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
)

// monitorHandle is the cancellable reference to a service's detached
// supervising task. It is cleared on transition out of Running/Starting.
type monitorHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service is the registry's in-memory record for one declared unit. It is
// owned exclusively by the registry mutex; no field is read or written
// outside a critical section.
type Service struct {
	Config  config.ServiceConfig
	State   RunState
	Enabled bool

	monitor *monitorHandle
}

// ServiceStatus is a read-only snapshot safe to hand to callers outside the
// registry mutex; it never exposes the monitor handle.
type ServiceStatus struct {
	Name      string
	Identity  config.Identity
	State     RunState
	Enabled   bool
	Autostart bool
	Restart   config.RestartPolicy
}

func (s *Service) snapshot() ServiceStatus {
	return ServiceStatus{
		Name:      s.Config.Name,
		Identity:  s.Config.Identity,
		State:     s.State,
		Enabled:   s.Enabled,
		Autostart: s.Config.Autostart,
		Restart:   s.Config.Restart,
	}
}
