package registry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/protocol"
)

// WorkerLink is the subset of *rpclink.Link the controller registry needs.
// Kept as an interface so tests can substitute a fake worker endpoint.
type WorkerLink interface {
	SendCommand(ctx context.Context, cmd protocol.WorkerCommand) (protocol.WorkerResponse, error)
	IsConnected() bool
}

// WorkerHandle is the controller's view of the worker process manager: a
// way to fetch the current link, and to block until one becomes connected.
type WorkerHandle interface {
	CurrentLink() WorkerLink
	WaitConnected(ctx context.Context) (WorkerLink, error)
}

// ControllerRegistry wraps the local registry (authoritative for
// controller-identity services, a mirror for worker-identity ones) with the
// RPC routing table from spec §4.5.
type ControllerRegistry struct {
	local        *Local
	selfIdentity config.Identity
	worker       WorkerHandle
	logger       zerolog.Logger
}

// NewController builds a ControllerRegistry. worker may be nil only in
// configurations with no worker-identity services ever declared.
func NewController(local *Local, selfIdentity config.Identity, worker WorkerHandle, logger zerolog.Logger) *ControllerRegistry {
	return &ControllerRegistry{local: local, selfIdentity: selfIdentity, worker: worker, logger: logger}
}

// remote reports whether operations on a service with this identity must be
// routed to the worker.
func (c *ControllerRegistry) remote(identity config.Identity) bool {
	return identity != c.selfIdentity
}

// link blocks (subject to ctx) until the worker link is connected, per the
// §4.5 rule that mutating remote ops wait on the reconnect broadcast.
func (c *ControllerRegistry) link(ctx context.Context) (WorkerLink, error) {
	if l := c.worker.CurrentLink(); l != nil && l.IsConnected() {
		return l, nil
	}
	return c.worker.WaitConnected(ctx)
}

// InsertUnit always creates locally; for a worker-identity service it also
// pushes Create to the worker so its own registry knows the service.
func (c *ControllerRegistry) InsertUnit(ctx context.Context, cfg config.ServiceConfig) error {
	if err := c.local.InsertUnit(cfg); err != nil {
		return err
	}
	if !c.remote(cfg.Identity) {
		return nil
	}
	link, err := c.link(ctx)
	if err != nil {
		return err
	}
	resp, err := link.SendCommand(ctx, protocol.WorkerCommand{Kind: protocol.WorkerCreate, Config: cfg})
	return checkWorkerResponse(resp, err)
}

// RemoveUnit always removes locally; for a worker-identity service it also
// pushes Destroy to the worker.
func (c *ControllerRegistry) RemoveUnit(ctx context.Context, name string) error {
	status, err := c.local.Status(name)
	if err != nil {
		return err
	}
	if err := c.local.RemoveUnit(ctx, name); err != nil {
		return err
	}
	if !c.remote(status.Identity) {
		return nil
	}
	link, err := c.link(ctx)
	if err != nil {
		return err
	}
	resp, err := link.SendCommand(ctx, protocol.WorkerCommand{Kind: protocol.WorkerDestroy, Name: name})
	return checkWorkerResponse(resp, err)
}

// Start routes to the local supervisor or the worker depending on identity.
func (c *ControllerRegistry) Start(ctx context.Context, name, pinitID string, waitForStart bool) error {
	status, err := c.local.Status(name)
	if err != nil {
		return err
	}
	if !c.remote(status.Identity) {
		return c.local.Start(ctx, name, pinitID, waitForStart)
	}
	link, err := c.link(ctx)
	if err != nil {
		return err
	}
	resp, err := link.SendCommand(ctx, protocol.WorkerCommand{Kind: protocol.WorkerStart, Name: name, PinitID: pinitID})
	return checkWorkerResponse(resp, err)
}

// Stop routes to the local supervisor or the worker depending on identity.
func (c *ControllerRegistry) Stop(ctx context.Context, name string) error {
	status, err := c.local.Status(name)
	if err != nil {
		return err
	}
	if !c.remote(status.Identity) {
		return c.local.Stop(name)
	}
	link, err := c.link(ctx)
	if err != nil {
		return err
	}
	resp, err := link.SendCommand(ctx, protocol.WorkerCommand{Kind: protocol.WorkerStop, Name: name})
	return checkWorkerResponse(resp, err)
}

// Restart routes to the local supervisor or the worker depending on identity.
func (c *ControllerRegistry) Restart(ctx context.Context, name, pinitID string, waitForStart bool) error {
	status, err := c.local.Status(name)
	if err != nil {
		return err
	}
	if !c.remote(status.Identity) {
		return c.local.Restart(ctx, name, pinitID, waitForStart)
	}
	link, err := c.link(ctx)
	if err != nil {
		return err
	}
	resp, err := link.SendCommand(ctx, protocol.WorkerCommand{Kind: protocol.WorkerRestart, Name: name, PinitID: pinitID})
	return checkWorkerResponse(resp, err)
}

// Enable is always local: authoritative enable-state lives at the
// controller regardless of the service's identity (spec §4.5).
func (c *ControllerRegistry) Enable(name string) error {
	return c.local.Enable(name)
}

// Disable is always local, mirroring Enable.
func (c *ControllerRegistry) Disable(name string) error {
	return c.local.Disable(name)
}

// Status always reads the local mirror; never blocks on the worker link.
func (c *ControllerRegistry) Status(name string) (ServiceStatus, error) {
	return c.local.Status(name)
}

// ListAll always reads the local mirror; never blocks on the worker link.
func (c *ControllerRegistry) ListAll() []ServiceStatus {
	return c.local.ListAll()
}

// Reload has no dedicated entry in the §4.5 routing table. For a
// controller-identity service it delegates straight to the local registry's
// Reload. A worker-identity service has no remote reload primitive, so it is
// decomposed into the existing routed operations: remove, re-insert, and
// restart if it was enabled.
func (c *ControllerRegistry) Reload(ctx context.Context, name string, reparsed config.ServiceConfig) error {
	status, err := c.local.Status(name)
	if err != nil {
		return err
	}
	if !c.remote(status.Identity) {
		return c.local.Reload(ctx, name, reparsed)
	}
	if err := c.RemoveUnit(ctx, name); err != nil {
		return err
	}
	if err := c.InsertUnit(ctx, reparsed); err != nil {
		return err
	}
	if status.Enabled {
		return c.Start(ctx, name, "", false)
	}
	return nil
}

// ApplyWorkerUpdate applies a ServiceUpdate received from the worker link to
// the local mirror. Called by the link consumer loop; updates are applied
// in wire order (spec §5).
func (c *ControllerRegistry) ApplyWorkerUpdate(update protocol.ServiceUpdate) {
	c.local.ApplyUpdate(update.Status)
}

// Shutdown pushes Shutdown to the worker (best-effort, ignoring a
// disconnected link) then shuts down the local registry, per §4.5/§4.9.
func (c *ControllerRegistry) Shutdown(ctx context.Context) {
	if c.worker != nil {
		if link := c.worker.CurrentLink(); link != nil && link.IsConnected() {
			if _, err := link.SendCommand(ctx, protocol.WorkerCommand{Kind: protocol.WorkerShutdown}); err != nil {
				c.logger.Warn().Err(err).Msg("worker shutdown command failed")
			}
		}
	}
	c.local.Shutdown()
}

func checkWorkerResponse(resp protocol.WorkerResponse, err error) error {
	if err != nil {
		return err
	}
	if resp.Kind == protocol.WorkerError {
		return fmt.Errorf("worker: %s", resp.Message)
	}
	return nil
}
