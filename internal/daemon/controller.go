package daemon

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/controlfront"
	"github.com/PenumbraOS/pinitd-sub000/internal/kernel"
	"github.com/PenumbraOS/pinitd-sub000/internal/pms"
	"github.com/PenumbraOS/pinitd-sub000/internal/protocol"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
	"github.com/PenumbraOS/pinitd-sub000/internal/state"
	"github.com/PenumbraOS/pinitd-sub000/internal/unitindex"
	"github.com/PenumbraOS/pinitd-sub000/internal/workerproc"
)

// Controller holds every long-lived resource the controller role owns.
type Controller struct {
	cfg    Config
	lock   *kernel.Lock
	logger zerolog.Logger

	local       *registry.Local
	controller  *registry.ControllerRegistry
	workerMgr   *workerproc.Manager
	pmsService  *pms.Service
	front       *controlfront.Server
	units       *unitindex.Index
	stats       *state.StatsStore
	store       state.Store

	pmsListener   net.Listener
	workerListener net.Listener
	frontListener  net.Listener
}

// NewController wires every dependency for the controller role by calling
// the providers in wire.go's graph in dependency order. This is the
// hand-authored equivalent of what wire_gen.go would produce from wire.go,
// since no go:generate invocation runs as part of this build.
func NewController(cfg Config) (*Controller, error) {
	lock, err := provideLock(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := provideControllerLogger(cfg)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	store, err := provideStore(cfg)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("opening stored state: %w", err)
	}

	stats, err := provideStats(cfg)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("opening stats store: %w", err)
	}

	lns, err := provideListeners(cfg)
	if err != nil {
		stats.Close()
		lock.Release()
		return nil, err
	}

	adapter := provideStandardAdapter()
	local := provideLocal(cfg, store, stats, adapter, logger)
	pmsSvc := providePMS(local, logger)
	local.SetPrivilegedAdapter(providePrivilegedAdapter(pmsSvc))

	workerMgr, updates := provideWorkerManager(lns.Worker, logger)
	controllerRegistry := provideControllerRegistry(local, cfg, workerMgr, logger)

	units := unitindex.New()
	front := provideControlFront(controllerRegistry, units, logger)

	c := &Controller{
		cfg:            cfg,
		lock:           lock,
		logger:         logger,
		local:          local,
		controller:     controllerRegistry,
		workerMgr:      workerMgr,
		pmsService:     pmsSvc,
		front:          front,
		units:          units,
		stats:          stats,
		store:          store,
		pmsListener:    lns.PMS,
		workerListener: lns.Worker,
		frontListener:  lns.Control,
	}
	go c.applyUpdates(updates)
	return c, nil
}

func (c *Controller) applyUpdates(updates <-chan protocol.ServiceUpdate) {
	for u := range updates {
		c.controller.ApplyWorkerUpdate(u)
	}
}

// LoadUnits scans cfg.UnitsDir and inserts every declared unit into the
// registry, recording it in the unit index for later reload.
func (c *Controller) LoadUnits() error {
	cfgs, err := config.LoadDir(c.cfg.UnitsDir)
	if err != nil {
		return err
	}
	for _, cfg := range cfgs {
		if err := c.local.InsertUnit(*cfg); err != nil {
			return fmt.Errorf("%s: %w", cfg.Name, err)
		}
		c.units.Track(cfg)
	}
	return nil
}

// AutostartUnits starts every unit whose Autostart flag is set and that is
// enabled; disabled units are skipped.
func (c *Controller) AutostartUnits(ctx context.Context) {
	for _, status := range c.local.ListAll() {
		if !status.Autostart || !status.Enabled {
			continue
		}
		if err := c.controller.Start(ctx, status.Name, "", false); err != nil {
			c.logger.Error().Err(err).Str("service", status.Name).Msg("autostart failed")
		}
	}
}

// Run starts every background listener, blocks until a shutdown trigger
// fires (signal or CLI Shutdown command), then performs the ordered
// shutdown sequence from spec §4.9.
func (c *Controller) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.pmsService.Serve(runCtx, c.pmsListener)
	go c.front.Serve(runCtx, c.frontListener)

	if err := c.workerMgr.Start(runCtx); err != nil {
		return fmt.Errorf("worker failed to start: %w", err)
	}

	sig := kernel.Signals()
	defer kernel.StopSignals(sig)

	select {
	case <-sig:
	case <-c.front.ShutdownSignal():
	case <-ctx.Done():
	}

	cancel()
	c.controller.Shutdown(context.Background())
	c.stats.Close()
	return c.lock.Release()
}
