package daemon

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/controlfront"
	"github.com/PenumbraOS/pinitd-sub000/internal/kernel"
	"github.com/PenumbraOS/pinitd-sub000/internal/logging"
	"github.com/PenumbraOS/pinitd-sub000/internal/pms"
	"github.com/PenumbraOS/pinitd-sub000/internal/protocol"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
	"github.com/PenumbraOS/pinitd-sub000/internal/spawn"
	"github.com/PenumbraOS/pinitd-sub000/internal/state"
	"github.com/PenumbraOS/pinitd-sub000/internal/unitindex"
	"github.com/PenumbraOS/pinitd-sub000/internal/workerproc"
	"github.com/PenumbraOS/pinitd-sub000/internal/workerside"
)

// The functions below are the individual providers the Wire graph in
// wire.go names; NewController/NewWorker call them directly in dependency
// order since no generated wire_gen.go is produced in this build.

func provideLock(cfg Config) (*kernel.Lock, error) {
	return kernel.AcquireLock(cfg.LockFilePath)
}

func provideControllerLogger(cfg Config) (zerolog.Logger, error) {
	logger, _, err := logging.New(logging.RoleController, cfg.LogFilePath)
	return logger, err
}

func provideWorkerLogger(cfg Config) (zerolog.Logger, error) {
	logger, _, err := logging.New(logging.RoleWorker, cfg.LogFilePath)
	return logger, err
}

func provideStore(cfg Config) (state.Store, error) {
	return state.NewFileStore(cfg.StateFilePath)
}

func provideStats(cfg Config) (*state.StatsStore, error) {
	return state.NewStatsStore(cfg.StatsDBPath)
}

// listeners bundles the controller's three loopback sockets.
type listeners struct {
	Control net.Listener
	Worker  net.Listener
	PMS     net.Listener
}

func (l *listeners) closeAll() {
	if l.PMS != nil {
		l.PMS.Close()
	}
	if l.Worker != nil {
		l.Worker.Close()
	}
	if l.Control != nil {
		l.Control.Close()
	}
}

func provideListeners(cfg Config) (*listeners, error) {
	pmsLn, err := net.Listen("tcp", cfg.PMSAddr)
	if err != nil {
		return nil, fmt.Errorf("binding PMS listener: %w", err)
	}
	workerLn, err := net.Listen("tcp", cfg.WorkerLinkAddr)
	if err != nil {
		pmsLn.Close()
		return nil, fmt.Errorf("binding worker listener: %w", err)
	}
	controlLn, err := net.Listen("tcp", cfg.ControlAddr)
	if err != nil {
		workerLn.Close()
		pmsLn.Close()
		return nil, fmt.Errorf("binding control listener: %w", err)
	}
	return &listeners{Control: controlLn, Worker: workerLn, PMS: pmsLn}, nil
}

func provideStandardAdapter() spawn.Adapter {
	return spawn.StandardAdapter{}
}

func provideLocal(cfg Config, store state.Store, stats *state.StatsStore, adapter spawn.Adapter, logger zerolog.Logger) *registry.Local {
	return registry.New(cfg.Identity, store, stats, adapter, nil, logger, nil)
}

// provideWorkerLocal builds the worker's mirror registry. It has no
// privileged adapter and never gains one: force_privileged only arises when
// the controller needs to launch a service under the worker's identity, and
// the worker already supervises every service it owns under its own
// identity, so selectAdapter's privileged branch can never fire here. PMS
// itself only runs on the controller (spec §3).
func provideWorkerLocal(cfg Config, adapter spawn.Adapter, logger zerolog.Logger) (*registry.Local, *workerside.EventForwarder) {
	forwarder := &workerside.EventForwarder{}
	local := registry.New(cfg.Identity, state.DummyStore{}, nil, adapter, nil, logger, forwarder.Send)
	return local, forwarder
}

func providePMS(local *registry.Local, logger zerolog.Logger) *pms.Service {
	return pms.New(local, logger)
}

// providePrivilegedAdapter builds the zygote-launch backend bound to pmsSvc
// as its rendezvous. It can only be constructed once a *registry.Local and
// its PMS both exist, so callers attach it after the fact via
// (*registry.Local).SetPrivilegedAdapter rather than passing it into New.
func providePrivilegedAdapter(pmsSvc *pms.Service) spawn.Adapter {
	return spawn.PrivilegedAdapter{Trigger: spawn.DefaultTrigger, Rendezvous: pmsSvc}
}

func provideWorkerManager(ln net.Listener, logger zerolog.Logger) (*workerproc.Manager, chan protocol.ServiceUpdate) {
	updates := make(chan protocol.ServiceUpdate, 64)
	mgr := workerproc.New(ln, spawn.DefaultTrigger, config.IdentitySystem, updates, logger)
	return mgr, updates
}

func provideControllerRegistry(local *registry.Local, cfg Config, worker *workerproc.Manager, logger zerolog.Logger) *registry.ControllerRegistry {
	return registry.NewController(local, cfg.Identity, worker.AsRegistryHandle(), logger)
}

func provideControlFront(reg *registry.ControllerRegistry, units *unitindex.Index, logger zerolog.Logger) *controlfront.Server {
	return controlfront.New(reg, units, logger)
}
