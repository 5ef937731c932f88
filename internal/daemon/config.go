// Package daemon wires the controller and worker roles together from their
// constituent packages (registry, rpclink, pms, controlfront, workerproc,
// workerside, kernel, logging) and runs the signal/shutdown orchestration
// from spec §4.9.
package daemon

import "github.com/PenumbraOS/pinitd-sub000/internal/config"

// Config holds every path and address the daemon's two roles need. Defaults
// match a single-device deployment; cmd/pinitd uses them as they are and
// offers no flags to override them.
type Config struct {
	// Identity is the OS execution domain this process runs under.
	Identity config.Identity

	// UnitsDir is scanned for *.unit INI files at startup.
	UnitsDir string
	// StateFilePath is where enabled-state JSON is persisted (controller only).
	StateFilePath string
	// StatsDBPath is the bbolt database path for ServiceStats.
	StatsDBPath string
	// LockFilePath gates single-instance startup for this role.
	LockFilePath string
	// LogFilePath is the rotating log destination.
	LogFilePath string

	// ControlAddr is the CLI front-end's loopback listen address (controller).
	ControlAddr string
	// WorkerLinkAddr is the controller's worker-link listen address; the
	// worker process dials this same address.
	WorkerLinkAddr string
	// PMSAddr is the PMS rendezvous listen address (controller).
	PMSAddr string
}

// DefaultControllerConfig returns the controller role's default paths and
// addresses.
func DefaultControllerConfig() Config {
	return Config{
		Identity:       config.IdentityShell,
		UnitsDir:       "/data/local/tmp/pinitd/units",
		StateFilePath:  "/data/local/tmp/pinitd/state.json",
		StatsDBPath:    "/data/local/tmp/pinitd/stats.db",
		LockFilePath:   "/data/local/tmp/pinitd/controller.lock",
		LogFilePath:    "/data/local/tmp/pinitd/controller.log",
		ControlAddr:    "127.0.0.1:7420",
		WorkerLinkAddr: "127.0.0.1:7421",
		PMSAddr:        "127.0.0.1:7422",
	}
}

// DefaultWorkerConfig returns the worker role's default paths and addresses.
func DefaultWorkerConfig() Config {
	cfg := DefaultControllerConfig()
	cfg.Identity = config.IdentitySystem
	cfg.LockFilePath = "/data/local/tmp/pinitd/worker.lock"
	cfg.LogFilePath = "/data/local/tmp/pinitd/worker.log"
	return cfg
}
