// Command pinitd is the daemon entry point. argv[1] selects the role:
// controller or worker are implemented here; build-payload and
// internal-wrapper are external collaborators (spec §6) this binary does
// not implement.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/PenumbraOS/pinitd-sub000/internal/daemon"
	"github.com/PenumbraOS/pinitd-sub000/internal/kernel"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: pinitd {controller|worker}")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch os.Args[1] {
	case "controller":
		os.Exit(runController(ctx))
	case "worker":
		os.Exit(runWorker(ctx))
	case "build-payload", "internal-wrapper":
		fmt.Fprintf(os.Stderr, "%s is an external collaborator, not implemented by this binary\n", os.Args[1])
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", os.Args[1])
		os.Exit(1)
	}
}

func runController(ctx context.Context) int {
	cfg := daemon.DefaultControllerConfig()

	c, err := daemon.NewController(cfg)
	if err != nil {
		if errors.Is(err, kernel.ErrAlreadyRunning) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "controller init failed: %v\n", err)
		return 1
	}

	if err := c.LoadUnits(); err != nil {
		fmt.Fprintf(os.Stderr, "loading units failed: %v\n", err)
		return 1
	}
	c.AutostartUnits(ctx)

	if err := c.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "controller exited with error: %v\n", err)
		return 1
	}
	return 0
}

func runWorker(ctx context.Context) int {
	cfg := daemon.DefaultWorkerConfig()

	w, err := daemon.NewWorker(cfg)
	if err != nil {
		if errors.Is(err, kernel.ErrAlreadyRunning) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "worker init failed: %v\n", err)
		return 1
	}

	if err := w.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "worker exited with error: %v\n", err)
		return 1
	}
	return 0
}
