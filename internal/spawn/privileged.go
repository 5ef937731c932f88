package spawn

import (
	"context"
	"fmt"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
)

// Trigger invokes the external OS-level privilege-escalation primitive that
// asks the application-spawn daemon to fork a new process under identity,
// with the given security label and process name, whose entry point
// rendezvouses with the Process Management Service using pinitID before
// running cmdline. The primitive itself lives outside this daemon; Trigger
// is fire-and-forget and returns once the request has been issued, not once
// the child exists.
type Trigger func(ctx context.Context, identity config.Identity, niceName, seInfo, pinitID, cmdline string, activity *config.ActivityRef) error

// Rendezvous is the PMS-side contract the privileged adapter registers
// against before firing the trigger: a pending pinit_id must be known to
// PMS before the corresponding child can present itself.
type Rendezvous interface {
	// Register reserves pinitID for serviceName and returns a Handle whose
	// Wait() resolves once PMS observes the child's exit (or the connection
	// dropping before rendezvous completed).
	Register(serviceName, pinitID string) Handle
	// Cancel releases a registration whose Trigger never managed to fire.
	Cancel(pinitID string)
}

// PrivilegedAdapter launches a service via the zygote/exploit primitive.
// Callers MUST hold the registry's advisory privileged-spawn mutex for the
// duration of Spawn, since only one zygote trigger may be in flight at a
// time (spec §4.4).
type PrivilegedAdapter struct {
	Trigger    Trigger
	Rendezvous Rendezvous
}

// Spawn registers the pending pinit_id with PMS, then fires the privileged
// trigger. The returned Handle never reports a pid until PMS's rendezvous
// completes.
func (a PrivilegedAdapter) Spawn(ctx context.Context, req Request) (Handle, error) {
	if a.Trigger == nil || a.Rendezvous == nil {
		return nil, fmt.Errorf("privileged adapter not wired")
	}
	h := a.Rendezvous.Register(req.ServiceName, req.PinitID)
	if err := a.Trigger(ctx, req.Identity, req.NiceName, req.SeInfo, req.PinitID, commandLine(req.Command), req.Command.TriggerActivity); err != nil {
		a.Rendezvous.Cancel(req.PinitID)
		return nil, fmt.Errorf("triggering privileged launch for %s: %w", req.ServiceName, err)
	}
	return h, nil
}
