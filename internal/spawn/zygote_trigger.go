package spawn

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
)

// ZygoteTriggerPath is the path to the external privilege-escalation
// primitive consumed, never implemented, by this daemon: a program that
// knows how to ask the OS's application-spawn daemon to fork a process
// under a requested identity. Supplying the real exploit payload is out of
// scope; this wiring only has to invoke whatever is installed there with
// the right arguments and treat the call as fire-and-forget.
var ZygoteTriggerPath = "/system/bin/pinitd-zygote-trigger"

// DefaultTrigger shells out to ZygoteTriggerPath, passing the requested
// identity, security label, process name, correlation id and command line.
// It returns once the external primitive has accepted the request; it does
// not wait for the resulting child to exist.
func DefaultTrigger(ctx context.Context, identity config.Identity, niceName, seInfo, pinitID, cmdline string, activity *config.ActivityRef) error {
	args := []string{
		"--identity", string(identity),
		"--pinit-id", pinitID,
		"--cmdline", cmdline,
	}
	if niceName != "" {
		args = append(args, "--nice-name", niceName)
	}
	if seInfo != "" {
		args = append(args, "--se-info", seInfo)
	}
	if activity != nil {
		args = append(args, "--trigger-activity", activity.Package+"/"+activity.Activity)
	}

	cmd := exec.CommandContext(ctx, ZygoteTriggerPath, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("invoking zygote trigger: %w", err)
	}
	// Fire-and-forget: release the child immediately, do not Wait on it.
	go cmd.Wait()
	return nil
}
