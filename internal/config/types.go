// Package config parses and validates unit files describing supervised
// services.
package config

import "fmt"

// Identity is the OS execution domain a service runs under.
type Identity string

const (
	// IdentityShell is the unprivileged identity the controller runs under.
	IdentityShell Identity = "shell"
	// IdentitySystem is the privileged identity the worker runs under.
	IdentitySystem Identity = "system"
)

// RestartPolicy governs whether a supervising task restarts a service after
// its child exits.
type RestartPolicy string

const (
	// RestartAlways restarts regardless of exit code, unless stopped.
	RestartAlways RestartPolicy = "always"
	// RestartOnFailure restarts only when the child exited non-zero.
	RestartOnFailure RestartPolicy = "on-failure"
	// RestartNone never restarts automatically.
	RestartNone RestartPolicy = "none"
)

// ActivityRef names a package and an activity component within it, used both
// as a PackageActivity command body and as a trigger_activity side payload.
type ActivityRef struct {
	Package  string
	Activity string
}

// CommandKind discriminates the CommandSpec variants.
type CommandKind int

const (
	// CommandShell runs via /bin/sh -c.
	CommandShell CommandKind = iota
	// CommandPackageBinary resolves an installed package's root and execs a
	// relative path beneath it.
	CommandPackageBinary
	// CommandJvmClass runs a managed-runtime entry point with the package as
	// classpath.
	CommandJvmClass
	// CommandPackageActivity triggers a UI component; exploit-trigger only,
	// never a supervised service body on its own.
	CommandPackageActivity
)

// CommandSpec is the tagged variant describing what a service execs.
type CommandSpec struct {
	Kind CommandKind

	// Shell
	Cmdline string

	// PackageBinary / JvmClass
	Package      string
	RelativePath string // PackageBinary
	Class        string // JvmClass
	JvmArgs      []string
	CommandArgs  []string

	// PackageActivity
	Activity string

	// TriggerActivity is consumed by the privileged spawn path; any variant
	// may carry one.
	TriggerActivity *ActivityRef
}

// Dependencies holds declared, unscheduled service relationships.
type Dependencies struct {
	// Wants lists service names parsed from [Unit].Wants; stored only, never
	// consulted for scheduling order.
	Wants []string
}

// ServiceConfig is the validated, in-memory form of a unit file.
type ServiceConfig struct {
	Name          string
	Command       CommandSpec
	Identity      Identity
	Autostart     bool
	Restart       RestartPolicy
	NiceName      string
	SeInfo        string
	UnitFilePath  string
	Dependencies  Dependencies
}

// Validate enforces the invariants from the data model: non-empty name and
// nice_name implying System identity.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: Name must not be empty", ErrConfig)
	}
	if c.NiceName != "" && c.Identity != IdentitySystem {
		return fmt.Errorf("%w: NiceName requires Uid=system", ErrConfig)
	}
	return nil
}

// Equal reports whether two configs are equivalent for Reload's no-op check.
func (c *ServiceConfig) Equal(other *ServiceConfig) bool {
	if other == nil {
		return false
	}
	if c.Name != other.Name || c.Identity != other.Identity ||
		c.Autostart != other.Autostart || c.Restart != other.Restart ||
		c.NiceName != other.NiceName || c.SeInfo != other.SeInfo {
		return false
	}
	if !commandEqual(c.Command, other.Command) {
		return false
	}
	if len(c.Dependencies.Wants) != len(other.Dependencies.Wants) {
		return false
	}
	for i, w := range c.Dependencies.Wants {
		if other.Dependencies.Wants[i] != w {
			return false
		}
	}
	return true
}

func commandEqual(a, b CommandSpec) bool {
	if a.Kind != b.Kind || a.Cmdline != b.Cmdline || a.Package != b.Package ||
		a.RelativePath != b.RelativePath || a.Class != b.Class ||
		a.Activity != b.Activity {
		return false
	}
	if (a.TriggerActivity == nil) != (b.TriggerActivity == nil) {
		return false
	}
	if a.TriggerActivity != nil && *a.TriggerActivity != *b.TriggerActivity {
		return false
	}
	return stringsEqual(a.JvmArgs, b.JvmArgs) && stringsEqual(a.CommandArgs, b.CommandArgs)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
