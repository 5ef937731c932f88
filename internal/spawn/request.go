package spawn

import "github.com/PenumbraOS/pinitd-sub000/internal/config"

// Request bundles what an Adapter needs to launch one attempt of a
// service's command.
type Request struct {
	ServiceName string
	Command     config.CommandSpec
	Identity    config.Identity
	NiceName    string
	SeInfo      string
	PinitID     string
}

// commandLine resolves a CommandSpec into the literal string handed to
// `/bin/sh -c`, matching the external-spawn adapter's standard backend.
func commandLine(spec config.CommandSpec) string {
	switch spec.Kind {
	case config.CommandShell:
		return spec.Cmdline
	case config.CommandPackageBinary:
		line := "<" + spec.Package + ">/" + spec.RelativePath
		for _, a := range spec.CommandArgs {
			line += " " + a
		}
		return line
	case config.CommandJvmClass:
		line := "app_process -cp <" + spec.Package + ">"
		for _, a := range spec.JvmArgs {
			line += " " + a
		}
		line += " " + spec.Class
		for _, a := range spec.CommandArgs {
			line += " " + a
		}
		return line
	case config.CommandPackageActivity:
		return "am start -n " + spec.Package + "/" + spec.Activity
	default:
		return spec.Cmdline
	}
}
