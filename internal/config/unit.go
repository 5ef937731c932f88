package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// recognisedServiceKeys enumerates every key the [Service] section accepts.
// Anything else is a parse failure per the unit-file format.
var recognisedServiceKeys = map[string]bool{
	"Name":            true,
	"Exec":            true,
	"ExecPackageBinary": true,
	"ExecJvmClass":    true,
	"ExecActivity":    true,
	"ExecArgs":        true,
	"JvmArgs":         true,
	"TriggerActivity": true,
	"Uid":             true,
	"SeInfo":          true,
	"NiceName":        true,
	"Autostart":       true,
	"Restart":         true,
}

var recognisedUnitKeys = map[string]bool{
	"Wants": true,
}

// LoadUnit reads and parses a unit file from path.
func LoadUnit(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading unit file: %w", err)
	}
	cfg, err := ParseUnit(data)
	if err != nil {
		return nil, err
	}
	cfg.UnitFilePath = path
	return cfg, nil
}

// ParseUnit parses a unit file's INI bytes into a validated ServiceConfig.
func ParseUnit(data []byte) (*ServiceConfig, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing ini: %v", ErrConfig, err)
	}

	var deps Dependencies
	if f.HasSection("Unit") {
		unitSec := f.Section("Unit")
		for _, k := range unitSec.Keys() {
			if !recognisedUnitKeys[k.Name()] {
				return nil, fmt.Errorf("%w: unknown [Unit] key %q", ErrConfig, k.Name())
			}
		}
		if wants := unitSec.Key("Wants").String(); wants != "" {
			for _, name := range strings.Split(wants, ",") {
				name = strings.TrimSpace(name)
				if name != "" {
					deps.Wants = append(deps.Wants, name)
				}
			}
		}
	}

	if !f.HasSection("Service") {
		return nil, fmt.Errorf("%w: missing [Service] section", ErrConfig)
	}
	svcSec := f.Section("Service")
	for _, k := range svcSec.Keys() {
		if !recognisedServiceKeys[k.Name()] {
			return nil, fmt.Errorf("%w: unknown [Service] key %q", ErrConfig, k.Name())
		}
	}

	cfg := &ServiceConfig{
		Name:         svcSec.Key("Name").String(),
		NiceName:     svcSec.Key("NiceName").String(),
		SeInfo:       svcSec.Key("SeInfo").String(),
		Dependencies: deps,
	}

	switch svcSec.Key("Uid").String() {
	case "", string(IdentityShell):
		cfg.Identity = IdentityShell
	case string(IdentitySystem):
		cfg.Identity = IdentitySystem
	default:
		return nil, fmt.Errorf("%w: invalid Uid %q", ErrConfig, svcSec.Key("Uid").String())
	}

	if svcSec.HasKey("Autostart") {
		b, err := strconv.ParseBool(svcSec.Key("Autostart").String())
		if err != nil {
			return nil, fmt.Errorf("%w: invalid Autostart: %v", ErrConfig, err)
		}
		cfg.Autostart = b
	}

	switch r := svcSec.Key("Restart").String(); r {
	case "", string(RestartNone):
		cfg.Restart = RestartNone
	case string(RestartAlways):
		cfg.Restart = RestartAlways
	case string(RestartOnFailure):
		cfg.Restart = RestartOnFailure
	default:
		return nil, fmt.Errorf("%w: invalid Restart %q", ErrConfig, r)
	}

	cmd, err := parseCommand(svcSec)
	if err != nil {
		return nil, err
	}
	cfg.Command = cmd

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseCommand(sec *ini.Section) (CommandSpec, error) {
	present := func(key string) bool { return sec.HasKey(key) && sec.Key(key).String() != "" }

	count := 0
	for _, k := range []string{"Exec", "ExecPackageBinary", "ExecJvmClass", "ExecActivity"} {
		if present(k) {
			count++
		}
	}
	if count != 1 {
		return CommandSpec{}, fmt.Errorf("%w: exactly one of Exec, ExecPackageBinary, ExecJvmClass, ExecActivity is required", ErrConfig)
	}

	var spec CommandSpec
	if trig := sec.Key("TriggerActivity").String(); trig != "" {
		ref, err := splitPackagePath(trig)
		if err != nil {
			return CommandSpec{}, fmt.Errorf("%w: TriggerActivity: %v", ErrConfig, err)
		}
		spec.TriggerActivity = &ActivityRef{Package: ref[0], Activity: ref[1]}
	}

	switch {
	case present("Exec"):
		spec.Kind = CommandShell
		spec.Cmdline = sec.Key("Exec").String()
	case present("ExecPackageBinary"):
		parts, err := splitPackagePath(sec.Key("ExecPackageBinary").String())
		if err != nil {
			return CommandSpec{}, fmt.Errorf("%w: ExecPackageBinary: %v", ErrConfig, err)
		}
		spec.Kind = CommandPackageBinary
		spec.Package, spec.RelativePath = parts[0], parts[1]
		spec.CommandArgs = splitArgs(sec.Key("ExecArgs").String())
	case present("ExecJvmClass"):
		parts, err := splitPackagePath(sec.Key("ExecJvmClass").String())
		if err != nil {
			return CommandSpec{}, fmt.Errorf("%w: ExecJvmClass: %v", ErrConfig, err)
		}
		spec.Kind = CommandJvmClass
		spec.Package, spec.Class = parts[0], parts[1]
		spec.JvmArgs = splitArgs(sec.Key("JvmArgs").String())
		spec.CommandArgs = splitArgs(sec.Key("ExecArgs").String())
	case present("ExecActivity"):
		parts, err := splitPackagePath(sec.Key("ExecActivity").String())
		if err != nil {
			return CommandSpec{}, fmt.Errorf("%w: ExecActivity: %v", ErrConfig, err)
		}
		spec.Kind = CommandPackageActivity
		spec.Package, spec.Activity = parts[0], parts[1]
	}
	return spec, nil
}

// splitPackagePath splits a "package/path" formatted value into two parts.
func splitPackagePath(v string) ([2]string, error) {
	idx := strings.Index(v, "/")
	if idx < 0 {
		return [2]string{}, fmt.Errorf("expected package/path format, got %q", v)
	}
	return [2]string{v[:idx], v[idx+1:]}, nil
}

func splitArgs(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Fields(v)
}
