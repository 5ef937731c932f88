// Package protocol defines the message schemas that ride the framed codec:
// Control<->CLI, Controller<->Worker, and PMS<->privileged child.
package protocol

import (
	"fmt"

	"github.com/PenumbraOS/pinitd-sub000/internal/codec"
	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
)

func encodeIdentity(e *codec.Encoder, id config.Identity) { e.String(string(id)) }

func decodeIdentity(d *codec.Decoder) (config.Identity, error) {
	s, err := d.String()
	if err != nil {
		return "", err
	}
	return config.Identity(s), nil
}

func encodeRestartPolicy(e *codec.Encoder, p config.RestartPolicy) { e.String(string(p)) }

func decodeRestartPolicy(d *codec.Decoder) (config.RestartPolicy, error) {
	s, err := d.String()
	if err != nil {
		return "", err
	}
	return config.RestartPolicy(s), nil
}

func encodeActivityRef(e *codec.Encoder, a *config.ActivityRef) {
	e.Bool(a != nil)
	if a != nil {
		e.String(a.Package)
		e.String(a.Activity)
	}
}

func decodeActivityRef(d *codec.Decoder) (*config.ActivityRef, error) {
	present, err := d.Bool()
	if err != nil || !present {
		return nil, err
	}
	pkg, err := d.String()
	if err != nil {
		return nil, err
	}
	activity, err := d.String()
	if err != nil {
		return nil, err
	}
	return &config.ActivityRef{Package: pkg, Activity: activity}, nil
}

func encodeCommandSpec(e *codec.Encoder, c config.CommandSpec) {
	e.Uint8(uint8(c.Kind))
	switch c.Kind {
	case config.CommandShell:
		e.String(c.Cmdline)
	case config.CommandPackageBinary:
		e.String(c.Package)
		e.String(c.RelativePath)
		e.StringSlice(c.CommandArgs)
	case config.CommandJvmClass:
		e.String(c.Package)
		e.String(c.Class)
		e.StringSlice(c.JvmArgs)
		e.StringSlice(c.CommandArgs)
	case config.CommandPackageActivity:
		e.String(c.Package)
		e.String(c.Activity)
	}
	encodeActivityRef(e, c.TriggerActivity)
}

func decodeCommandSpec(d *codec.Decoder) (config.CommandSpec, error) {
	var c config.CommandSpec
	kind, err := d.Uint8()
	if err != nil {
		return c, err
	}
	c.Kind = config.CommandKind(kind)
	switch c.Kind {
	case config.CommandShell:
		if c.Cmdline, err = d.String(); err != nil {
			return c, err
		}
	case config.CommandPackageBinary:
		if c.Package, err = d.String(); err != nil {
			return c, err
		}
		if c.RelativePath, err = d.String(); err != nil {
			return c, err
		}
		if c.CommandArgs, err = d.StringSlice(); err != nil {
			return c, err
		}
	case config.CommandJvmClass:
		if c.Package, err = d.String(); err != nil {
			return c, err
		}
		if c.Class, err = d.String(); err != nil {
			return c, err
		}
		if c.JvmArgs, err = d.StringSlice(); err != nil {
			return c, err
		}
		if c.CommandArgs, err = d.StringSlice(); err != nil {
			return c, err
		}
	case config.CommandPackageActivity:
		if c.Package, err = d.String(); err != nil {
			return c, err
		}
		if c.Activity, err = d.String(); err != nil {
			return c, err
		}
	default:
		return c, codec.NewProtocolError("decoding", fmt.Errorf("unknown command kind %d", kind))
	}
	c.TriggerActivity, err = decodeActivityRef(d)
	return c, err
}

// EncodeServiceConfig appends cfg to e.
func EncodeServiceConfig(e *codec.Encoder, cfg config.ServiceConfig) {
	e.String(cfg.Name)
	encodeCommandSpec(e, cfg.Command)
	encodeIdentity(e, cfg.Identity)
	e.Bool(cfg.Autostart)
	encodeRestartPolicy(e, cfg.Restart)
	e.String(cfg.NiceName)
	e.String(cfg.SeInfo)
	e.String(cfg.UnitFilePath)
	e.StringSlice(cfg.Dependencies.Wants)
}

// DecodeServiceConfig reads a ServiceConfig written by EncodeServiceConfig.
func DecodeServiceConfig(d *codec.Decoder) (config.ServiceConfig, error) {
	var cfg config.ServiceConfig
	var err error
	if cfg.Name, err = d.String(); err != nil {
		return cfg, err
	}
	if cfg.Command, err = decodeCommandSpec(d); err != nil {
		return cfg, err
	}
	if cfg.Identity, err = decodeIdentity(d); err != nil {
		return cfg, err
	}
	if cfg.Autostart, err = d.Bool(); err != nil {
		return cfg, err
	}
	if cfg.Restart, err = decodeRestartPolicy(d); err != nil {
		return cfg, err
	}
	if cfg.NiceName, err = d.String(); err != nil {
		return cfg, err
	}
	if cfg.SeInfo, err = d.String(); err != nil {
		return cfg, err
	}
	if cfg.UnitFilePath, err = d.String(); err != nil {
		return cfg, err
	}
	if cfg.Dependencies.Wants, err = d.StringSlice(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// EncodeRunState appends state to e.
func EncodeRunState(e *codec.Encoder, state registry.RunState) {
	e.Uint8(uint8(state.Kind))
	switch state.Kind {
	case registry.Starting:
		e.String(state.PinitID)
	case registry.Running:
		e.Int32(state.Pid)
	case registry.Failed:
		e.String(state.Reason)
	}
}

// DecodeRunState reads a RunState written by EncodeRunState.
func DecodeRunState(d *codec.Decoder) (registry.RunState, error) {
	var s registry.RunState
	kind, err := d.Uint8()
	if err != nil {
		return s, err
	}
	s.Kind = registry.RunStateKind(kind)
	switch s.Kind {
	case registry.Starting:
		if s.PinitID, err = d.String(); err != nil {
			return s, err
		}
	case registry.Running:
		if s.Pid, err = d.Int32(); err != nil {
			return s, err
		}
	case registry.Failed:
		if s.Reason, err = d.String(); err != nil {
			return s, err
		}
	}
	return s, nil
}

// EncodeServiceStatus appends a status snapshot to e.
func EncodeServiceStatus(e *codec.Encoder, st registry.ServiceStatus) {
	e.String(st.Name)
	encodeIdentity(e, st.Identity)
	EncodeRunState(e, st.State)
	e.Bool(st.Enabled)
	e.Bool(st.Autostart)
	encodeRestartPolicy(e, st.Restart)
}

// DecodeServiceStatus reads a status snapshot written by EncodeServiceStatus.
func DecodeServiceStatus(d *codec.Decoder) (registry.ServiceStatus, error) {
	var st registry.ServiceStatus
	var err error
	if st.Name, err = d.String(); err != nil {
		return st, err
	}
	if st.Identity, err = decodeIdentity(d); err != nil {
		return st, err
	}
	if st.State, err = DecodeRunState(d); err != nil {
		return st, err
	}
	if st.Enabled, err = d.Bool(); err != nil {
		return st, err
	}
	if st.Autostart, err = d.Bool(); err != nil {
		return st, err
	}
	if st.Restart, err = decodeRestartPolicy(d); err != nil {
		return st, err
	}
	return st, nil
}
