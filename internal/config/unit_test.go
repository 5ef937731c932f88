package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnitValidShellService(t *testing.T) {
	data := []byte(`
[Unit]
Wants=other-service, another

[Service]
Name=my-service
Exec=/system/bin/echo hi
Autostart=true
Restart=always
`)

	cfg, err := ParseUnit(data)
	require.NoError(t, err)
	assert.Equal(t, "my-service", cfg.Name)
	assert.Equal(t, IdentityShell, cfg.Identity)
	assert.True(t, cfg.Autostart)
	assert.Equal(t, RestartAlways, cfg.Restart)
	assert.Equal(t, CommandShell, cfg.Command.Kind)
	assert.Equal(t, "/system/bin/echo hi", cfg.Command.Cmdline)
	assert.Equal(t, []string{"other-service", "another"}, cfg.Dependencies.Wants)
}

func TestParseUnitPackageBinary(t *testing.T) {
	data := []byte(`
[Service]
Name=svc
ExecPackageBinary=com.example.app/bin/tool
ExecArgs=--flag value
Uid=system
NiceName=svc-display
`)

	cfg, err := ParseUnit(data)
	require.NoError(t, err)
	assert.Equal(t, CommandPackageBinary, cfg.Command.Kind)
	assert.Equal(t, "com.example.app", cfg.Command.Package)
	assert.Equal(t, "bin/tool", cfg.Command.RelativePath)
	assert.Equal(t, []string{"--flag", "value"}, cfg.Command.CommandArgs)
	assert.Equal(t, IdentitySystem, cfg.Identity)
}

func TestParseUnitRejectsUnknownServiceKey(t *testing.T) {
	data := []byte(`
[Service]
Name=svc
Exec=/bin/true
Bogus=1
`)
	_, err := ParseUnit(data)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestParseUnitRejectsMultipleExecVariants(t *testing.T) {
	data := []byte(`
[Service]
Name=svc
Exec=/bin/true
ExecActivity=com.example.app/.MainActivity
`)
	_, err := ParseUnit(data)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestParseUnitRejectsMissingServiceSection(t *testing.T) {
	_, err := ParseUnit([]byte("[Unit]\nWants=foo\n"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestParseUnitRejectsNiceNameWithoutSystemIdentity(t *testing.T) {
	data := []byte(`
[Service]
Name=svc
Exec=/bin/true
NiceName=display-name
`)
	_, err := ParseUnit(data)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestServiceConfigEqual(t *testing.T) {
	a := &ServiceConfig{Name: "svc", Identity: IdentityShell, Command: CommandSpec{Kind: CommandShell, Cmdline: "x"}}
	b := &ServiceConfig{Name: "svc", Identity: IdentityShell, Command: CommandSpec{Kind: CommandShell, Cmdline: "x"}}
	c := &ServiceConfig{Name: "svc", Identity: IdentityShell, Command: CommandSpec{Kind: CommandShell, Cmdline: "y"}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}
