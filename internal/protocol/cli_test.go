package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
)

func TestCLICommandRoundTrip(t *testing.T) {
	tests := []CLICommand{
		{Kind: CLIStart, Name: "svc"},
		{Kind: CLIStop, Name: "svc"},
		{Kind: CLIEnable, Name: "svc"},
		{Kind: CLIZygoteReady, PinitID: "pinit-123"},
		{Kind: CLIReloadAll},
		{Kind: CLIList},
		{Kind: CLIShutdown},
	}

	for _, want := range tests {
		t.Run(want.Kind.String(), func(t *testing.T) {
			got, err := DecodeCLICommand(want.Encode())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func (k CLICommandKind) String() string {
	switch k {
	case CLIStart:
		return "Start"
	case CLIStop:
		return "Stop"
	case CLIRestart:
		return "Restart"
	case CLIEnable:
		return "Enable"
	case CLIDisable:
		return "Disable"
	case CLIReload:
		return "Reload"
	case CLIReloadAll:
		return "ReloadAll"
	case CLIStatus:
		return "Status"
	case CLIConfig:
		return "Config"
	case CLIList:
		return "List"
	case CLIShutdown:
		return "Shutdown"
	case CLIZygoteReady:
		return "ZygoteReady"
	default:
		return "Unknown"
	}
}

func TestCLICommandDecodeRejectsUnknownKind(t *testing.T) {
	_, err := DecodeCLICommand([]byte{0xff})
	assert.Error(t, err)
}

func TestCLIResponseRoundTrip(t *testing.T) {
	status := registry.ServiceStatus{
		Name:      "svc",
		Identity:  config.IdentityShell,
		State:     registry.RunState{Kind: registry.Running, Pid: 123},
		Enabled:   true,
		Autostart: false,
		Restart:   config.RestartAlways,
	}

	tests := []CLIResponse{
		{Kind: CLISuccess, Message: "ok"},
		{Kind: CLIError, Message: "boom"},
		{Kind: CLIStatusResp, Status: status},
		{Kind: CLIListResp, List: []registry.ServiceStatus{status, status}},
		{Kind: CLIShuttingDown},
	}

	for _, want := range tests {
		t.Run("", func(t *testing.T) {
			got, err := DecodeCLIResponse(want.Encode())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestCLIResponseEmptyListRoundTrips(t *testing.T) {
	want := CLIResponse{Kind: CLIListResp, List: nil}
	got, err := DecodeCLIResponse(want.Encode())
	require.NoError(t, err)
	assert.Empty(t, got.List)
}

func TestServiceConfigRoundTripAllCommandKinds(t *testing.T) {
	trigger := &config.ActivityRef{Package: "com.example", Activity: ".Trigger"}
	tests := []config.ServiceConfig{
		{
			Name:     "shell-svc",
			Command:  config.CommandSpec{Kind: config.CommandShell, Cmdline: "/bin/true", TriggerActivity: trigger},
			Identity: config.IdentityShell,
			Restart:  config.RestartOnFailure,
		},
		{
			Name: "binary-svc",
			Command: config.CommandSpec{
				Kind:         config.CommandPackageBinary,
				Package:      "com.example.app",
				RelativePath: "bin/tool",
				CommandArgs:  []string{"--flag"},
			},
			Identity:     config.IdentitySystem,
			NiceName:     "display",
			Dependencies: config.Dependencies{Wants: []string{"dep-a", "dep-b"}},
		},
		{
			Name: "jvm-svc",
			Command: config.CommandSpec{
				Kind:        config.CommandJvmClass,
				Package:     "com.example.app",
				Class:       "com.example.Main",
				JvmArgs:     []string{"-Xmx32m"},
				CommandArgs: []string{"arg"},
			},
		},
		{
			Name: "activity-svc",
			Command: config.CommandSpec{
				Kind:     config.CommandPackageActivity,
				Package:  "com.example.app",
				Activity: ".MainActivity",
			},
		},
	}

	for _, want := range tests {
		t.Run(want.Name, func(t *testing.T) {
			e := newTestEncoder()
			EncodeServiceConfig(e, want)
			got, err := DecodeServiceConfig(newTestDecoder(e))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
