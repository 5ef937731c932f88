package spawn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
)

func TestStandardAdapterSpawnSuccessfulExit(t *testing.T) {
	adapter := StandardAdapter{}
	req := Request{
		ServiceName: "exit-zero",
		Command:     config.CommandSpec{Kind: config.CommandShell, Cmdline: "true"},
	}

	handle, err := adapter.Spawn(context.Background(), req)
	require.NoError(t, err)
	assert.NotZero(t, handle.Pid())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
}

func TestStandardAdapterSpawnNonZeroExit(t *testing.T) {
	adapter := StandardAdapter{}
	req := Request{
		ServiceName: "exit-seven",
		Command:     config.CommandSpec{Kind: config.CommandShell, Cmdline: "exit 7"},
	}

	handle, err := adapter.Spawn(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Code)
}

func TestStandardAdapterStopSignalsChild(t *testing.T) {
	adapter := StandardAdapter{}
	req := Request{
		ServiceName: "sleeper",
		Command:     config.CommandSpec{Kind: config.CommandShell, Cmdline: "sleep 30"},
	}

	handle, err := adapter.Spawn(context.Background(), req)
	require.NoError(t, err)

	handle.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = handle.Wait(ctx)
	require.NoError(t, err, "signalled child must still report a terminal result before the timeout")
}

func TestCommandLineVariants(t *testing.T) {
	tests := []struct {
		name string
		spec config.CommandSpec
		want string
	}{
		{
			name: "shell",
			spec: config.CommandSpec{Kind: config.CommandShell, Cmdline: "/bin/echo hi"},
			want: "/bin/echo hi",
		},
		{
			name: "package binary with args",
			spec: config.CommandSpec{
				Kind:         config.CommandPackageBinary,
				Package:      "com.example.app",
				RelativePath: "bin/tool",
				CommandArgs:  []string{"--flag", "value"},
			},
			want: "<com.example.app>/bin/tool --flag value",
		},
		{
			name: "jvm class",
			spec: config.CommandSpec{
				Kind:        config.CommandJvmClass,
				Package:     "com.example.app",
				Class:       "com.example.Main",
				JvmArgs:     []string{"-Xmx64m"},
				CommandArgs: []string{"arg1"},
			},
			want: "app_process -cp <com.example.app> -Xmx64m com.example.Main arg1",
		},
		{
			name: "package activity",
			spec: config.CommandSpec{
				Kind:     config.CommandPackageActivity,
				Package:  "com.example.app",
				Activity: ".MainActivity",
			},
			want: "am start -n com.example.app/.MainActivity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandLine(tt.spec))
		})
	}
}
