package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
)

func TestWorkerCommandRoundTrip(t *testing.T) {
	tests := []WorkerCommand{
		{Kind: WorkerCreate, Config: config.ServiceConfig{Name: "svc", Command: config.CommandSpec{Kind: config.CommandShell, Cmdline: "true"}}},
		{Kind: WorkerDestroy, Name: "svc"},
		{Kind: WorkerStart, Name: "svc", PinitID: "pinit-1"},
		{Kind: WorkerStop, Name: "svc"},
		{Kind: WorkerRestart, Name: "svc", PinitID: "pinit-2"},
		{Kind: WorkerStatus},
		{Kind: WorkerShutdown},
	}

	for _, want := range tests {
		got, err := DecodeWorkerCommand(want.Encode())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestWorkerResponseRoundTrip(t *testing.T) {
	tests := []WorkerResponse{
		{Kind: WorkerSuccess},
		{Kind: WorkerError, Message: "boom"},
		{Kind: WorkerShuttingDown},
		{Kind: WorkerStatusResp, Status: map[string]registry.RunState{
			"svc-a": {Kind: registry.Running, Pid: 10},
			"svc-b": {Kind: registry.Failed, Reason: "bad"},
		}},
	}

	for _, want := range tests {
		got, err := DecodeWorkerResponse(want.Encode())
		require.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Message, got.Message)
		assert.Equal(t, want.Status, got.Status)
	}
}

func TestServiceUpdateRoundTrip(t *testing.T) {
	want := ServiceUpdate{Status: registry.ServiceStatus{
		Name:     "svc",
		Identity: config.IdentitySystem,
		State:    RunStateRunning(99),
		Enabled:  true,
	}}
	got, err := DecodeServiceUpdate(want.Encode())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func RunStateRunning(pid int32) registry.RunState {
	return registry.RunState{Kind: registry.Running, Pid: pid}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	resp := WorkerResponse{Kind: WorkerSuccess}
	kind, payload, err := DecodeEnvelope(EncodeResponseEnvelope(resp))
	require.NoError(t, err)
	assert.Equal(t, EnvelopeResponse, kind)
	decoded, err := DecodeWorkerResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, resp, decoded)

	update := ServiceUpdate{Status: registry.ServiceStatus{Name: "svc"}}
	kind, payload, err = DecodeEnvelope(EncodeUpdateEnvelope(update))
	require.NoError(t, err)
	assert.Equal(t, EnvelopeUpdate, kind)
	decodedUpdate, err := DecodeServiceUpdate(payload)
	require.NoError(t, err)
	assert.Equal(t, update, decodedUpdate)
}

func TestDecodeEnvelopeRejectsEmptyPayload(t *testing.T) {
	_, _, err := DecodeEnvelope(nil)
	assert.Error(t, err)
}
