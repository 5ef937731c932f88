package protocol

import (
	"fmt"

	"github.com/PenumbraOS/pinitd-sub000/internal/codec"
	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
)

// WorkerCommandKind discriminates WorkerCommand variants.
type WorkerCommandKind uint8

const (
	WorkerCreate WorkerCommandKind = iota
	WorkerDestroy
	WorkerStart
	WorkerStop
	WorkerRestart
	WorkerStatus
	WorkerShutdown
)

// WorkerCommand is a controller-to-worker request.
type WorkerCommand struct {
	Kind    WorkerCommandKind
	Config  config.ServiceConfig // Create
	Name    string                // Destroy, Start, Stop, Restart
	PinitID string                // Start, Restart
}

// Encode serialises c into a frame payload.
func (c WorkerCommand) Encode() []byte {
	e := codec.NewEncoder()
	e.Uint8(uint8(c.Kind))
	switch c.Kind {
	case WorkerCreate:
		EncodeServiceConfig(e, c.Config)
	case WorkerDestroy, WorkerStop:
		e.String(c.Name)
	case WorkerStart, WorkerRestart:
		e.String(c.Name)
		e.String(c.PinitID)
	}
	return e.Bytes()
}

// DecodeWorkerCommand reads a WorkerCommand from a frame payload.
func DecodeWorkerCommand(payload []byte) (WorkerCommand, error) {
	d := codec.NewDecoder(payload)
	kindByte, err := d.Uint8()
	if err != nil {
		return WorkerCommand{}, err
	}
	cmd := WorkerCommand{Kind: WorkerCommandKind(kindByte)}
	switch cmd.Kind {
	case WorkerCreate:
		if cmd.Config, err = DecodeServiceConfig(d); err != nil {
			return cmd, err
		}
	case WorkerDestroy, WorkerStop:
		if cmd.Name, err = d.String(); err != nil {
			return cmd, err
		}
	case WorkerStart, WorkerRestart:
		if cmd.Name, err = d.String(); err != nil {
			return cmd, err
		}
		if cmd.PinitID, err = d.String(); err != nil {
			return cmd, err
		}
	case WorkerStatus, WorkerShutdown:
	default:
		return cmd, codec.NewProtocolError("decoding", fmt.Errorf("unknown WorkerCommand kind %d", kindByte))
	}
	if err := d.Finished(); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// WorkerResponseKind discriminates WorkerResponse variants.
type WorkerResponseKind uint8

const (
	WorkerSuccess WorkerResponseKind = iota
	WorkerError
	WorkerStatusResp
	WorkerShuttingDown
)

// WorkerResponse is a worker-to-controller reply.
type WorkerResponse struct {
	Kind    WorkerResponseKind
	Message string
	Status  map[string]registry.RunState
}

// Encode serialises r into a frame payload.
func (r WorkerResponse) Encode() []byte {
	e := codec.NewEncoder()
	e.Uint8(uint8(r.Kind))
	switch r.Kind {
	case WorkerError:
		e.String(r.Message)
	case WorkerStatusResp:
		e.Varint(uint64(len(r.Status)))
		for name, st := range r.Status {
			e.String(name)
			EncodeRunState(e, st)
		}
	}
	return e.Bytes()
}

// DecodeWorkerResponse reads a WorkerResponse from a frame payload.
func DecodeWorkerResponse(payload []byte) (WorkerResponse, error) {
	d := codec.NewDecoder(payload)
	kindByte, err := d.Uint8()
	if err != nil {
		return WorkerResponse{}, err
	}
	resp := WorkerResponse{Kind: WorkerResponseKind(kindByte)}
	switch resp.Kind {
	case WorkerSuccess, WorkerShuttingDown:
	case WorkerError:
		if resp.Message, err = d.String(); err != nil {
			return resp, err
		}
	case WorkerStatusResp:
		n, err := d.Varint()
		if err != nil {
			return resp, err
		}
		resp.Status = make(map[string]registry.RunState, n)
		for i := uint64(0); i < n; i++ {
			name, err := d.String()
			if err != nil {
				return resp, err
			}
			st, err := DecodeRunState(d)
			if err != nil {
				return resp, err
			}
			resp.Status[name] = st
		}
	default:
		return resp, codec.NewProtocolError("decoding", fmt.Errorf("unknown WorkerResponse kind %d", kindByte))
	}
	if err := d.Finished(); err != nil {
		return resp, err
	}
	return resp, nil
}

// ServiceUpdate is the unsolicited event pushed worker->controller whenever
// a service's state changes locally at the worker.
type ServiceUpdate struct {
	Status registry.ServiceStatus
}

// Encode serialises u into a frame payload.
func (u ServiceUpdate) Encode() []byte {
	e := codec.NewEncoder()
	EncodeServiceStatus(e, u.Status)
	return e.Bytes()
}

// DecodeServiceUpdate reads a ServiceUpdate from a frame payload.
func DecodeServiceUpdate(payload []byte) (ServiceUpdate, error) {
	d := codec.NewDecoder(payload)
	st, err := DecodeServiceStatus(d)
	if err != nil {
		return ServiceUpdate{}, err
	}
	if err := d.Finished(); err != nil {
		return ServiceUpdate{}, err
	}
	return ServiceUpdate{Status: st}, nil
}

// WireEnvelopeKind tags whether a controller-read frame from the worker link
// is a ServiceUpdate event or a WorkerResponse completing the oldest
// outstanding command: the controller's read loop multiplexes on this byte.
type WireEnvelopeKind uint8

const (
	// EnvelopeResponse marks a frame as a WorkerResponse.
	EnvelopeResponse WireEnvelopeKind = iota
	// EnvelopeUpdate marks a frame as a ServiceUpdate.
	EnvelopeUpdate
)

// EncodeResponseEnvelope wraps a WorkerResponse frame with its envelope tag.
func EncodeResponseEnvelope(r WorkerResponse) []byte {
	return append([]byte{byte(EnvelopeResponse)}, r.Encode()...)
}

// EncodeUpdateEnvelope wraps a ServiceUpdate frame with its envelope tag.
func EncodeUpdateEnvelope(u ServiceUpdate) []byte {
	return append([]byte{byte(EnvelopeUpdate)}, u.Encode()...)
}

// DecodeEnvelope splits a worker-link frame into its tag and inner payload.
func DecodeEnvelope(payload []byte) (WireEnvelopeKind, []byte, error) {
	if len(payload) < 1 {
		return 0, nil, codec.NewProtocolError("decoding", fmt.Errorf("empty envelope"))
	}
	return WireEnvelopeKind(payload[0]), payload[1:], nil
}
