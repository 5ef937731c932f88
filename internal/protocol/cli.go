package protocol

import (
	"fmt"

	"github.com/PenumbraOS/pinitd-sub000/internal/codec"
	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
)

// CLICommandKind discriminates CLICommand variants.
type CLICommandKind uint8

const (
	CLIStart CLICommandKind = iota
	CLIStop
	CLIRestart
	CLIEnable
	CLIDisable
	CLIReload
	CLIReloadAll
	CLIStatus
	CLIConfig
	CLIList
	CLIShutdown
	CLIZygoteReady
)

// CLICommand is one request on the control socket: exactly one per
// connection, always followed by exactly one CLIResponse.
type CLICommand struct {
	Kind    CLICommandKind
	Name    string // Start, Stop, Restart, Enable, Disable, Reload, Status, Config
	PinitID string // ZygoteReady
}

// Encode serialises c into a frame payload.
func (c CLICommand) Encode() []byte {
	e := codec.NewEncoder()
	e.Uint8(uint8(c.Kind))
	switch c.Kind {
	case CLIStart, CLIStop, CLIRestart, CLIEnable, CLIDisable, CLIReload, CLIStatus, CLIConfig:
		e.String(c.Name)
	case CLIZygoteReady:
		e.String(c.PinitID)
	}
	return e.Bytes()
}

// DecodeCLICommand reads a CLICommand from a frame payload.
func DecodeCLICommand(payload []byte) (CLICommand, error) {
	d := codec.NewDecoder(payload)
	kindByte, err := d.Uint8()
	if err != nil {
		return CLICommand{}, err
	}
	cmd := CLICommand{Kind: CLICommandKind(kindByte)}
	switch cmd.Kind {
	case CLIStart, CLIStop, CLIRestart, CLIEnable, CLIDisable, CLIReload, CLIStatus, CLIConfig:
		if cmd.Name, err = d.String(); err != nil {
			return cmd, err
		}
	case CLIZygoteReady:
		if cmd.PinitID, err = d.String(); err != nil {
			return cmd, err
		}
	case CLIReloadAll, CLIList, CLIShutdown:
	default:
		return cmd, codec.NewProtocolError("decoding", fmt.Errorf("unknown CLICommand kind %d", kindByte))
	}
	if err := d.Finished(); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// CLIResponseKind discriminates CLIResponse variants.
type CLIResponseKind uint8

const (
	CLISuccess CLIResponseKind = iota
	CLIError
	CLIStatusResp
	CLIListResp
	CLIConfigResp
	CLIShuttingDown
)

// CLIResponse is the reply to a CLICommand.
type CLIResponse struct {
	Kind    CLIResponseKind
	Message string
	Status  registry.ServiceStatus
	List    []registry.ServiceStatus
	Config  config.ServiceConfig
}

// Encode serialises r into a frame payload.
func (r CLIResponse) Encode() []byte {
	e := codec.NewEncoder()
	e.Uint8(uint8(r.Kind))
	switch r.Kind {
	case CLISuccess, CLIError:
		e.String(r.Message)
	case CLIStatusResp:
		EncodeServiceStatus(e, r.Status)
	case CLIListResp:
		e.Varint(uint64(len(r.List)))
		for _, s := range r.List {
			EncodeServiceStatus(e, s)
		}
	case CLIConfigResp:
		EncodeServiceConfig(e, r.Config)
	}
	return e.Bytes()
}

// DecodeCLIResponse reads a CLIResponse from a frame payload.
func DecodeCLIResponse(payload []byte) (CLIResponse, error) {
	d := codec.NewDecoder(payload)
	kindByte, err := d.Uint8()
	if err != nil {
		return CLIResponse{}, err
	}
	resp := CLIResponse{Kind: CLIResponseKind(kindByte)}
	switch resp.Kind {
	case CLISuccess, CLIError:
		if resp.Message, err = d.String(); err != nil {
			return resp, err
		}
	case CLIStatusResp:
		if resp.Status, err = DecodeServiceStatus(d); err != nil {
			return resp, err
		}
	case CLIListResp:
		n, err := d.Varint()
		if err != nil {
			return resp, err
		}
		resp.List = make([]registry.ServiceStatus, 0, n)
		for i := uint64(0); i < n; i++ {
			s, err := DecodeServiceStatus(d)
			if err != nil {
				return resp, err
			}
			resp.List = append(resp.List, s)
		}
	case CLIConfigResp:
		if resp.Config, err = DecodeServiceConfig(d); err != nil {
			return resp, err
		}
	case CLIShuttingDown:
	default:
		return resp, codec.NewProtocolError("decoding", fmt.Errorf("unknown CLIResponse kind %d", kindByte))
	}
	if err := d.Finished(); err != nil {
		return resp, err
	}
	return resp, nil
}
