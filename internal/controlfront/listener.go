// Package controlfront is the control-plane front-end: a local TCP listener
// that accepts one CLICommand per connection, dispatches it through the
// controller registry, and writes back exactly one CLIResponse.
package controlfront

import (
	"context"
	"net"

	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/codec"
	"github.com/PenumbraOS/pinitd-sub000/internal/config"
	"github.com/PenumbraOS/pinitd-sub000/internal/protocol"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
)

// Registry is the subset of ControllerRegistry the front-end dispatches
// onto.
type Registry interface {
	InsertUnit(ctx context.Context, cfg config.ServiceConfig) error
	Start(ctx context.Context, name, pinitID string, waitForStart bool) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name, pinitID string, waitForStart bool) error
	Enable(name string) error
	Disable(name string) error
	Reload(ctx context.Context, name string, reparsed config.ServiceConfig) error
	Status(name string) (registry.ServiceStatus, error)
	ListAll() []registry.ServiceStatus
}

// UnitSource reloads a service's config from its on-disk unit file, keyed
// by the name the registry already has it under.
type UnitSource interface {
	ReloadUnit(name string) (config.ServiceConfig, error)
	AllUnitNames() []string
}

// Server is the control front-end.
type Server struct {
	registry Registry
	units    UnitSource
	logger   zerolog.Logger

	// shutdown is signalled (closed) the moment a Shutdown command is
	// dispatched; the daemon's main task selects on it to run the ordered
	// shutdown sequence from spec §4.9.
	shutdown chan struct{}
}

// New builds a Server. Call ShutdownSignal() to obtain the channel the
// daemon's main task should watch.
func New(reg Registry, units UnitSource, logger zerolog.Logger) *Server {
	return &Server{registry: reg, units: units, logger: logger, shutdown: make(chan struct{})}
}

// ShutdownSignal returns the channel closed once a Shutdown command has been
// dispatched.
func (s *Server) ShutdownSignal() <-chan struct{} {
	return s.shutdown
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	payload, err := codec.ReadFrame(conn)
	if err != nil {
		return
	}
	cmd, err := protocol.DecodeCLICommand(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("malformed CLI command")
		return
	}

	resp := s.dispatch(ctx, cmd)
	codec.WriteFrame(conn, resp.Encode())
}

func (s *Server) dispatch(ctx context.Context, cmd protocol.CLICommand) protocol.CLIResponse {
	switch cmd.Kind {
	case protocol.CLIStart:
		return s.result(s.registry.Start(ctx, cmd.Name, "", true))
	case protocol.CLIStop:
		return s.result(s.registry.Stop(ctx, cmd.Name))
	case protocol.CLIRestart:
		return s.result(s.registry.Restart(ctx, cmd.Name, "", true))
	case protocol.CLIEnable:
		return s.result(s.registry.Enable(cmd.Name))
	case protocol.CLIDisable:
		return s.result(s.registry.Disable(cmd.Name))
	case protocol.CLIReload:
		cfg, err := s.units.ReloadUnit(cmd.Name)
		if err != nil {
			return protocol.CLIResponse{Kind: protocol.CLIError, Message: err.Error()}
		}
		return s.result(s.registry.Reload(ctx, cmd.Name, cfg))
	case protocol.CLIReloadAll:
		return s.reloadAll(ctx)
	case protocol.CLIStatus:
		status, err := s.registry.Status(cmd.Name)
		if err != nil {
			return protocol.CLIResponse{Kind: protocol.CLIError, Message: err.Error()}
		}
		return protocol.CLIResponse{Kind: protocol.CLIStatusResp, Status: status}
	case protocol.CLIConfig:
		cfg, err := s.units.ReloadUnit(cmd.Name)
		if err != nil {
			return protocol.CLIResponse{Kind: protocol.CLIError, Message: err.Error()}
		}
		return protocol.CLIResponse{Kind: protocol.CLIConfigResp, Config: cfg}
	case protocol.CLIList:
		return protocol.CLIResponse{Kind: protocol.CLIListResp, List: s.registry.ListAll()}
	case protocol.CLIShutdown:
		s.triggerShutdown()
		return protocol.CLIResponse{Kind: protocol.CLIShuttingDown}
	case protocol.CLIZygoteReady:
		// No dedicated entry point: privileged-child rendezvous runs
		// entirely over the PMS socket (spec §4.7). Acknowledged only.
		return protocol.CLIResponse{Kind: protocol.CLISuccess}
	default:
		return protocol.CLIResponse{Kind: protocol.CLIError, Message: "unknown command"}
	}
}

func (s *Server) reloadAll(ctx context.Context) protocol.CLIResponse {
	for _, name := range s.units.AllUnitNames() {
		cfg, err := s.units.ReloadUnit(name)
		if err != nil {
			s.logger.Error().Err(err).Str("service", name).Msg("reload-all: parse failed")
			continue
		}
		if err := s.registry.Reload(ctx, name, cfg); err != nil {
			s.logger.Error().Err(err).Str("service", name).Msg("reload-all: apply failed")
		}
	}
	return protocol.CLIResponse{Kind: protocol.CLISuccess}
}

func (s *Server) triggerShutdown() {
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
}

func (s *Server) result(err error) protocol.CLIResponse {
	if err != nil {
		return protocol.CLIResponse{Kind: protocol.CLIError, Message: err.Error()}
	}
	return protocol.CLIResponse{Kind: protocol.CLISuccess}
}
