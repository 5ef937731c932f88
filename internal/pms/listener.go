package pms

import (
	"context"
	"net"
	"time"

	"github.com/PenumbraOS/pinitd-sub000/internal/codec"
	"github.com/PenumbraOS/pinitd-sub000/internal/protocol"
	"github.com/PenumbraOS/pinitd-sub000/internal/spawn"
)

// Serve accepts connections on ln until ctx is cancelled, handling each on
// its own goroutine.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
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
		go s.handleConn(conn)
	}
}

func (s *Service) handleConn(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	payload, err := codec.ReadFrame(conn)
	if err != nil {
		conn.Close()
		return
	}
	msg, err := protocol.DecodePMSFromChild(payload)
	if err != nil || msg.Kind != protocol.PMSProcessLaunched {
		s.reject(conn)
		return
	}
	conn.SetReadDeadline(time.Time{})

	s.pinitMu.Lock()
	entry, known := s.pinitIDs[msg.PinitID]
	if known {
		delete(s.pinitIDs, msg.PinitID)
	}
	s.pinitMu.Unlock()

	if !known {
		s.logger.Warn().Str("pinit_id", msg.PinitID).Msg("PMS: unknown pinit_id")
		s.reject(conn)
		return
	}

	s.regMu.Lock()
	if _, exists := s.registrations[entry.serviceName]; exists {
		s.regMu.Unlock()
		s.logger.Warn().Str("service", entry.serviceName).Msg("PMS: double spawn detected")
		s.reject(conn)
		return
	}
	s.registrations[entry.serviceName] = registration{conn: conn, handle: entry.handle, pinitID: msg.PinitID}
	s.regMu.Unlock()

	entry.handle.SetPid(msg.Pid)
	if err := s.registry.SetRunning(entry.serviceName, msg.Pid); err != nil {
		s.logger.Error().Err(err).Str("service", entry.serviceName).Msg("PMS: SetRunning failed")
	}

	if err := codec.WriteFrame(conn, protocol.PMSToChild{Kind: protocol.PMSAllowStart}.Encode()); err != nil {
		s.unregister(entry.serviceName, msg.PinitID, conn)
		return
	}

	s.drive(conn, entry)
}

// drive reads subsequent lifecycle frames off an accepted connection,
// routing ProcessExited through the same path a standard spawn's Wait
// would: resolving the supervising task's handle.
func (s *Service) drive(conn net.Conn, entry pendingEntry) {
	defer s.unregister(entry.serviceName, "", conn)

	for {
		payload, err := codec.ReadFrame(conn)
		if err != nil {
			entry.handle.Resolve(spawn.ExitResult{Code: -1, Message: "PMS connection dropped"})
			return
		}
		msg, err := protocol.DecodePMSFromChild(payload)
		if err != nil {
			entry.handle.Resolve(spawn.ExitResult{Code: -1, Message: "malformed PMS frame"})
			return
		}
		if msg.Kind == protocol.PMSProcessExited {
			message := "exited"
			if msg.ExitCode == 127 {
				message = "Exited via signal"
			}
			entry.handle.Resolve(spawn.ExitResult{Code: int(msg.ExitCode), Message: message})
			return
		}
	}
}

func (s *Service) unregister(serviceName, pinitID string, conn net.Conn) {
	s.regMu.Lock()
	delete(s.registrations, serviceName)
	s.regMu.Unlock()
	if pinitID != "" {
		s.pinitMu.Lock()
		delete(s.pinitIDs, pinitID)
		s.pinitMu.Unlock()
	}
	conn.Close()
}

func (s *Service) reject(conn net.Conn) {
	codec.WriteFrame(conn, protocol.PMSToChild{Kind: protocol.PMSKill}.Encode())
	conn.Close()
}
