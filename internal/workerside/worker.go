// Package workerside implements the worker role's end of the
// controller<->worker link: dialing in, serving commands against the local
// registry, and forwarding its ServiceUpdate stream back to the controller.
package workerside

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/protocol"
	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
	"github.com/PenumbraOS/pinitd-sub000/internal/rpclink"
)

// DialRetryDelay is the pause between failed dial attempts against the
// controller's worker listener.
const DialRetryDelay = 1 * time.Second

// EventForwarder is registry.UpdateSink bound to whichever worker-side link
// is currently active, surviving reconnects transparently.
type EventForwarder struct {
	mu   sync.Mutex
	link *rpclink.Link
}

// Send implements registry.UpdateSink.
func (f *EventForwarder) Send(status registry.ServiceStatus) {
	f.mu.Lock()
	link := f.link
	f.mu.Unlock()
	if link == nil {
		return
	}
	if err := link.SendEvent(protocol.ServiceUpdate{Status: status}); err != nil {
		// Dropped silently: the reconnect loop will pick up a fresh link and
		// the controller will resync via the next state change or a Status
		// poll; there is no queued-event replay in this spec.
	}
}

func (f *EventForwarder) setLink(l *rpclink.Link) {
	f.mu.Lock()
	f.link = l
	f.mu.Unlock()
}

// Run dials addr, serves WorkerCommands against local, and reconnects
// whenever the link drops, until ctx is cancelled.
func Run(ctx context.Context, addr string, local *registry.Local, forwarder *EventForwarder, logger zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := net.Dial("tcp", addr)
		if err != nil {
			logger.Warn().Err(err).Str("addr", addr).Msg("worker: dial controller failed")
			select {
			case <-time.After(DialRetryDelay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		link := rpclink.NewWorkerSide(conn, logger)
		forwarder.setLink(link)
		logger.Info().Str("addr", addr).Msg("worker: connected to controller")

		serve(ctx, link, local, logger)
		forwarder.setLink(nil)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// serve runs the command loop for one connection until it drops or ctx is
// cancelled.
func serve(ctx context.Context, link *rpclink.Link, local *registry.Local, logger zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(done)
	}()

	for {
		cmd, err := link.ReadCommand()
		if err != nil {
			return
		}

		link.WriteLock()
		resp := dispatch(ctx, cmd, local)
		sendErr := link.SendResponse(resp)
		link.WriteUnlock()
		if sendErr != nil {
			return
		}

		select {
		case <-done:
			return
		default:
		}
	}
}

func dispatch(ctx context.Context, cmd protocol.WorkerCommand, local *registry.Local) protocol.WorkerResponse {
	switch cmd.Kind {
	case protocol.WorkerCreate:
		if err := local.InsertUnit(cmd.Config); err != nil {
			return errResponse(err)
		}
		return protocol.WorkerResponse{Kind: protocol.WorkerSuccess}
	case protocol.WorkerDestroy:
		if err := local.RemoveUnit(ctx, cmd.Name); err != nil {
			return errResponse(err)
		}
		return protocol.WorkerResponse{Kind: protocol.WorkerSuccess}
	case protocol.WorkerStart:
		if err := local.Start(ctx, cmd.Name, cmd.PinitID, true); err != nil {
			return errResponse(err)
		}
		return protocol.WorkerResponse{Kind: protocol.WorkerSuccess}
	case protocol.WorkerStop:
		if err := local.Stop(cmd.Name); err != nil {
			return errResponse(err)
		}
		return protocol.WorkerResponse{Kind: protocol.WorkerSuccess}
	case protocol.WorkerRestart:
		if err := local.Restart(ctx, cmd.Name, cmd.PinitID, true); err != nil {
			return errResponse(err)
		}
		return protocol.WorkerResponse{Kind: protocol.WorkerSuccess}
	case protocol.WorkerStatus:
		all := local.ListAll()
		status := make(map[string]registry.RunState, len(all))
		for _, s := range all {
			status[s.Name] = s.State
		}
		return protocol.WorkerResponse{Kind: protocol.WorkerStatusResp, Status: status}
	case protocol.WorkerShutdown:
		local.Shutdown()
		return protocol.WorkerResponse{Kind: protocol.WorkerShuttingDown}
	default:
		return protocol.WorkerResponse{Kind: protocol.WorkerError, Message: "unknown command"}
	}
}

func errResponse(err error) protocol.WorkerResponse {
	return protocol.WorkerResponse{Kind: protocol.WorkerError, Message: err.Error()}
}
