// Package rpclink implements the reconnecting request/response link used
// between the controller and the worker: a write mutex that reads never
// take (reads happen on a single goroutine and hold no lock), a
// background read loop that multiplexes unsolicited
// ServiceUpdate events away from command responses, and a broadcast signal
// fired the instant the link goes bad.
package rpclink

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PenumbraOS/pinitd-sub000/internal/codec"
	"github.com/PenumbraOS/pinitd-sub000/internal/protocol"
)

// ResponseTimeout is the fixed deadline for a worker command's response
// (spec §4.2/§5). Exceeding it marks the link disconnected.
const ResponseTimeout = 200 * time.Millisecond

// ErrNotConnected is returned by SendCommand once the link has gone bad.
var ErrNotConnected = errors.New("rpclink: not connected")

// ErrTimeout is returned when a command's response does not arrive within
// ResponseTimeout.
var ErrTimeout = errors.New("rpclink: response timeout")

type waiterResult struct {
	resp protocol.WorkerResponse
	err  error
}

// Link wraps one controller<->worker connection. Once it disconnects it is
// dead; callers discard it and construct a new Link on the next connection.
type Link struct {
	conn net.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	connected bool
	closeOnce sync.Once
	disconnectCh chan struct{}

	pendingMu sync.Mutex
	pending   []chan waiterResult

	updates chan<- protocol.ServiceUpdate
	logger  zerolog.Logger
}

// New wraps conn and starts its background read loop. updates receives
// every ServiceUpdate the worker pushes; sends are non-blocking so a slow
// consumer never stalls the read loop.
func New(conn net.Conn, updates chan<- protocol.ServiceUpdate, logger zerolog.Logger) *Link {
	l := &Link{
		conn:         conn,
		connected:    true,
		disconnectCh: make(chan struct{}),
		updates:      updates,
		logger:       logger,
	}
	go l.readLoop()
	return l
}

// NewWorkerSide wraps conn for the worker's end of the link: no background
// read loop, since the worker drives its own single-threaded read/process/
// respond cycle via ReadCommand/SendResponse/SendEvent directly (spec §4.2).
func NewWorkerSide(conn net.Conn, logger zerolog.Logger) *Link {
	return &Link{
		conn:         conn,
		connected:    true,
		disconnectCh: make(chan struct{}),
		logger:       logger,
	}
}

func (l *Link) readLoop() {
	for {
		payload, err := codec.ReadFrame(l.conn)
		if err != nil {
			l.markDisconnected(err)
			return
		}
		kind, inner, err := protocol.DecodeEnvelope(payload)
		if err != nil {
			l.markDisconnected(err)
			return
		}
		switch kind {
		case protocol.EnvelopeUpdate:
			upd, err := protocol.DecodeServiceUpdate(inner)
			if err != nil {
				l.markDisconnected(err)
				return
			}
			select {
			case l.updates <- upd:
			default:
				l.logger.Warn().Str("service", upd.Status.Name).Msg("dropping ServiceUpdate: mirror channel full")
			}
		case protocol.EnvelopeResponse:
			resp, err := protocol.DecodeWorkerResponse(inner)
			if err != nil {
				l.markDisconnected(err)
				return
			}
			l.completeOldest(waiterResult{resp: resp})
		}
	}
}

// SendCommand writes cmd and blocks for its response, subject to
// ResponseTimeout and ctx cancellation. A write failure, a timeout, or a
// read or decode failure in the read loop marks the link disconnected; a
// cancelled ctx returns ctx.Err() and leaves the link as it is.
func (l *Link) SendCommand(ctx context.Context, cmd protocol.WorkerCommand) (protocol.WorkerResponse, error) {
	l.mu.Lock()
	connected := l.connected
	l.mu.Unlock()
	if !connected {
		return protocol.WorkerResponse{}, ErrNotConnected
	}

	waiter := make(chan waiterResult, 1)
	l.pendingMu.Lock()
	l.pending = append(l.pending, waiter)
	l.pendingMu.Unlock()

	l.writeMu.Lock()
	err := codec.WriteFrame(l.conn, cmd.Encode())
	l.writeMu.Unlock()
	if err != nil {
		l.markDisconnected(err)
		return protocol.WorkerResponse{}, ErrNotConnected
	}

	select {
	case res := <-waiter:
		return res.resp, res.err
	case <-time.After(ResponseTimeout):
		l.markDisconnected(ErrTimeout)
		return protocol.WorkerResponse{}, ErrTimeout
	case <-ctx.Done():
		return protocol.WorkerResponse{}, ctx.Err()
	}
}

// SendEvent writes an unsolicited ServiceUpdate (worker -> controller
// direction); it never waits for a response.
func (l *Link) SendEvent(update protocol.ServiceUpdate) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := codec.WriteFrame(l.conn, protocol.EncodeUpdateEnvelope(update)); err != nil {
		l.markDisconnected(err)
		return ErrNotConnected
	}
	return nil
}

// SendResponse writes a WorkerResponse (worker -> controller direction, in
// reply to a command). The worker's write lock is held for the whole
// request-handling critical section by its caller so a response can never
// be preempted by an outbound event on the same connection (spec §5).
func (l *Link) SendResponse(resp protocol.WorkerResponse) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := codec.WriteFrame(l.conn, protocol.EncodeResponseEnvelope(resp)); err != nil {
		l.markDisconnected(err)
		return ErrNotConnected
	}
	return nil
}

// ReadCommand reads the next WorkerCommand from the link (worker side).
func (l *Link) ReadCommand() (protocol.WorkerCommand, error) {
	payload, err := codec.ReadFrame(l.conn)
	if err != nil {
		l.markDisconnected(err)
		return protocol.WorkerCommand{}, err
	}
	return protocol.DecodeWorkerCommand(payload)
}

// WriteLock exposes the write mutex so the worker can hold it across an
// entire command-handling critical section (spec §5: "Worker-side write
// lock is also acquired before beginning command processing").
func (l *Link) WriteLock()   { l.writeMu.Lock() }
func (l *Link) WriteUnlock() { l.writeMu.Unlock() }

func (l *Link) completeOldest(res waiterResult) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	if len(l.pending) == 0 {
		return
	}
	waiter := l.pending[0]
	l.pending = l.pending[1:]
	waiter <- res
}

// IsConnected reports whether the link is still usable.
func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Disconnected returns a channel closed the moment the link goes bad.
func (l *Link) Disconnected() <-chan struct{} {
	return l.disconnectCh
}

func (l *Link) markDisconnected(cause error) {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.connected = false
		l.mu.Unlock()

		l.pendingMu.Lock()
		for _, w := range l.pending {
			w <- waiterResult{err: ErrNotConnected}
		}
		l.pending = nil
		l.pendingMu.Unlock()

		l.logger.Warn().Err(cause).Msg("rpc link disconnected")
		l.conn.Close()
		close(l.disconnectCh)
	})
}

// Close forces the link closed, as if its connection had failed.
func (l *Link) Close() {
	l.markDisconnected(errors.New("closed by caller"))
}
