package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Handler processes one command's payload and returns a JSON-marshalable
// result, or an error that becomes an {status:"error"} response.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Hook is a lifecycle callback run once, after the listener is live
// (OnStartup) or, during Stop, after the listener has stopped accepting
// and connections have drained, before the socket is unlinked
// (OnShutdown).
type Hook func(ctx context.Context) error

// Server is a Unix-socket daemon: it binds a socket, accepts concurrent
// clients, and dispatches framed requests to registered command handlers.
// Every daemon in the system (supervisor, helper, event bus control plane)
// is one instance of this, configured with its own command table.
type Server struct {
	name   string
	socket SocketConfig

	mu       sync.RWMutex
	handlers map[string]Handler

	onStartup  Hook
	onShutdown Hook

	listener net.Listener
	wg       sync.WaitGroup

	shutdownMu sync.Mutex
	shutdown   bool
}

// NewServer creates a server that will bind to the given socket once
// Start is called. name is used only for log messages.
func NewServer(name string, socket SocketConfig) *Server {
	return &Server{
		name:     name,
		socket:   socket,
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler associates a command name with its handler. Registering
// the same command twice replaces the previous handler.
func (s *Server) RegisterHandler(command string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[command] = h
}

// OnStartup sets the hook run once the listener is live.
func (s *Server) OnStartup(h Hook) { s.onStartup = h }

// OnShutdown sets the hook Stop runs after closing the listener and
// draining connections, before unlinking the socket. Shutdown is
// idempotent: the hook runs at most once.
func (s *Server) OnShutdown(h Hook) { s.onShutdown = h }

// SocketPath returns the bound (or to-be-bound) socket path.
func (s *Server) SocketPath() string { return s.socket.Path }

// Start binds the socket and begins accepting connections in the
// background. It returns once the listener is live, after onStartup runs.
func (s *Server) Start(ctx context.Context) error {
	listener, err := bindSocket(s.socket)
	if err != nil {
		return err
	}
	s.listener = listener

	if s.onStartup != nil {
		if err := s.onStartup(ctx); err != nil {
			_ = listener.Close()
			return fmt.Errorf("%s: on-startup hook: %w", s.name, err)
		}
	}

	slog.Info("daemon listening", "daemon", s.name, "socket", s.socket.Path)

	go s.acceptLoop(ctx)
	return nil
}

// Stop performs graceful shutdown: stop accepting connections, let
// in-flight handlers finish (bounded by a timeout), run onShutdown, then
// unlink the socket. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	if s.shutdown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.shutdown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Warn("timed out waiting for connections to drain", "daemon", s.name)
	}

	if s.onShutdown != nil {
		if err := s.onShutdown(ctx); err != nil {
			slog.Error("on-shutdown hook failed", "daemon", s.name, "error", err)
		}
	}

	return unlinkSocket(s.socket.Path)
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			shuttingDown := s.shutdown
			s.shutdownMu.Unlock()
			if shuttingDown {
				return
			}
			slog.Error("accept error", "daemon", s.name, "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection serves one client strictly sequentially: read a frame,
// route it, write the response, repeat until EOF or a protocol error.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	for {
		var req Request
		if err := ReadFrame(conn, &req); err != nil {
			// EOF or malformed frame: drop only this connection.
			return
		}

		resp := s.process(ctx, req)

		if err := WriteFrame(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) process(ctx context.Context, req Request) Response {
	if req.Command == "" {
		return errorResponse(req.ID, fmt.Errorf("command is required"))
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Command]
	s.mu.RUnlock()

	if !ok {
		return errorResponse(req.ID, fmt.Errorf("Unknown command: %s", req.Command))
	}

	result, err := func() (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return handler(ctx, req.Payload)
	}()
	if err != nil {
		return errorResponse(req.ID, err)
	}

	resp, err := successResponse(req.ID, result)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return resp
}
