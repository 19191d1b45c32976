// Package peer implements a stand-in runtime peer: a TCP server that
// answers bridge requests with the same length-prefixed framing. It
// backs the stub-runtime subcommand and the integration tests; a real
// deployment replaces it with the actual runtime process.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/aribermeki/framebridge/pkg/wire"
)

const logPrefix = "peer:server"

// Handler answers one decoded request. Returning an error produces a
// nonzero-code response carrying the error message.
type Handler func(ctx context.Context, method string, args []any) (any, error)

// Server accepts bridge connections and serves one request/response
// pair per connection, mirroring the non-multiplexed transport.
type Server struct {
	listener net.Listener
	handler  Handler
	closed   atomic.Bool
}

// Listen starts listening on addr (e.g. "127.0.0.1:5555"). Use ":0"
// to pick a free port, then read it back with Addr.
func Listen(addr string, h Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s - listen on %s: %w", logPrefix, addr, err)
	}
	return &Server{listener: ln, handler: h}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until Close or ctx cancellation.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	slog.Info(fmt.Sprintf("%s - Listening on %s", logPrefix, s.Addr()))
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return fmt.Errorf("%s - accept: %w", logPrefix, err)
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn serves exactly one round trip and closes the connection.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	payload, err := wire.ReadFrame(conn)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Read from %s: %v", logPrefix, conn.RemoteAddr(), err))
		return
	}

	req, err := wire.DecodeRequest(payload)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Decode from %s: %v", logPrefix, conn.RemoteAddr(), err))
		return
	}

	resp := s.respond(ctx, req)
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - Encode response %d: %v", logPrefix, req.ID, err))
		return
	}
	if err := wire.WriteFrame(conn, data); err != nil {
		slog.Warn(fmt.Sprintf("%s - Write to %s: %v", logPrefix, conn.RemoteAddr(), err))
	}
}

// respond invokes the handler and maps its outcome onto the response
// array shape.
func (s *Server) respond(ctx context.Context, req *wire.Request) wire.Response {
	result, err := s.handler(ctx, req.Method, req.Args)
	if err != nil {
		code := 1
		var remote *remoteCoder
		if errors.As(err, &remote) {
			code = remote.code
		}
		return wire.Response{ID: req.ID, Code: code, Msg: err.Error()}
	}
	return wire.Response{ID: req.ID, Code: 0, Msg: "", Result: result}
}

// Close stops the listener. In-flight connections finish on their own.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.listener.Close()
}

// remoteCoder lets handlers pick the response code for a failure.
type remoteCoder struct {
	code int
	msg  string
}

func (e *remoteCoder) Error() string {
	return e.msg
}

// Errorf builds a handler error that is reported with the given
// nonzero response code.
func Errorf(code int, format string, args ...any) error {
	return &remoteCoder{code: code, msg: fmt.Sprintf(format, args...)}
}
