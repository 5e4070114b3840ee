package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
)

// Server accepts protocol connections and hands each one to the Handler.
// Supported URIs are tcp://host:port, unix:///path/to.sock and stdio://.
type Server struct {
	uri     string
	handler *Handler
	logger  *slog.Logger
}

func NewServer(uri string, handler *Handler, logger *slog.Logger) *Server {
	return &Server{
		uri:     uri,
		handler: handler,
		logger:  logger.With("component", "server"),
	}
}

// Run serves until ctx is canceled. For stdio it serves exactly one session
// over the process streams and returns.
func (s *Server) Run(ctx context.Context) error {
	network, addr, err := splitURI(s.uri)
	if err != nil {
		return err
	}

	if network == "stdio" {
		s.logger.Info("serving on standard streams")
		return s.handler.Serve(ctx, stdio{})
	}

	if network == "unix" {
		// A stale socket from an unclean shutdown blocks the listener.
		if err := os.Remove(addr); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing stale socket: %w", err)
		}
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.uri, err)
	}
	defer listener.Close()

	unblock := context.AfterFunc(ctx, func() { listener.Close() })
	defer unblock()

	s.logger.Info("server listening", "uri", s.uri)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			unblock := context.AfterFunc(ctx, func() { conn.Close() })
			defer unblock()
			if err := s.handler.Serve(ctx, conn); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("client session failed", "remote", conn.RemoteAddr(), "error", err)
			}
		}()
	}
}

// splitURI parses scheme://address into listener arguments.
func splitURI(uri string) (network, addr string, err error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "", "", fmt.Errorf("invalid server uri %q (want scheme://address)", uri)
	}
	switch scheme {
	case "tcp", "unix":
		if rest == "" {
			return "", "", fmt.Errorf("server uri %q has no address", uri)
		}
		return scheme, rest, nil
	case "stdio":
		return "stdio", "", nil
	default:
		return "", "", fmt.Errorf("unsupported server uri scheme %q", scheme)
	}
}

// stdio adapts the process streams to a connection.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdio) Close() error                { return nil }
