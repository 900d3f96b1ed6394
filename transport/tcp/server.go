package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/gamegate/core"
	"github.com/layer-3/gamegate/service"
	"github.com/sirupsen/logrus"
)

// Server accepts players and serves each connection on its own goroutine
type Server struct {
	gate    *service.AdmissionGate
	game    *service.GameService
	timeout time.Duration
	logger  *logrus.Entry

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a new TCP server
func NewServer(gate *service.AdmissionGate, game *service.GameService, timeout time.Duration, logger *logrus.Entry) *Server {
	return &Server{
		gate:    gate,
		game:    game,
		timeout: timeout,
		logger:  logger,
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// the open connections to finish
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.WithField("addr", ln.Addr().String()).Info("Server: start running...")
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.WithError(err).Warn("Accept timeout")
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// Addr returns the listening address once Serve has started
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handle is the error boundary of a single connection
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	stats := s.game.Stats()
	stats.Connections.Add(1)

	log := s.logger.WithFields(logrus.Fields{
		"conn_id": uuid.New().String(),
		"remote":  conn.RemoteAddr().String(),
	})

	lc := newLineConn(conn, s.timeout)
	defer func() {
		if r := recover(); r != nil {
			stats.Failures.Add(1)
			log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Connection handler panicked")
			_ = lc.Send("Error!\n")
		}
	}()

	if err := s.gate.Admit(lc); err != nil {
		stats.Rejected.Add(1)
		log.WithError(err).Debug("Admission failed")
		return
	}
	stats.Admitted.Add(1)

	err := s.game.Serve(ctx, lc, log)
	switch {
	case err == nil:
	case isDisconnect(err):
		log.WithError(err).Debug("Connection closed")
	default:
		log.WithError(err).WithField("kind", errorKind(err)).Info("Error")
		_ = lc.Send("Error!\n")
	}
}

// isDisconnect reports whether err came from the player's socket rather
// than from a game step
func isDisconnect(err error) bool {
	var perr *peerError
	return errors.As(err, &perr)
}

func errorKind(err error) string {
	var (
		perr *core.ProtocolError
		lerr *core.LedgerError
		cerr *core.CompileError
	)
	switch {
	case errors.Is(err, core.ErrAuthentication):
		return "authentication"
	case errors.As(err, &perr):
		return "protocol"
	case errors.As(err, &lerr):
		return "ledger"
	case errors.As(err, &cerr):
		return "compile"
	}
	return "internal"
}
