// Package net exposes the engine over a line-oriented TCP session: each
// received line is one command, each response the command's rendered
// output. The engine itself knows nothing of the transport.
package net

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/interp"
	"skoll/internal/utils"
)

const (
	defaultNWorkers = 10
	writeTimeout    = time.Second
)

var ErrImproperConversion = errors.New("improper type conversion")

// ClientSession tracks one connected TCP session.
type ClientSession struct {
	conn net.Conn
}

type Server struct {
	address string
	port    int
	it      *interp.Interpreter
	pool    utils.WorkerPool
	cancel  context.CancelFunc

	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
}

func New(address string, port int, it *interp.Interpreter) *Server {
	return &Server{
		address:        address,
		port:           port,
		it:             it,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()

	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	for addr, session := range s.clientSessions {
		if err := session.conn.Close(); err != nil {
			log.Error().Err(err).Str("address", addr).Msg("unable to close session")
		}
		delete(s.clientSessions, addr)
	}
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	s.pool.Setup(t, s.handleConnection)

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			s.addClientSession(conn)
			s.pool.AddTask(t, conn)
		}
	}
}

// handleConnection serves one session for its whole life: read a command
// line, run it, write the rendered output back. Any error returned from
// here is fatal to the pool, so transport failures only end the session.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}
	defer s.deleteClientSession(conn.RemoteAddr().String())

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			log.Error().Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("failed setting deadline for connection")
			return nil
		}
		// Parse errors render a reject and keep the session open; the
		// engine stays usable after any rejected command.
		if err := s.it.ExecuteLine(line, conn); err != nil {
			log.Debug().Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("rejected command line")
		}
	}
	if err := sc.Err(); err != nil {
		log.Error().Err(err).
			Str("address", conn.RemoteAddr().String()).
			Msg("error reading from connection")
	}
	return nil
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{conn: conn}
}

// deleteClientSession is an atomic map remove, closing the connection.
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if session, ok := s.clientSessions[address]; ok {
		_ = session.conn.Close()
	}
	delete(s.clientSessions, address)
}

// Sessions reports the number of live client sessions.
func (s *Server) Sessions() int {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	return len(s.clientSessions)
}
