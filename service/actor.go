// Package service implements the keystore's service actor: the single
// goroutine that authoritatively owns the entry store, dispatches incoming
// requests, offloads crypto work to a worker pool, and emits the
// passphrase callback when sealing or unsealing requires it.
package service

import (
	"context"
	"net"
	"os"
	"runtime"
	"sync"

	"github.com/Connoropolous/lair-keystore/entry"
	"github.com/Connoropolous/lair-keystore/internal/obslog"
	"github.com/Connoropolous/lair-keystore/ipc"
	"github.com/Connoropolous/lair-keystore/passphrase"

	libcrypto "github.com/Connoropolous/lair-keystore/crypto"
)

// ServerInfo identifies this keystore implementation in server_info replies.
type ServerInfo struct {
	Name    string
	Version string
}

// mailboxBound is the service actor's bounded request mailbox (spec.md
// §4.4/§5's "service-actor request mailbox" backpressure point).
const mailboxBound = 256

type job struct {
	conn  *ipc.Conn
	frame ipc.Frame
}

// Server is the authoritative owner of the entry store for one data
// directory. It must be started with Serve before it will accept
// connections.
type Server struct {
	dir  string
	info ServerInfo

	mailbox chan job
	gate    *passphrase.Gate
	pool    *libcrypto.WorkerPool
	logger  *obslog.Logger

	store *entry.Store // actor-owned; only the run() goroutine touches it

	passMu       sync.Mutex
	passWaitConn *ipc.Conn // the connection ensureStoreOpen is currently awaiting a passphrase reply from, if any

	listener net.Listener
	runWG    sync.WaitGroup // the single run() goroutine
	connWG   sync.WaitGroup // one connLoop goroutine per accepted connection
}

// NewServer constructs a Server for the data directory dir. Call Serve to
// start accepting connections on a Unix domain socket.
func NewServer(dir string, info ServerInfo) *Server {
	return &Server{
		dir:     dir,
		info:    info,
		mailbox: make(chan job, mailboxBound),
		gate:    passphrase.NewGate(),
		pool:    libcrypto.NewWorkerPool(runtime.NumCPU()),
		logger:  obslog.New("service", "Server"),
	}
}

// Listen binds the Unix domain socket at socketPath. Callers that need to
// know the socket is ready to accept connections before doing anything else
// (e.g. printing a startup banner) should call Listen before Serve; Serve
// also accepts an unbound Server and binds lazily for simpler callers.
func (s *Server) Listen(socketPath string) error {
	// A stale socket file left behind by an unclean shutdown otherwise makes
	// a fresh bind fail with "address already in use".
	if _, err := os.Stat(socketPath); err == nil {
		os.Remove(socketPath)
	}
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Serve runs until ctx is cancelled or Close is called, accepting
// connections on the listener bound by Listen (or binding socketPath itself
// if Listen was not already called). It blocks until the listener stops.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	if s.listener == nil {
		if err := s.Listen(socketPath); err != nil {
			return err
		}
	}
	l := s.listener

	s.runWG.Add(1)
	go func() {
		defer s.runWG.Done()
		s.run()
	}()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	var connsMu sync.Mutex
	conns := make(map[*ipc.Conn]struct{})

	for {
		nc, err := l.Accept()
		if err != nil {
			s.logger.Debug("listener stopped accepting connections")
			break
		}
		conn := ipc.NewConn(nc)
		connsMu.Lock()
		conns[conn] = struct{}{}
		connsMu.Unlock()
		s.connWG.Add(1)
		go func() {
			defer s.connWG.Done()
			s.connLoop(conn)
			connsMu.Lock()
			delete(conns, conn)
			connsMu.Unlock()
		}()
	}

	connsMu.Lock()
	for conn := range conns {
		conn.Close()
	}
	connsMu.Unlock()

	// Every connLoop goroutine that might still send to s.mailbox must have
	// exited before the mailbox is closed, or a concurrent send races a
	// send-on-closed-channel panic.
	s.connWG.Wait()
	close(s.mailbox)
	s.runWG.Wait()
	s.pool.Close()
	return nil
}

func (s *Server) connLoop(conn *ipc.Conn) {
	// If this connection was the one the actor was mid-passphrase-request
	// on, its drop must reset the gate rather than leave it stuck Pending
	// forever (spec.md §4.3's Pending -> Empty transition).
	defer s.resetPassphraseGateIfWaiting(conn)

	for frame := range conn.Events() {
		select {
		case s.mailbox <- job{conn: conn, frame: frame}:
		default:
			s.logger.Warn("service mailbox full, dropping connection for backpressure")
			conn.Close()
			return
		}
	}
}

// setPassphraseWaiter records conn as the connection ensureStoreOpen is
// about to block on for the unlock passphrase.
func (s *Server) setPassphraseWaiter(conn *ipc.Conn) {
	s.passMu.Lock()
	s.passWaitConn = conn
	s.passMu.Unlock()
}

// clearPassphraseWaiter clears conn as the pending passphrase waiter, if it
// still is one (a later caller may have already replaced it).
func (s *Server) clearPassphraseWaiter(conn *ipc.Conn) {
	s.passMu.Lock()
	if s.passWaitConn == conn {
		s.passWaitConn = nil
	}
	s.passMu.Unlock()
}

// resetPassphraseGateIfWaiting resets the passphrase gate if conn was the
// connection ensureStoreOpen was waiting on when it dropped.
func (s *Server) resetPassphraseGateIfWaiting(conn *ipc.Conn) {
	s.passMu.Lock()
	waiting := s.passWaitConn == conn
	if waiting {
		s.passWaitConn = nil
	}
	s.passMu.Unlock()

	if waiting {
		s.gate.Reset()
	}
}

func (s *Server) run() {
	for j := range s.mailbox {
		s.dispatch(j.conn, j.frame)
	}
}

// Close stops the listener; in-flight requests already in the mailbox
// still run to completion.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
