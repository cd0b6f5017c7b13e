package server

import (
	"errors"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"relaychat/models"
	"relaychat/msglog"
	"relaychat/protocol"
)

// Server owns the listening socket and wires the registry, router and
// message log together. The viewer-facing query surface lives here.
type Server struct {
	config   *ServerConfig
	registry *Registry
	router   *Router
	log      *msglog.Log

	mu       sync.Mutex
	listener net.Listener
}

type ServerConfig struct {
	Port         int
	WriteTimeout time.Duration
}

func New(messageLog *msglog.Log, config *ServerConfig) *Server {
	registry := NewRegistry()
	return &Server{
		config:   config,
		registry: registry,
		router:   NewRouter(registry, messageLog),
		log:      messageLog,
	}
}

// Start listens on the configured port and accepts connections until the
// listener is closed by Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Printf("Relay server started on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("Error accepting connection: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// Addr returns the listener's address once Start has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handleConnection performs the handshake and runs the session's read
// loop on this goroutine. The first message must be an identity
// announcement with connected=true; anything else closes the connection.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	log.Printf("New client connected from %s", remoteAddr)

	reader := protocol.NewReader(conn)
	msg, err := reader.Read()
	if err != nil {
		log.Printf("Handshake failed from %s: %v", remoteAddr, err)
		conn.Close()
		return
	}

	announce, ok := msg.(*models.PresenceUpdate)
	if !ok || announce.User.Name == "" || !announce.User.Connected {
		log.Printf("Invalid identity announcement from %s", remoteAddr)
		conn.Close()
		return
	}

	sess := newSession(announce.User, conn, reader, s.config.WriteTimeout)
	s.router.Join(sess)
	go sess.writeLoop()

	log.Printf("Client %s joined from %s", sess.Name(), remoteAddr)
	sess.readLoop(s.router)
}

// GetMessagesBasedOnDate returns the persisted messages between fromDate
// and toDate, both in the "yyyy/MM/dd HH:mm" format used for server
// timestamps. A malformed bound yields an empty result, same as no match.
func (s *Server) GetMessagesBasedOnDate(fromDate, toDate string) []models.ChatMessage {
	return s.log.QueryRange(fromDate, toDate)
}

// Stats returns server statistics as a formatted string.
func (s *Server) Stats() string {
	names := s.registry.ConnectedNames()
	return "connections=" + strconv.Itoa(len(names)) + ",users=" + strings.Join(names, ";")
}

// Shutdown closes the listener and every session's connection. Readers
// unblock and tear their sessions down through the router.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	for _, sess := range s.registry.All() {
		sess.close()
	}
}
