package server

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"relaychat/models"
	"relaychat/protocol"
)

// Session binds one connected identity to its network connection and
// outbound queue. Each session runs two goroutines: the read loop decodes
// inbound messages and hands them to the router, the write loop drains
// the outbound queue onto the connection. Closing the connection is the
// only cancellation primitive; it unblocks the reader, which then tears
// the session down through the router.
type Session struct {
	user models.User
	conn net.Conn

	reader *protocol.Reader
	queue  *queue

	// stash holds messages left undelivered when the queue was detached
	// on disconnect; a reconnecting session takes them over. Accessed
	// only under the router's presence lock.
	stash []models.Message

	writeTimeout time.Duration
	closeOnce    sync.Once
}

func newSession(user models.User, conn net.Conn, reader *protocol.Reader, writeTimeout time.Duration) *Session {
	return &Session{
		user:         user,
		conn:         conn,
		reader:       reader,
		queue:        newQueue(),
		writeTimeout: writeTimeout,
	}
}

// Name returns the session's identity.
func (s *Session) Name() string {
	return s.user.Name
}

// enqueue appends msg to the outbound queue. A message removed from the
// queue by the writer is delivered-attempted; there is no acknowledgement
// and no redelivery.
func (s *Session) enqueue(msg models.Message) {
	s.queue.push(msg)
}

// readLoop decodes one message at a time and dispatches it. Any read or
// decode failure ends the session.
func (s *Session) readLoop(rt *Router) {
	for {
		msg, err := s.reader.Read()
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				log.Printf("Read error from %s: %v", s.user.Name, err)
			}
			break
		}
		rt.Dispatch(s, msg)
	}
	rt.Leave(s)
}

// writeLoop drains the outbound queue in FIFO order and writes each
// message to the connection. It exits when the queue is detached or a
// write fails; a failed write closes the connection so the reader notices.
func (s *Session) writeLoop() {
	w := protocol.NewWriter(s.conn)
	for {
		msg, ok := s.queue.pop()
		if !ok {
			return
		}
		if s.writeTimeout > 0 {
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		if err := w.Write(msg); err != nil {
			log.Printf("Write error to %s: %v", s.user.Name, err)
			s.close()
			return
		}
	}
}

// retire detaches the queue, stashing anything undelivered for a possible
// reconnect, and closes the connection. Called under the router's
// presence lock.
func (s *Session) retire() {
	s.stash = append(s.stash, s.queue.detach()...)
	s.close()
}

// takeover detaches the queue and returns everything this session never
// delivered: the stash from an earlier disconnect followed by whatever is
// still queued. Called under the router's presence lock.
func (s *Session) takeover() []models.Message {
	pending := append(s.stash, s.queue.detach()...)
	s.stash = nil
	return pending
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}
