package arena

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/playduel/backend/internal/wire"
)

const sendBufferSize = 256

// Session is one connected client. The read loop runs on its own goroutine
// and dispatches into the hub; outbound messages go through the buffered
// send mailbox drained by writePump, so no other session ever writes to
// this connection directly.
type Session struct {
	ID   string
	hub  *Hub
	conn wire.Conn
	send chan []byte

	limiter *rate.Limiter

	// pseudo and closed are guarded by the hub lock. pseudo is empty
	// until CONNECT succeeds.
	pseudo string
	closed bool
}

// NewSession wraps an accepted connection. Run must be called to start it.
func NewSession(h *Hub, conn wire.Conn) *Session {
	return &Session{
		ID:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.ActionsPerSecond), h.cfg.ActionBurst),
	}
}

// Run services the connection until it drops, then runs disconnect
// cleanup. Blocks; callers start it on its own goroutine.
func (s *Session) Run() {
	log.Printf("[ARENA] Session %s connected from %s", s.ID, s.conn.RemoteAddr())
	go s.writePump()
	s.readLoop()
	s.hub.Disconnect(s)
	log.Printf("[ARENA] Session %s closed", s.ID)
}

func (s *Session) readLoop() {
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("[ARENA] Session %s read error: %v", s.ID, err)
			}
			return
		}

		if !s.limiter.Allow() {
			log.Printf("[ARENA] Session %s over rate limit, frame dropped", s.ID)
			continue
		}

		msg, err := wire.DecodeClientMessage(frame)
		if err != nil {
			// Malformed frame: protocol error, terminate the session.
			log.Printf("[ARENA] Session %s sent malformed frame: %v", s.ID, err)
			return
		}

		s.hub.Dispatch(s, msg)
	}
}

// writePump drains the mailbox onto the connection. Exits when the hub
// closes the mailbox during disconnect, or on the first write error (the
// read side will notice the broken connection on its own).
func (s *Session) writePump() {
	for data := range s.send {
		if err := s.conn.WriteFrame(data); err != nil {
			log.Printf("[ARENA] Session %s write error: %v", s.ID, err)
			return
		}
	}
}

// Send queues one message for the client without blocking; a full mailbox
// drops the message. Callers must hold the hub lock.
func (s *Session) Send(v interface{}) {
	if s.closed {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ARENA] Session %s marshal error: %v", s.ID, err)
		return
	}
	select {
	case s.send <- data:
	default:
		log.Printf("[ARENA] Session %s send buffer full, message dropped", s.ID)
	}
}

// remoteHostPort splits the peer address for the player record.
func (s *Session) remoteHostPort() (string, int) {
	addr := s.conn.RemoteAddr().String()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
