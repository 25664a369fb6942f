// Package wire implements the framing shared by the TCP listener and the
// WebSocket gateway: one UTF-8 JSON object per frame, newline-delimited on
// TCP. A session reads ClientMessage frames and writes arbitrary JSON
// objects back.
package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
)

const (
	// initialBufferSize matches the 1 KiB receive buffer messages are
	// expected to fit in.
	initialBufferSize = 1024

	// MaxFrameSize is the hard cap on a single frame. Frames over the cap
	// terminate the session.
	MaxFrameSize = 64 * 1024
)

// ErrFrameTooLarge is returned when an incoming frame exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// Client actions.
const (
	ActionConnect          = "CONNECT"
	ActionJoin             = "JOIN"
	ActionLeave            = "LEAVE"
	ActionJoinMastermind   = "JOIN_MASTERMIND"
	ActionLeaveMastermind  = "LEAVE_MASTERMIND"
	ActionMove             = "MOVE"
	ActionMastermindGuess  = "MASTERMIND_GUESS"
	ActionPlayerRanking    = "GET_PLAYER_RANKING"
	ActionPlayerRank       = "GET_PLAYER_RANK"
	ActionTopPlayers       = "GET_TOP_PLAYERS"
	ActionPlayerHistory    = "GET_PLAYER_HISTORY"
)

// Server actions (also reused for the CONNECT/MOVE replies).
const (
	ActionStart                  = "START"
	ActionEnd                    = "END"
	ActionLeftQueue              = "LEFT_QUEUE"
	ActionMatchInterrupted       = "MATCH_INTERRUPTED"
	ActionMastermindStart        = "MASTERMIND_START"
	ActionMastermindFeedback     = "MASTERMIND_FEEDBACK"
	ActionMastermindOpponentMove = "MASTERMIND_OPPONENT_GUESS"
	ActionMastermindEnd          = "MASTERMIND_END"
	ActionRatingUpdate           = "RATING_UPDATE"
	ActionPlayerRankingReply     = "PLAYER_RANKING"
	ActionPlayerRankReply        = "PLAYER_RANK"
	ActionTopPlayersReply        = "TOP_PLAYERS"
	ActionPlayerHistoryReply     = "PLAYER_HISTORY"
)

// ClientMessage is the flat envelope for every client-to-server frame.
// Position is a pointer so position 0 is distinguishable from an absent
// field.
type ClientMessage struct {
	Action   string   `json:"action"`
	Pseudo   string   `json:"pseudo,omitempty"`
	Game     string   `json:"game,omitempty"`
	MatchID  int64    `json:"match_id,omitempty"`
	Position *int     `json:"position,omitempty"`
	Code     []string `json:"code,omitempty"`
	Guess    []string `json:"guess,omitempty"`
}

// Conn abstracts one framed bidirectional connection. Implemented by the
// TCP conn below and by the WebSocket gateway.
type Conn interface {
	// ReadFrame returns the next complete frame. It blocks until a frame
	// arrives, the peer closes, or the connection errors.
	ReadFrame() ([]byte, error)
	// WriteFrame writes one complete frame.
	WriteFrame(data []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// TCPConn frames newline-delimited JSON over a stream socket.
type TCPConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewTCPConn wraps a stream connection with newline framing.
func NewTCPConn(conn net.Conn) *TCPConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, initialBufferSize), MaxFrameSize)
	return &TCPConn{conn: conn, scanner: scanner}
}

// ReadFrame returns the next line without its delimiter.
func (c *TCPConn) ReadFrame() ([]byte, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				return nil, ErrFrameTooLarge
			}
			return nil, err
		}
		return nil, net.ErrClosed
	}
	// Copy out: the scanner reuses its buffer on the next Scan.
	line := c.scanner.Bytes()
	frame := make([]byte, len(line))
	copy(frame, line)
	return frame, nil
}

// WriteFrame appends the newline delimiter and writes the frame.
func (c *TCPConn) WriteFrame(data []byte) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	_, err := c.conn.Write(buf)
	return err
}

func (c *TCPConn) Close() error {
	return c.conn.Close()
}

func (c *TCPConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// DecodeClientMessage parses one client frame. A frame that is not a JSON
// object is a protocol error and terminates the session.
func DecodeClientMessage(frame []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
