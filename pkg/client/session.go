// Package client implements the Screen Worms peer: it heartbeats the game
// server, validates and orders the received event stream, and translates
// it into the line protocol spoken by the GUI front-end.
package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wdrz/curve/pkg/protocol"
)

// GUI key messages, each arriving as one line.
const (
	guiLeftDown  = "LEFT_KEY_DOWN"
	guiLeftUp    = "LEFT_KEY_UP"
	guiRightDown = "RIGHT_KEY_DOWN"
	guiRightUp   = "RIGHT_KEY_UP"
)

// Session tracks everything the client knows about the current game: the
// game id, the next event number it will accept, the player-name list from
// NEW_GAME, the board dimensions, and the key state reported to the server.
type Session struct {
	sessionID  uint64
	playerName string

	gameID       uint32
	nextExpected uint32
	players      []string
	width        uint32
	height       uint32

	key                 uint8
	leftDown, rightDown bool

	lines []string
}

// NewSession returns a fresh session for the given player name (empty for
// an observer) and session id.
func NewSession(playerName string, sessionID uint64) *Session {
	return &Session{
		sessionID:  sessionID,
		playerName: playerName,
	}
}

// Heartbeat encodes the datagram sent to the server every 30 ms.
func (s *Session) Heartbeat() []byte {
	msg := protocol.ClientMessage{
		SessionID:           s.sessionID,
		TurnDirection:       s.key,
		NextExpectedEventNo: s.nextExpected,
		PlayerName:          s.playerName,
	}
	return msg.Encode()
}

// TakeLines returns the GUI lines produced so far and clears the queue.
func (s *Session) TakeLines() []string {
	lines := s.lines
	s.lines = nil
	return lines
}

// HandleServerDatagram processes one datagram from the game server.
//
// Framing failures discard the rest of the datagram silently. A returned
// error is a semantic protocol violation and must terminate the client.
func (s *Session) HandleServerDatagram(buf []byte) error {
	if len(buf) < 4 {
		return nil
	}
	r := protocol.NewReader(buf)
	gameID, _ := r.Uint32()
	rest := buf[4:]

	if gameID != s.gameID {
		// A different game id is only accepted when the datagram opens
		// with a valid NEW_GAME event.
		e, _, err := protocol.DecodeEvent(rest)
		if err != nil || e.Type != protocol.EventNewGame {
			return nil
		}
		s.gameID = gameID
		s.nextExpected = 0
	}

	for len(rest) > 0 {
		e, n, err := protocol.DecodeEvent(rest)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedEvent) {
				return fmt.Errorf("server sent malformed event: %w", err)
			}
			return nil
		}
		rest = rest[n:]

		if e.Number != s.nextExpected {
			continue
		}
		if err := s.dispatch(e); err != nil {
			return err
		}
		s.nextExpected++
	}
	return nil
}

// dispatch validates one in-order event and queues its GUI line.
func (s *Session) dispatch(e *protocol.Event) error {
	switch e.Type {
	case protocol.EventNewGame:
		s.width = e.MaxX
		s.height = e.MaxY
		s.players = e.Players

		var b strings.Builder
		b.WriteString("NEW_GAME ")
		b.WriteString(strconv.FormatUint(uint64(e.MaxX), 10))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(e.MaxY), 10))
		for _, name := range e.Players {
			b.WriteByte(' ')
			b.WriteString(name)
		}
		b.WriteByte('\n')
		s.lines = append(s.lines, b.String())

	case protocol.EventPixel:
		if e.X >= s.width || e.Y >= s.height {
			return fmt.Errorf("pixel (%d,%d) outside %dx%d board", e.X, e.Y, s.width, s.height)
		}
		name, err := s.lookupPlayer(e.PlayerNumber)
		if err != nil {
			return err
		}
		s.lines = append(s.lines, fmt.Sprintf("PIXEL %d %d %s\n", e.X, e.Y, name))

	case protocol.EventPlayerEliminated:
		name, err := s.lookupPlayer(e.PlayerNumber)
		if err != nil {
			return err
		}
		s.lines = append(s.lines, fmt.Sprintf("PLAYER_ELIMINATED %s\n", name))

	case protocol.EventGameOver:
		// Nothing goes to the GUI; the next game announces itself with a
		// fresh game id.
	}
	return nil
}

func (s *Session) lookupPlayer(number uint8) (string, error) {
	if int(number) >= len(s.players) {
		return "", fmt.Errorf("player number %d out of range (%d players)", number, len(s.players))
	}
	return s.players[number], nil
}

// HandleGUILine applies one key message from the GUI and reports whether
// it was recognized.
func (s *Session) HandleGUILine(line string) bool {
	switch line {
	case guiLeftDown:
		s.leftDown = true
		s.key = protocol.TurnLeft
	case guiLeftUp:
		s.leftDown = false
		s.key = protocol.TurnStraight
		if s.rightDown {
			s.key = protocol.TurnRight
		}
	case guiRightDown:
		s.rightDown = true
		s.key = protocol.TurnRight
	case guiRightUp:
		s.rightDown = false
		s.key = protocol.TurnStraight
		if s.leftDown {
			s.key = protocol.TurnLeft
		}
	default:
		return false
	}
	return true
}
