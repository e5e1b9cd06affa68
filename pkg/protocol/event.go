package protocol

import (
	"hash/crc32"
)

// Event type tags.
const (
	EventNewGame          uint8 = 0
	EventPixel            uint8 = 1
	EventPlayerEliminated uint8 = 2
	EventGameOver         uint8 = 3
)

// Turn directions reported by clients.
const (
	TurnStraight uint8 = 0
	TurnRight    uint8 = 1
	TurnLeft     uint8 = 2
)

// MaxDatagramSize is the largest datagram either side will emit:
// a conservative IPv4 MTU minus IP and UDP headers.
const MaxDatagramSize = 548

// MaxPlayerName is the longest accepted player name in bytes.
const MaxPlayerName = 20

// eventOverhead is the on-wire size of an event record beyond its length
// field's value: the 4-byte length prefix plus the trailing CRC-32.
const eventOverhead = 8

// ValidPlayerName reports whether s is a legal non-observer name:
// 1..20 bytes, printable ASCII only.
func ValidPlayerName(s string) bool {
	if len(s) < 1 || len(s) > MaxPlayerName {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 33 || s[i] > 126 {
			return false
		}
	}
	return true
}

// Event is a single record of a game's event log. Encoder-constructed
// events carry their full wire form (length prefix, number, type, payload,
// CRC-32) computed once at construction and never modified afterwards.
type Event struct {
	Number uint32
	Type   uint8

	// NEW_GAME payload.
	MaxX, MaxY uint32
	Players    []string

	// PIXEL and PLAYER_ELIMINATED payload.
	PlayerNumber uint8
	X, Y         uint32

	// Raw payload of an unrecognized event type.
	Data []byte

	wire []byte
}

// Wire returns the full on-wire encoding of the event. It is nil for
// events produced by DecodeEvent.
func (e *Event) Wire() []byte {
	return e.wire
}

// WireSize returns the total on-wire size of the event in bytes. It is zero
// for events produced by DecodeEvent.
func (e *Event) WireSize() int {
	return len(e.wire)
}

// seal appends the CRC-32 of everything written so far and stores the
// finished wire form.
func (e *Event) seal(wire []byte) *Event {
	e.wire = AppendUint32(wire, crc32.ChecksumIEEE(wire))
	return e
}

// NewGameEvent builds a NEW_GAME record announcing the board dimensions
// and the ordered player-name list. List order defines the player indices
// used by all subsequent events of the game.
func NewGameEvent(number, maxX, maxY uint32, names []string) *Event {
	length := uint32(13)
	for _, name := range names {
		length += uint32(len(name)) + 1
	}

	wire := make([]byte, 0, length+eventOverhead)
	wire = AppendUint32(wire, length)
	wire = AppendUint32(wire, number)
	wire = AppendUint8(wire, EventNewGame)
	wire = AppendUint32(wire, maxX)
	wire = AppendUint32(wire, maxY)
	for _, name := range names {
		wire = append(wire, name...)
		wire = AppendUint8(wire, 0)
	}

	e := &Event{Number: number, Type: EventNewGame, MaxX: maxX, MaxY: maxY, Players: names}
	return e.seal(wire)
}

// PixelEvent builds a PIXEL record for the pixel a player just entered.
func PixelEvent(number uint32, player uint8, x, y uint32) *Event {
	wire := make([]byte, 0, 14+eventOverhead)
	wire = AppendUint32(wire, 14)
	wire = AppendUint32(wire, number)
	wire = AppendUint8(wire, EventPixel)
	wire = AppendUint8(wire, player)
	wire = AppendUint32(wire, x)
	wire = AppendUint32(wire, y)

	e := &Event{Number: number, Type: EventPixel, PlayerNumber: player, X: x, Y: y}
	return e.seal(wire)
}

// PlayerEliminatedEvent builds a PLAYER_ELIMINATED record.
func PlayerEliminatedEvent(number uint32, player uint8) *Event {
	wire := make([]byte, 0, 6+eventOverhead)
	wire = AppendUint32(wire, 6)
	wire = AppendUint32(wire, number)
	wire = AppendUint8(wire, EventPlayerEliminated)
	wire = AppendUint8(wire, player)

	e := &Event{Number: number, Type: EventPlayerEliminated, PlayerNumber: player}
	return e.seal(wire)
}

// GameOverEvent builds a GAME_OVER record.
func GameOverEvent(number uint32) *Event {
	wire := make([]byte, 0, 5+eventOverhead)
	wire = AppendUint32(wire, 5)
	wire = AppendUint32(wire, number)
	wire = AppendUint8(wire, EventGameOver)

	e := &Event{Number: number, Type: EventGameOver}
	return e.seal(wire)
}

// DecodeEvent parses one event record from the front of buf and returns it
// together with the number of bytes consumed.
//
// Framing failures (short buffer, undersized length, CRC mismatch) return
// ErrTruncated, ErrBadLength or ErrBadChecksum: the caller should discard
// the rest of the datagram. A recognized type with a payload of the wrong
// shape returns ErrMalformedEvent, which receivers treat as fatal. An
// unknown type tag decodes successfully with its payload kept raw in Data.
func DecodeEvent(buf []byte) (*Event, int, error) {
	r := NewReader(buf)

	length, err := r.Uint32()
	if err != nil {
		return nil, 0, err
	}
	if length < 5 {
		return nil, 0, ErrBadLength
	}
	if r.Remaining() < int(length)+4 {
		return nil, 0, ErrTruncated
	}

	total := int(length) + eventOverhead
	body := buf[:int(length)+4]
	want := crc32.ChecksumIEEE(body)
	got, _ := NewReader(buf[int(length)+4:]).Uint32()
	if want != got {
		return nil, 0, ErrBadChecksum
	}

	number, _ := r.Uint32()
	typ, _ := r.Uint8()
	payload, _ := r.Bytes(int(length) - 5)

	e := &Event{Number: number, Type: typ}
	switch typ {
	case EventNewGame:
		if err := decodeNewGame(e, payload); err != nil {
			return nil, 0, err
		}
	case EventPixel:
		if len(payload) != 9 {
			return nil, 0, ErrMalformedEvent
		}
		pr := NewReader(payload)
		e.PlayerNumber, _ = pr.Uint8()
		e.X, _ = pr.Uint32()
		e.Y, _ = pr.Uint32()
	case EventPlayerEliminated:
		if len(payload) != 1 {
			return nil, 0, ErrMalformedEvent
		}
		e.PlayerNumber = payload[0]
	case EventGameOver:
		if len(payload) != 0 {
			return nil, 0, ErrMalformedEvent
		}
	default:
		e.Data = payload
	}

	return e, total, nil
}

func decodeNewGame(e *Event, payload []byte) error {
	pr := NewReader(payload)
	var err error
	if e.MaxX, err = pr.Uint32(); err != nil {
		return ErrMalformedEvent
	}
	if e.MaxY, err = pr.Uint32(); err != nil {
		return ErrMalformedEvent
	}

	rest := payload[pr.Offset():]
	if len(rest) > 0 && rest[len(rest)-1] != 0 {
		return ErrMalformedEvent
	}
	for len(rest) > 0 {
		i := 0
		for rest[i] != 0 {
			i++
		}
		name := string(rest[:i])
		if !ValidPlayerName(name) {
			return ErrMalformedEvent
		}
		e.Players = append(e.Players, name)
		rest = rest[i+1:]
	}
	return nil
}

// ClientMessage is the heartbeat datagram every client sends to the server.
type ClientMessage struct {
	SessionID           uint64
	TurnDirection       uint8
	NextExpectedEventNo uint32
	PlayerName          string
}

// Encode returns the 13+len(name) byte wire form of the message.
func (m *ClientMessage) Encode() []byte {
	buf := make([]byte, 0, 13+len(m.PlayerName))
	buf = AppendUint64(buf, m.SessionID)
	buf = AppendUint8(buf, m.TurnDirection)
	buf = AppendUint32(buf, m.NextExpectedEventNo)
	return append(buf, m.PlayerName...)
}

// DecodeClientMessage parses a heartbeat datagram. Datagrams outside the
// legal 13..33 byte range or with an out-of-range turn direction are
// rejected with ErrBadMessage.
func DecodeClientMessage(buf []byte) (*ClientMessage, error) {
	if len(buf) < 13 || len(buf) > 13+MaxPlayerName {
		return nil, ErrBadMessage
	}
	r := NewReader(buf)
	m := &ClientMessage{}
	m.SessionID, _ = r.Uint64()
	m.TurnDirection, _ = r.Uint8()
	m.NextExpectedEventNo, _ = r.Uint32()
	m.PlayerName = string(buf[13:])
	if m.TurnDirection > TurnLeft {
		return nil, ErrBadMessage
	}
	return m, nil
}
