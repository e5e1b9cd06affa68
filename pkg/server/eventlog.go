package server

import (
	"github.com/wdrz/curve/pkg/protocol"
)

// Log is the append-only event sequence of one game instance. Entries are
// numbered by their index and never mutated or reordered; the toBroadcast
// cursor marks the earliest entry not yet pushed to all clients.
type Log struct {
	events      []*protocol.Event
	toBroadcast int
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Len returns the number of appended events.
func (l *Log) Len() int {
	return len(l.events)
}

// At returns the i-th event.
func (l *Log) At(i int) *protocol.Event {
	return l.events[i]
}

// NextNumber returns the event number the next appended record must carry.
func (l *Log) NextNumber() uint32 {
	return uint32(len(l.events))
}

// Append adds an event to the log.
func (l *Log) Append(e *protocol.Event) {
	l.events = append(l.events, e)
}

// ToBroadcast returns the index of the earliest unbroadcast event.
func (l *Log) ToBroadcast() int {
	return l.toBroadcast
}

// MarkBroadcast records that every current entry has been broadcast.
func (l *Log) MarkBroadcast() {
	l.toBroadcast = len(l.events)
}

// Reset discards all entries for a new game.
func (l *Log) Reset() {
	l.events = l.events[:0]
	l.toBroadcast = 0
}
