package server

import (
	"net/netip"

	"github.com/wdrz/curve/pkg/protocol"
)

// BuildDatagram packs log entries starting at index from into one outgoing
// datagram: the current game id followed by as many whole event records as
// fit under the MTU bound. It returns the datagram and the index of the
// first event that did not fit. A nil datagram means no event was packed.
func (g *Game) BuildDatagram(from int) ([]byte, int) {
	buf := make([]byte, 0, protocol.MaxDatagramSize)
	buf = protocol.AppendUint32(buf, g.gameID)

	for from < g.log.Len() && len(buf)+g.log.At(from).WireSize() <= protocol.MaxDatagramSize {
		buf = append(buf, g.log.At(from).Wire()...)
		from++
	}

	if len(buf) == 4 {
		return nil, from
	}
	return buf, from
}

// broadcastNewEvents pushes every event appended since the last broadcast
// to all known clients, then advances the log's broadcast cursor.
func (s *Server) broadcastNewEvents() {
	from := s.game.Log().ToBroadcast()
	for {
		buf, next := s.game.BuildDatagram(from)
		if buf == nil {
			break
		}
		from = next

		s.game.Registry().Each(func(_ string, c *Client) {
			s.send(buf, c.Addr)
		})
	}
	s.game.Log().MarkBroadcast()
}

// sendBacklog replays the log from the event number a client reported as
// next expected, letting it recover from lost datagrams.
func (s *Server) sendBacklog(addr netip.AddrPort, from int) {
	for {
		buf, next := s.game.BuildDatagram(from)
		if buf == nil {
			return
		}
		from = next
		if !s.send(buf, addr) {
			return
		}
	}
}

// send writes one datagram, tolerating transient failures: an abandoned
// send is recovered later through the catch-up path.
func (s *Server) send(buf []byte, addr netip.AddrPort) bool {
	n, err := s.conn.WriteToUDPAddrPort(buf, addr)
	if err != nil || n != len(buf) {
		s.logger.Debugf("send to %s failed: n=%d err=%v", addr, n, err)
		return false
	}
	return true
}
