package server

import (
	"net/netip"
	"time"

	"github.com/wdrz/curve/pkg/protocol"
)

// Limits on the client population.
const (
	MaxClients      = 25
	InactivityLimit = 2 * time.Second
)

// ClientState is the lifecycle state of a connected client.
type ClientState int

const (
	// Observer receives events but has no worm and cannot ready up.
	Observer ClientState = iota
	// Joined has a name and waits in the waiting room.
	Joined
	// Ready has pressed a turn key in the waiting room.
	Ready
	// Playing owns a live worm in the current game.
	Playing
	// Lost owned a worm that was eliminated in the current game.
	Lost
)

// Client is the per-endpoint session record.
type Client struct {
	State         ClientState
	Name          string
	SessionID     uint64
	LastSeen      time.Time
	TurnDirection uint8
	Addr          netip.AddrPort
}

// EndpointKey canonicalizes a peer address. IPv4-mapped IPv6 addresses are
// unmapped first, so the same peer yields the same key whichever family the
// kernel reported it in.
func EndpointKey(ap netip.AddrPort) string {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()).String()
}

// Registry maps endpoint keys to client records and reserves the player
// names in use.
type Registry struct {
	clients      map[string]*Client
	usedNames    map[string]struct{}
	nonObservers int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients:   make(map[string]*Client),
		usedNames: make(map[string]struct{}),
	}
}

// Get returns the client stored under key, or nil.
func (r *Registry) Get(key string) *Client {
	return r.clients[key]
}

// Len returns the number of known clients.
func (r *Registry) Len() int {
	return len(r.clients)
}

// NonObservers returns the number of clients with a non-empty name.
func (r *Registry) NonObservers() int {
	return r.nonObservers
}

// Each calls fn for every known client.
func (r *Registry) Each(fn func(key string, c *Client)) {
	for key, c := range r.clients {
		fn(key, c)
	}
}

// Handle applies one heartbeat datagram to the registry and returns the
// client record it now belongs to, or nil if the datagram must be ignored.
//
// Unknown endpoints are admitted subject to the population cap and name
// rules. For known endpoints a lesser session id is stale, a greater one
// supersedes the old record entirely (the endpoint re-enters as a fresh
// client, possibly under a new name), and an equal one refreshes liveness
// and turn direction provided the name still matches.
func (r *Registry) Handle(key string, msg *protocol.ClientMessage, addr netip.AddrPort, now time.Time) *Client {
	c, known := r.clients[key]
	if !known {
		return r.admit(key, msg, addr, now)
	}

	switch {
	case msg.SessionID < c.SessionID:
		return nil
	case msg.SessionID > c.SessionID:
		// Validate the successor before discarding the old record, so a
		// rejected supersession leaves the endpoint untouched.
		if msg.PlayerName != "" && msg.PlayerName != c.Name {
			if _, taken := r.usedNames[msg.PlayerName]; taken {
				return nil
			}
			if !protocol.ValidPlayerName(msg.PlayerName) {
				return nil
			}
		}
		r.drop(key)
		return r.admit(key, msg, addr, now)
	case msg.PlayerName != c.Name:
		return nil
	default:
		c.LastSeen = now
		c.TurnDirection = msg.TurnDirection
		return c
	}
}

// admit inserts a fresh client record, or returns nil if the datagram
// fails the admission rules.
func (r *Registry) admit(key string, msg *protocol.ClientMessage, addr netip.AddrPort, now time.Time) *Client {
	if len(r.clients) >= MaxClients {
		return nil
	}
	if msg.PlayerName != "" {
		if _, taken := r.usedNames[msg.PlayerName]; taken {
			return nil
		}
		if !protocol.ValidPlayerName(msg.PlayerName) {
			return nil
		}
	}

	c := &Client{
		State:         Observer,
		Name:          msg.PlayerName,
		SessionID:     msg.SessionID,
		LastSeen:      now,
		TurnDirection: msg.TurnDirection,
		Addr:          addr,
	}
	if c.Name != "" {
		c.State = Joined
		r.usedNames[c.Name] = struct{}{}
		r.nonObservers++
	}
	r.clients[key] = c
	return c
}

// drop removes the record under key, releasing its name.
func (r *Registry) drop(key string) {
	c, ok := r.clients[key]
	if !ok {
		return
	}
	if c.Name != "" {
		delete(r.usedNames, c.Name)
		r.nonObservers--
	}
	delete(r.clients, key)
}

// Expire removes every client that has been silent for longer than
// InactivityLimit and returns how many were dropped.
func (r *Registry) Expire(now time.Time) int {
	dropped := 0
	for key, c := range r.clients {
		if c.LastSeen.Add(InactivityLimit).Before(now) {
			r.drop(key)
			dropped++
		}
	}
	return dropped
}
