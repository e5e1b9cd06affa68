package server

import (
	"net/netip"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/wdrz/curve/pkg/protocol"
)

// MinPlayers is the number of named clients required to start a game.
const MinPlayers = 2

// Game is the authoritative controller: waiting-room admission, game
// initialization, per-tick simulation and the resulting event log. All
// methods must be called from a single goroutine.
type Game struct {
	turningSpeed int

	board    *Board
	log      *Log
	rng      *Rand
	registry *Registry

	gameID         uint32
	inProgress     bool
	players        []*Player
	playersPlaying int
	numReady       int

	logger *zap.SugaredLogger
}

// NewGame returns a game controller in the waiting-room state.
func NewGame(turningSpeed, width, height int, rng *Rand, logger *zap.SugaredLogger) *Game {
	return &Game{
		turningSpeed: turningSpeed,
		board:        NewBoard(width, height),
		log:          NewLog(),
		rng:          rng,
		registry:     NewRegistry(),
		logger:       logger,
	}
}

// InProgress reports whether a game is running.
func (g *Game) InProgress() bool { return g.inProgress }

// GameID returns the identifier of the current (or most recent) game.
func (g *Game) GameID() uint32 { return g.gameID }

// Registry returns the client registry.
func (g *Game) Registry() *Registry { return g.registry }

// Log returns the event log of the current (or most recent) game.
func (g *Game) Log() *Log { return g.log }

// HandleMessage applies one decoded heartbeat. It returns the client the
// datagram now belongs to (nil if it was rejected) and whether this
// datagram started a new game, in which case the caller must restart its
// round timer.
func (g *Game) HandleMessage(key string, msg *protocol.ClientMessage, addr netip.AddrPort, now time.Time) (*Client, bool) {
	c := g.registry.Handle(key, msg, addr, now)
	if c == nil {
		return nil, false
	}
	started := false
	if !g.inProgress {
		started = g.waitingRoom(c)
	}
	return c, started
}

// waitingRoom marks a named client ready when it presses a turn key and
// starts the game once every named client is ready.
func (g *Game) waitingRoom(c *Client) bool {
	switch c.State {
	case Joined, Lost, Playing:
		if c.TurnDirection != protocol.TurnStraight {
			c.State = Ready
			g.numReady++
			g.logger.Infof("player %q ready (%d/%d)", c.Name, g.numReady, g.registry.NonObservers())
		}
	}

	if g.numReady == g.registry.NonObservers() && g.numReady >= MinPlayers {
		g.start()
		return true
	}
	return false
}

// start begins a new game: draws a fresh game id, assigns player indices
// by ascending name (endpoint key as tiebreak), resets board and log,
// announces NEW_GAME and places every worm in index order.
func (g *Game) start() {
	g.gameID = g.rng.Next()

	type entrant struct {
		name, key string
	}
	var entrants []entrant
	g.registry.Each(func(key string, c *Client) {
		if c.State != Observer {
			entrants = append(entrants, entrant{c.Name, key})
		}
	})
	sort.Slice(entrants, func(i, j int) bool {
		if entrants[i].name != entrants[j].name {
			return entrants[i].name < entrants[j].name
		}
		return entrants[i].key < entrants[j].key
	})

	g.players = g.players[:0]
	names := make([]string, 0, len(entrants))
	for i, e := range entrants {
		g.players = append(g.players, &Player{
			number:    uint8(i),
			clientKey: e.key,
			alive:     true,
		})
		g.registry.Get(e.key).State = Playing
		names = append(names, e.name)
	}

	g.board.Reset()
	g.log.Reset()
	g.playersPlaying = len(g.players)
	g.numReady = 0

	g.log.Append(protocol.NewGameEvent(0, uint32(g.board.Width()), uint32(g.board.Height()), names))

	for _, p := range g.players {
		g.initPlayer(p)
	}

	g.inProgress = true
	g.logger.Infof("game %d started with %d players: %v", g.gameID, len(g.players), names)
}

// initPlayer spawns one worm. A spawn on an already eaten pixel eliminates
// the worm immediately; otherwise its pixel is claimed and announced.
func (g *Game) initPlayer(p *Player) {
	p.place(g.rng, g.board)
	if x, y := p.Pixel(); g.board.Contains(x, y) {
		g.eliminate(p)
	} else {
		g.plot(p)
	}
}

// Tick advances the simulation one round. After each worm is processed the
// game ends as soon as at most one worm remains.
func (g *Game) Tick() {
	if !g.inProgress {
		return
	}

	for _, p := range g.players {
		if p.alive {
			g.movePlayer(p, g.turnDelta(p))
		}

		if g.playersPlaying <= 1 {
			g.log.Append(protocol.GameOverEvent(g.log.NextNumber()))
			g.inProgress = false
			g.logger.Infof("game %d over", g.gameID)
			return
		}
	}
}

// turnDelta resolves a worm's heading change for this round. A worm whose
// client has expired or been superseded coasts straight.
func (g *Game) turnDelta(p *Player) int {
	c := g.registry.Get(p.clientKey)
	if c == nil || c.State != Playing {
		return 0
	}
	switch c.TurnDirection {
	case protocol.TurnRight:
		return g.turningSpeed
	case protocol.TurnLeft:
		return -g.turningSpeed
	}
	return 0
}

// movePlayer advances one worm. Staying within the same pixel produces no
// event; leaving the board or entering an eaten pixel eliminates the worm;
// any other pixel is claimed and announced.
func (g *Game) movePlayer(p *Player, delta int) {
	prevX, prevY := p.Pixel()
	p.advance(delta)
	x, y := p.Pixel()
	if x == prevX && y == prevY {
		return
	}

	if !g.board.OnBoard(x, y) || g.board.Contains(x, y) {
		g.eliminate(p)
	} else {
		g.plot(p)
	}
}

// plot claims the worm's current pixel and appends the PIXEL event.
func (g *Game) plot(p *Player) {
	x, y := p.Pixel()
	g.board.Insert(x, y)
	g.log.Append(protocol.PixelEvent(g.log.NextNumber(), p.number, uint32(x), uint32(y)))
}

// eliminate removes the worm from play and appends PLAYER_ELIMINATED.
func (g *Game) eliminate(p *Player) {
	p.alive = false
	if c := g.registry.Get(p.clientKey); c != nil && c.State == Playing {
		c.State = Lost
	}
	g.log.Append(protocol.PlayerEliminatedEvent(g.log.NextNumber(), p.number))
	g.playersPlaying--
}

// ExpireClients drops clients that have been silent too long.
func (g *Game) ExpireClients(now time.Time) {
	if n := g.registry.Expire(now); n > 0 {
		g.logger.Infof("disconnected %d inactive client(s)", n)
	}
}
