package server

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wdrz/curve/pkg/protocol"
)

func newTestGame(seed uint32, width, height, turningSpeed int) *Game {
	return NewGame(turningSpeed, width, height, NewRand(seed), zap.NewNop().Sugar())
}

// join delivers one heartbeat from the given endpoint.
func join(t *testing.T, g *Game, key string, addr netip.AddrPort, session uint64, turn uint8, name string) bool {
	t.Helper()
	c, started := g.HandleMessage(key, heartbeat(session, turn, name), addr, time.Now())
	require.NotNil(t, c)
	return started
}

// startTwoPlayerGame reproduces scenario S1: Alice and Bob join and ready
// up on a seed-777 server.
func startTwoPlayerGame(t *testing.T, g *Game) {
	t.Helper()
	join(t, g, "alice", addrA, 100, 0, "Alice")
	join(t, g, "bob", addrB, 101, 0, "Bob")
	require.False(t, join(t, g, "alice", addrA, 100, 1, "Alice"))
	require.True(t, join(t, g, "bob", addrB, 101, 1, "Bob"))
}

func TestGameStartDeterministic(t *testing.T) {
	g := newTestGame(777, 800, 600, 6)
	startTwoPlayerGame(t, g)

	require.True(t, g.InProgress())

	// The game id is the first draw after seeding with 777.
	assert.Equal(t, uint32(777), g.GameID())

	log := g.Log()
	require.Equal(t, 3, log.Len())

	newGame := log.At(0)
	assert.Equal(t, uint32(0), newGame.Number)
	assert.Equal(t, protocol.EventNewGame, newGame.Type)
	assert.Equal(t, uint32(800), newGame.MaxX)
	assert.Equal(t, uint32(600), newGame.MaxY)
	assert.Equal(t, []string{"Alice", "Bob"}, newGame.Players)

	// Spawn draws follow in index order: x, y, heading per player.
	alice := log.At(1)
	assert.Equal(t, protocol.EventPixel, alice.Type)
	assert.Equal(t, uint8(0), alice.PlayerNumber)
	assert.Equal(t, uint32(2353417571%800), alice.X)
	assert.Equal(t, uint32(1736751699%600), alice.Y)

	bob := log.At(2)
	assert.Equal(t, protocol.EventPixel, bob.Type)
	assert.Equal(t, uint8(1), bob.PlayerNumber)
	assert.Equal(t, uint32(2273420818%800), bob.X)
	assert.Equal(t, uint32(3162370531%600), bob.Y)
}

func TestGamePlayerIndexOrder(t *testing.T) {
	g := newTestGame(1, 640, 480, 6)

	// Join order must not matter: indices follow ascending names.
	join(t, g, "bob", addrB, 101, 0, "Bob")
	join(t, g, "alice", addrA, 100, 0, "Alice")
	join(t, g, "bob", addrB, 101, 1, "Bob")
	join(t, g, "alice", addrA, 100, 1, "Alice")

	require.True(t, g.InProgress())
	assert.Equal(t, []string{"Alice", "Bob"}, g.Log().At(0).Players)
}

func TestObserverDoesNotStartGame(t *testing.T) {
	g := newTestGame(1, 640, 480, 6)

	join(t, g, "alice", addrA, 100, 1, "Alice")
	join(t, g, "watcher", addrB, 101, 1, "")
	join(t, g, "alice", addrA, 100, 1, "Alice")

	assert.False(t, g.InProgress())
	assert.Equal(t, 0, g.Log().Len())
}

func TestGameRequiresAllNamedReady(t *testing.T) {
	g := newTestGame(1, 640, 480, 6)

	join(t, g, "alice", addrA, 100, 1, "Alice")
	join(t, g, "bob", addrB, 101, 0, "Bob")
	assert.False(t, g.InProgress())

	join(t, g, "bob", addrB, 101, 2, "Bob")
	assert.True(t, g.InProgress())
}

func TestGameDeterministicLogs(t *testing.T) {
	run := func() [][]byte {
		g := newTestGame(2021, 100, 100, 30)
		startTwoPlayerGame(t, g)
		for i := 0; i < 50 && g.InProgress(); i++ {
			g.Tick()
		}
		var wires [][]byte
		for i := 0; i < g.Log().Len(); i++ {
			wires = append(wires, g.Log().At(i).Wire())
		}
		return wires
	}

	assert.Equal(t, run(), run())
}

func TestGameLogInvariants(t *testing.T) {
	g := newTestGame(777, 50, 50, 90)
	startTwoPlayerGame(t, g)

	// A tiny board ends the game quickly.
	for i := 0; i < 10000 && g.InProgress(); i++ {
		g.Tick()
	}
	require.False(t, g.InProgress())

	log := g.Log()
	seen := make(map[pixel]bool)
	gameOvers := 0
	for i := 0; i < log.Len(); i++ {
		e := log.At(i)

		// Event numbers equal their index.
		assert.Equal(t, uint32(i), e.Number)

		switch e.Type {
		case protocol.EventPixel:
			// No pixel is ever claimed twice.
			p := pixel{int(e.X), int(e.Y)}
			assert.False(t, seen[p], "pixel (%d,%d) repeated", e.X, e.Y)
			seen[p] = true
		case protocol.EventGameOver:
			gameOvers++
			assert.Equal(t, log.Len()-1, i, "GAME_OVER must be last")
		}
	}
	assert.Equal(t, 1, gameOvers)
}

func TestGameSelfCollisionEliminates(t *testing.T) {
	g := newTestGame(777, 800, 600, 6)
	startTwoPlayerGame(t, g)

	// Force Alice's next step into an already eaten pixel.
	alice := g.players[0]
	g.board.Insert(100, 100)
	alice.posX, alice.posY = 99.5, 100.5
	alice.direction = 0 // heading +x, straight into (100,100)
	g.registry.Get("alice").TurnDirection = protocol.TurnStraight

	before := g.Log().Len()
	g.Tick()

	elim := g.Log().At(before)
	assert.Equal(t, protocol.EventPlayerEliminated, elim.Type)
	assert.Equal(t, uint8(0), elim.PlayerNumber)

	// One worm left: the same tick ends the game.
	last := g.Log().At(g.Log().Len() - 1)
	assert.Equal(t, protocol.EventGameOver, last.Type)
	assert.False(t, g.InProgress())
	assert.Equal(t, Lost, g.registry.Get("alice").State)
}

func TestGameWallCollisionEliminates(t *testing.T) {
	g := newTestGame(777, 800, 600, 6)
	startTwoPlayerGame(t, g)

	bob := g.players[1]
	bob.posX, bob.posY = 799.5, 10.5
	bob.direction = 0 // heading +x, off the right edge

	before := g.Log().Len()
	g.Tick()

	var elim *protocol.Event
	for i := before; i < g.Log().Len(); i++ {
		if e := g.Log().At(i); e.Type == protocol.EventPlayerEliminated {
			elim = e
		}
	}
	require.NotNil(t, elim)
	assert.Equal(t, uint8(1), elim.PlayerNumber)
}

func TestGameOverOnLastStanding(t *testing.T) {
	g := newTestGame(1, 640, 480, 6)

	join(t, g, "alice", addrA, 100, 0, "Alice")
	join(t, g, "bob", addrB, 101, 0, "Bob")
	join(t, g, "carol", addrC, 102, 0, "Carol")
	join(t, g, "alice", addrA, 100, 1, "Alice")
	join(t, g, "bob", addrB, 101, 1, "Bob")
	join(t, g, "carol", addrC, 102, 1, "Carol")
	require.True(t, g.InProgress())
	require.Equal(t, 3, g.playersPlaying)

	// March players 0 and 1 off the board on consecutive ticks.
	g.players[0].posX, g.players[0].posY, g.players[0].direction = 0.5, 0.5, 180
	g.Tick()
	require.Equal(t, 2, g.playersPlaying)
	require.True(t, g.InProgress())

	g.players[1].posX, g.players[1].posY, g.players[1].direction = 0.5, 0.5, 180
	g.Tick()

	assert.False(t, g.InProgress())
	assert.Equal(t, protocol.EventGameOver, g.Log().At(g.Log().Len()-1).Type)
}

func TestExpiredPlayerCoastsStraight(t *testing.T) {
	g := newTestGame(777, 4000, 4000, 6)
	startTwoPlayerGame(t, g)

	// Alice's client vanishes mid-game; her worm keeps moving straight.
	g.registry.drop("alice")
	alice := g.players[0]
	alice.posX, alice.posY, alice.direction = 2000.5, 2000.5, 0
	require.True(t, alice.alive)

	before := g.Log().Len()
	g.Tick()

	require.Greater(t, g.Log().Len(), before)
	first := g.Log().At(before)
	assert.Equal(t, protocol.EventPixel, first.Type)
	assert.Equal(t, uint8(0), first.PlayerNumber)
	assert.Equal(t, uint32(2001), first.X)
	assert.Equal(t, uint32(2000), first.Y)
	assert.Equal(t, 0, alice.direction)
}

func TestNewGameResetsLog(t *testing.T) {
	g := newTestGame(777, 50, 50, 90)
	startTwoPlayerGame(t, g)
	for i := 0; i < 10000 && g.InProgress(); i++ {
		g.Tick()
	}
	require.False(t, g.InProgress())
	firstID := g.GameID()

	// Both ready up again.
	join(t, g, "alice", addrA, 100, 1, "Alice")
	join(t, g, "bob", addrB, 101, 1, "Bob")

	require.True(t, g.InProgress())
	assert.NotEqual(t, firstID, g.GameID())
	assert.Equal(t, protocol.EventNewGame, g.Log().At(0).Type)
	assert.Equal(t, uint32(0), g.Log().At(0).Number)
	assert.Equal(t, 0, g.Log().ToBroadcast())
}
