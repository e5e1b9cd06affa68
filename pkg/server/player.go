package server

import (
	"math"
)

// Player is one worm's simulation state during a game. It references its
// owning client by registry key rather than by pointer, so an expired
// client leaves the worm coasting straight instead of dangling.
type Player struct {
	posX, posY float64
	direction  int

	number    uint8
	clientKey string
	alive     bool
}

// Pixel returns the integer pixel the worm's head currently occupies.
func (p *Player) Pixel() (int, int) {
	return int(math.Floor(p.posX)), int(math.Floor(p.posY))
}

// place puts the worm at a sub-pixel spawn position with a heading drawn
// from rng, in the draw order the protocol fixes: x, then y, then heading.
func (p *Player) place(rng *Rand, board *Board) {
	p.posX = float64(rng.Next()%uint32(board.Width())) + 0.5
	p.posY = float64(rng.Next()%uint32(board.Height())) + 0.5
	p.direction = int(rng.Next() % 360)
}

// advance turns the worm by delta degrees and moves it one unit along its
// heading.
func (p *Player) advance(delta int) {
	p.direction = ((p.direction+delta)%360 + 360) % 360
	rad := float64(p.direction) * math.Pi / 180.0
	p.posX += math.Cos(rad)
	p.posY += math.Sin(rad)
}
