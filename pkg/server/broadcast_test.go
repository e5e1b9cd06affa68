package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdrz/curve/pkg/protocol"
)

func TestBuildDatagramEmptyLog(t *testing.T) {
	g := newTestGame(1, 640, 480, 6)
	buf, next := g.BuildDatagram(0)
	assert.Nil(t, buf)
	assert.Equal(t, 0, next)
}

func TestBuildDatagramLayout(t *testing.T) {
	g := newTestGame(1, 640, 480, 6)
	g.gameID = 7

	ng := protocol.NewGameEvent(0, 640, 480, []string{"Alice", "Bob"})
	px := protocol.PixelEvent(1, 0, 10, 20)
	g.log.Append(ng)
	g.log.Append(px)

	buf, next := g.BuildDatagram(0)
	require.NotNil(t, buf)
	assert.Equal(t, 2, next)

	want := protocol.AppendUint32(nil, 7)
	want = append(want, ng.Wire()...)
	want = append(want, px.Wire()...)
	assert.Equal(t, want, buf)

	// Starting past the end yields nothing.
	buf, next = g.BuildDatagram(2)
	assert.Nil(t, buf)
	assert.Equal(t, 2, next)
}

func TestBuildDatagramRespectsMTU(t *testing.T) {
	g := newTestGame(1, 640, 480, 6)
	g.gameID = 1

	// 22 bytes each: 24 fit beside the 4-byte game id, the 25th does not.
	for i := 0; i < 30; i++ {
		g.log.Append(protocol.PixelEvent(uint32(i), 0, uint32(i), 0))
	}

	buf, next := g.BuildDatagram(0)
	require.NotNil(t, buf)
	assert.Equal(t, 24, next)
	assert.Equal(t, 4+24*22, len(buf))
	assert.LessOrEqual(t, len(buf), protocol.MaxDatagramSize)

	buf, next = g.BuildDatagram(next)
	require.NotNil(t, buf)
	assert.Equal(t, 30, next)
	assert.LessOrEqual(t, len(buf), protocol.MaxDatagramSize)

	buf, _ = g.BuildDatagram(next)
	assert.Nil(t, buf)
}

func TestBuildDatagramFitsLargeNewGame(t *testing.T) {
	g := newTestGame(1, 4000, 4000, 6)

	names := make([]string, 24)
	for i := range names {
		names[i] = strings.Repeat("a", protocol.MaxPlayerName-1) + string(rune('a'+i))
	}
	ng := protocol.NewGameEvent(0, 4000, 4000, names)
	g.log.Append(ng)

	buf, next := g.BuildDatagram(0)
	require.NotNil(t, buf)
	assert.Equal(t, 1, next)
	assert.LessOrEqual(t, len(buf), protocol.MaxDatagramSize)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Port: 2021, TurningSpeed: 6, RoundsPerSec: 50, Width: 640, Height: 480}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"width zero", func(c *Config) { c.Width = 0 }},
		{"width too large", func(c *Config) { c.Width = MaxBoardDim + 1 }},
		{"height zero", func(c *Config) { c.Height = 0 }},
		{"turning speed zero", func(c *Config) { c.TurningSpeed = 0 }},
		{"turning speed too large", func(c *Config) { c.TurningSpeed = 91 }},
		{"turning speed too small", func(c *Config) { c.TurningSpeed = -91 }},
		{"rounds zero", func(c *Config) { c.RoundsPerSec = 0 }},
		{"rounds too large", func(c *Config) { c.RoundsPerSec = 501 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	negative := valid
	negative.TurningSpeed = -45
	assert.NoError(t, negative.Validate())
}
