package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wdrz/curve/pkg/protocol"
)

// Config holds server configuration.
type Config struct {
	Port         int
	Seed         uint32
	TurningSpeed int
	RoundsPerSec int
	Width        int
	Height       int
}

// MaxBoardDim bounds the board dimensions.
const MaxBoardDim = 4000

// Validate checks the configured ranges.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", c.Port)
	}
	if c.Width < 1 || c.Width > MaxBoardDim || c.Height < 1 || c.Height > MaxBoardDim {
		return fmt.Errorf("board size must be in 1..%d, got %dx%d", MaxBoardDim, c.Width, c.Height)
	}
	if c.TurningSpeed < -90 || c.TurningSpeed > 90 || c.TurningSpeed == 0 {
		return fmt.Errorf("turning speed must be in -90..90 and non-zero, got %d", c.TurningSpeed)
	}
	if c.RoundsPerSec < 1 || c.RoundsPerSec > 500 {
		return fmt.Errorf("rounds per second must be in 1..500, got %d", c.RoundsPerSec)
	}
	return nil
}

// TickInterval returns the round timer period.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.RoundsPerSec)
}

// datagram is one received client heartbeat, raw.
type datagram struct {
	data []byte
	addr netip.AddrPort
}

// Server owns the UDP socket and the game state. A reader goroutine
// forwards raw datagrams over a channel to the single loop that owns all
// state, so tick execution and broadcast are naturally serialized.
type Server struct {
	cfg    Config
	conn   *net.UDPConn
	game   *Game
	logger *zap.SugaredLogger

	packets chan datagram
}

// New binds the dual-stack UDP wildcard socket and prepares the game in
// the waiting-room state.
func New(cfg Config, logger *zap.SugaredLogger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}

	rng := NewRand(cfg.Seed)
	return &Server{
		cfg:     cfg,
		conn:    conn,
		game:    NewGame(cfg.TurningSpeed, cfg.Width, cfg.Height, rng, logger),
		logger:  logger,
		packets: make(chan datagram, 64),
	}, nil
}

// Game returns the game controller.
func (s *Server) Game() *Game {
	return s.game
}

// Addr returns the bound socket address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Run services the socket and the round timer until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return s.conn.Close()
	})
	g.Go(func() error {
		return s.readLoop(ctx)
	})
	g.Go(func() error {
		return s.loop(ctx)
	})

	err := g.Wait()
	if errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readLoop receives datagrams and forwards them to the state loop. Only
// datagrams of a legal heartbeat size are forwarded at all.
func (s *Server) readLoop(ctx context.Context) error {
	buf := make([]byte, 600)
	for {
		n, addr, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return err
		}
		if n < 13 || n > 13+protocol.MaxPlayerName {
			s.logger.Debugf("dropping datagram of length %d from %s", n, addr)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case s.packets <- datagram{data: data, addr: addr}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// loop is the single goroutine that owns all game state.
func (s *Server) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-ticker.C:
			s.game.ExpireClients(now)
			s.game.Tick()
			s.broadcastNewEvents()

		case pkt := <-s.packets:
			if s.handleDatagram(pkt) {
				// The game just started: the first round happens a
				// full interval from now.
				ticker.Reset(s.cfg.TickInterval())
			}
		}
	}
}

// handleDatagram decodes and applies one heartbeat, then serves the
// sender's catch-up request. It reports whether a new game started.
func (s *Server) handleDatagram(pkt datagram) bool {
	ap := pkt.addr

	msg, err := protocol.DecodeClientMessage(pkt.data)
	if err != nil {
		s.logger.Debugf("ignoring datagram from %s: %v", ap, err)
		return false
	}

	c, started := s.game.HandleMessage(EndpointKey(ap), msg, ap, time.Now())
	if c == nil {
		s.logger.Debugf("datagram from %s not admitted", ap)
		return false
	}

	s.sendBacklog(c.Addr, int(msg.NextExpectedEventNo))
	return started
}
