package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wdrz/curve/pkg/protocol"
)

// HeartbeatInterval is how often the client reports to the server.
const HeartbeatInterval = 30 * time.Millisecond

// Config holds client configuration.
type Config struct {
	GameServer string
	ServerPort int
	PlayerName string
	GUIServer  string
	GUIPort    int
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.GameServer == "" {
		return errors.New("game server address is required")
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("server port must be in 1..65535, got %d", c.ServerPort)
	}
	if c.GUIPort < 1 || c.GUIPort > 65535 {
		return fmt.Errorf("gui port must be in 1..65535, got %d", c.GUIPort)
	}
	if c.PlayerName != "" && !protocol.ValidPlayerName(c.PlayerName) {
		return fmt.Errorf("player name %q must be 1..%d printable ASCII bytes", c.PlayerName, protocol.MaxPlayerName)
	}
	return nil
}

// Client connects the game server (UDP) to the GUI front-end (TCP) through
// a Session. A reader goroutine per socket forwards raw input to the single
// loop owning the session state.
type Client struct {
	cfg     Config
	session *Session
	udp     net.Conn
	gui     *net.TCPConn
	logger  *zap.SugaredLogger
}

// New resolves and connects both peers. The session id anchoring this
// client's identity is the wall clock at startup.
func New(cfg Config, logger *zap.SugaredLogger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	udp, err := net.Dial("udp", net.JoinHostPort(cfg.GameServer, strconv.Itoa(cfg.ServerPort)))
	if err != nil {
		return nil, fmt.Errorf("connect game server: %w", err)
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(cfg.GUIServer, strconv.Itoa(cfg.GUIPort)))
	if err != nil {
		udp.Close()
		return nil, fmt.Errorf("connect gui: %w", err)
	}
	gui := conn.(*net.TCPConn)
	if err := gui.SetNoDelay(true); err != nil {
		udp.Close()
		gui.Close()
		return nil, fmt.Errorf("set TCP_NODELAY: %w", err)
	}

	return &Client{
		cfg:     cfg,
		session: NewSession(cfg.PlayerName, uint64(time.Now().Unix())),
		udp:     udp,
		gui:     gui,
		logger:  logger,
	}, nil
}

// Session returns the client's session state.
func (c *Client) Session() *Session {
	return c.session
}

// Run services both sockets and the heartbeat timer until ctx is canceled
// or a fatal protocol error occurs.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	udpCh := make(chan []byte, 16)
	guiCh := make(chan string, 16)

	g.Go(func() error {
		<-ctx.Done()
		c.udp.Close()
		c.gui.Close()
		return nil
	})
	g.Go(func() error {
		return c.readServer(ctx, udpCh)
	})
	g.Go(func() error {
		return c.readGUI(ctx, guiCh)
	})
	g.Go(func() error {
		return c.loop(ctx, udpCh, guiCh)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readServer forwards server datagrams to the state loop.
func (c *Client) readServer(ctx context.Context, out chan<- []byte) error {
	buf := make([]byte, 600)
	for {
		n, err := c.udp.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("read game server: %w", err)
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case out <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readGUI forwards GUI lines to the state loop. The GUI hanging up is
// fatal for the client.
func (c *Client) readGUI(ctx context.Context, out chan<- string) error {
	scanner := bufio.NewScanner(c.gui)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("read gui: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("gui disconnected")
}

// loop owns the session state: heartbeats on the timer, server datagrams
// and GUI key messages as they arrive.
func (c *Client) loop(ctx context.Context, udpCh <-chan []byte, guiCh <-chan string) error {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			hb := c.session.Heartbeat()
			if n, err := c.udp.Write(hb); err != nil || n != len(hb) {
				c.logger.Debugf("heartbeat write failed: n=%d err=%v", n, err)
			}

		case data := <-udpCh:
			if err := c.session.HandleServerDatagram(data); err != nil {
				return err
			}
			if err := c.flushGUILines(); err != nil {
				return err
			}

		case line := <-guiCh:
			if !c.session.HandleGUILine(line) {
				c.logger.Infof("unrecognized gui message %q, ignoring", line)
			}
		}
	}
}

// flushGUILines writes queued event lines to the GUI.
func (c *Client) flushGUILines() error {
	for _, line := range c.session.TakeLines() {
		if _, err := c.gui.Write([]byte(line)); err != nil {
			return fmt.Errorf("write gui: %w", err)
		}
	}
	return nil
}
