package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wdrz/curve/pkg/client"
)

func main() {
	name := pflag.StringP("name", "n", "", "player name (empty to join as observer)")
	serverPort := pflag.IntP("port", "p", 2021, "game server UDP port")
	guiServer := pflag.StringP("gui-server", "i", "localhost", "GUI server host")
	guiPort := pflag.IntP("gui-port", "r", 20210, "GUI server TCP port")
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: screen-worms-client game_server [-n player_name] [-p n] [-i gui_server] [-r n]")
		os.Exit(1)
	}

	cfg := client.Config{
		GameServer: pflag.Arg(0),
		ServerPort: *serverPort,
		PlayerName: *name,
		GUIServer:  *guiServer,
		GUIPort:    *guiPort,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	c, err := client.New(cfg, sugar)
	if err != nil {
		sugar.Fatalf("startup failed: %v", err)
	}
	sugar.Infof("connected to game server %s:%d, gui %s:%d",
		cfg.GameServer, cfg.ServerPort, cfg.GUIServer, cfg.GUIPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil {
		sugar.Fatalf("client failed: %v", err)
	}
}
