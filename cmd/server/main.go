package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wdrz/curve/pkg/server"
)

func main() {
	port := pflag.IntP("port", "p", 2021, "UDP port to listen on")
	seed := pflag.Uint32P("seed", "s", uint32(time.Now().Unix()), "random generator seed")
	turningSpeed := pflag.IntP("turning-speed", "t", 6, "heading change per round in degrees (-90..90, non-zero)")
	roundsPerSec := pflag.IntP("rounds-per-sec", "v", 50, "simulation rounds per second (1..500)")
	width := pflag.IntP("width", "w", 640, "board width in pixels (1..4000)")
	height := pflag.IntP("height", "h", 480, "board height in pixels (1..4000)")
	pflag.Parse()

	if pflag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument %q\n", pflag.Arg(0))
		pflag.Usage()
		os.Exit(1)
	}

	cfg := server.Config{
		Port:         *port,
		Seed:         *seed,
		TurningSpeed: *turningSpeed,
		RoundsPerSec: *roundsPerSec,
		Width:        *width,
		Height:       *height,
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

	srv, err := server.New(cfg, sugar)
	if err != nil {
		sugar.Fatalf("startup failed: %v", err)
	}
	sugar.Infof("listening on %s (board %dx%d, %d rounds/s, turning speed %d, seed %d)",
		srv.Addr(), cfg.Width, cfg.Height, cfg.RoundsPerSec, cfg.TurningSpeed, cfg.Seed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		sugar.Fatalf("server failed: %v", err)
	}
}
