package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maax3v3/beadboard/internal/cli"
	"github.com/maax3v3/beadboard/internal/config"
	"github.com/maax3v3/beadboard/internal/pipeline"
	"github.com/maax3v3/beadboard/internal/renderer"
	"github.com/maax3v3/beadboard/internal/server"
	"github.com/maax3v3/beadboard/internal/session"
)

func main() {
	args, err := cli.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg := config.Default()
	if args.ConfigPath != "" {
		cfg, err = config.LoadConfigFile(args.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args.Serving() {
		err = serve(ctx, args, cfg)
	} else {
		err = pipeline.Run(ctx, args, cfg, renderer.NewBitmapFont())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, args cli.Config, cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg.Server.Addr = args.ServeAddr
	if args.PalettePath != "" {
		cfg.Palette = args.PalettePath
	}
	if args.Width != 0 {
		cfg.Board.Width = args.Width
	}
	if args.Height != 0 {
		cfg.Board.Height = args.Height
	}

	p, err := cfg.LoadPalette()
	if err != nil {
		return fmt.Errorf("loading palette: %w", err)
	}
	sess := session.New(cfg.SessionOptions(p, logger))
	return server.New(sess, cfg, logger).ListenAndServe(ctx)
}
