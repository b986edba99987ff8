package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fastygo/botfleet/internal/config"
	"github.com/fastygo/botfleet/pkg/logger"
)

func main() {
	root := &cli.Command{
		Name:  "botfleet",
		Usage: "Multi-account bot supervisor and control API",
		Commands: []*cli.Command{
			serveCommand(),
			workerCommand(),
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return serve(ctx)
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the control API and the worker supervisor",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return serve(ctx)
		},
	}
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding}
}
