package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/RealZimboGuy/gopherstep/internal/config"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "gopherstep",
		Usage:                 "Run and inspect state machine workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars(config.LOG_LEVEL),
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewValidateCommand(),
			NewRunCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("gopherstep exited with error", "error", err)
		os.Exit(1)
	}
}
