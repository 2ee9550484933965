package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/RealZimboGuy/gopherstep/internal/engine"
	"github.com/RealZimboGuy/gopherstep/internal/tasks"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/definition"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	cli "github.com/urfave/cli/v3"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run one definition to completion in memory and print the execution",
		ArgsUsage: "<definition-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Execution input as a JSON document",
				Value:   "{}",
			},
			&cli.StringFlag{
				Name:  "input-file",
				Usage: "Read the execution input from a JSON file",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			gopherstep.SetupLogger(command.String("log-level"))
			if command.NArg() != 1 {
				return errors.New("exactly one definition file is required")
			}
			def, err := definition.LoadFile(command.Args().First())
			if err != nil {
				return err
			}

			raw := []byte(command.String("input"))
			if f := command.String("input-file"); f != "" {
				if raw, err = os.ReadFile(f); err != nil {
					return err
				}
			}
			var input any
			if err := json.Unmarshal(raw, &input); err != nil {
				return fmt.Errorf("input is not valid JSON: %w", err)
			}

			m := engine.NewManager(tasks.NewBuiltinRegistry(tasks.NewEnv(nil)))
			if err := m.RegisterDefinition(ctx, def.Name, def); err != nil {
				return err
			}
			view, runErr := m.Run(ctx, def.Name, input)
			if view != nil {
				if err := printView(command.Root().Writer, view); err != nil {
					return err
				}
			}
			return runErr
		},
	}
}

func printView(w io.Writer, view *domain.ExecutionView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
