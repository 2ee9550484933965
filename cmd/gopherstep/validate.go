package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/definition"
	cli "github.com/urfave/cli/v3"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate workflow definition files or directories",
		ArgsUsage: "<path>...",
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.NArg() == 0 {
				return errors.New("at least one file or directory is required")
			}
			invalid := 0
			for _, path := range command.Args().Slice() {
				invalid += validatePath(command.Root().Writer, path)
			}
			if invalid > 0 {
				return fmt.Errorf("%d invalid definition(s)", invalid)
			}
			return nil
		},
	}
}

func validatePath(w io.Writer, path string) int {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(w, "%s: %v\n", path, err)
		return 1
	}
	if !info.IsDir() {
		return reportDefinition(w, path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		fmt.Fprintf(w, "%s: %v\n", path, err)
		return 1
	}
	invalid := 0
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			if !e.IsDir() {
				invalid += reportDefinition(w, filepath.Join(path, e.Name()))
			}
		}
	}
	return invalid
}

func reportDefinition(w io.Writer, path string) int {
	def, err := definition.LoadFile(path)
	if err == nil {
		fmt.Fprintf(w, "%s: ok (%s, %d states, digest %s)\n", path, def.Name, len(def.States), def.Digest)
		return 0
	}
	var de *definition.DefinitionError
	if !errors.As(err, &de) {
		fmt.Fprintf(w, "%s: %v\n", path, err)
		return 1
	}
	fmt.Fprintf(w, "%s: invalid\n", path)
	for _, p := range de.Problems {
		fmt.Fprintf(w, "  - %v\n", p)
	}
	return 1
}
