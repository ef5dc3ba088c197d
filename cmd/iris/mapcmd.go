package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/irisdigital/ife/internal/slidefile"
	"github.com/irisdigital/ife/pkg/ife"
)

func mapCmd() *cli.Command {
	var (
		slidePath string
		above     uint64
	)

	return &cli.Command{
		Name:  "map",
		Usage: "Enumerate every block of an .iris slide ordered by offset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "slide",
				Aliases:     []string{"s"},
				Usage:       "path to .iris file",
				Destination: &slidePath,
				Required:    true,
			},
			&cli.Uint64Flag{
				Name:        "above",
				Usage:       "only list blocks at or above this offset (pre-write inspection)",
				Destination: &above,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			f, err := slidefile.Open(slidePath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open slide %q: %v", slidePath, err), 1)
			}
			defer func() { _ = f.Close() }()

			m, err := ife.GenerateFileMap(f.Region())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: generate file map: %v", err), 1)
			}

			entries := m.Entries
			if c.IsSet("above") {
				entries = m.UpperBound(above)
			}
			fmt.Printf("%s: %d blocks, %s\n", slidePath, len(entries), formatBytes(m.FileSize))
			for _, entry := range entries {
				fmt.Printf("%-22s off=%-12d size=%s\n",
					entry.Kind, entry.Block.Offset, formatBytes(entry.Size))
			}
			return nil
		},
	}
}
