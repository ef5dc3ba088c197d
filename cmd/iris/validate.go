package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"github.com/zeebo/blake3"

	"github.com/irisdigital/ife/internal/slidefile"
	"github.com/irisdigital/ife/pkg/ife"
)

func validateCmd() *cli.Command {
	var (
		slidePath string
		digest    bool
	)

	return &cli.Command{
		Name:  "validate",
		Usage: "Tree-validate the structure of an .iris slide",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "slide",
				Aliases:     []string{"s"},
				Usage:       "path to .iris file",
				Destination: &slidePath,
				Required:    true,
			},
			&cli.BoolFlag{
				Name:        "digest",
				Usage:       "print blake3 digests of the file and each tile payload",
				Destination: &digest,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			f, err := slidefile.Open(slidePath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open slide %q: %v", slidePath, err), 1)
			}
			defer func() { _ = f.Close() }()

			result := ife.ValidateFileStructure(f.Region())
			if result.Failed() {
				return cli.Exit(fmt.Sprintf("%s: %s", result.Flags, result.Message), 1)
			}
			fmt.Printf("%s: %s (%s)\n", slidePath, result.Flags, formatBytes(f.Size()))
			if result.Warned() {
				fmt.Printf("warning: %s\n", result.Message)
			}

			if !digest {
				return nil
			}
			sum := blake3.Sum256(f.Bytes())
			fmt.Printf("file    blake3=%x\n", sum)

			file, err := ife.AbstractFileStructure(f.Region())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: abstract slide: %v", err), 1)
			}
			for li, layer := range file.TileTable.Layers {
				for ti, tile := range layer {
					if tile.Offset == ife.NullOffset {
						continue
					}
					payload, err := f.Region().Bytes(tile.Offset, uint64(tile.Size))
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: tile %d/%d payload: %v", li, ti, err), 1)
					}
					sum := blake3.Sum256(payload)
					fmt.Printf("tile %2d/%-5d blake3=%x (%s)\n", li, ti, sum[:16], formatBytes(uint64(tile.Size)))
				}
			}
			return nil
		},
	}
}
