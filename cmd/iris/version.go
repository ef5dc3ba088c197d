package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/irisdigital/ife/internal/version"
	"github.com/irisdigital/ife/pkg/ife"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the iris build and supported extension version",
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx
			fmt.Printf("iris %s (IFE %d.%d)\n", version.String(), ife.ExtensionMajor, ife.ExtensionMinor)
			return nil
		},
	}
}
