package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/irisdigital/ife/internal/slidefile"
	"github.com/irisdigital/ife/pkg/ife"
)

func fetchCmd() *cli.Command {
	var (
		url     string
		size    uint64
		outPath string
		chunk   int64
	)

	return &cli.Command{
		Name:  "fetch",
		Usage: "Download a remote .iris slide over ranged reads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "slide URL (must serve byte ranges)",
				Destination: &url,
				Required:    true,
			},
			&cli.Uint64Flag{
				Name:        "size",
				Usage:       "remote file size in bytes",
				Destination: &size,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "local output path",
				Destination: &outPath,
				Required:    true,
			},
			&cli.Int64Flag{
				Name:        "chunk",
				Usage:       "range request size in bytes",
				Value:       1 << 20,
				Destination: &chunk,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx
			applyFetchConfig(c, loadConfig(), &chunk)
			if chunk <= 0 {
				return cli.Exit("error: chunk size must be positive", 1)
			}

			// Verify the remote endpoint really is an Iris slide before
			// committing to the download.
			if !ife.IsIrisFileRemote(url, size, http.DefaultClient) {
				return cli.Exit(fmt.Sprintf("error: %s does not serve an Iris file", url), 1)
			}
			if result := ife.ValidateFileStructureRemote(url, size, http.DefaultClient); result.Failed() {
				return cli.Exit(fmt.Sprintf("error: remote slide failed validation: %s", result.Message), 1)
			}

			f, err := slidefile.Create(outPath, size)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create %q: %v", outPath, err), 1)
			}

			progress := mpb.New(mpb.WithWidth(60))
			bar := progress.AddBar(int64(size),
				mpb.PrependDecorators(
					decor.Name("fetch", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
					decor.CountersKibiByte("% .1f / % .1f"),
				),
				mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
			)

			// Each chunk is its own region so the cache is dropped as soon
			// as the bytes land in the local file.
			for off := uint64(0); off < size; off += uint64(chunk) {
				n := uint64(chunk)
				if off+n > size {
					n = size - off
				}
				region := ife.NewRemoteRegion(url, size, nil)
				data, err := region.Bytes(off, n)
				if err != nil {
					_ = f.Close()
					return cli.Exit(fmt.Sprintf("error: fetch range %d+%d: %v", off, n, err), 1)
				}
				copy(f.Bytes()[off:], data)
				bar.IncrBy(int(n))
			}
			progress.Wait()

			if result := ife.ValidateFileStructure(f.Region()); result.Failed() {
				_ = f.Close()
				return cli.Exit(fmt.Sprintf("error: downloaded slide failed validation: %s", result.Message), 1)
			}
			if err := f.Sync(); err != nil {
				_ = f.Close()
				return cli.Exit(fmt.Sprintf("error: sync %q: %v", outPath, err), 1)
			}
			if err := f.Close(); err != nil {
				return cli.Exit(fmt.Sprintf("error: close %q: %v", outPath, err), 1)
			}
			fmt.Printf("fetched %s (%s)\n", outPath, formatBytes(size))
			return nil
		},
	}
}
