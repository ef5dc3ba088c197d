package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/irisdigital/ife/internal/slidefile"
	"github.com/irisdigital/ife/internal/slideserver"
	"github.com/irisdigital/ife/pkg/ife"
)

func infoCmd() *cli.Command {
	var (
		slidePath string
		asJSON    bool
	)

	return &cli.Command{
		Name:  "info",
		Usage: "Print the structure of an .iris slide",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "slide",
				Aliases:     []string{"s"},
				Usage:       "path to .iris file",
				Destination: &slidePath,
				Required:    true,
			},
			&cli.BoolFlag{Name: "json", Usage: "emit machine-readable JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			f, err := slidefile.Open(slidePath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open slide %q: %v", slidePath, err), 1)
			}
			defer func() { _ = f.Close() }()

			if !ife.IsIrisFile(f.Region()) {
				return cli.Exit(fmt.Sprintf("error: %q is not an Iris file", slidePath), 1)
			}
			file, err := ife.AbstractFileStructure(f.Region())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read slide structure: %v", err), 1)
			}
			info := slideserver.InfoFromFile(filepath.Base(slidePath), file)

			if asJSON {
				body, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: encode info: %v", err), 1)
				}
				fmt.Println(string(body))
				return nil
			}

			printInfo(slidePath, f.Size(), info)
			return nil
		},
	}
}

func printInfo(path string, size uint64, info slideserver.SlideInfo) {
	fmt.Printf("Iris Slide: %s (%s)\n", path, formatBytes(size))

	section("Header")
	row("extension_version", info.Extension)
	rowInt("revision", int(info.Revision))
	row("encoding", info.Encoding)
	row("format", info.Format)
	row("extent", fmt.Sprintf("%dx%d px", info.Width, info.Height))
	rowFloat("microns_per_pixel", float64(info.MicronsPerPixel))
	rowFloat("magnification", float64(info.Magnification))

	section("Layers")
	for i, layer := range info.Layers {
		fmt.Printf("layer %-2d %4dx%-4d tiles  scale=%-8g downsample=%-8g sparse=%d\n",
			i, layer.XTiles, layer.YTiles, layer.Scale, layer.Downsample, layer.Sparse)
	}

	if len(info.Attributes) > 0 {
		section("Attributes")
		for _, key := range sortedKeys(info.Attributes) {
			row(key, info.Attributes[key])
		}
	}
	if len(info.Images) > 0 {
		section("Associated Images")
		for _, image := range info.Images {
			fmt.Printf("%-16s %4dx%-4d %-5s %-9s %s\n",
				image.Title, image.Width, image.Height, image.Encoding, image.Format,
				formatBytes(image.ByteSize))
		}
	}
	if info.ICCProfileSize > 0 {
		section("ICC Profile")
		row("size", formatBytes(uint64(info.ICCProfileSize)))
	}
	if len(info.Annotations) > 0 {
		section("Annotations")
		for _, note := range info.Annotations {
			parent := "-"
			if note.Parent != nil {
				parent = fmt.Sprintf("0x%06X", *note.Parent)
			}
			fmt.Printf("0x%06X %-5s %4dx%-4d at (%g, %g) parent=%s %s\n",
				note.Identifier, note.Type, note.Width, note.Height,
				note.XLocation, note.YLocation, parent, formatBytes(note.ByteSize))
		}
		for _, group := range info.Groups {
			fmt.Printf("group %-16q members=%d\n", group.Label, group.MemberCount)
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
