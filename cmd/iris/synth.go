package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/irisdigital/ife/internal/layout"
	"github.com/irisdigital/ife/internal/slidefile"
	"github.com/irisdigital/ife/pkg/ife"
)

func synthCmd() *cli.Command {
	var (
		outPath string
		layers  int
		sparse  bool
	)

	return &cli.Command{
		Name:  "synth",
		Usage: "Write a synthetic .iris slide through the store pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output path for the synthetic slide",
				Destination: &outPath,
				Required:    true,
			},
			&cli.IntFlag{
				Name:        "layers",
				Usage:       "pyramid layer count",
				Value:       2,
				Destination: &layers,
			},
			&cli.BoolFlag{
				Name:        "sparse",
				Usage:       "leave every tile sparse instead of writing filler payloads",
				Destination: &sparse,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx
			if layers < 1 {
				return cli.Exit("error: at least one layer is required", 1)
			}

			slide := syntheticSlide(layers, sparse)
			buf, plan, err := layout.Build(slide)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build slide: %v", err), 1)
			}

			f, err := slidefile.Create(outPath, plan.FileSize)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create %q: %v", outPath, err), 1)
			}
			copy(f.Bytes(), buf)
			if err := f.Sync(); err != nil {
				_ = f.Close()
				return cli.Exit(fmt.Sprintf("error: sync %q: %v", outPath, err), 1)
			}
			if err := f.Close(); err != nil {
				return cli.Exit(fmt.Sprintf("error: close %q: %v", outPath, err), 1)
			}

			fmt.Printf("wrote %s (%s, %d layers)\n", outPath, formatBytes(plan.FileSize), layers)
			return nil
		},
	}
}

// syntheticSlide assembles a small pyramid with doubling layer scales, two
// attributes, and one annotation. It writes no associated images, ICC
// profile, or annotation groups.
func syntheticSlide(layers int, sparse bool) *layout.Slide {
	s := &layout.Slide{
		Encoding:        ife.EncodingIris,
		Format:          ife.FormatR8G8B8A8,
		Revision:        0,
		Codec:           ife.CodecVersion{Major: 1, Minor: 0, Build: 0},
		MicronsPerPixel: 0.25,
		Magnification:   20,
		Attributes: &ife.AttributeSet{
			Format: ife.AttributesI2S,
			Entries: map[string][]byte{
				"ScannerModel": []byte("Iris Synthetic"),
				"StainType":    []byte("H&E"),
			},
		},
		Annotations: []layout.Annotation{{
			Identifier: 1,
			Type:       ife.AnnotationText,
			Width:      64, Height: 16,
			Parent: ife.NullID,
			Data:   []byte("synthetic slide"),
		}},
	}

	grid := 1
	for i := 0; i < layers; i++ {
		s.Extents = append(s.Extents, ife.LayerExtent{
			XTiles: uint32(grid),
			YTiles: uint32(grid),
			Scale:  float32(uint32(1) << uint(i)),
		})
		tiles := make([][]byte, grid*grid)
		if !sparse {
			for t := range tiles {
				tiles[t] = []byte{0x49, 0x52, byte(i), byte(t)}
			}
		}
		s.Tiles = append(s.Tiles, tiles)
		grid *= 2
	}
	top := s.Extents[layers-1]
	s.WidthPixels = top.XTiles * 256
	s.HeightPixels = top.YTiles * 256
	return s
}
