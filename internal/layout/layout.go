// Package layout assigns every block of a slide an absolute file offset and
// drives the store pipeline in dependency order, children before parents.
// The serialization engine itself never chooses offsets; this planner is the
// caller-side counterpart its CreateInfo contract expects.
package layout

import (
	"errors"
	"fmt"

	"github.com/irisdigital/ife/pkg/ife"
)

// AssociatedImage is one ancillary image to encode.
type AssociatedImage struct {
	Title       string
	Data        []byte
	Width       uint32
	Height      uint32
	Encoding    ife.ImageEncoding
	Format      ife.Format
	Orientation uint16
}

// Annotation is one annotation to encode: the entry fields plus the content
// byte stream.
type Annotation struct {
	Identifier uint32
	Type       ife.AnnotationType
	XLocation  float32
	YLocation  float32
	XSize      float32
	YSize      float32
	Width      uint32
	Height     uint32
	Parent     uint32
	Data       []byte
}

// Slide is the in-memory content of a slide to serialize. Tiles holds one
// compressed payload per tile in layer-major row order; a nil payload is a
// sparse tile.
type Slide struct {
	Encoding        ife.Encoding
	Format          ife.Format
	WidthPixels     uint32
	HeightPixels    uint32
	Revision        uint32
	Codec           ife.CodecVersion
	MicronsPerPixel float32
	Magnification   float32

	Extents []ife.LayerExtent
	Tiles   [][][]byte

	Attributes  *ife.AttributeSet
	Images      []AssociatedImage
	ICCProfile  []byte
	Annotations []Annotation
	Groups      []ife.AnnotationGroupInfo
}

// Plan is the computed offset of every block and the resulting file size.
// Absent optional blocks hold ife.NullOffset.
type Plan struct {
	LayerExtents uint64
	TileOffsets  uint64
	TileData     []uint64
	TileTable    uint64

	AttributesSizes uint64
	AttributesBytes uint64
	Attributes      uint64

	ImageBytes []uint64
	ImageArray uint64

	ICCProfile uint64

	AnnotationBytes []uint64
	GroupSizes      uint64
	GroupBytes      uint64
	Annotations     uint64

	Metadata uint64
	FileSize uint64
}

var errShape = errors.New("layout: tile payloads do not match the layer extents")

// New computes the offset of every block for the slide. Blocks follow the
// header in this order: the layer extents and tile offsets arrays, the tile
// payloads, the tile table, the metadata children, the metadata block last.
func New(s *Slide) (*Plan, error) {
	if len(s.Extents) == 0 {
		return nil, errors.New("layout: a slide requires at least one layer")
	}
	if len(s.Tiles) != len(s.Extents) {
		return nil, fmt.Errorf("%w: %d payload layers for %d extents", errShape, len(s.Tiles), len(s.Extents))
	}
	for i, extent := range s.Extents {
		want := int(extent.XTiles) * int(extent.YTiles)
		if len(s.Tiles[i]) != want {
			return nil, fmt.Errorf("%w: layer %d holds %d payloads, extents declare %d",
				errShape, i, len(s.Tiles[i]), want)
		}
	}

	p := &Plan{
		AttributesSizes: ife.NullOffset,
		AttributesBytes: ife.NullOffset,
		Attributes:      ife.NullOffset,
		ImageArray:      ife.NullOffset,
		ICCProfile:      ife.NullOffset,
		GroupSizes:      ife.NullOffset,
		GroupBytes:      ife.NullOffset,
		Annotations:     ife.NullOffset,
	}

	cursor := ife.HeaderSize()
	p.LayerExtents = cursor
	cursor += ife.SizeLayerExtents(len(s.Extents))

	p.TileOffsets = cursor
	cursor += ife.SizeTileOffsetsCount(tileCount(s.Extents))

	for _, layer := range s.Tiles {
		for _, payload := range layer {
			if payload == nil {
				p.TileData = append(p.TileData, ife.NullOffset)
				continue
			}
			p.TileData = append(p.TileData, cursor)
			cursor += uint64(len(payload))
		}
	}

	p.TileTable = cursor
	cursor += ife.TileTableSize()

	if s.Attributes != nil {
		p.AttributesSizes = cursor
		cursor += ife.SizeAttributesSizes(*s.Attributes)
		p.AttributesBytes = cursor
		cursor += ife.SizeAttributesBytes(*s.Attributes)
		p.Attributes = cursor
		cursor += ife.AttributesSize()
	}
	if len(s.Images) > 0 {
		for _, image := range s.Images {
			p.ImageBytes = append(p.ImageBytes, cursor)
			cursor += ife.SizeImageBytes(ife.ImageBytesCreateInfo{Title: image.Title, Data: image.Data})
		}
		p.ImageArray = cursor
		cursor += ife.SizeImageArray(len(s.Images))
	}
	if len(s.ICCProfile) > 0 {
		p.ICCProfile = cursor
		cursor += ife.SizeICCProfile(s.ICCProfile)
	}
	if len(s.Annotations) > 0 {
		for _, annotation := range s.Annotations {
			p.AnnotationBytes = append(p.AnnotationBytes, cursor)
			cursor += ife.SizeAnnotationBytes(annotation.Data)
		}
		if len(s.Groups) > 0 {
			p.GroupSizes = cursor
			cursor += ife.SizeAnnotationGroupSizes(len(s.Groups))
			p.GroupBytes = cursor
			cursor += ife.SizeAnnotationGroupBytes(s.Groups)
		}
		p.Annotations = cursor
		cursor += ife.SizeAnnotationArray(len(s.Annotations))
	}

	p.Metadata = cursor
	cursor += ife.MetadataSize()
	p.FileSize = cursor
	return p, nil
}

// Build plans the slide and stores every block into a freshly allocated
// byte image, children before parents, the file header last.
func Build(s *Slide) ([]byte, *Plan, error) {
	p, err := New(s)
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, p.FileSize)

	if err := ife.StoreLayerExtents(buf, p.LayerExtents, s.Extents); err != nil {
		return nil, nil, err
	}

	layers := make([][]ife.TileEntry, len(s.Tiles))
	flat := 0
	for li, layer := range s.Tiles {
		entries := make([]ife.TileEntry, len(layer))
		for ti, payload := range layer {
			offset := p.TileData[flat]
			flat++
			if payload == nil {
				entries[ti] = ife.TileEntry{Offset: ife.NullOffset, Size: 0}
				continue
			}
			copy(buf[offset:], payload)
			entries[ti] = ife.TileEntry{Offset: offset, Size: uint32(len(payload))}
		}
		layers[li] = entries
	}
	if err := ife.StoreTileOffsets(buf, p.TileOffsets, layers); err != nil {
		return nil, nil, err
	}
	if err := ife.StoreTileTable(buf, ife.TileTableCreateInfo{
		TileTableOffset:    p.TileTable,
		Encoding:           s.Encoding,
		Format:             s.Format,
		TilesOffset:        p.TileOffsets,
		LayerExtentsOffset: p.LayerExtents,
		WidthPixels:        s.WidthPixels,
		HeightPixels:       s.HeightPixels,
	}); err != nil {
		return nil, nil, err
	}

	if s.Attributes != nil {
		if err := ife.StoreAttributesSizes(buf, p.AttributesSizes, *s.Attributes); err != nil {
			return nil, nil, err
		}
		if err := ife.StoreAttributesBytes(buf, p.AttributesBytes, *s.Attributes); err != nil {
			return nil, nil, err
		}
		if err := ife.StoreAttributes(buf, ife.AttributesCreateInfo{
			AttributesOffset: p.Attributes,
			Format:           s.Attributes.Format,
			Version:          s.Attributes.Version,
			SizesOffset:      p.AttributesSizes,
			BytesOffset:      p.AttributesBytes,
		}); err != nil {
			return nil, nil, err
		}
	}
	if len(s.Images) > 0 {
		entries := make([]ife.ImageArrayEntry, len(s.Images))
		for i, image := range s.Images {
			if err := ife.StoreImageBytes(buf, ife.ImageBytesCreateInfo{
				Offset: p.ImageBytes[i],
				Title:  image.Title,
				Data:   image.Data,
			}); err != nil {
				return nil, nil, err
			}
			entries[i] = ife.ImageArrayEntry{
				BytesOffset: p.ImageBytes[i],
				Width:       image.Width,
				Height:      image.Height,
				Encoding:    image.Encoding,
				Format:      image.Format,
				Orientation: image.Orientation,
			}
		}
		if err := ife.StoreImageArray(buf, ife.ImageArrayCreateInfo{
			Offset: p.ImageArray,
			Images: entries,
		}); err != nil {
			return nil, nil, err
		}
	}
	if len(s.ICCProfile) > 0 {
		if err := ife.StoreICCProfile(buf, p.ICCProfile, s.ICCProfile); err != nil {
			return nil, nil, err
		}
	}
	if len(s.Annotations) > 0 {
		entries := make([]ife.AnnotationArrayEntry, len(s.Annotations))
		for i, annotation := range s.Annotations {
			if err := ife.StoreAnnotationBytes(buf, p.AnnotationBytes[i], annotation.Data); err != nil {
				return nil, nil, err
			}
			entries[i] = ife.AnnotationArrayEntry{
				Identifier:  annotation.Identifier,
				BytesOffset: p.AnnotationBytes[i],
				Type:        annotation.Type,
				XLocation:   annotation.XLocation,
				YLocation:   annotation.YLocation,
				XSize:       annotation.XSize,
				YSize:       annotation.YSize,
				Width:       annotation.Width,
				Height:      annotation.Height,
				Parent:      annotation.Parent,
			}
		}
		if len(s.Groups) > 0 {
			if err := ife.StoreAnnotationGroupSizes(buf, p.GroupSizes, s.Groups); err != nil {
				return nil, nil, err
			}
			if err := ife.StoreAnnotationGroupBytes(buf, p.GroupBytes, s.Groups); err != nil {
				return nil, nil, err
			}
		}
		if err := ife.StoreAnnotationArray(buf, ife.AnnotationArrayCreateInfo{
			Offset:           p.Annotations,
			GroupSizesOffset: p.GroupSizes,
			GroupBytesOffset: p.GroupBytes,
			Annotations:      entries,
		}); err != nil {
			return nil, nil, err
		}
	}

	if err := ife.StoreMetadata(buf, ife.MetadataCreateInfo{
		MetadataOffset:    p.Metadata,
		CodecVersion:      s.Codec,
		AttributesOffset:  p.Attributes,
		ImagesOffset:      p.ImageArray,
		ICCProfileOffset:  p.ICCProfile,
		AnnotationsOffset: p.Annotations,
		MicronsPerPixel:   s.MicronsPerPixel,
		Magnification:     s.Magnification,
	}); err != nil {
		return nil, nil, err
	}
	if err := ife.StoreFileHeader(buf, ife.HeaderCreateInfo{
		FileSize:        p.FileSize,
		Revision:        s.Revision,
		TileTableOffset: p.TileTable,
		MetadataOffset:  p.Metadata,
	}); err != nil {
		return nil, nil, err
	}
	return buf, p, nil
}

func tileCount(extents []ife.LayerExtent) int {
	var count int
	for _, extent := range extents {
		count += int(extent.XTiles) * int(extent.YTiles)
	}
	return count
}
