package slideserver

import (
	"fmt"
	"sort"

	"github.com/irisdigital/ife/pkg/ife"
)

type slideList struct {
	Slides []slideListing `json:"slides"`
}

type slideListing struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

type SlideInfo struct {
	Name            string           `json:"name"`
	FileSize        uint64           `json:"file_size"`
	Extension       string           `json:"extension_version"`
	Revision        uint32           `json:"revision"`
	Encoding        string           `json:"encoding"`
	Format          string           `json:"format"`
	Width           uint32           `json:"width_pixels"`
	Height          uint32           `json:"height_pixels"`
	MicronsPerPixel float32          `json:"microns_per_pixel"`
	Magnification   float32          `json:"magnification"`
	Layers          []layerInfo      `json:"layers"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	Images          []imageInfo      `json:"associated_images,omitempty"`
	ICCProfileSize  int              `json:"icc_profile_size,omitempty"`
	Annotations     []annotationInfo `json:"annotations,omitempty"`
	Groups          []groupInfo      `json:"annotation_groups,omitempty"`
}

type layerInfo struct {
	XTiles     uint32  `json:"x_tiles"`
	YTiles     uint32  `json:"y_tiles"`
	Scale      float32 `json:"scale"`
	Downsample float32 `json:"downsample"`
	Sparse     int     `json:"sparse_tiles"`
}

type imageInfo struct {
	Title       string `json:"title"`
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	Encoding    string `json:"encoding"`
	Format      string `json:"format"`
	Orientation uint16 `json:"orientation"`
	ByteSize    uint64 `json:"byte_size"`
}

type annotationInfo struct {
	Identifier uint32  `json:"identifier"`
	Type       string  `json:"type"`
	XLocation  float32 `json:"x_location"`
	YLocation  float32 `json:"y_location"`
	Width      uint32  `json:"width"`
	Height     uint32  `json:"height"`
	Parent     *uint32 `json:"parent,omitempty"`
	ByteSize   uint64  `json:"byte_size"`
}

type groupInfo struct {
	Label       string `json:"label"`
	MemberCount uint32 `json:"member_count"`
}

type fileMapDTO struct {
	FileSize uint64         `json:"file_size"`
	Blocks   []fileMapBlock `json:"blocks"`
}

type fileMapBlock struct {
	Offset uint64 `json:"offset"`
	Kind   string `json:"kind"`
	Size   uint64 `json:"size"`
}

func InfoFromFile(name string, file ife.File) SlideInfo {
	info := SlideInfo{
		Name:            name,
		FileSize:        file.Header.FileSize,
		Extension:       versionString(file.Header),
		Revision:        file.Header.Revision,
		Encoding:        file.TileTable.Encoding.String(),
		Format:          file.TileTable.Format.String(),
		Width:           file.TileTable.Extent.Width,
		Height:          file.TileTable.Extent.Height,
		MicronsPerPixel: file.Metadata.MicronsPerPixel,
		Magnification:   file.Metadata.Magnification,
		ICCProfileSize:  len(file.Metadata.ICCProfile),
	}
	for i, layer := range file.TileTable.Extent.Layers {
		sparse := 0
		for _, tile := range file.TileTable.Layers[i] {
			if tile.Offset == ife.NullOffset {
				sparse++
			}
		}
		info.Layers = append(info.Layers, layerInfo{
			XTiles:     layer.XTiles,
			YTiles:     layer.YTiles,
			Scale:      layer.Scale,
			Downsample: layer.Downsample,
			Sparse:     sparse,
		})
	}
	if len(file.Metadata.Attributes.Entries) > 0 {
		info.Attributes = make(map[string]string, len(file.Metadata.Attributes.Entries))
		for key, value := range file.Metadata.Attributes.Entries {
			info.Attributes[key] = string(value)
		}
	}
	for _, title := range file.Metadata.AssociatedImages {
		image := file.Images[title]
		info.Images = append(info.Images, imageInfo{
			Title:       title,
			Width:       image.Width,
			Height:      image.Height,
			Encoding:    image.Encoding.String(),
			Format:      image.Format.String(),
			Orientation: image.Orientation,
			ByteSize:    image.ByteSize,
		})
	}
	for _, id := range file.Metadata.AnnotationIDs {
		note := file.Annotations.Entries[id]
		entry := annotationInfo{
			Identifier: id,
			Type:       note.Type.String(),
			XLocation:  note.XLocation,
			YLocation:  note.YLocation,
			Width:      note.Width,
			Height:     note.Height,
			ByteSize:   note.ByteSize,
		}
		if note.Parent != ife.NullID {
			parent := note.Parent
			entry.Parent = &parent
		}
		info.Annotations = append(info.Annotations, entry)
	}
	labels := make([]string, 0, len(file.Annotations.Groups))
	for label := range file.Annotations.Groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		info.Groups = append(info.Groups, groupInfo{
			Label:       label,
			MemberCount: file.Annotations.Groups[label].MemberCount,
		})
	}
	return info
}

func fileMapFrom(m ife.FileMap) fileMapDTO {
	dto := fileMapDTO{FileSize: m.FileSize}
	for _, entry := range m.Entries {
		dto.Blocks = append(dto.Blocks, fileMapBlock{
			Offset: entry.Block.Offset,
			Kind:   entry.Kind.String(),
			Size:   entry.Size,
		})
	}
	return dto
}

func versionString(h ife.Header) string {
	return fmt.Sprintf("%d.%d", h.Major(), h.Minor())
}
