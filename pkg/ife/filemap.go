package ife

import "sort"

// BlockKind classifies a file-map entry.
type BlockKind uint8

const (
	MapEntryUndefined BlockKind = iota
	MapEntryFileHeader
	MapEntryTileTable
	MapEntryCipher
	MapEntryMetadata
	MapEntryAttributes
	MapEntryLayerExtents
	MapEntryTileData
	MapEntryTileOffsets
	MapEntryAttributesSizes
	MapEntryAttributesBytes
	MapEntryAssociatedImages
	MapEntryAssociatedImageBytes
	MapEntryICCProfile
	MapEntryAnnotations
	MapEntryAnnotationBytes
	MapEntryAnnotationGroupSizes
	MapEntryAnnotationGroupBytes
)

func (k BlockKind) String() string {
	switch k {
	case MapEntryFileHeader:
		return "FILE_HEADER"
	case MapEntryTileTable:
		return "TILE_TABLE"
	case MapEntryCipher:
		return "CIPHER"
	case MapEntryMetadata:
		return "METADATA"
	case MapEntryAttributes:
		return "ATTRIBUTES"
	case MapEntryLayerExtents:
		return "LAYER_EXTENTS"
	case MapEntryTileData:
		return "TILE_DATA"
	case MapEntryTileOffsets:
		return "TILE_OFFSETS"
	case MapEntryAttributesSizes:
		return "ATTRIBUTES_SIZES"
	case MapEntryAttributesBytes:
		return "ATTRIBUTES_BYTES"
	case MapEntryAssociatedImages:
		return "IMAGE_ARRAY"
	case MapEntryAssociatedImageBytes:
		return "IMAGE_BYTES"
	case MapEntryICCProfile:
		return "ICC_PROFILE"
	case MapEntryAnnotations:
		return "ANNOTATIONS"
	case MapEntryAnnotationBytes:
		return "ANNOTATION_BYTES"
	case MapEntryAnnotationGroupSizes:
		return "ANNOTATION_GROUP_SIZES"
	case MapEntryAnnotationGroupBytes:
		return "ANNOTATION_GROUP_BYTES"
	default:
		return "UNDEFINED"
	}
}

// FileMapEntry is one block in the file map: its kind, its descriptor, and
// its on-disk byte length.
type FileMapEntry struct {
	Kind  BlockKind
	Block DataBlock
	Size  uint64
}

// FileMap enumerates every block in a file ordered by offset, including each
// individual tile payload and every image and annotation byte stream. Its
// purpose is pre-write inspection: before modifying bytes at offset p, a
// writer consults UpperBound(p) for the blocks it must preserve or rewrite.
type FileMap struct {
	FileSize uint64
	Entries  []FileMapEntry
}

// Lookup returns the entry at exactly the given offset.
func (m FileMap) Lookup(offset uint64) (FileMapEntry, bool) {
	i := sort.Search(len(m.Entries), func(i int) bool {
		return m.Entries[i].Block.Offset >= offset
	})
	if i < len(m.Entries) && m.Entries[i].Block.Offset == offset {
		return m.Entries[i], true
	}
	return FileMapEntry{}, false
}

// UpperBound returns every entry at or above the given write offset.
func (m FileMap) UpperBound(offset uint64) []FileMapEntry {
	i := sort.Search(len(m.Entries), func(i int) bool {
		return m.Entries[i].Block.Offset >= offset
	})
	return m.Entries[i:]
}

// GenerateFileMap walks every block reachable from the header and returns
// the ordered map. This is not cheap and is only needed when recovering or
// modifying a file.
func GenerateFileMap(r Region) (FileMap, error) {
	m := FileMap{FileSize: r.Size()}
	add := func(kind BlockKind, block DataBlock, size uint64) {
		m.Entries = append(m.Entries, FileMapEntry{Kind: kind, Block: block, Size: size})
	}

	header := NewFileHeader(r.Size())
	if result := header.ValidateHeader(r); result.Failed() {
		return FileMap{}, result.Err()
	}
	headerSize, err := header.Size(r)
	if err != nil {
		return FileMap{}, err
	}
	add(MapEntryFileHeader, header.DataBlock, headerSize)

	hdr, err := header.ReadHeader(r)
	if err != nil {
		return FileMap{}, err
	}

	tileTable, err := header.TileTable(r)
	if err != nil {
		return FileMap{}, err
	}
	add(MapEntryTileTable, tileTable.DataBlock, tileTable.Size())

	extents, err := tileTable.LayerExtents(r)
	if err != nil {
		return FileMap{}, err
	}
	extentsSize, err := extents.Size(r)
	if err != nil {
		return FileMap{}, err
	}
	add(MapEntryLayerExtents, extents.DataBlock, extentsSize)

	tiles, err := tileTable.TileOffsets(r)
	if err != nil {
		return FileMap{}, err
	}
	tilesSize, err := tiles.Size(r)
	if err != nil {
		return FileMap{}, err
	}
	add(MapEntryTileOffsets, tiles.DataBlock, tilesSize)

	// The expensive part: an entry per tile payload.
	table, err := tileTable.ReadTileTable(r)
	if err != nil {
		return FileMap{}, err
	}
	for _, layer := range table.Layers {
		for _, tile := range layer {
			if tile.Offset == NullOffset {
				continue
			}
			add(MapEntryTileData,
				DataBlock{Offset: tile.Offset, FileSize: hdr.FileSize, Version: hdr.ExtVersion},
				uint64(tile.Size))
		}
	}

	metadata, err := header.Metadata(r)
	if err != nil {
		return FileMap{}, err
	}
	add(MapEntryMetadata, metadata.DataBlock, metadata.Size())

	if metadata.HasAttributes(r) {
		attributes, err := metadata.Attributes(r)
		if err != nil {
			return FileMap{}, err
		}
		add(MapEntryAttributes, attributes.DataBlock, attributes.Size())

		sizes, err := attributes.Sizes(r)
		if err != nil {
			return FileMap{}, err
		}
		sizesSize, err := sizes.Size(r)
		if err != nil {
			return FileMap{}, err
		}
		add(MapEntryAttributesSizes, sizes.DataBlock, sizesSize)

		bytes, err := attributes.Bytes(r)
		if err != nil {
			return FileMap{}, err
		}
		bytesSize, err := bytes.Size(r)
		if err != nil {
			return FileMap{}, err
		}
		add(MapEntryAttributesBytes, bytes.DataBlock, bytesSize)
	}

	if metadata.HasImageArray(r) {
		images, err := metadata.ImageArray(r)
		if err != nil {
			return FileMap{}, err
		}
		imagesSize, err := images.Size(r)
		if err != nil {
			return FileMap{}, err
		}
		add(MapEntryAssociatedImages, images.DataBlock, imagesSize)

		var blocks []ImageBytes
		if _, err := images.ReadAssocImages(r, &blocks); err != nil {
			return FileMap{}, err
		}
		for _, block := range blocks {
			blockSize, err := block.Size(r)
			if err != nil {
				return FileMap{}, err
			}
			add(MapEntryAssociatedImageBytes, block.DataBlock, blockSize)
		}
	}

	if metadata.HasColorProfile(r) {
		icc, err := metadata.ColorProfile(r)
		if err != nil {
			return FileMap{}, err
		}
		iccSize, err := icc.Size(r)
		if err != nil {
			return FileMap{}, err
		}
		add(MapEntryICCProfile, icc.DataBlock, iccSize)
	}

	if metadata.HasAnnotations(r) {
		annotations, err := metadata.Annotations(r)
		if err != nil {
			return FileMap{}, err
		}
		annotationsSize, err := annotations.Size(r)
		if err != nil {
			return FileMap{}, err
		}
		add(MapEntryAnnotations, annotations.DataBlock, annotationsSize)

		var blocks []AnnotationBytes
		if _, err := annotations.ReadAnnotations(r, &blocks); err != nil {
			return FileMap{}, err
		}
		for _, block := range blocks {
			blockSize, err := block.Size(r)
			if err != nil {
				return FileMap{}, err
			}
			add(MapEntryAnnotationBytes, block.DataBlock, blockSize)
		}

		if annotations.HasGroups(r) {
			sizes, err := annotations.GroupSizes(r)
			if err != nil {
				return FileMap{}, err
			}
			sizesSize, err := sizes.Size(r)
			if err != nil {
				return FileMap{}, err
			}
			add(MapEntryAnnotationGroupSizes, sizes.DataBlock, sizesSize)

			bytes, err := annotations.GroupBytes(r)
			if err != nil {
				return FileMap{}, err
			}
			bytesSize, err := bytes.Size(r)
			if err != nil {
				return FileMap{}, err
			}
			add(MapEntryAnnotationGroupBytes, bytes.DataBlock, bytesSize)
		}
	}

	sort.Slice(m.Entries, func(i, j int) bool {
		return m.Entries[i].Block.Offset < m.Entries[j].Block.Offset
	})
	return m, nil
}
