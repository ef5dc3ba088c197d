package ife

import (
	"bytes"
	"reflect"
	"testing"
)

// Abstracting a file, re-storing every block at identical offsets with the
// read-back values, and abstracting again must yield identical abstractions.
func TestAbstractStoreAbstractIdempotent(t *testing.T) {
	t.Parallel()

	original, o := buildFullSlide(t)
	r := MemoryRegion(original)
	file, err := AbstractFileStructure(r)
	if err != nil {
		t.Fatalf("abstract original: %v", err)
	}

	rebuilt := make([]byte, len(original))

	// Tile payloads are opaque to the engine; carry them over by handle.
	for _, layer := range file.TileTable.Layers {
		for _, tile := range layer {
			if tile.Offset == NullOffset {
				continue
			}
			payload, err := r.Bytes(tile.Offset, uint64(tile.Size))
			if err != nil {
				t.Fatalf("tile payload: %v", err)
			}
			copy(rebuilt[tile.Offset:], payload)
		}
	}

	if err := StoreLayerExtents(rebuilt, o.extents, file.TileTable.Extent.Layers); err != nil {
		t.Fatalf("re-store layer extents: %v", err)
	}
	if err := StoreTileOffsets(rebuilt, o.tiles, file.TileTable.Layers); err != nil {
		t.Fatalf("re-store tile offsets: %v", err)
	}
	if err := StoreTileTable(rebuilt, TileTableCreateInfo{
		TileTableOffset:    o.table,
		Encoding:           file.TileTable.Encoding,
		Format:             file.TileTable.Format,
		TilesOffset:        o.tiles,
		LayerExtentsOffset: o.extents,
		WidthPixels:        file.TileTable.Extent.Width,
		HeightPixels:       file.TileTable.Extent.Height,
	}); err != nil {
		t.Fatalf("re-store tile table: %v", err)
	}
	if err := StoreAttributesSizes(rebuilt, o.attrSizes, file.Metadata.Attributes); err != nil {
		t.Fatalf("re-store attribute sizes: %v", err)
	}
	if err := StoreAttributesBytes(rebuilt, o.attrBytes, file.Metadata.Attributes); err != nil {
		t.Fatalf("re-store attribute bytes: %v", err)
	}
	if err := StoreAttributes(rebuilt, AttributesCreateInfo{
		AttributesOffset: o.attributes,
		Format:           file.Metadata.Attributes.Format,
		Version:          file.Metadata.Attributes.Version,
		SizesOffset:      o.attrSizes,
		BytesOffset:      o.attrBytes,
	}); err != nil {
		t.Fatalf("re-store attributes: %v", err)
	}

	for title, image := range file.Images {
		payload, err := r.Bytes(image.Offset, image.ByteSize)
		if err != nil {
			t.Fatalf("image payload: %v", err)
		}
		if err := StoreImageBytes(rebuilt, ImageBytesCreateInfo{
			Offset: o.imageBytes,
			Title:  title,
			Data:   payload,
		}); err != nil {
			t.Fatalf("re-store image bytes: %v", err)
		}
		if err := StoreImageArray(rebuilt, ImageArrayCreateInfo{
			Offset: o.imageArray,
			Images: []ImageArrayEntry{{
				BytesOffset: o.imageBytes,
				Width:       image.Width,
				Height:      image.Height,
				Encoding:    image.Encoding,
				Format:      image.Format,
				Orientation: image.Orientation,
			}},
		}); err != nil {
			t.Fatalf("re-store image array: %v", err)
		}
	}
	if err := StoreICCProfile(rebuilt, o.icc, file.Metadata.ICCProfile); err != nil {
		t.Fatalf("re-store ICC profile: %v", err)
	}

	noteData, err := r.Bytes(file.Annotations.Entries[0x000123].Offset, file.Annotations.Entries[0x000123].ByteSize)
	if err != nil {
		t.Fatalf("annotation payload: %v", err)
	}
	if err := StoreAnnotationBytes(rebuilt, o.annBytes, noteData); err != nil {
		t.Fatalf("re-store annotation bytes: %v", err)
	}
	var groups []AnnotationGroupInfo
	for label, group := range file.Annotations.Groups {
		members, err := ReadGroupMembers(r, group)
		if err != nil {
			t.Fatalf("read group members: %v", err)
		}
		groups = append(groups, AnnotationGroupInfo{Label: label, Members: members})
	}
	if err := StoreAnnotationGroupSizes(rebuilt, o.groupSizes, groups); err != nil {
		t.Fatalf("re-store group sizes: %v", err)
	}
	if err := StoreAnnotationGroupBytes(rebuilt, o.groupBytes, groups); err != nil {
		t.Fatalf("re-store group bytes: %v", err)
	}

	entries := make([]AnnotationArrayEntry, 0, len(file.Annotations.Entries))
	for _, id := range file.Metadata.AnnotationIDs {
		note := file.Annotations.Entries[id]
		entries = append(entries, AnnotationArrayEntry{
			Identifier:  id,
			BytesOffset: o.annBytes,
			Type:        note.Type,
			XLocation:   note.XLocation,
			YLocation:   note.YLocation,
			XSize:       note.XSize,
			YSize:       note.YSize,
			Width:       note.Width,
			Height:      note.Height,
			Parent:      note.Parent,
		})
	}
	if err := StoreAnnotationArray(rebuilt, AnnotationArrayCreateInfo{
		Offset:           o.annotations,
		GroupSizesOffset: o.groupSizes,
		GroupBytesOffset: o.groupBytes,
		Annotations:      entries,
	}); err != nil {
		t.Fatalf("re-store annotation array: %v", err)
	}

	if err := StoreMetadata(rebuilt, MetadataCreateInfo{
		MetadataOffset:    o.metadata,
		CodecVersion:      file.Metadata.Codec,
		AttributesOffset:  o.attributes,
		ImagesOffset:      o.imageArray,
		ICCProfileOffset:  o.icc,
		AnnotationsOffset: o.annotations,
		MicronsPerPixel:   file.Metadata.MicronsPerPixel,
		Magnification:     file.Metadata.Magnification,
	}); err != nil {
		t.Fatalf("re-store metadata: %v", err)
	}
	if err := StoreFileHeader(rebuilt, HeaderCreateInfo{
		FileSize:        uint64(len(rebuilt)),
		Revision:        file.Header.Revision,
		TileTableOffset: o.table,
		MetadataOffset:  o.metadata,
	}); err != nil {
		t.Fatalf("re-store file header: %v", err)
	}

	again, err := AbstractFileStructure(MemoryRegion(rebuilt))
	if err != nil {
		t.Fatalf("abstract rebuilt: %v", err)
	}
	if !reflect.DeepEqual(file, again) {
		t.Fatalf("abstractions differ:\nfirst:  %+v\nsecond: %+v", file, again)
	}
	if !bytes.Equal(original, rebuilt) {
		t.Fatalf("rebuilt byte image differs from the original")
	}
}
