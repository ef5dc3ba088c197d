package ife

import (
	"sort"
	"testing"
)

func TestGenerateFileMapMinimal(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	m, err := GenerateFileMap(MemoryRegion(buf))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if m.FileSize != uint64(len(buf)) {
		t.Fatalf("map file size: got %d", m.FileSize)
	}

	// Header, layer extents, tile offsets, tile table, metadata. The single
	// sparse tile contributes no entry.
	if got := len(m.Entries); got != 5 {
		t.Fatalf("entry count: got %d want 5", got)
	}
	kinds := map[BlockKind]int{}
	for _, entry := range m.Entries {
		kinds[entry.Kind]++
	}
	for _, kind := range []BlockKind{
		MapEntryFileHeader, MapEntryTileTable, MapEntryLayerExtents,
		MapEntryTileOffsets, MapEntryMetadata,
	} {
		if kinds[kind] != 1 {
			t.Fatalf("kind %s: got %d entries", kind, kinds[kind])
		}
	}
}

func TestGenerateFileMapFull(t *testing.T) {
	t.Parallel()

	buf, o := buildFullSlide(t)
	m, err := GenerateFileMap(MemoryRegion(buf))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !sort.SliceIsSorted(m.Entries, func(i, j int) bool {
		return m.Entries[i].Block.Offset < m.Entries[j].Block.Offset
	}) {
		t.Fatalf("map entries not ordered by offset")
	}

	kinds := map[BlockKind]int{}
	for _, entry := range m.Entries {
		kinds[entry.Kind]++
	}
	// Four dense tiles share one payload offset; the map is an offset-ordered
	// list that records each tile handle without deduplicating shared
	// offsets, so expect four entries here.
	if kinds[MapEntryTileData] != 4 {
		t.Fatalf("tile data entries: got %d want 4", kinds[MapEntryTileData])
	}
	for _, want := range []BlockKind{
		MapEntryFileHeader, MapEntryTileTable, MapEntryLayerExtents,
		MapEntryTileOffsets, MapEntryMetadata, MapEntryAttributes,
		MapEntryAttributesSizes, MapEntryAttributesBytes,
		MapEntryAssociatedImages, MapEntryAssociatedImageBytes,
		MapEntryICCProfile, MapEntryAnnotations, MapEntryAnnotationBytes,
		MapEntryAnnotationGroupSizes, MapEntryAnnotationGroupBytes,
	} {
		if kinds[want] == 0 {
			t.Errorf("kind %s missing from file map", want)
		}
	}

	entry, ok := m.Lookup(o.metadata)
	if !ok || entry.Kind != MapEntryMetadata {
		t.Fatalf("lookup metadata: %+v ok=%v", entry, ok)
	}
	if entry.Size != mdV1_0Size {
		t.Fatalf("metadata size: got %d want %d", entry.Size, mdV1_0Size)
	}

	// Everything at or above the metadata offset must be returned for a
	// writer planning an update there.
	tail := m.UpperBound(o.metadata)
	if len(tail) == 0 || tail[0].Block.Offset != o.metadata {
		t.Fatalf("upper bound did not start at the metadata block")
	}
	for _, entry := range tail {
		if entry.Block.Offset < o.metadata {
			t.Fatalf("upper bound returned entry below the write point: %+v", entry)
		}
	}
}

func TestGenerateFileMapRejectsCorruptHeader(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	storeU32(buf[hdrMagic:], 0)
	if _, err := GenerateFileMap(MemoryRegion(buf)); err == nil {
		t.Fatalf("corrupt header produced a file map")
	}
}
