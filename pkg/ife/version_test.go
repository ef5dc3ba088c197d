package ife

import "testing"

// A reader of minor version N must read a minor version N+1 file with a
// warning and without surfacing unknown fields.
func TestNewerMinorVersionWarnsButReads(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	storeU16(buf[hdrExtMinor:], ExtensionMinor+1)
	r := MemoryRegion(buf)

	header := NewFileHeader(uint64(len(buf)))
	result := header.ValidateHeader(r)
	if result.Failed() {
		t.Fatalf("newer minor version failed validation: %s", result.Message)
	}
	if !result.Warned() {
		t.Fatalf("newer minor version did not warn")
	}

	if res := ValidateFileStructure(r); res.Failed() {
		t.Fatalf("newer minor version failed structure validation: %s", res.Message)
	}
	file, err := AbstractFileStructure(r)
	if err != nil {
		t.Fatalf("newer minor version failed abstraction: %v", err)
	}
	if file.Header.Minor() != ExtensionMinor+1 {
		t.Fatalf("stored minor version: got %d", file.Header.Minor())
	}
}

func TestNewerMajorVersionWarns(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	storeU16(buf[hdrExtMajor:], ExtensionMajor+1)

	header := NewFileHeader(uint64(len(buf)))
	result := header.ValidateHeader(MemoryRegion(buf))
	if result.Failed() || !result.Warned() {
		t.Fatalf("newer major version: got %s", result.Flags)
	}
}

// A future minor version may widen array entries; the reader must advance by
// the stored entry size, not a compiled-in constant.
func TestWidenedEntrySizeStillReads(t *testing.T) {
	t.Parallel()

	const offset = 64
	const widened = leEntrySize + 4
	entries := []LayerExtent{
		{XTiles: 1, YTiles: 1, Scale: 1.0},
		{XTiles: 2, YTiles: 2, Scale: 2.0},
	}
	buf := make([]byte, offset+arrHeaderSize+uint64(len(entries))*widened)

	storePrologue(buf, offset, RecoverLayerExtents)
	p := buf[offset:]
	storeU16(p[arrEntrySize:], widened)
	storeU32(p[arrEntryCount:], uint32(len(entries)))
	cursor := p[arrHeaderSize:]
	for _, extent := range entries {
		storeU32(cursor[leXTiles:], extent.XTiles)
		storeU32(cursor[leYTiles:], extent.YTiles)
		storeF32(cursor[leScale:], extent.Scale)
		// Four trailing bytes of a hypothetical v1.1 field the reader skips.
		storeU32(cursor[leEntrySize:], 0xDEADBEEF)
		cursor = cursor[widened:]
	}

	block := LayerExtents{DataBlock{Offset: offset, FileSize: uint64(len(buf)), Version: CurrentVersion}}
	r := MemoryRegion(buf)
	if result := block.ValidateFull(r); result.Failed() {
		t.Fatalf("widened entries failed validation: %s", result.Message)
	}
	read, err := block.ReadLayerExtents(r)
	if err != nil {
		t.Fatalf("widened entries failed read: %v", err)
	}
	if len(read) != 2 || read[1].XTiles != 2 || read[1].Scale != 2.0 {
		t.Fatalf("widened entries misread: %+v", read)
	}

	size, err := block.Size(r)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if want := uint64(arrHeaderSize + 2*widened); size != want {
		t.Fatalf("widened block size: got %d want %d", size, want)
	}
}

// An entry size narrower than the v1.0 record is corrupt, not
// forward-compatible.
func TestNarrowedEntrySizeFails(t *testing.T) {
	t.Parallel()

	buf, block := storeExtentsBlock(t, []LayerExtent{{XTiles: 1, YTiles: 1, Scale: 1.0}})
	storeU16(buf[block.Offset+arrEntrySize:], leEntrySize-4)

	if result := block.ValidateFull(MemoryRegion(buf)); !result.Failed() {
		t.Fatalf("narrowed entry size passed validation")
	}
}
