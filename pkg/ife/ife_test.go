package ife

import (
	"testing"
)

// buildMinimalSlide writes the smallest valid slide: one layer of one sparse
// tile, JPEG/R8G8B8A8, 256x256 pixels, metadata with every child absent.
func buildMinimalSlide(t *testing.T) []byte {
	t.Helper()

	const fileSize = 0x100
	buf := make([]byte, fileSize)

	extentsOffset := uint64(headerV1_0Size)
	extents := []LayerExtent{{XTiles: 1, YTiles: 1, Scale: 1.0}}
	if err := StoreLayerExtents(buf, extentsOffset, extents); err != nil {
		t.Fatalf("store layer extents: %v", err)
	}

	tilesOffset := extentsOffset + SizeLayerExtents(len(extents))
	layers := [][]TileEntry{{{Offset: NullOffset, Size: 0}}}
	if err := StoreTileOffsets(buf, tilesOffset, layers); err != nil {
		t.Fatalf("store tile offsets: %v", err)
	}

	tableOffset := tilesOffset + SizeTileOffsets(layers)
	if err := StoreTileTable(buf, TileTableCreateInfo{
		TileTableOffset:    tableOffset,
		Encoding:           EncodingJPEG,
		Format:             FormatR8G8B8A8,
		TilesOffset:        tilesOffset,
		LayerExtentsOffset: extentsOffset,
		WidthPixels:        256,
		HeightPixels:       256,
	}); err != nil {
		t.Fatalf("store tile table: %v", err)
	}

	metadataOffset := tableOffset + ttV1_0Size
	if err := StoreMetadata(buf, MetadataCreateInfo{
		MetadataOffset:    metadataOffset,
		CodecVersion:      CodecVersion{Major: 1, Minor: 0, Build: 0},
		AttributesOffset:  NullOffset,
		ImagesOffset:      NullOffset,
		ICCProfileOffset:  NullOffset,
		AnnotationsOffset: NullOffset,
		MicronsPerPixel:   0.25,
		Magnification:     20.0,
	}); err != nil {
		t.Fatalf("store metadata: %v", err)
	}

	if err := StoreFileHeader(buf, HeaderCreateInfo{
		FileSize:        fileSize,
		Revision:        0,
		TileTableOffset: tableOffset,
		MetadataOffset:  metadataOffset,
	}); err != nil {
		t.Fatalf("store file header: %v", err)
	}
	return buf
}

// fullSlideOffsets records where buildFullSlide placed each block.
type fullSlideOffsets struct {
	extents     uint64
	tiles       uint64
	tileData    uint64
	table       uint64
	attrSizes   uint64
	attrBytes   uint64
	attributes  uint64
	imageBytes  uint64
	imageArray  uint64
	icc         uint64
	annBytes    uint64
	groupSizes  uint64
	groupBytes  uint64
	annotations uint64
	metadata    uint64
	fileSize    uint64
}

// buildFullSlide writes a slide exercising every optional block: attributes,
// one associated image, an ICC profile, and two annotations with one group.
func buildFullSlide(t *testing.T) ([]byte, fullSlideOffsets) {
	t.Helper()

	attributes := AttributeSet{
		Format:  AttributesI2S,
		Version: 0,
		Entries: map[string][]byte{
			"PatientID": []byte("X1"),
			"StainType": []byte("H&E"),
		},
	}
	imageData := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0x03}
	profile := []byte("ICC\x00test-profile")
	noteData := []byte(`{"shape":"circle"}`)
	groups := []AnnotationGroupInfo{{Label: "tumor", Members: []uint32{0x000123, 0x000124}}}

	var o fullSlideOffsets
	o.extents = headerV1_0Size
	extents := []LayerExtent{
		{XTiles: 1, YTiles: 1, Scale: 1.0},
		{XTiles: 2, YTiles: 2, Scale: 2.0},
	}
	o.tiles = o.extents + SizeLayerExtents(len(extents))
	tileData := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	layers := [][]TileEntry{
		{{Offset: NullOffset, Size: 0}},
		make([]TileEntry, 4),
	}
	o.tileData = o.tiles + SizeTileOffsets(layers)
	for i := range layers[1] {
		layers[1][i] = TileEntry{Offset: o.tileData, Size: uint32(len(tileData))}
	}
	o.table = o.tileData + uint64(len(tileData))
	o.attrSizes = o.table + ttV1_0Size
	o.attrBytes = o.attrSizes + SizeAttributesSizes(attributes)
	o.attributes = o.attrBytes + SizeAttributesBytes(attributes)
	o.imageBytes = o.attributes + atV1_0Size
	imageBytesCI := ImageBytesCreateInfo{Offset: o.imageBytes, Title: "label", Data: imageData}
	o.imageArray = o.imageBytes + SizeImageBytes(imageBytesCI)
	o.icc = o.imageArray + SizeImageArray(1)
	o.annBytes = o.icc + SizeICCProfile(profile)
	o.groupSizes = o.annBytes + SizeAnnotationBytes(noteData)
	o.groupBytes = o.groupSizes + SizeAnnotationGroupSizes(len(groups))
	o.annotations = o.groupBytes + SizeAnnotationGroupBytes(groups)
	o.metadata = o.annotations + SizeAnnotationArray(2)
	o.fileSize = o.metadata + mdV1_0Size

	buf := make([]byte, o.fileSize)
	copy(buf[o.tileData:], tileData)

	if err := StoreLayerExtents(buf, o.extents, extents); err != nil {
		t.Fatalf("store layer extents: %v", err)
	}
	if err := StoreTileOffsets(buf, o.tiles, layers); err != nil {
		t.Fatalf("store tile offsets: %v", err)
	}
	if err := StoreTileTable(buf, TileTableCreateInfo{
		TileTableOffset:    o.table,
		Encoding:           EncodingJPEG,
		Format:             FormatR8G8B8A8,
		TilesOffset:        o.tiles,
		LayerExtentsOffset: o.extents,
		WidthPixels:        512,
		HeightPixels:       512,
	}); err != nil {
		t.Fatalf("store tile table: %v", err)
	}
	if err := StoreAttributesSizes(buf, o.attrSizes, attributes); err != nil {
		t.Fatalf("store attribute sizes: %v", err)
	}
	if err := StoreAttributesBytes(buf, o.attrBytes, attributes); err != nil {
		t.Fatalf("store attribute bytes: %v", err)
	}
	if err := StoreAttributes(buf, AttributesCreateInfo{
		AttributesOffset: o.attributes,
		Format:           AttributesI2S,
		SizesOffset:      o.attrSizes,
		BytesOffset:      o.attrBytes,
	}); err != nil {
		t.Fatalf("store attributes: %v", err)
	}
	if err := StoreImageBytes(buf, imageBytesCI); err != nil {
		t.Fatalf("store image bytes: %v", err)
	}
	if err := StoreImageArray(buf, ImageArrayCreateInfo{
		Offset: o.imageArray,
		Images: []ImageArrayEntry{{
			BytesOffset: o.imageBytes,
			Width:       64,
			Height:      48,
			Encoding:    ImageEncodingJPEG,
			Format:      FormatR8G8B8,
			Orientation: 90,
		}},
	}); err != nil {
		t.Fatalf("store image array: %v", err)
	}
	if err := StoreICCProfile(buf, o.icc, profile); err != nil {
		t.Fatalf("store ICC profile: %v", err)
	}
	if err := StoreAnnotationBytes(buf, o.annBytes, noteData); err != nil {
		t.Fatalf("store annotation bytes: %v", err)
	}
	if err := StoreAnnotationGroupSizes(buf, o.groupSizes, groups); err != nil {
		t.Fatalf("store annotation group sizes: %v", err)
	}
	if err := StoreAnnotationGroupBytes(buf, o.groupBytes, groups); err != nil {
		t.Fatalf("store annotation group bytes: %v", err)
	}
	if err := StoreAnnotationArray(buf, AnnotationArrayCreateInfo{
		Offset:           o.annotations,
		GroupSizesOffset: o.groupSizes,
		GroupBytesOffset: o.groupBytes,
		Annotations: []AnnotationArrayEntry{
			{
				Identifier:  0x000123,
				BytesOffset: o.annBytes,
				Type:        AnnotationText,
				XLocation:   0.25, YLocation: 0.5, XSize: 0.1, YSize: 0.1,
				Width: 128, Height: 128, Parent: NullID,
			},
			{
				Identifier:  0x000124,
				BytesOffset: o.annBytes,
				Type:        AnnotationSVG,
				XLocation:   0.75, YLocation: 0.5, XSize: 0.2, YSize: 0.2,
				Width: 64, Height: 64, Parent: 0x000123,
			},
		},
	}); err != nil {
		t.Fatalf("store annotation array: %v", err)
	}
	if err := StoreMetadata(buf, MetadataCreateInfo{
		MetadataOffset:    o.metadata,
		CodecVersion:      CodecVersion{Major: 2, Minor: 1, Build: 7},
		AttributesOffset:  o.attributes,
		ImagesOffset:      o.imageArray,
		ICCProfileOffset:  o.icc,
		AnnotationsOffset: o.annotations,
		MicronsPerPixel:   0.5,
		Magnification:     40.0,
	}); err != nil {
		t.Fatalf("store metadata: %v", err)
	}
	if err := StoreFileHeader(buf, HeaderCreateInfo{
		FileSize:        o.fileSize,
		Revision:        3,
		TileTableOffset: o.table,
		MetadataOffset:  o.metadata,
	}); err != nil {
		t.Fatalf("store file header: %v", err)
	}
	return buf, o
}

func TestIsIrisFile(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	if !IsIrisFile(MemoryRegion(buf)) {
		t.Fatalf("minimal slide not recognized as an Iris file")
	}

	junk := make([]byte, 0x100)
	if IsIrisFile(MemoryRegion(junk)) {
		t.Fatalf("zeroed region recognized as an Iris file")
	}
	if IsIrisFile(MemoryRegion(junk[:8])) {
		t.Fatalf("region shorter than a header recognized as an Iris file")
	}
}

func TestMinimalSlideValidatesAndAbstracts(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	r := MemoryRegion(buf)

	if result := ValidateFileStructure(r); result.Failed() {
		t.Fatalf("validate minimal slide: %s: %s", result.Flags, result.Message)
	}

	file, err := AbstractFileStructure(r)
	if err != nil {
		t.Fatalf("abstract minimal slide: %v", err)
	}
	if file.Header.FileSize != 0x100 {
		t.Fatalf("header file size: got %d want %d", file.Header.FileSize, 0x100)
	}
	if file.Header.ExtVersion != CurrentVersion {
		t.Fatalf("header version: got 0x%08X want 0x%08X", file.Header.ExtVersion, CurrentVersion)
	}
	if got := len(file.TileTable.Extent.Layers); got != 1 {
		t.Fatalf("layer count: got %d want 1", got)
	}
	layer := file.TileTable.Extent.Layers[0]
	if layer.XTiles != 1 || layer.YTiles != 1 {
		t.Fatalf("layer shape: got %dx%d want 1x1", layer.XTiles, layer.YTiles)
	}
	if layer.Downsample != 1.0 {
		t.Fatalf("layer downsample: got %g want 1.0", layer.Downsample)
	}
	tile := file.TileTable.Layers[0][0]
	if tile.Offset != NullOffset || tile.Size != 0 {
		t.Fatalf("sparse tile not normalized: got {%d, %d}", tile.Offset, tile.Size)
	}
	if file.Metadata.MicronsPerPixel != 0.25 || file.Metadata.Magnification != 20.0 {
		t.Fatalf("metadata scale fields: got %g / %g",
			file.Metadata.MicronsPerPixel, file.Metadata.Magnification)
	}
}

func TestTruncatedFileFailsValidation(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	storeU64(buf[hdrFileSize:], 0x200)

	result := ValidateFileStructure(MemoryRegion(buf))
	if result.Flags&ValidationFailure != ValidationFailure {
		t.Fatalf("truncated file: got %s want VALIDATION_FAILURE", result.Flags)
	}
}

func TestCorruptSelfOffsetFailsValidation(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	tableOffset := loadU64(buf[hdrTileTable:])
	storeU64(buf[tableOffset:], 0)

	result := ValidateFileStructure(MemoryRegion(buf))
	if result.Flags&ValidationFailure != ValidationFailure {
		t.Fatalf("corrupt self offset: got %s want VALIDATION_FAILURE", result.Flags)
	}
}

// Every stored block must read back its own offset followed by its recovery
// tag.
func TestSelfOffsetRoundTrip(t *testing.T) {
	t.Parallel()

	buf, o := buildFullSlide(t)
	blocks := map[uint64]RecoveryTag{
		o.table:       RecoverTileTable,
		o.extents:     RecoverLayerExtents,
		o.tiles:       RecoverTileOffsets,
		o.metadata:    RecoverMetadata,
		o.attributes:  RecoverAttributes,
		o.attrSizes:   RecoverAttributesSizes,
		o.attrBytes:   RecoverAttributesBytes,
		o.imageArray:  RecoverAssociatedImages,
		o.imageBytes:  RecoverAssociatedImageBytes,
		o.icc:         RecoverICCProfile,
		o.annotations: RecoverAnnotations,
		o.annBytes:    RecoverAnnotationBytes,
		o.groupSizes:  RecoverAnnotationGroupSizes,
		o.groupBytes:  RecoverAnnotationGroupBytes,
	}
	for offset, tag := range blocks {
		if got := loadU64(buf[offset:]); got != offset {
			t.Errorf("%s: stored validation value %d at offset %d", tag, got, offset)
		}
		if got := RecoveryTag(loadU16(buf[offset+8:])); got != tag {
			t.Errorf("offset %d: stored recovery tag %s want %s", offset, got, tag)
		}
	}
}

func TestFileSizeIdentity(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	if got := loadU64(buf[hdrFileSize:]); got != uint64(len(buf)) {
		t.Fatalf("stored file size %d does not equal backing size %d", got, len(buf))
	}
}

func TestFullSlideValidatesAndAbstracts(t *testing.T) {
	t.Parallel()

	buf, o := buildFullSlide(t)
	r := MemoryRegion(buf)

	if result := ValidateFileStructure(r); result.Failed() {
		t.Fatalf("validate full slide: %s: %s", result.Flags, result.Message)
	}

	file, err := AbstractFileStructure(r)
	if err != nil {
		t.Fatalf("abstract full slide: %v", err)
	}

	if got := string(file.Metadata.Attributes.Entries["PatientID"]); got != "X1" {
		t.Fatalf("PatientID: got %q", got)
	}
	if got := string(file.Metadata.Attributes.Entries["StainType"]); got != "H&E" {
		t.Fatalf("StainType: got %q", got)
	}

	image, ok := file.Images["label"]
	if !ok {
		t.Fatalf("associated image %q missing; images: %v", "label", file.Metadata.AssociatedImages)
	}
	if image.Width != 64 || image.Height != 48 || image.Encoding != ImageEncodingJPEG {
		t.Fatalf("image fields: %+v", image)
	}
	if image.ByteSize != 7 {
		t.Fatalf("image byte size: got %d want 7", image.ByteSize)
	}
	payload, err := r.Bytes(image.Offset, image.ByteSize)
	if err != nil {
		t.Fatalf("image payload: %v", err)
	}
	if payload[0] != 0xFF || payload[1] != 0xD8 {
		t.Fatalf("image payload bytes: % X", payload)
	}

	if len(file.Metadata.ICCProfile) == 0 {
		t.Fatalf("ICC profile missing")
	}

	if got := len(file.Annotations.Entries); got != 2 {
		t.Fatalf("annotation count: got %d want 2", got)
	}
	note := file.Annotations.Entries[0x000124]
	if note.Type != AnnotationSVG || note.Parent != 0x000123 {
		t.Fatalf("annotation 0x124 fields: %+v", note)
	}
	group, ok := file.Annotations.Groups["tumor"]
	if !ok {
		t.Fatalf("annotation group %q missing", "tumor")
	}
	members, err := ReadGroupMembers(r, group)
	if err != nil {
		t.Fatalf("read group members: %v", err)
	}
	if len(members) != 2 || members[0] != 0x000123 || members[1] != 0x000124 {
		t.Fatalf("group members: %v", members)
	}

	if file.TileTable.Extent.Layers[1].Downsample != 1.0 {
		t.Fatalf("top layer downsample: got %g want 1.0", file.TileTable.Extent.Layers[1].Downsample)
	}
	if file.TileTable.Extent.Layers[0].Downsample != 2.0 {
		t.Fatalf("bottom layer downsample: got %g want 2.0", file.TileTable.Extent.Layers[0].Downsample)
	}

	// Abstracting the same region a second time must succeed, and the first
	// abstraction keeps annotation 0x123 and the stored file size.
	if _, err := AbstractFileStructure(r); err != nil {
		t.Fatalf("re-abstract: %v", err)
	}
	if _, seen := file.Annotations.Entries[0x000123]; !seen {
		t.Fatalf("annotation 0x123 missing")
	}
	if got := file.Header.FileSize; got != o.fileSize {
		t.Fatalf("header file size: got %d want %d", got, o.fileSize)
	}
}
