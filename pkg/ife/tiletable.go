package ife

import "log/slog"

// Tile table layout.
const (
	ttEncoding     = blockHeaderSize
	ttFormat       = ttEncoding + 1
	ttCipher       = ttFormat + 1
	ttTileOffsets  = ttCipher + 8
	ttLayerExtents = ttTileOffsets + 8
	ttXExtent      = ttLayerExtents + 8
	ttYExtent      = ttXExtent + 4
	ttV1_0Size     = ttYExtent + 4
)

// TileEntry locates one compressed tile payload inside the file. A sparse
// tile surfaces as {NullOffset, 0}.
type TileEntry struct {
	Offset uint64
	Size   uint32
}

// Extent is the pixel extent of the highest-resolution layer together with
// the per-layer tile grid dimensions.
type Extent struct {
	Width  uint32
	Height uint32
	Layers []LayerExtent
}

// TileTableInfo is the abstracted tile table: codec parameters, the pyramid
// extent, and per-layer tile payload handles. Payload bytes are never copied.
type TileTableInfo struct {
	Encoding Encoding
	Format   Format
	Extent   Extent
	Layers   [][]TileEntry
}

// TileTable reads and validates the tile table block.
type TileTable struct {
	DataBlock
}

// Size returns the on-disk byte length of the tile table block.
func (t TileTable) Size() uint64 {
	size := uint64(ttV1_0Size)
	if t.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size
}

// ValidateOffset checks the block prologue against the tile table tag.
func (t TileTable) ValidateOffset(r Region) Result {
	return t.validateOffset(r, RecoverTileTable)
}

// ValidateFull validates the prologue, the encoding and format enumerators,
// and then fully validates both child arrays.
func (t TileTable) ValidateFull(r Region) Result {
	result := t.ValidateOffset(r)
	if result.Failed() {
		return result
	}
	if result.Warned() {
		slog.Warn("tile table validation", "warning", result.Message)
	}

	p, err := r.Bytes(t.Offset, ttV1_0Size)
	if err != nil {
		return validationFailuref("TILE_TABLE unreadable: %v", err)
	}
	if enc := Encoding(loadU8(p[ttEncoding:])); !validEncoding(enc, t.Version) {
		return validationFailuref(
			"undefined tile encoding value (0x%02X) decoded from tile table; the encoding shall be one of the enumerated values, excluding the undefined value (0)",
			uint8(enc))
	}
	if f := Format(loadU8(p[ttFormat:])); !validFormat(f, t.Version) {
		return validationFailuref(
			"undefined tile pixel format (0x%02X) decoded from tile table; the format shall be one of the enumerated values, excluding the undefined value (0)",
			uint8(f))
	}

	le := LayerExtents{DataBlock{Offset: loadU64(p[ttLayerExtents:]), FileSize: t.FileSize, Version: t.Version}}
	if res := le.ValidateFull(r); res.Failed() {
		return res
	}
	to := TileOffsets{DataBlock{Offset: loadU64(p[ttTileOffsets:]), FileSize: t.FileSize, Version: t.Version}}
	if res := to.ValidateFull(r); res.Failed() {
		return res
	}
	return success()
}

// ReadTileTable abstracts the tile table: encoding, format, extent with layer
// dimensions and downsample factors, and the per-layer tile handle arrays.
func (t TileTable) ReadTileTable(r Region) (TileTableInfo, error) {
	p, err := r.Bytes(t.Offset, ttV1_0Size)
	if err != nil {
		return TileTableInfo{}, err
	}

	var table TileTableInfo
	table.Encoding = Encoding(loadU8(p[ttEncoding:]))
	if !validEncoding(table.Encoding, t.Version) {
		return TileTableInfo{}, failuref(
			"undefined tile encoding value (%d) decoded from tile table", uint8(table.Encoding)).Err()
	}
	table.Format = Format(loadU8(p[ttFormat:]))
	if !validFormat(table.Format, t.Version) {
		return TileTableInfo{}, failuref(
			"undefined tile pixel format (%d) decoded from tile table", uint8(table.Format)).Err()
	}
	table.Extent.Width = loadU32(p[ttXExtent:])
	table.Extent.Height = loadU32(p[ttYExtent:])

	extents, err := t.LayerExtents(r)
	if err != nil {
		return TileTableInfo{}, err
	}
	table.Extent.Layers, err = extents.ReadLayerExtents(r)
	if err != nil {
		return TileTableInfo{}, err
	}

	offsets, err := t.TileOffsets(r)
	if err != nil {
		return TileTableInfo{}, err
	}
	table.Layers, err = offsets.ReadTileOffsets(r, table.Extent.Layers)
	if err != nil {
		return TileTableInfo{}, err
	}

	if t.Version > Extension1_0 {
		// Version 2 fields are surfaced here.
	}
	return table, nil
}

// LayerExtents constructs the layer extents reader at the stored offset.
func (t TileTable) LayerExtents(r Region) (LayerExtents, error) {
	p, err := r.Bytes(t.Offset, ttV1_0Size)
	if err != nil {
		return LayerExtents{}, err
	}
	le := LayerExtents{DataBlock{Offset: loadU64(p[ttLayerExtents:]), FileSize: t.FileSize, Version: t.Version}}
	if result := le.ValidateOffset(r); result.Failed() {
		return LayerExtents{}, failuref("failed to retrieve layer extents array: %s", result.Message).Err()
	}
	return le, nil
}

// TileOffsets constructs the tile offsets reader at the stored offset.
func (t TileTable) TileOffsets(r Region) (TileOffsets, error) {
	p, err := r.Bytes(t.Offset, ttV1_0Size)
	if err != nil {
		return TileOffsets{}, err
	}
	to := TileOffsets{DataBlock{Offset: loadU64(p[ttTileOffsets:]), FileSize: t.FileSize, Version: t.Version}}
	if result := to.ValidateOffset(r); result.Failed() {
		return TileOffsets{}, failuref("failed to retrieve tile offset array: %s", result.Message).Err()
	}
	return to, nil
}

// TileTableCreateInfo carries the pre-computed layout for StoreTileTable.
// Both child arrays must already be stored at their offsets.
type TileTableCreateInfo struct {
	TileTableOffset    uint64
	Encoding           Encoding
	Format             Format
	TilesOffset        uint64
	LayerExtentsOffset uint64
	WidthPixels        uint32
	HeightPixels       uint32
}

// StoreTileTable validates both child offsets and writes the tile table
// block. An undefined pixel format is permitted with a warning; an undefined
// encoding is not.
func StoreTileTable(buf []byte, ci TileTableCreateInfo) error {
	if err := checkStoreBounds(buf, ci.TileTableOffset, ttV1_0Size, "TILE_TABLE"); err != nil {
		return err
	}
	if !validEncoding(ci.Encoding, CurrentVersion) {
		return failuref(
			"undefined tile table encoding value (0x%02X) in TileTableCreateInfo; the encoding shall be one of the enumerated values, excluding the undefined value (0)",
			uint8(ci.Encoding)).Err()
	}
	switch {
	case ci.Format == FormatUndefined:
		slog.Warn("tile table pixel format set to FORMAT_UNDEFINED (0x00); while this is permitted, encoding the source pixel format is recommended")
	case !validFormat(ci.Format, CurrentVersion):
		return failuref(
			"undefined tile table format value (0x%02X) in TileTableCreateInfo", uint8(ci.Format)).Err()
	}

	r := MemoryRegion(buf)
	fileSize := uint64(len(buf))
	to := TileOffsets{DataBlock{Offset: ci.TilesOffset, FileSize: fileSize, Version: CurrentVersion}}
	if result := to.ValidateOffset(r); result.Failed() {
		return failuref("failed STORE_TILE_TABLE: invalid TileTableCreateInfo TilesOffset (%s)", result.Message).Err()
	}
	le := LayerExtents{DataBlock{Offset: ci.LayerExtentsOffset, FileSize: fileSize, Version: CurrentVersion}}
	if result := le.ValidateOffset(r); result.Failed() {
		return failuref("failed STORE_TILE_TABLE: invalid TileTableCreateInfo LayerExtentsOffset (%s)", result.Message).Err()
	}

	storePrologue(buf, ci.TileTableOffset, RecoverTileTable)
	p := buf[ci.TileTableOffset:]
	storeU8(p[ttEncoding:], uint8(ci.Encoding))
	storeU8(p[ttFormat:], uint8(ci.Format))
	storeU64(p[ttCipher:], NullOffset)
	storeU64(p[ttTileOffsets:], ci.TilesOffset)
	storeU64(p[ttLayerExtents:], ci.LayerExtentsOffset)
	storeU32(p[ttXExtent:], ci.WidthPixels)
	storeU32(p[ttYExtent:], ci.HeightPixels)
	return nil
}
