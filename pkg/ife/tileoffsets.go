package ife

// Tile offset entry layout: a 40-bit payload offset (faults past 1 TiB) and
// a 24-bit payload size (tiles stay well under 16 MiB).
const (
	toOffset    = 0
	toTileSize  = 5
	toEntrySize = 8
)

// TileOffsets reads and validates the tile offsets array block.
type TileOffsets struct {
	DataBlock
}

// Size returns the on-disk byte length of the block.
func (t TileOffsets) Size(r Region) (uint64, error) {
	p, err := r.Bytes(t.Offset, arrHeaderSize)
	if err != nil {
		return 0, err
	}
	size := uint64(arrHeaderSize) + uint64(loadU32(p[arrEntryCount:]))*uint64(loadU16(p[arrEntrySize:]))
	if t.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size, nil
}

// ValidateOffset checks the block prologue against the tile offsets tag.
func (t TileOffsets) ValidateOffset(r Region) Result {
	return t.validateOffset(r, RecoverTileOffsets)
}

// ValidateFull validates the prologue, the array bounds, and every non-sparse
// entry's payload range against the file size.
func (t TileOffsets) ValidateFull(r Region) Result {
	result := t.ValidateOffset(r)
	if result.Failed() {
		return result
	}

	p, err := r.Bytes(t.Offset, arrHeaderSize)
	if err != nil {
		return validationFailuref("TILE_OFFSETS unreadable: %v", err)
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))
	start := t.Offset + arrHeaderSize
	if t.Version > Extension1_0 {
		// Version 2 header fields are validated here.
	}

	if step < toEntrySize {
		return failuref("TILE_OFFSETS failed validation: stored entry size (%d) is shorter than a v1.0 entry", step)
	}
	if start+entries*step > t.FileSize {
		return failuref(
			"TILE_OFFSETS failed validation: bytes block (%d-%d bytes) extends beyond the end of the file",
			start, start+entries*step)
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return failuref("TILE_OFFSETS array unreadable: %v", err)
	}

	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		offset := loadU40(e[toOffset:])
		if offset == NullTile {
			continue
		}
		if offset+uint64(loadU24(e[toTileSize:])) > t.FileSize {
			return failuref(
				"TILE_OFFSETS validation failed: global tile entry (%d) has a tile data block (offset + size) extending out of the file bounds (%d bytes)",
				i, t.FileSize)
		}
		if t.Version > Extension1_0 {
			// Version 2 entry fields are validated here.
		}
	}
	return success()
}

// ReadTileOffsets populates per-layer tile handle arrays against the shape
// declared by the layer extents. The stored entry count must equal the sum of
// xTiles*yTiles over all layers. Sparse entries (offset == NullTile) are
// normalized to {NullOffset, 0}.
func (t TileOffsets) ReadTileOffsets(r Region, extents []LayerExtent) ([][]TileEntry, error) {
	p, err := r.Bytes(t.Offset, arrHeaderSize)
	if err != nil {
		return nil, err
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))

	var totalTiles uint64
	for _, extent := range extents {
		totalTiles += uint64(extent.XTiles) * uint64(extent.YTiles)
	}
	if totalTiles != entries {
		return nil, failuref(
			"failed TILE_OFFSETS read: tile count in layer extents (%d) does not match total entries in the tile offset array (%d)",
			totalTiles, entries).Err()
	}

	start := t.Offset + arrHeaderSize
	if t.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}
	if step < toEntrySize {
		return nil, failuref("TILE_OFFSETS read failed: stored entry size (%d) is shorter than a v1.0 entry", step).Err()
	}
	if start+entries*step > t.FileSize {
		return nil, failuref(
			"TILE_OFFSETS read failed: bytes block (%d-%d bytes) extends beyond the end of the file",
			start, start+entries*step).Err()
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return nil, err
	}

	layers := make([][]TileEntry, len(extents))
	cursor := array
	for li, extent := range extents {
		tiles := uint64(extent.XTiles) * uint64(extent.YTiles)
		layer := make([]TileEntry, tiles)
		for ti := uint64(0); ti < tiles; ti++ {
			tile := TileEntry{
				Offset: loadU40(cursor[toOffset:]),
				Size:   loadU24(cursor[toTileSize:]),
			}
			switch {
			case tile.Offset == NullTile:
				tile.Offset = NullOffset
				tile.Size = 0
			case tile.Offset+uint64(tile.Size) > t.FileSize:
				return nil, failuref("TILE_OFFSETS read returned tile data offset value out of file bounds").Err()
			}
			layer[ti] = tile
			cursor = cursor[step:]
			if t.Version > Extension1_0 {
				// Version 2 entry fields are surfaced here.
			}
		}
		layers[li] = layer
	}
	return layers, nil
}

// SizeTileOffsets returns the byte length of a tile offsets block covering
// every tile of every layer.
func SizeTileOffsets(layers [][]TileEntry) uint64 {
	size := uint64(arrHeaderSize)
	for _, layer := range layers {
		size += uint64(len(layer)) * toEntrySize
	}
	return size
}

// StoreTileOffsets writes the tile offsets array block. Sparse tiles are
// written as the NullTile sentinel with a zero size. Offsets above the 40-bit
// limit and sizes above the 24-bit limit are rejected.
func StoreTileOffsets(buf []byte, offset uint64, layers [][]TileEntry) error {
	if err := checkStoreBounds(buf, offset, SizeTileOffsets(layers), "TILE_OFFSETS"); err != nil {
		return err
	}
	var totalTiles uint64
	for _, layer := range layers {
		totalTiles += uint64(len(layer))
	}
	if totalTiles > uint64(^uint32(0)) {
		return failuref("failed to store tile offsets: tile count (%d) exceeds the 32-bit size limit", totalTiles).Err()
	}

	storePrologue(buf, offset, RecoverTileOffsets)
	p := buf[offset:]
	storeU16(p[arrEntrySize:], toEntrySize)
	storeU32(p[arrEntryCount:], uint32(totalTiles))
	cursor := p[arrHeaderSize:]
	for _, layer := range layers {
		for _, tile := range layer {
			stored := tile
			if tile.Offset == NullOffset {
				stored = TileEntry{Offset: NullTile, Size: 0}
			}
			if stored.Offset > maxUint40 {
				return failuref("tile offset above 40-bit numerical limit").Err()
			}
			if stored.Size > maxUint24 {
				return failuref("tile size above 24-bit numerical limit").Err()
			}
			storeU40(cursor[toOffset:], stored.Offset)
			storeU24(cursor[toTileSize:], stored.Size)
			cursor = cursor[toEntrySize:]
		}
	}
	return nil
}
