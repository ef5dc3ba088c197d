package ife

// Array block header shared by the entry-stepped arrays: a stored per-entry
// size followed by the entry count. The stored entry size, not a compiled-in
// constant, steps the read cursor so later minor versions can widen entries
// without breaking older readers.
const (
	arrEntrySize  = blockHeaderSize
	arrEntryCount = arrEntrySize + 2
	arrHeaderSize = arrEntryCount + 4
)

// Layer extent entry layout.
const (
	leXTiles    = 0
	leYTiles    = 4
	leScale     = 8
	leEntrySize = 12
)

// LayerExtent describes one pyramid layer: its tile grid dimensions, its
// scale relative to the lowest-resolution layer, and the downsample factor
// derived on read as maxScale/scale.
type LayerExtent struct {
	XTiles     uint32
	YTiles     uint32
	Scale      float32
	Downsample float32
}

// LayerExtents reads and validates the layer extents array block.
type LayerExtents struct {
	DataBlock
}

// Size returns the on-disk byte length of the block, header plus
// entryCount stored entries.
func (l LayerExtents) Size(r Region) (uint64, error) {
	p, err := r.Bytes(l.Offset, arrHeaderSize)
	if err != nil {
		return 0, err
	}
	size := uint64(arrHeaderSize) + uint64(loadU32(p[arrEntryCount:]))*uint64(loadU16(p[arrEntrySize:]))
	if l.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size, nil
}

// ValidateOffset checks the block prologue against the layer extents tag.
func (l LayerExtents) ValidateOffset(r Region) Result {
	return l.validateOffset(r, RecoverLayerExtents)
}

// ValidateFull validates the prologue, the array bounds, and every entry:
// tile counts at least one in each axis and strictly increasing scales, so
// each layer holds higher resolution than the previous.
func (l LayerExtents) ValidateFull(r Region) Result {
	result := l.ValidateOffset(r)
	if result.Failed() {
		return result
	}

	p, err := r.Bytes(l.Offset, arrHeaderSize)
	if err != nil {
		return validationFailuref("LAYER_EXTENTS unreadable: %v", err)
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))
	start := l.Offset + arrHeaderSize
	if l.Version > Extension1_0 {
		// Version 2 header fields are validated here.
	}

	if step < leEntrySize {
		return failuref("LAYER_EXTENTS failed validation: stored entry size (%d) is shorter than a v1.0 entry", step)
	}
	if start+entries*step > l.FileSize {
		return failuref(
			"LAYER_EXTENTS failed validation: bytes block (%d-%d bytes) extends beyond the end of the file",
			start, start+entries*step)
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return failuref("LAYER_EXTENTS array unreadable: %v", err)
	}

	priorScale := float32(0)
	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		if loadU32(e[leXTiles:]) < 1 {
			return failuref("LAYER_EXTENTS [%d] failed validation: the X-tiles count shall be greater than zero", i)
		}
		if loadU32(e[leYTiles:]) < 1 {
			return failuref("LAYER_EXTENTS [%d] failed validation: the Y-tiles count shall be greater than zero", i)
		}
		scale := loadF32(e[leScale:])
		if !(scale > priorScale) {
			return failuref(
				"LAYER_EXTENTS [%d] failed validation: the scale of a layer shall be greater than zero and greater than the previous layer scale", i)
		}
		priorScale = scale
		if l.Version > Extension1_0 {
			// Version 2 entry fields are validated here.
		}
	}
	return success()
}

// ReadLayerExtents returns the layer array with the derived downsample
// factor for each entry.
func (l LayerExtents) ReadLayerExtents(r Region) ([]LayerExtent, error) {
	p, err := r.Bytes(l.Offset, arrHeaderSize)
	if err != nil {
		return nil, err
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))
	start := l.Offset + arrHeaderSize
	if l.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}

	if step < leEntrySize {
		return nil, failuref("LAYER_EXTENTS read failed: stored entry size (%d) is shorter than a v1.0 entry", step).Err()
	}
	if start+entries*step > l.FileSize {
		return nil, failuref(
			"LAYER_EXTENTS read failed: bytes block (%d-%d bytes) extends beyond the end of the file",
			start, start+entries*step).Err()
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return nil, err
	}

	extents := make([]LayerExtent, entries)
	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		extents[i] = LayerExtent{
			XTiles: loadU32(e[leXTiles:]),
			YTiles: loadU32(e[leYTiles:]),
			Scale:  loadF32(e[leScale:]),
		}
		if l.Version > Extension1_0 {
			// Version 2 entry fields are surfaced here.
		}
	}
	if len(extents) > 0 {
		maxScale := extents[len(extents)-1].Scale
		for i := range extents {
			extents[i].Downsample = maxScale / extents[i].Scale
		}
	}
	return extents, nil
}

// SizeLayerExtents returns the byte length of a layer extents block holding
// n entries.
func SizeLayerExtents(n int) uint64 {
	return arrHeaderSize + uint64(n)*leEntrySize
}

// StoreLayerExtents writes the layer extents array block at the given
// offset.
func StoreLayerExtents(buf []byte, offset uint64, extents []LayerExtent) error {
	if uint64(len(extents)) > uint64(^uint32(0)) {
		return failuref(
			"failed to store layer extents: array length (%d) exceeds the 32-bit size limit", len(extents)).Err()
	}
	if err := checkStoreBounds(buf, offset, SizeLayerExtents(len(extents)), "LAYER_EXTENTS"); err != nil {
		return err
	}

	storePrologue(buf, offset, RecoverLayerExtents)
	p := buf[offset:]
	storeU16(p[arrEntrySize:], leEntrySize)
	storeU32(p[arrEntryCount:], uint32(len(extents)))
	cursor := p[arrHeaderSize:]
	for _, extent := range extents {
		storeU32(cursor[leXTiles:], extent.XTiles)
		storeU32(cursor[leYTiles:], extent.YTiles)
		storeF32(cursor[leScale:], extent.Scale)
		cursor = cursor[leEntrySize:]
	}
	return nil
}
