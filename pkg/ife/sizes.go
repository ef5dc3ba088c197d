package ife

// Fixed v1.0 block sizes, exported for offset layout planners. Array blocks
// report their sizes through the Size* helpers next to their writers.

// HeaderSize is the byte length of the v1.0 file header.
func HeaderSize() uint64 { return headerV1_0Size }

// TileTableSize is the byte length of the v1.0 tile table block.
func TileTableSize() uint64 { return ttV1_0Size }

// MetadataSize is the byte length of the v1.0 metadata block.
func MetadataSize() uint64 { return mdV1_0Size }

// AttributesSize is the byte length of the v1.0 attributes header block.
func AttributesSize() uint64 { return atV1_0Size }

// SizeTileOffsetsCount is the byte length of a tile offsets block holding n
// entries.
func SizeTileOffsetsCount(n int) uint64 { return arrHeaderSize + uint64(n)*toEntrySize }
