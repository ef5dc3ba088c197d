package ife

// Prologue layout shared by every non-root block: the block's own absolute
// offset followed by its recovery tag.
const (
	blockValidation = 0
	blockRecovery   = 8
	blockHeaderSize = 10
)

// DataBlock is the common descriptor of an on-disk block: its absolute
// offset, the backing file size, and the packed extension version of the
// file. Blocks are immutable value types; all reads take the byte region as
// an explicit parameter.
type DataBlock struct {
	Offset   uint64
	FileSize uint64
	Version  uint32
}

// Valid reports whether the descriptor holds a usable offset inside the
// file.
func (b DataBlock) Valid() bool {
	return b.Offset != NullOffset && b.Offset < b.FileSize
}

// validateOffset checks the self-referential prologue: the stored validation
// value must equal the block's own offset and the stored recovery tag must
// match the expected block kind.
func (b DataBlock) validateOffset(r Region, tag RecoveryTag) Result {
	kind := tag.String()
	if !b.Valid() {
		return validationFailuref(
			"invalid %s object: the %s was not created with a valid offset value", kind, kind)
	}
	p, err := r.Bytes(b.Offset, blockHeaderSize)
	if err != nil {
		return validationFailuref("%s prologue unreadable at offset %d: %v", kind, b.Offset, err)
	}
	if stored := loadU64(p[blockValidation:]); stored != b.Offset {
		return validationFailuref(
			"%s failed offset validation: the VALIDATION value (%d) is not the offset location (%d)",
			kind, stored, b.Offset)
	}
	if stored := RecoveryTag(loadU16(p[blockRecovery:])); stored != tag {
		return validationFailuref(
			"RECOVER_%s (0x%04X) tag failed validation: the tag value is (0x%04X)",
			kind, uint16(tag), uint16(stored))
	}
	return success()
}

// storePrologue writes the ten byte self-identifying prologue at the block's
// offset.
func storePrologue(buf []byte, offset uint64, tag RecoveryTag) {
	p := buf[offset:]
	storeU64(p[blockValidation:], offset)
	storeU16(p[blockRecovery:], uint16(tag))
}

// checkStoreBounds guards a writer against a CreateInfo that would scribble
// past the end of the target buffer.
func checkStoreBounds(buf []byte, offset, size uint64, kind string) error {
	if offset == NullOffset {
		return failuref("failed to store %s: NULL_OFFSET provided as location", kind).Err()
	}
	end := offset + size
	if end < offset || end > uint64(len(buf)) {
		return failuref("failed to store %s: block [%d, %d) exceeds the %d byte region",
			kind, offset, end, len(buf)).Err()
	}
	return nil
}
