package ife

import "sort"

// Attributes block layout.
const (
	atFormat   = blockHeaderSize
	atVersion  = atFormat + 1
	atSizes    = atVersion + 2
	atBytes    = atSizes + 8
	atV1_0Size = atBytes + 8
)

// Attribute size entry layout.
const (
	asKeySize     = 0
	asValueSize   = 2
	asEntrySize   = 6
	bytesCount    = blockHeaderSize // byte-array blocks store a total length
	bytesHdrSize  = bytesCount + 4
)

// AttributeSet is the abstracted attribute store: a key to value mapping
// plus the convention (I2S or DICOM) it was encoded under. Keys are UTF-8
// comparable strings; values are opaque byte strings.
type AttributeSet struct {
	Format  AttributeFormat
	Version uint16
	Entries map[string][]byte
}

// sortedKeys returns the attribute keys in a deterministic order. Writers
// emit sizes and bytes in this order so the two blocks always agree.
func (a AttributeSet) sortedKeys() []string {
	keys := make([]string, 0, len(a.Entries))
	for k := range a.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Attributes reads and validates the attributes header block and its two
// child arrays.
type Attributes struct {
	DataBlock
}

// Size returns the on-disk byte length of the attributes header block.
func (a Attributes) Size() uint64 {
	size := uint64(atV1_0Size)
	if a.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size
}

// ValidateOffset checks the block prologue against the attributes tag.
func (a Attributes) ValidateOffset(r Region) Result {
	return a.validateOffset(r, RecoverAttributes)
}

// ValidateFull validates the prologue, the format enumerator, and both child
// arrays, cross-checking the total key+value bytes computed from the sizes
// array against the total declared by the bytes block.
func (a Attributes) ValidateFull(r Region) Result {
	result := a.ValidateOffset(r)
	if result.Failed() {
		return result
	}

	p, err := r.Bytes(a.Offset, atV1_0Size)
	if err != nil {
		return validationFailuref("ATTRIBUTES unreadable: %v", err)
	}
	if f := AttributeFormat(loadU8(p[atFormat:])); !validAttributeFormat(f, a.Version) {
		return failuref(
			"undefined metadata format (%d) decoded from attributes header; the format shall be one of the enumerated values, excluding the undefined value (0)",
			uint8(f))
	}

	sizes := AttributesSizes{DataBlock{Offset: loadU64(p[atSizes:]), FileSize: a.FileSize, Version: a.Version}}
	expected, res := sizes.ValidateFull(r)
	if res.Failed() {
		return res
	}
	bytes := AttributesBytes{DataBlock{Offset: loadU64(p[atBytes:]), FileSize: a.FileSize, Version: a.Version}}
	if res := bytes.ValidateFull(r, expected); res.Failed() {
		return res
	}
	return result
}

// ReadAttributes slices the byte array into a key to value mapping in the
// order of the size entries.
func (a Attributes) ReadAttributes(r Region) (AttributeSet, error) {
	p, err := r.Bytes(a.Offset, atV1_0Size)
	if err != nil {
		return AttributeSet{}, err
	}

	set := AttributeSet{Format: AttributeFormat(loadU8(p[atFormat:]))}
	if !validAttributeFormat(set.Format, a.Version) {
		return AttributeSet{}, failuref(
			"undefined attributes encoding format (%d) decoded from attributes header", uint8(set.Format)).Err()
	}
	set.Version = loadU16(p[atVersion:])

	sizes, err := a.Sizes(r)
	if err != nil {
		return AttributeSet{}, err
	}
	sizeArray, err := sizes.ReadSizes(r)
	if err != nil {
		return AttributeSet{}, err
	}
	bytes, err := a.Bytes(r)
	if err != nil {
		return AttributeSet{}, err
	}
	set.Entries, err = bytes.ReadBytes(r, sizeArray)
	if err != nil {
		return AttributeSet{}, err
	}

	if a.Version > Extension1_0 {
		// Version 2 fields are surfaced here.
	}
	return set, nil
}

// Sizes constructs the attribute sizes reader at the stored offset.
func (a Attributes) Sizes(r Region) (AttributesSizes, error) {
	p, err := r.Bytes(a.Offset, atV1_0Size)
	if err != nil {
		return AttributesSizes{}, err
	}
	sizes := AttributesSizes{DataBlock{Offset: loadU64(p[atSizes:]), FileSize: a.FileSize, Version: a.Version}}
	if result := sizes.ValidateOffset(r); result.Failed() {
		return AttributesSizes{}, result.Err()
	}
	return sizes, nil
}

// Bytes constructs the attribute bytes reader at the stored offset.
func (a Attributes) Bytes(r Region) (AttributesBytes, error) {
	p, err := r.Bytes(a.Offset, atV1_0Size)
	if err != nil {
		return AttributesBytes{}, err
	}
	bytes := AttributesBytes{DataBlock{Offset: loadU64(p[atBytes:]), FileSize: a.FileSize, Version: a.Version}}
	if result := bytes.ValidateOffset(r); result.Failed() {
		return AttributesBytes{}, result.Err()
	}
	return bytes, nil
}

// AttributeSizeEntry is one decoded size pair.
type AttributeSizeEntry struct {
	KeySize   uint16
	ValueSize uint32
}

// AttributesSizes reads and validates the attribute sizes array block.
type AttributesSizes struct {
	DataBlock
}

// Size returns the on-disk byte length of the block.
func (s AttributesSizes) Size(r Region) (uint64, error) {
	p, err := r.Bytes(s.Offset, arrHeaderSize)
	if err != nil {
		return 0, err
	}
	size := uint64(arrHeaderSize) + uint64(loadU32(p[arrEntryCount:]))*uint64(loadU16(p[arrEntrySize:]))
	if s.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size, nil
}

// ValidateOffset checks the block prologue against the attribute sizes tag.
func (s AttributesSizes) ValidateOffset(r Region) Result {
	return s.validateOffset(r, RecoverAttributesSizes)
}

// ValidateFull validates the prologue and array bounds, and returns the
// total key+value bytes the bytes block must declare.
func (s AttributesSizes) ValidateFull(r Region) (uint64, Result) {
	result := s.ValidateOffset(r)
	if result.Failed() {
		return 0, result
	}

	p, err := r.Bytes(s.Offset, arrHeaderSize)
	if err != nil {
		return 0, validationFailuref("ATTRIBUTES_SIZES unreadable: %v", err)
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))
	start := s.Offset + arrHeaderSize
	if s.Version > Extension1_0 {
		// Version 2 header fields are validated here.
	}

	if step < asEntrySize {
		return 0, failuref("ATTRIBUTES_SIZES failed validation: stored entry size (%d) is shorter than a v1.0 entry", step)
	}
	if start+entries*step > s.FileSize {
		return 0, failuref(
			"ATTRIBUTES_SIZES failed validation: sizes array block (location %d - %d bytes) extends beyond the end of file",
			start, start+entries*step)
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return 0, failuref("ATTRIBUTES_SIZES array unreadable: %v", err)
	}

	var expected uint64
	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		expected += uint64(loadU16(e[asKeySize:]))
		expected += uint64(loadU32(e[asValueSize:]))
		if s.Version > Extension1_0 {
			// Version 2 entry fields are validated here.
		}
	}
	return expected, success()
}

// ReadSizes returns the decoded size pairs in entry order.
func (s AttributesSizes) ReadSizes(r Region) ([]AttributeSizeEntry, error) {
	p, err := r.Bytes(s.Offset, arrHeaderSize)
	if err != nil {
		return nil, err
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))
	start := s.Offset + arrHeaderSize
	if s.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}

	if step < asEntrySize {
		return nil, failuref("ATTRIBUTES_SIZES read failed: stored entry size (%d) is shorter than a v1.0 entry", step).Err()
	}
	if start+entries*step > s.FileSize {
		return nil, failuref(
			"ATTRIBUTES_SIZES read failed: sizes array block (location %d - %d bytes) extends beyond the end of file",
			start, start+entries*step).Err()
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return nil, err
	}

	sizes := make([]AttributeSizeEntry, entries)
	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		sizes[i] = AttributeSizeEntry{
			KeySize:   loadU16(e[asKeySize:]),
			ValueSize: loadU32(e[asValueSize:]),
		}
		if s.Version > Extension1_0 {
			// Version 2 entry fields are surfaced here.
		}
	}
	return sizes, nil
}

// AttributesBytes reads and validates the attribute bytes block: the
// concatenation, in size-entry order, of each key followed by its value.
type AttributesBytes struct {
	DataBlock
}

// Size returns the on-disk byte length of the block.
func (b AttributesBytes) Size(r Region) (uint64, error) {
	p, err := r.Bytes(b.Offset, bytesHdrSize)
	if err != nil {
		return 0, err
	}
	size := uint64(bytesHdrSize) + uint64(loadU32(p[bytesCount:]))
	if b.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size, nil
}

// ValidateOffset checks the block prologue against the attribute bytes tag.
func (b AttributesBytes) ValidateOffset(r Region) Result {
	return b.validateOffset(r, RecoverAttributesBytes)
}

// ValidateFull validates the prologue and checks the declared total against
// the expectation computed from the sizes array.
func (b AttributesBytes) ValidateFull(r Region, expected uint64) Result {
	result := b.ValidateOffset(r)
	if result.Failed() {
		return result
	}

	p, err := r.Bytes(b.Offset, bytesHdrSize)
	if err != nil {
		return validationFailuref("ATTRIBUTES_BYTES unreadable: %v", err)
	}
	total := uint64(loadU32(p[bytesCount:]))
	if total != expected {
		return failuref(
			"ATTRIBUTES_BYTES failed validation: expected bytes (%d) from the ATTRIBUTES_SIZES array does not match the byte size of the ATTRIBUTES_BYTES block (%d)",
			expected, total)
	}
	if b.Offset+bytesHdrSize+total > b.FileSize {
		return failuref(
			"ATTRIBUTES_BYTES failed validation: full attributes byte array block (location %d - %d) extends beyond end of file",
			b.Offset, b.Offset+bytesHdrSize+total)
	}
	return success()
}

// ReadBytes slices the byte body into the key to value mapping described by
// the size array.
func (b AttributesBytes) ReadBytes(r Region, sizes []AttributeSizeEntry) (map[string][]byte, error) {
	p, err := r.Bytes(b.Offset, bytesHdrSize)
	if err != nil {
		return nil, err
	}
	total := uint64(loadU32(p[bytesCount:]))

	var expected uint64
	for _, size := range sizes {
		expected += uint64(size.KeySize) + uint64(size.ValueSize)
	}
	if expected != total {
		return nil, failuref(
			"ATTRIBUTES_BYTES failed validation: expected bytes (%d) from the ATTRIBUTES_SIZES array does not match the byte size of the ATTRIBUTES_BYTES block (%d)",
			expected, total).Err()
	}

	start := b.Offset + bytesHdrSize
	if b.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}
	if start+total > b.FileSize {
		return nil, failuref(
			"failed ATTRIBUTES_BYTES read: byte array offset and size (%d) exceeds file size (%d bytes)",
			start+total, b.FileSize).Err()
	}
	body, err := r.Bytes(start, total)
	if err != nil {
		return nil, err
	}

	attributes := make(map[string][]byte, len(sizes))
	cursor := body
	for _, size := range sizes {
		key := string(cursor[:size.KeySize])
		value := make([]byte, size.ValueSize)
		copy(value, cursor[size.KeySize:uint64(size.KeySize)+uint64(size.ValueSize)])
		attributes[key] = value
		cursor = cursor[uint64(size.KeySize)+uint64(size.ValueSize):]
	}
	return attributes, nil
}

// AttributesCreateInfo carries the pre-computed layout for StoreAttributes.
// Both child arrays must already be stored.
type AttributesCreateInfo struct {
	AttributesOffset uint64
	Format           AttributeFormat
	Version          uint16
	SizesOffset      uint64
	BytesOffset      uint64
}

// StoreAttributes validates both child offsets and writes the attributes
// header block. DICOM attributes require a non-zero version year.
func StoreAttributes(buf []byte, ci AttributesCreateInfo) error {
	if err := checkStoreBounds(buf, ci.AttributesOffset, atV1_0Size, "ATTRIBUTES"); err != nil {
		return err
	}
	if !validAttributeFormat(ci.Format, CurrentVersion) {
		return failuref("failed to store metadata attributes: undefined format").Err()
	}
	if ci.Format == AttributesDICOM && ci.Version == 0 {
		return failuref("DICOM attributes must include the PS3.3 version year; a version of 0 requires the I2S free-text format").Err()
	}

	r := MemoryRegion(buf)
	fileSize := uint64(len(buf))
	sizes := AttributesSizes{DataBlock{Offset: ci.SizesOffset, FileSize: fileSize, Version: CurrentVersion}}
	if result := sizes.ValidateOffset(r); result.Failed() {
		return failuref("failed STORE_ATTRIBUTES: invalid attributes sizes array offset (%s)", result.Message).Err()
	}
	bytes := AttributesBytes{DataBlock{Offset: ci.BytesOffset, FileSize: fileSize, Version: CurrentVersion}}
	if result := bytes.ValidateOffset(r); result.Failed() {
		return failuref("failed STORE_ATTRIBUTES: invalid attributes byte array offset (%s)", result.Message).Err()
	}

	storePrologue(buf, ci.AttributesOffset, RecoverAttributes)
	p := buf[ci.AttributesOffset:]
	storeU8(p[atFormat:], uint8(ci.Format))
	storeU16(p[atVersion:], ci.Version)
	storeU64(p[atSizes:], ci.SizesOffset)
	storeU64(p[atBytes:], ci.BytesOffset)
	return nil
}

// SizeAttributesSizes returns the byte length of a sizes block for the set.
func SizeAttributesSizes(set AttributeSet) uint64 {
	return arrHeaderSize + uint64(len(set.Entries))*asEntrySize
}

// SizeAttributesBytes returns the byte length of a bytes block for the set.
func SizeAttributesBytes(set AttributeSet) uint64 {
	size := uint64(bytesHdrSize)
	for key, value := range set.Entries {
		size += uint64(len(key)) + uint64(len(value))
	}
	return size
}

// StoreAttributesSizes writes the attribute sizes array in sorted key order.
func StoreAttributesSizes(buf []byte, offset uint64, set AttributeSet) error {
	if err := checkStoreBounds(buf, offset, SizeAttributesSizes(set), "ATTRIBUTES_SIZES"); err != nil {
		return err
	}
	if set.Format == AttributesUndefined {
		return failuref("failed to store attribute sizes: undefined metadata attribute format").Err()
	}
	keys := set.sortedKeys()
	for _, key := range keys {
		if len(key) > int(^uint16(0)) {
			return failuref("failed to store attribute sizes: attribute key %q exceeds the 16-bit size limit", key).Err()
		}
		if uint64(len(set.Entries[key])) > uint64(^uint32(0)) {
			return failuref("failed to store attribute sizes: attribute value length (%d bytes) exceeds the 32-bit size limit", len(set.Entries[key])).Err()
		}
	}

	storePrologue(buf, offset, RecoverAttributesSizes)
	p := buf[offset:]
	storeU16(p[arrEntrySize:], asEntrySize)
	storeU32(p[arrEntryCount:], uint32(len(keys)))
	cursor := p[arrHeaderSize:]
	for _, key := range keys {
		storeU16(cursor[asKeySize:], uint16(len(key)))
		storeU32(cursor[asValueSize:], uint32(len(set.Entries[key])))
		cursor = cursor[asEntrySize:]
	}
	return nil
}

// StoreAttributesBytes writes the attribute bytes block in the same sorted
// key order the sizes block uses.
func StoreAttributesBytes(buf []byte, offset uint64, set AttributeSet) error {
	if err := checkStoreBounds(buf, offset, SizeAttributesBytes(set), "ATTRIBUTES_BYTES"); err != nil {
		return err
	}
	if set.Format == AttributesUndefined {
		return failuref("failed to store attribute bytes: undefined metadata attribute format").Err()
	}

	storePrologue(buf, offset, RecoverAttributesBytes)
	p := buf[offset:]
	cursor := p[bytesHdrSize:]
	var total uint64
	for _, key := range set.sortedKeys() {
		value := set.Entries[key]
		copy(cursor, key)
		cursor = cursor[len(key):]
		copy(cursor, value)
		cursor = cursor[len(value):]
		total += uint64(len(key)) + uint64(len(value))
	}
	if total > uint64(^uint32(0)) {
		return failuref("failed to store attribute bytes: byte array length (%d) exceeds the 32-bit size limit", total).Err()
	}
	storeU32(p[bytesCount:], uint32(total))
	return nil
}
