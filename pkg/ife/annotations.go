package ife

import (
	"log/slog"
	"sort"
)

// Annotations array block layout: the common array header extended with the
// two optional group block offsets.
const (
	anGroupSizes = arrHeaderSize
	anGroupBytes = anGroupSizes + 8
	anV1_0Size   = anGroupBytes + 8
)

// Annotation entry layout.
const (
	aeIdentifier  = 0
	aeBytesOffset = 3
	aeFormat      = 11
	aeXLocation   = 12
	aeYLocation   = 16
	aeXSize       = 20
	aeYSize       = 24
	aeWidth       = 28
	aeHeight      = 32
	aeParent      = 36
	aeEntrySize   = 39
)

// Annotation group size entry layout.
const (
	gsLabelSize   = 0
	gsMemberCount = 2
	gsEntrySize   = 6
)

// Annotation is the abstracted handle of one on-slide annotation: its byte
// stream location, content type, spatial placement, and optional parent
// identifier.
type Annotation struct {
	Offset    uint64
	ByteSize  uint64
	Type      AnnotationType
	XLocation float32
	YLocation float32
	XSize     float32
	YSize     float32
	Width     uint32
	Height    uint32
	Parent    uint32
}

// AnnotationGroup records where a named group's packed 24-bit member
// identifiers live in the group bytes block. The identifier array stays in
// the region.
type AnnotationGroup struct {
	Offset      uint64
	MemberCount uint32
}

// ByteSize is the length of the packed member identifier array.
func (g AnnotationGroup) ByteSize() uint64 { return uint64(g.MemberCount) * 3 }

// AnnotationSet is the abstracted annotations surface: entries keyed by
// their unique 24-bit identifiers and groups keyed by label.
type AnnotationSet struct {
	Entries map[uint32]Annotation
	Groups  map[string]AnnotationGroup
}

// Annotations reads and validates the annotations array block.
type Annotations struct {
	DataBlock
}

// Size returns the on-disk byte length of the array block.
func (a Annotations) Size(r Region) (uint64, error) {
	p, err := r.Bytes(a.Offset, anV1_0Size)
	if err != nil {
		return 0, err
	}
	size := uint64(anV1_0Size) + uint64(loadU32(p[arrEntryCount:]))*uint64(loadU16(p[arrEntrySize:]))
	if a.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size, nil
}

// ValidateOffset checks the block prologue against the annotations tag.
func (a Annotations) ValidateOffset(r Region) Result {
	return a.validateOffset(r, RecoverAnnotations)
}

// HasGroups reports whether both group block offsets are present. One null
// offset while the other is valid fails full validation.
func (a Annotations) HasGroups(r Region) bool {
	p, err := r.Bytes(a.Offset, anV1_0Size)
	if err != nil {
		return false
	}
	sizes := loadU64(p[anGroupSizes:])
	bytes := loadU64(p[anGroupBytes:])
	return sizes != NullOffset && sizes < a.FileSize &&
		bytes != NullOffset && bytes < a.FileSize
}

// ValidateFull validates the prologue, every referenced annotation bytes
// block, the per-entry type enumerators, duplicate identifiers (warned), and
// the group blocks when present, cross-checking the group byte totals.
func (a Annotations) ValidateFull(r Region) Result {
	result := a.ValidateOffset(r)
	if result.Failed() {
		return result
	}

	p, err := r.Bytes(a.Offset, anV1_0Size)
	if err != nil {
		return validationFailuref("ANNOTATIONS unreadable: %v", err)
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))

	groupSizesOffset := loadU64(p[anGroupSizes:])
	groupBytesOffset := loadU64(p[anGroupBytes:])
	switch {
	case a.HasGroups(r):
		sizes := GroupSizes{DataBlock{Offset: groupSizesOffset, FileSize: a.FileSize, Version: a.Version}}
		expected, res := sizes.ValidateFull(r)
		if res.Failed() {
			return res
		}
		bytes := GroupBytes{DataBlock{Offset: groupBytesOffset, FileSize: a.FileSize, Version: a.Version}}
		if res := bytes.ValidateFull(r, expected); res.Failed() {
			return res
		}
	case groupSizesOffset != NullOffset || groupBytesOffset != NullOffset:
		return failuref(
			"ANNOTATIONS failed validation: the group sizes and group bytes offsets shall both be valid or both be NULL_OFFSET")
	}

	start := a.Offset + anV1_0Size
	if a.Version > Extension1_0 {
		// Version 2 header fields are validated here.
	}
	if step < aeEntrySize {
		return failuref("ANNOTATIONS failed validation: stored entry size (%d) is shorter than a v1.0 entry", step)
	}
	if start+entries*step > a.FileSize {
		return failuref(
			"ANNOTATIONS failed validation: bytes block (%d-%d bytes) extends beyond the end of the file",
			start, start+entries*step)
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return failuref("ANNOTATIONS array unreadable: %v", err)
	}

	seen := make(map[uint32]struct{}, entries)
	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		bytesOffset := loadU64(e[aeBytesOffset:])
		if bytesOffset == NullOffset {
			return failuref(
				"ANNOTATIONS failed validation: annotation entry (%d) contains an invalid byte stream offset", i)
		}
		if bytesOffset > a.FileSize {
			return failuref(
				"ANNOTATIONS failed validation: annotation entry (%d) contains an offset that is out of file bounds (%d)",
				i, bytesOffset)
		}
		bytes := AnnotationBytes{DataBlock{Offset: bytesOffset, FileSize: a.FileSize, Version: a.Version}}
		if res := bytes.ValidateFull(r); res.Failed() {
			return res
		}

		identifier := loadU24(e[aeIdentifier:])
		if _, dup := seen[identifier]; dup {
			slog.Warn("duplicate annotation identifier; each annotation shall be referenced by a unique 24-bit identifier",
				"identifier", identifier)
		}
		seen[identifier] = struct{}{}

		if t := AnnotationType(loadU8(e[aeFormat:])); !validAnnotationType(t, a.Version) {
			return failuref(
				"undefined annotation type (%d) decoded from annotations array; the type shall be one of the enumerated values, excluding the undefined value (0)",
				uint8(t))
		}
		if a.Version > Extension1_0 {
			// Version 2 entry fields are validated here.
		}
	}
	return result
}

// ReadAnnotations returns the abstracted annotations keyed by identifier and
// the group table keyed by label. A duplicate identifier is skipped with a
// warning. The optional blocks slice receives the AnnotationBytes reader of
// every entry for file-map walks.
func (a Annotations) ReadAnnotations(r Region, blocks *[]AnnotationBytes) (AnnotationSet, error) {
	p, err := r.Bytes(a.Offset, anV1_0Size)
	if err != nil {
		return AnnotationSet{}, err
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))
	start := a.Offset + anV1_0Size
	if a.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}

	if step < aeEntrySize {
		return AnnotationSet{}, failuref("ANNOTATIONS read failed: stored entry size (%d) is shorter than a v1.0 entry", step).Err()
	}
	if start+entries*step > a.FileSize {
		return AnnotationSet{}, failuref(
			"ANNOTATIONS read failed: bytes block (%d-%d bytes) extends beyond the end of the file",
			start, start+entries*step).Err()
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return AnnotationSet{}, err
	}

	set := AnnotationSet{Entries: make(map[uint32]Annotation, entries)}
	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		bytesOffset := loadU64(e[aeBytesOffset:])
		if bytesOffset == NullOffset {
			return AnnotationSet{}, failuref("failed ANNOTATIONS read: annotation entry contains an invalid offset").Err()
		}
		if bytesOffset > a.FileSize {
			return AnnotationSet{}, failuref("failed ANNOTATIONS read: annotation entry out of file bounds").Err()
		}
		bytes := AnnotationBytes{DataBlock{Offset: bytesOffset, FileSize: a.FileSize, Version: a.Version}}
		if result := bytes.ValidateOffset(r); result.Failed() {
			return AnnotationSet{}, result.Err()
		}
		if blocks != nil {
			*blocks = append(*blocks, bytes)
		}

		identifier := loadU24(e[aeIdentifier:])
		if _, dup := set.Entries[identifier]; dup {
			slog.Warn("duplicate annotation identifier; skipping duplicate; each annotation shall be referenced by a unique 24-bit identifier",
				"identifier", identifier)
			continue
		}

		var annotation Annotation
		if err := bytes.ReadBytes(r, &annotation); err != nil {
			return AnnotationSet{}, err
		}
		annotation.Type = AnnotationType(loadU8(e[aeFormat:]))
		if !validAnnotationType(annotation.Type, a.Version) {
			return AnnotationSet{}, failuref(
				"undefined annotation type (%d) decoded from annotations array", uint8(annotation.Type)).Err()
		}
		annotation.XLocation = loadF32(e[aeXLocation:])
		annotation.YLocation = loadF32(e[aeYLocation:])
		annotation.XSize = loadF32(e[aeXSize:])
		annotation.YSize = loadF32(e[aeYSize:])
		annotation.Width = loadU32(e[aeWidth:])
		annotation.Height = loadU32(e[aeHeight:])
		annotation.Parent = loadU24(e[aeParent:])
		set.Entries[identifier] = annotation

		if a.Version > Extension1_0 {
			// Version 2 entry fields are surfaced here.
		}
	}

	if a.HasGroups(r) {
		sizes, err := a.GroupSizes(r)
		if err != nil {
			return AnnotationSet{}, err
		}
		sizeArray, err := sizes.ReadGroupSizes(r)
		if err != nil {
			return AnnotationSet{}, err
		}
		bytes, err := a.GroupBytes(r)
		if err != nil {
			return AnnotationSet{}, err
		}
		set.Groups, err = bytes.ReadBytes(r, sizeArray)
		if err != nil {
			return AnnotationSet{}, err
		}
	}
	return set, nil
}

// GroupSizes constructs the group sizes reader at the stored offset.
func (a Annotations) GroupSizes(r Region) (GroupSizes, error) {
	p, err := r.Bytes(a.Offset, anV1_0Size)
	if err != nil {
		return GroupSizes{}, err
	}
	sizes := GroupSizes{DataBlock{Offset: loadU64(p[anGroupSizes:]), FileSize: a.FileSize, Version: a.Version}}
	if result := sizes.ValidateOffset(r); result.Failed() {
		return GroupSizes{}, result.Err()
	}
	return sizes, nil
}

// GroupBytes constructs the group bytes reader at the stored offset.
func (a Annotations) GroupBytes(r Region) (GroupBytes, error) {
	p, err := r.Bytes(a.Offset, anV1_0Size)
	if err != nil {
		return GroupBytes{}, err
	}
	bytes := GroupBytes{DataBlock{Offset: loadU64(p[anGroupBytes:]), FileSize: a.FileSize, Version: a.Version}}
	if result := bytes.ValidateOffset(r); result.Failed() {
		return GroupBytes{}, result.Err()
	}
	return bytes, nil
}

// AnnotationBytes reads and validates one annotation byte stream block.
type AnnotationBytes struct {
	DataBlock
}

// Size returns the on-disk byte length of the block.
func (b AnnotationBytes) Size(r Region) (uint64, error) {
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

// ValidateOffset checks the block prologue against the annotation bytes tag.
func (b AnnotationBytes) ValidateOffset(r Region) Result {
	return b.validateOffset(r, RecoverAnnotationBytes)
}

// ValidateFull validates the prologue and the byte stream bounds.
func (b AnnotationBytes) ValidateFull(r Region) Result {
	result := b.ValidateOffset(r)
	if result.Failed() {
		return result
	}
	p, err := r.Bytes(b.Offset, bytesHdrSize)
	if err != nil {
		return validationFailuref("ANNOTATION_BYTES unreadable: %v", err)
	}
	bytes := uint64(loadU32(p[bytesCount:]))
	if b.Offset+bytesHdrSize+bytes > b.FileSize {
		return failuref(
			"ANNOTATION_BYTES failed validation: bytes block (%d-%d bytes) extends beyond the end of the file",
			b.Offset, b.Offset+bytesHdrSize+bytes)
	}
	return result
}

// ReadBytes fills the annotation's payload handle: the absolute offset and
// length of the content byte stream.
func (b AnnotationBytes) ReadBytes(r Region, annotation *Annotation) error {
	p, err := r.Bytes(b.Offset, bytesHdrSize)
	if err != nil {
		return err
	}
	annotation.ByteSize = uint64(loadU32(p[bytesCount:]))
	start := b.Offset + bytesHdrSize
	if b.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}
	if start+annotation.ByteSize > b.FileSize {
		return failuref(
			"ANNOTATION_BYTES read failed: bytes block (%d-%d bytes) extends beyond the end of the file",
			start, start+annotation.ByteSize).Err()
	}
	annotation.Offset = start
	return nil
}

// GroupSizeEntry is one decoded group size pair.
type GroupSizeEntry struct {
	LabelSize   uint16
	MemberCount uint32
}

// GroupSizes reads and validates the annotation group sizes array block.
type GroupSizes struct {
	DataBlock
}

// Size returns the on-disk byte length of the block.
func (s GroupSizes) Size(r Region) (uint64, error) {
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

// ValidateOffset checks the block prologue against the group sizes tag.
func (s GroupSizes) ValidateOffset(r Region) Result {
	return s.validateOffset(r, RecoverAnnotationGroupSizes)
}

// ValidateFull validates the prologue and array bounds, and returns the
// total label plus packed member bytes the group bytes block must declare.
func (s GroupSizes) ValidateFull(r Region) (uint64, Result) {
	result := s.ValidateOffset(r)
	if result.Failed() {
		return 0, result
	}

	p, err := r.Bytes(s.Offset, arrHeaderSize)
	if err != nil {
		return 0, validationFailuref("ANNOTATION_GROUP_SIZES unreadable: %v", err)
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))
	start := s.Offset + arrHeaderSize
	if s.Version > Extension1_0 {
		// Version 2 header fields are validated here.
	}

	if step < gsEntrySize {
		return 0, failuref("ANNOTATION_GROUP_SIZES failed validation: stored entry size (%d) is shorter than a v1.0 entry", step)
	}
	if start+entries*step > s.FileSize {
		return 0, failuref(
			"ANNOTATION_GROUP_SIZES failed validation: sizes array block (location %d - %d bytes) extends beyond the end of file",
			start, start+entries*step)
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return 0, failuref("ANNOTATION_GROUP_SIZES array unreadable: %v", err)
	}

	var expected uint64
	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		expected += uint64(loadU16(e[gsLabelSize:]))
		expected += uint64(loadU32(e[gsMemberCount:])) * 3
		if s.Version > Extension1_0 {
			// Version 2 entry fields are validated here.
		}
	}
	return expected, success()
}

// ReadGroupSizes returns the decoded size pairs in entry order.
func (s GroupSizes) ReadGroupSizes(r Region) ([]GroupSizeEntry, error) {
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

	if step < gsEntrySize {
		return nil, failuref("ANNOTATION_GROUP_SIZES read failed: stored entry size (%d) is shorter than a v1.0 entry", step).Err()
	}
	if start+entries*step > s.FileSize {
		return nil, failuref(
			"ANNOTATION_GROUP_SIZES read failed: sizes array block (location %d - %d bytes) extends beyond the end of file",
			start, start+entries*step).Err()
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return nil, err
	}

	sizes := make([]GroupSizeEntry, entries)
	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		sizes[i] = GroupSizeEntry{
			LabelSize:   loadU16(e[gsLabelSize:]),
			MemberCount: loadU32(e[gsMemberCount:]),
		}
		if s.Version > Extension1_0 {
			// Version 2 entry fields are surfaced here.
		}
	}
	return sizes, nil
}

// GroupBytes reads and validates the annotation group bytes block: the
// concatenation, in size-entry order, of each group's ASCII label followed
// by its packed 24-bit member identifiers.
type GroupBytes struct {
	DataBlock
}

// Size returns the on-disk byte length of the block.
func (b GroupBytes) Size(r Region) (uint64, error) {
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

// ValidateOffset checks the block prologue against the group bytes tag.
func (b GroupBytes) ValidateOffset(r Region) Result {
	return b.validateOffset(r, RecoverAnnotationGroupBytes)
}

// ValidateFull validates the prologue and checks the declared total against
// the expectation computed from the group sizes array.
func (b GroupBytes) ValidateFull(r Region, expected uint64) Result {
	result := b.ValidateOffset(r)
	if result.Failed() {
		return result
	}
	p, err := r.Bytes(b.Offset, bytesHdrSize)
	if err != nil {
		return validationFailuref("ANNOTATION_GROUP_BYTES unreadable: %v", err)
	}
	total := uint64(loadU32(p[bytesCount:]))
	if total != expected {
		return failuref(
			"ANNOTATION_GROUP_BYTES failed validation: expected bytes (%d) from the ANNOTATION_GROUP_SIZES array does not match the byte size of the ANNOTATION_GROUP_BYTES block (%d)",
			expected, total)
	}
	if b.Offset+bytesHdrSize+total > b.FileSize {
		return failuref(
			"ANNOTATION_GROUP_BYTES failed validation: full group byte array block (location %d - %d) extends beyond end of file",
			b.Offset, b.Offset+bytesHdrSize+total)
	}
	return success()
}

// ReadBytes slices the byte body into the group table described by the size
// array. Only the member array offset and count are recorded; the packed
// identifiers live in place.
func (b GroupBytes) ReadBytes(r Region, sizes []GroupSizeEntry) (map[string]AnnotationGroup, error) {
	p, err := r.Bytes(b.Offset, bytesHdrSize)
	if err != nil {
		return nil, err
	}
	total := uint64(loadU32(p[bytesCount:]))

	var expected uint64
	for _, size := range sizes {
		expected += uint64(size.LabelSize) + uint64(size.MemberCount)*3
	}
	if expected != total {
		return nil, failuref(
			"ANNOTATION_GROUP_BYTES failed validation: expected bytes (%d) from the ANNOTATION_GROUP_SIZES array does not match the byte size of the ANNOTATION_GROUP_BYTES block (%d)",
			expected, total).Err()
	}

	start := b.Offset + bytesHdrSize
	if b.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}
	if start+total > b.FileSize {
		return nil, failuref(
			"ANNOTATION_GROUP_BYTES read failed: byte array (%d-%d bytes) extends beyond the end of the file",
			start, start+total).Err()
	}
	body, err := r.Bytes(start, total)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]AnnotationGroup, len(sizes))
	cursor := body
	offset := start
	for _, size := range sizes {
		label := string(cursor[:size.LabelSize])
		groups[label] = AnnotationGroup{
			Offset:      offset + uint64(size.LabelSize),
			MemberCount: size.MemberCount,
		}
		advance := uint64(size.LabelSize) + uint64(size.MemberCount)*3
		cursor = cursor[advance:]
		offset += advance
	}
	return groups, nil
}

// ReadGroupMembers decodes a group's packed 24-bit member identifiers from
// the region.
func ReadGroupMembers(r Region, group AnnotationGroup) ([]uint32, error) {
	body, err := r.Bytes(group.Offset, group.ByteSize())
	if err != nil {
		return nil, err
	}
	members := make([]uint32, group.MemberCount)
	for i := range members {
		members[i] = loadU24(body[i*3:])
	}
	return members, nil
}

// AnnotationArrayEntry is one pre-laid-out entry for StoreAnnotationArray;
// the annotation bytes block at BytesOffset must already be stored.
type AnnotationArrayEntry struct {
	Identifier  uint32
	BytesOffset uint64
	Type        AnnotationType
	XLocation   float32
	YLocation   float32
	XSize       float32
	YSize       float32
	Width       uint32
	Height      uint32
	Parent      uint32
}

// AnnotationArrayCreateInfo carries the pre-computed layout for
// StoreAnnotationArray. The group offsets default to NullOffset.
type AnnotationArrayCreateInfo struct {
	Offset           uint64
	GroupSizesOffset uint64
	GroupBytesOffset uint64
	Annotations      []AnnotationArrayEntry
}

// SizeAnnotationArray returns the byte length of an annotations block
// holding n entries.
func SizeAnnotationArray(n int) uint64 {
	return anV1_0Size + uint64(n)*aeEntrySize
}

// StoreAnnotationArray writes the annotations array block. An entry without
// a valid identifier or byte stream is skipped with a warning; the stored
// entry count reflects only the entries actually encoded. A parent above the
// 24-bit range is replaced with NullID.
func StoreAnnotationArray(buf []byte, ci AnnotationArrayCreateInfo) error {
	if err := checkStoreBounds(buf, ci.Offset, SizeAnnotationArray(len(ci.Annotations)), "ANNOTATIONS"); err != nil {
		return err
	}
	if uint64(len(ci.Annotations)) > uint64(^uint32(0)) {
		return failuref("failed to store annotations array: array too large (%d)", len(ci.Annotations)).Err()
	}

	storePrologue(buf, ci.Offset, RecoverAnnotations)
	p := buf[ci.Offset:]
	storeU16(p[arrEntrySize:], aeEntrySize)
	storeU64(p[anGroupSizes:], ci.GroupSizesOffset)
	storeU64(p[anGroupBytes:], ci.GroupBytesOffset)

	cursor := p[anV1_0Size:]
	var stored uint32
	for _, annotation := range ci.Annotations {
		if annotation.Identifier >= NullID {
			slog.Warn("annotation does not contain a valid identifier; skipping; each annotation shall be referenced by a unique 24-bit identifier")
			continue
		}
		if annotation.BytesOffset == NullOffset {
			slog.Warn("annotation does not contain a valid byte array offset; skipping",
				"identifier", annotation.Identifier)
			continue
		}
		if !validAnnotationType(annotation.Type, CurrentVersion) {
			slog.Warn("annotation does not contain a valid type; skipping",
				"identifier", annotation.Identifier)
			continue
		}
		parent := annotation.Parent
		if parent > NullID {
			slog.Warn("annotation parent identifier is out of the valid 24-bit range; replaced with NULL_ID",
				"identifier", annotation.Identifier)
			parent = NullID
		}

		storeU24(cursor[aeIdentifier:], annotation.Identifier)
		storeU64(cursor[aeBytesOffset:], annotation.BytesOffset)
		storeU8(cursor[aeFormat:], uint8(annotation.Type))
		storeF32(cursor[aeXLocation:], annotation.XLocation)
		storeF32(cursor[aeYLocation:], annotation.YLocation)
		storeF32(cursor[aeXSize:], annotation.XSize)
		storeF32(cursor[aeYSize:], annotation.YSize)
		storeU32(cursor[aeWidth:], annotation.Width)
		storeU32(cursor[aeHeight:], annotation.Height)
		storeU24(cursor[aeParent:], parent)
		cursor = cursor[aeEntrySize:]
		stored++
	}
	storeU32(p[arrEntryCount:], stored)
	return nil
}

// SizeAnnotationBytes returns the byte length of an annotation bytes block
// for the given content.
func SizeAnnotationBytes(data []byte) uint64 {
	return bytesHdrSize + uint64(len(data))
}

// StoreAnnotationBytes writes one annotation content byte stream block.
func StoreAnnotationBytes(buf []byte, offset uint64, data []byte) error {
	if err := checkStoreBounds(buf, offset, SizeAnnotationBytes(data), "ANNOTATION_BYTES"); err != nil {
		return err
	}
	if uint64(len(data)) > uint64(^uint32(0)) {
		return failuref("failed to store annotation bytes: byte array longer than the 32-bit size limit").Err()
	}

	storePrologue(buf, offset, RecoverAnnotationBytes)
	p := buf[offset:]
	storeU32(p[bytesCount:], uint32(len(data)))
	copy(p[bytesHdrSize:], data)
	return nil
}

// AnnotationGroupInfo is one named group with its member identifiers, used
// by the group writers.
type AnnotationGroupInfo struct {
	Label   string
	Members []uint32
}

// sortGroups orders groups deterministically by label so the sizes and bytes
// writers always agree.
func sortGroups(groups []AnnotationGroupInfo) []AnnotationGroupInfo {
	sorted := make([]AnnotationGroupInfo, len(groups))
	copy(sorted, groups)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })
	return sorted
}

// SizeAnnotationGroupSizes returns the byte length of a group sizes block
// holding n entries.
func SizeAnnotationGroupSizes(n int) uint64 {
	return arrHeaderSize + uint64(n)*gsEntrySize
}

// SizeAnnotationGroupBytes returns the byte length of a group bytes block
// for the given groups.
func SizeAnnotationGroupBytes(groups []AnnotationGroupInfo) uint64 {
	size := uint64(bytesHdrSize)
	for _, group := range groups {
		size += uint64(len(group.Label)) + uint64(len(group.Members))*3
	}
	return size
}

// StoreAnnotationGroupSizes writes the group sizes array in sorted label
// order.
func StoreAnnotationGroupSizes(buf []byte, offset uint64, groups []AnnotationGroupInfo) error {
	if err := checkStoreBounds(buf, offset, SizeAnnotationGroupSizes(len(groups)), "ANNOTATION_GROUP_SIZES"); err != nil {
		return err
	}
	for _, group := range groups {
		if len(group.Label) > int(^uint16(0)) {
			return failuref("failed to store annotation group sizes: label %q exceeds the 16-bit size limit", group.Label).Err()
		}
		if uint64(len(group.Members)) > uint64(^uint32(0)) {
			return failuref("failed to store annotation group sizes: group %q member count exceeds the 32-bit size limit", group.Label).Err()
		}
	}

	storePrologue(buf, offset, RecoverAnnotationGroupSizes)
	p := buf[offset:]
	storeU16(p[arrEntrySize:], gsEntrySize)
	storeU32(p[arrEntryCount:], uint32(len(groups)))
	cursor := p[arrHeaderSize:]
	for _, group := range sortGroups(groups) {
		storeU16(cursor[gsLabelSize:], uint16(len(group.Label)))
		storeU32(cursor[gsMemberCount:], uint32(len(group.Members)))
		cursor = cursor[gsEntrySize:]
	}
	return nil
}

// StoreAnnotationGroupBytes writes the group bytes block in the same sorted
// label order the sizes block uses. Member identifiers above the 24-bit
// range are rejected.
func StoreAnnotationGroupBytes(buf []byte, offset uint64, groups []AnnotationGroupInfo) error {
	if err := checkStoreBounds(buf, offset, SizeAnnotationGroupBytes(groups), "ANNOTATION_GROUP_BYTES"); err != nil {
		return err
	}

	storePrologue(buf, offset, RecoverAnnotationGroupBytes)
	p := buf[offset:]
	cursor := p[bytesHdrSize:]
	var total uint64
	for _, group := range sortGroups(groups) {
		copy(cursor, group.Label)
		cursor = cursor[len(group.Label):]
		for _, member := range group.Members {
			if member > NullID {
				return failuref("failed to store annotation group bytes: member identifier (%d) exceeds the 24-bit range", member).Err()
			}
			storeU24(cursor, member)
			cursor = cursor[3:]
		}
		total += uint64(len(group.Label)) + uint64(len(group.Members))*3
	}
	if total > uint64(^uint32(0)) {
		return failuref("failed to store annotation group bytes: byte array length (%d) exceeds the 32-bit size limit", total).Err()
	}
	storeU32(p[bytesCount:], uint32(total))
	return nil
}
