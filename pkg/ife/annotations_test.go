package ife

import "testing"

// storeAnnotationFixture lays out one annotation bytes block, optional
// groups, and the array block.
func storeAnnotationFixture(t *testing.T, entries []AnnotationArrayEntry, groups []AnnotationGroupInfo) ([]byte, Annotations) {
	t.Helper()

	data := []byte("note")
	bytesOffset := uint64(64)
	cursor := bytesOffset + SizeAnnotationBytes(data)

	groupSizesOffset := NullOffset
	groupBytesOffset := NullOffset
	if groups != nil {
		groupSizesOffset = cursor
		cursor += SizeAnnotationGroupSizes(len(groups))
		groupBytesOffset = cursor
		cursor += SizeAnnotationGroupBytes(groups)
	}
	arrayOffset := cursor
	buf := make([]byte, arrayOffset+SizeAnnotationArray(len(entries)))

	if err := StoreAnnotationBytes(buf, bytesOffset, data); err != nil {
		t.Fatalf("store annotation bytes: %v", err)
	}
	if groups != nil {
		if err := StoreAnnotationGroupSizes(buf, groupSizesOffset, groups); err != nil {
			t.Fatalf("store group sizes: %v", err)
		}
		if err := StoreAnnotationGroupBytes(buf, groupBytesOffset, groups); err != nil {
			t.Fatalf("store group bytes: %v", err)
		}
	}
	for i := range entries {
		if entries[i].BytesOffset == 0 {
			entries[i].BytesOffset = bytesOffset
		}
	}
	if err := StoreAnnotationArray(buf, AnnotationArrayCreateInfo{
		Offset:           arrayOffset,
		GroupSizesOffset: groupSizesOffset,
		GroupBytesOffset: groupBytesOffset,
		Annotations:      entries,
	}); err != nil {
		t.Fatalf("store annotation array: %v", err)
	}
	return buf, Annotations{DataBlock{Offset: arrayOffset, FileSize: uint64(len(buf)), Version: CurrentVersion}}
}

// Two entries with the same identifier read back as exactly one entry with a
// warning.
func TestDuplicateAnnotationIdentifierSkipped(t *testing.T) {
	t.Parallel()

	entry := AnnotationArrayEntry{
		Identifier: 0x000123,
		Type:       AnnotationText,
		Width:      10, Height: 10,
		Parent: NullID,
	}
	buf, block := storeAnnotationFixture(t, []AnnotationArrayEntry{entry, entry}, nil)
	r := MemoryRegion(buf)

	if result := block.ValidateFull(r); result.Failed() {
		t.Fatalf("validate: %s", result.Message)
	}
	set, err := block.ReadAnnotations(r, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(set.Entries) != 1 {
		t.Fatalf("duplicate identifier not skipped: %d entries", len(set.Entries))
	}
	if _, ok := set.Entries[0x000123]; !ok {
		t.Fatalf("entry 0x000123 missing")
	}
}

func TestAnnotationGroupRoundTrip(t *testing.T) {
	t.Parallel()

	groups := []AnnotationGroupInfo{
		{Label: "stroma", Members: []uint32{2}},
		{Label: "tumor", Members: []uint32{1, 3}},
	}
	entries := []AnnotationArrayEntry{
		{Identifier: 1, Type: AnnotationPNG, Parent: NullID},
		{Identifier: 2, Type: AnnotationSVG, Parent: NullID},
		{Identifier: 3, Type: AnnotationText, Parent: 1},
	}
	buf, block := storeAnnotationFixture(t, entries, groups)
	r := MemoryRegion(buf)

	if result := block.ValidateFull(r); result.Failed() {
		t.Fatalf("validate: %s", result.Message)
	}
	set, err := block.ReadAnnotations(r, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(set.Entries) != 3 || len(set.Groups) != 2 {
		t.Fatalf("counts: %d entries, %d groups", len(set.Entries), len(set.Groups))
	}
	tumor := set.Groups["tumor"]
	if tumor.MemberCount != 2 {
		t.Fatalf("tumor member count: got %d", tumor.MemberCount)
	}
	members, err := ReadGroupMembers(r, tumor)
	if err != nil {
		t.Fatalf("read members: %v", err)
	}
	if members[0] != 1 || members[1] != 3 {
		t.Fatalf("tumor members: %v", members)
	}
}

// One group offset null while the other is valid is a structural failure.
func TestAnnotationGroupOffsetsPairedOrNull(t *testing.T) {
	t.Parallel()

	groups := []AnnotationGroupInfo{{Label: "g", Members: []uint32{1}}}
	entries := []AnnotationArrayEntry{{Identifier: 1, Type: AnnotationPNG, Parent: NullID}}
	buf, block := storeAnnotationFixture(t, entries, groups)

	storeU64(buf[block.Offset+anGroupBytes:], NullOffset)
	if result := block.ValidateFull(MemoryRegion(buf)); !result.Failed() {
		t.Fatalf("half-null group offsets passed validation")
	}
}

// The group byte totals cross-check: sum(label + members*3) must equal the
// declared block total.
func TestAnnotationGroupTotalMismatch(t *testing.T) {
	t.Parallel()

	groups := []AnnotationGroupInfo{{Label: "g", Members: []uint32{1, 2}}}
	entries := []AnnotationArrayEntry{{Identifier: 1, Type: AnnotationPNG, Parent: NullID}}
	buf, block := storeAnnotationFixture(t, entries, groups)
	r := MemoryRegion(buf)

	bytesBlock, err := block.GroupBytes(r)
	if err != nil {
		t.Fatalf("group bytes reader: %v", err)
	}
	storeU32(buf[bytesBlock.Offset+bytesCount:], 1)

	if result := block.ValidateFull(MemoryRegion(buf)); !result.Failed() {
		t.Fatalf("mismatched group totals passed validation")
	}
}

// Entries without usable identifiers or byte streams are skipped at store
// time and the stored entry count reflects it.
func TestStoreAnnotationArraySkipsInvalidEntries(t *testing.T) {
	t.Parallel()

	entries := []AnnotationArrayEntry{
		{Identifier: NullID, Type: AnnotationPNG, Parent: NullID},
		{Identifier: 7, Type: AnnotationPNG, Parent: NullID},
	}
	buf, block := storeAnnotationFixture(t, entries, nil)

	if got := loadU32(buf[block.Offset+arrEntryCount:]); got != 1 {
		t.Fatalf("stored entry count: got %d want 1", got)
	}
	set, err := block.ReadAnnotations(MemoryRegion(buf), nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(set.Entries) != 1 {
		t.Fatalf("entries: got %d want 1", len(set.Entries))
	}
}
