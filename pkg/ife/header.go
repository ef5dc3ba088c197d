package ife

import "log/slog"

// File header layout. The root block begins with the 4-byte magic constant
// instead of a self offset, so its recovery tag sits at byte 4 rather than at
// byte 8 as in every other block's prologue.
const (
	hdrMagic         = 0
	hdrRecovery      = 4
	hdrFileSize      = 6
	hdrExtMajor      = 14
	hdrExtMinor      = 16
	hdrRevision      = 18
	hdrTileTable     = 22
	hdrMetadata      = 30
	headerV1_0Size   = 38
	headerHeaderSize = headerV1_0Size
)

// Header is the abstracted file header: the stored file size, the packed
// extension version, and the file revision counter.
type Header struct {
	FileSize   uint64
	ExtVersion uint32
	Revision   uint32
}

// Major and Minor unpack the extension version.
func (h Header) Major() uint16 { return uint16(h.ExtVersion >> 16) }
func (h Header) Minor() uint16 { return uint16(h.ExtVersion) }

// FileHeader reads and validates the root block at offset 0.
type FileHeader struct {
	DataBlock
}

// NewFileHeader constructs the root block descriptor for a file of the given
// backing size.
func NewFileHeader(fileSize uint64) FileHeader {
	return FileHeader{DataBlock{Offset: 0, FileSize: fileSize, Version: CurrentVersion}}
}

// Size returns the on-disk byte length of the header block for the file's
// stored version.
func (h FileHeader) Size(r Region) (uint64, error) {
	hdr, err := h.ReadHeader(r)
	if err != nil {
		return 0, err
	}
	size := uint64(headerV1_0Size)
	if hdr.ExtVersion > Extension1_0 {
		// Version 2 fields extend the header here.
	}
	return size, nil
}

// ValidateHeader checks the root block in isolation: magic, recovery tag,
// the stored file size against the backing size, and the extension version
// against this reader. A newer stored version is a warning, not a failure.
func (h FileHeader) ValidateHeader(r Region) Result {
	if h.FileSize < headerV1_0Size {
		return validationFailuref(
			"invalid file header size: the %d byte region cannot hold a file header", h.FileSize)
	}
	p, err := r.Bytes(h.Offset, headerV1_0Size)
	if err != nil {
		return validationFailuref("file header unreadable: %v", err)
	}
	if magic := loadU32(p[hdrMagic:]); magic != Magic {
		return failuref("Iris file magic number failed validation (0x%08X)", magic)
	}
	if tag := RecoveryTag(loadU16(p[hdrRecovery:])); tag != RecoverHeader {
		return validationFailuref(
			"RECOVER_HEADER (0x%04X) tag failed validation: the tag value is (0x%04X)",
			uint16(RecoverHeader), uint16(tag))
	}
	if stored := loadU64(p[hdrFileSize:]); stored != h.FileSize {
		return validationFailuref(
			"the internally stored Iris file size (%d bytes) differs from that provided by the operating system (%d bytes); this failure requires file recovery",
			stored, h.FileSize)
	}

	major := loadU16(p[hdrExtMajor:])
	minor := loadU16(p[hdrExtMinor:])
	if major > ExtensionMajor || (major == ExtensionMajor && minor > ExtensionMinor) {
		return warningf(
			"this Iris extension version (%d.%d) is less than the extension version used to generate the slide file (%d.%d); fields added after %d.%d will not be surfaced",
			ExtensionMajor, ExtensionMinor, major, minor, ExtensionMajor, ExtensionMinor)
	}
	return success()
}

// ValidateFull validates the header and then the offsets of both required
// children, the tile table and the metadata block.
func (h FileHeader) ValidateFull(r Region) Result {
	result := h.ValidateHeader(r)
	if result.Failed() {
		return result
	}
	if result.Warned() {
		slog.Warn("file header validation", "warning", result.Message)
	}

	p, err := r.Bytes(h.Offset, headerV1_0Size)
	if err != nil {
		return validationFailuref("file header unreadable: %v", err)
	}
	version := uint32(loadU16(p[hdrExtMajor:]))<<16 | uint32(loadU16(p[hdrExtMinor:]))

	tt := TileTable{DataBlock{Offset: loadU64(p[hdrTileTable:]), FileSize: h.FileSize, Version: version}}
	if res := tt.ValidateOffset(r); res.Failed() {
		return res
	}
	md := Metadata{DataBlock{Offset: loadU64(p[hdrMetadata:]), FileSize: h.FileSize, Version: version}}
	if res := md.ValidateOffset(r); res.Failed() {
		return res
	}

	if version > Extension1_0 {
		// Version 2 validations are added here.
	}
	return result
}

// ReadHeader returns the abstracted header fields. The header is validated
// first; any failure is raised as an error.
func (h FileHeader) ReadHeader(r Region) (Header, error) {
	if result := h.ValidateHeader(r); result.Failed() {
		return Header{}, result.Err()
	}
	p, err := r.Bytes(h.Offset, headerV1_0Size)
	if err != nil {
		return Header{}, err
	}
	hdr := Header{
		FileSize:   loadU64(p[hdrFileSize:]),
		ExtVersion: uint32(loadU16(p[hdrExtMajor:]))<<16 | uint32(loadU16(p[hdrExtMinor:])),
		Revision:   loadU32(p[hdrRevision:]),
	}
	if hdr.ExtVersion > Extension1_0 {
		// Version 2 fields are surfaced here.
	}
	return hdr, nil
}

// TileTable constructs the tile table reader at the header's stored offset.
func (h FileHeader) TileTable(r Region) (TileTable, error) {
	hdr, err := h.ReadHeader(r)
	if err != nil {
		return TileTable{}, err
	}
	p, err := r.Bytes(h.Offset, headerV1_0Size)
	if err != nil {
		return TileTable{}, err
	}
	tt := TileTable{DataBlock{Offset: loadU64(p[hdrTileTable:]), FileSize: h.FileSize, Version: hdr.ExtVersion}}
	if result := tt.ValidateOffset(r); result.Failed() {
		return TileTable{}, failuref("failed to retrieve tile table: %s", result.Message).Err()
	}
	return tt, nil
}

// Metadata constructs the metadata reader at the header's stored offset.
func (h FileHeader) Metadata(r Region) (Metadata, error) {
	hdr, err := h.ReadHeader(r)
	if err != nil {
		return Metadata{}, err
	}
	p, err := r.Bytes(h.Offset, headerV1_0Size)
	if err != nil {
		return Metadata{}, err
	}
	md := Metadata{DataBlock{Offset: loadU64(p[hdrMetadata:]), FileSize: h.FileSize, Version: hdr.ExtVersion}}
	if result := md.ValidateOffset(r); result.Failed() {
		return Metadata{}, failuref("failed to retrieve metadata: %s", result.Message).Err()
	}
	return md, nil
}

// HeaderCreateInfo carries the pre-computed layout for StoreFileHeader. Both
// child blocks must already be stored at their offsets.
type HeaderCreateInfo struct {
	FileSize        uint64
	Revision        uint32
	TileTableOffset uint64
	MetadataOffset  uint64
}

// StoreFileHeader fully validates the already-stored tile table and metadata
// subtrees and then writes the root block at offset 0.
func StoreFileHeader(buf []byte, ci HeaderCreateInfo) error {
	if ci.FileSize == 0 {
		return failuref("failed STORE_FILE_HEADER validation: no file size provided; the file size shall equal the operating system query for the file size in bytes").Err()
	}
	if err := checkStoreBounds(buf, 0, headerV1_0Size, "FILE_HEADER"); err != nil {
		return err
	}
	r := MemoryRegion(buf)

	tt := TileTable{DataBlock{Offset: ci.TileTableOffset, FileSize: ci.FileSize, Version: CurrentVersion}}
	if result := tt.ValidateFull(r); result.Failed() {
		return failuref("failed STORE_FILE_HEADER full validation check: %s", result.Message).Err()
	} else if result.Warned() {
		slog.Warn("STORE_FILE_HEADER tile table validation", "warning", result.Message)
	}

	md := Metadata{DataBlock{Offset: ci.MetadataOffset, FileSize: ci.FileSize, Version: CurrentVersion}}
	if result := md.ValidateFull(r); result.Failed() {
		return failuref("failed STORE_FILE_HEADER full validation check: %s", result.Message).Err()
	} else if result.Warned() {
		slog.Warn("STORE_FILE_HEADER metadata validation", "warning", result.Message)
	}

	p := buf[0:]
	storeU32(p[hdrMagic:], Magic)
	storeU16(p[hdrRecovery:], uint16(RecoverHeader))
	storeU64(p[hdrFileSize:], ci.FileSize)
	storeU16(p[hdrExtMajor:], ExtensionMajor)
	storeU16(p[hdrExtMinor:], ExtensionMinor)
	storeU32(p[hdrRevision:], ci.Revision)
	storeU64(p[hdrTileTable:], ci.TileTableOffset)
	storeU64(p[hdrMetadata:], ci.MetadataOffset)
	return nil
}
