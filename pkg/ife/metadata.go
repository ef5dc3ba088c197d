package ife

import "log/slog"

// Metadata block layout.
const (
	mdCodecMajor  = blockHeaderSize
	mdCodecMinor  = mdCodecMajor + 2
	mdCodecBuild  = mdCodecMinor + 2
	mdAttributes  = mdCodecBuild + 2
	mdImages      = mdAttributes + 8
	mdICC         = mdImages + 8
	mdAnnotations = mdICC + 8
	mdMicronsPx   = mdAnnotations + 8
	mdMagnify     = mdMicronsPx + 4
	mdV1_0Size    = mdMagnify + 4
)

// CodecVersion is the version triple of the codec that encoded the slide.
type CodecVersion struct {
	Major uint16
	Minor uint16
	Build uint16
}

// MetadataInfo is the abstracted metadata block together with the abstracted
// optional children attached by AbstractFileStructure.
type MetadataInfo struct {
	Codec           CodecVersion
	MicronsPerPixel float32
	Magnification   float32

	Attributes       AttributeSet
	AssociatedImages []string
	AnnotationIDs    []uint32
	ICCProfile       []byte
}

// Metadata reads and validates the metadata block. Every child offset is
// optional; NullOffset marks an absent child.
type Metadata struct {
	DataBlock
}

// Size returns the on-disk byte length of the metadata block.
func (m Metadata) Size() uint64 {
	size := uint64(mdV1_0Size)
	if m.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size
}

// ValidateOffset checks the block prologue against the metadata tag.
func (m Metadata) ValidateOffset(r Region) Result {
	return m.validateOffset(r, RecoverMetadata)
}

// ValidateFull validates the prologue and then fully validates each present
// child, each constructed from its own named offset field.
func (m Metadata) ValidateFull(r Region) Result {
	result := m.ValidateOffset(r)
	if result.Failed() {
		return result
	}

	p, err := r.Bytes(m.Offset, mdV1_0Size)
	if err != nil {
		return validationFailuref("METADATA unreadable: %v", err)
	}
	if m.HasAttributes(r) {
		attr := Attributes{DataBlock{Offset: loadU64(p[mdAttributes:]), FileSize: m.FileSize, Version: m.Version}}
		if res := attr.ValidateFull(r); res.Failed() {
			return res
		}
	}
	if m.HasImageArray(r) {
		images := ImageArray{DataBlock{Offset: loadU64(p[mdImages:]), FileSize: m.FileSize, Version: m.Version}}
		if res := images.ValidateFull(r); res.Failed() {
			return res
		}
	}
	if m.HasColorProfile(r) {
		icc := ICCProfile{DataBlock{Offset: loadU64(p[mdICC:]), FileSize: m.FileSize, Version: m.Version}}
		if res := icc.ValidateFull(r); res.Failed() {
			return res
		}
	}
	if m.HasAnnotations(r) {
		ann := Annotations{DataBlock{Offset: loadU64(p[mdAnnotations:]), FileSize: m.FileSize, Version: m.Version}}
		if res := ann.ValidateFull(r); res.Failed() {
			return res
		}
	}

	if m.Version > Extension1_0 {
		// Version 2 validations are added here.
	}
	return result
}

// ReadMetadata returns the codec version triple and the physical scale
// fields. Zero values are permitted.
func (m Metadata) ReadMetadata(r Region) (MetadataInfo, error) {
	if result := m.ValidateOffset(r); result.Failed() {
		return MetadataInfo{}, result.Err()
	}
	p, err := r.Bytes(m.Offset, mdV1_0Size)
	if err != nil {
		return MetadataInfo{}, err
	}
	md := MetadataInfo{
		Codec: CodecVersion{
			Major: loadU16(p[mdCodecMajor:]),
			Minor: loadU16(p[mdCodecMinor:]),
			Build: loadU16(p[mdCodecBuild:]),
		},
		MicronsPerPixel: loadF32(p[mdMicronsPx:]),
		Magnification:   loadF32(p[mdMagnify:]),
	}
	if m.Version > Extension1_0 {
		// Version 2 fields are surfaced here.
	}
	return md, nil
}

// childPresent reports whether the child offset at the given field position
// is non-null and inside the file.
func (m Metadata) childPresent(r Region, field uint64) bool {
	p, err := r.Bytes(m.Offset, mdV1_0Size)
	if err != nil {
		return false
	}
	offset := loadU64(p[field:])
	return offset != NullOffset && offset < m.FileSize
}

// HasAttributes reports whether the attributes child is present.
func (m Metadata) HasAttributes(r Region) bool { return m.childPresent(r, mdAttributes) }

// HasImageArray reports whether the associated image array is present.
func (m Metadata) HasImageArray(r Region) bool { return m.childPresent(r, mdImages) }

// HasColorProfile reports whether the ICC color profile is present.
func (m Metadata) HasColorProfile(r Region) bool { return m.childPresent(r, mdICC) }

// HasAnnotations reports whether the annotations array is present.
func (m Metadata) HasAnnotations(r Region) bool { return m.childPresent(r, mdAnnotations) }

// child builds a child descriptor from its stored offset field.
func (m Metadata) child(r Region, field uint64) (DataBlock, error) {
	p, err := r.Bytes(m.Offset, mdV1_0Size)
	if err != nil {
		return DataBlock{}, err
	}
	return DataBlock{Offset: loadU64(p[field:]), FileSize: m.FileSize, Version: m.Version}, nil
}

// Attributes constructs the attributes reader at the stored offset.
func (m Metadata) Attributes(r Region) (Attributes, error) {
	blk, err := m.child(r, mdAttributes)
	if err != nil {
		return Attributes{}, err
	}
	attr := Attributes{blk}
	if result := attr.ValidateOffset(r); result.Failed() {
		return Attributes{}, failuref("failed to retrieve attributes data-block: %s", result.Message).Err()
	}
	return attr, nil
}

// ImageArray constructs the associated image array reader at the stored
// offset.
func (m Metadata) ImageArray(r Region) (ImageArray, error) {
	blk, err := m.child(r, mdImages)
	if err != nil {
		return ImageArray{}, err
	}
	images := ImageArray{blk}
	if result := images.ValidateOffset(r); result.Failed() {
		return ImageArray{}, failuref("failed to retrieve associated images array: %s", result.Message).Err()
	}
	return images, nil
}

// ColorProfile constructs the ICC profile reader at the stored offset.
func (m Metadata) ColorProfile(r Region) (ICCProfile, error) {
	blk, err := m.child(r, mdICC)
	if err != nil {
		return ICCProfile{}, err
	}
	icc := ICCProfile{blk}
	if result := icc.ValidateOffset(r); result.Failed() {
		return ICCProfile{}, failuref("failed to retrieve ICC profile buffer: %s", result.Message).Err()
	}
	return icc, nil
}

// Annotations constructs the annotations reader at the stored offset.
func (m Metadata) Annotations(r Region) (Annotations, error) {
	blk, err := m.child(r, mdAnnotations)
	if err != nil {
		return Annotations{}, err
	}
	ann := Annotations{blk}
	if result := ann.ValidateOffset(r); result.Failed() {
		return Annotations{}, failuref("failed to retrieve annotations array: %s", result.Message).Err()
	}
	return ann, nil
}

// MetadataCreateInfo carries the pre-computed layout for StoreMetadata.
// Child offsets default to NullOffset; present children must already be
// stored.
type MetadataCreateInfo struct {
	MetadataOffset    uint64
	CodecVersion      CodecVersion
	AttributesOffset  uint64
	ImagesOffset      uint64
	ICCProfileOffset  uint64
	AnnotationsOffset uint64
	MicronsPerPixel   float32
	Magnification     float32
}

// StoreMetadata validates each present child offset and writes the metadata
// block. Zero physical scale fields are stored with a warning.
func StoreMetadata(buf []byte, ci MetadataCreateInfo) error {
	if err := checkStoreBounds(buf, ci.MetadataOffset, mdV1_0Size, "METADATA"); err != nil {
		return err
	}
	r := MemoryRegion(buf)
	fileSize := uint64(len(buf))

	if ci.AttributesOffset != NullOffset {
		attr := Attributes{DataBlock{Offset: ci.AttributesOffset, FileSize: fileSize, Version: CurrentVersion}}
		if result := attr.ValidateOffset(r); result.Failed() {
			return failuref("failed STORE_METADATA: invalid attributes header offset (%s)", result.Message).Err()
		}
	}
	if ci.ImagesOffset != NullOffset {
		images := ImageArray{DataBlock{Offset: ci.ImagesOffset, FileSize: fileSize, Version: CurrentVersion}}
		if result := images.ValidateOffset(r); result.Failed() {
			return failuref("failed STORE_METADATA: invalid ancillary images array offset (%s)", result.Message).Err()
		}
	}
	if ci.ICCProfileOffset != NullOffset {
		icc := ICCProfile{DataBlock{Offset: ci.ICCProfileOffset, FileSize: fileSize, Version: CurrentVersion}}
		if result := icc.ValidateOffset(r); result.Failed() {
			return failuref("failed STORE_METADATA: invalid ICC profile byte array offset (%s)", result.Message).Err()
		}
	}
	if ci.AnnotationsOffset != NullOffset {
		ann := Annotations{DataBlock{Offset: ci.AnnotationsOffset, FileSize: fileSize, Version: CurrentVersion}}
		if result := ann.ValidateOffset(r); result.Failed() {
			return failuref("failed STORE_METADATA: invalid slide annotations array offset (%s)", result.Message).Err()
		}
	}
	if ci.MicronsPerPixel == 0 {
		slog.Warn("MetadataCreateInfo has a zero MicronsPerPixel; encoding the physical pixel size is recommended")
	}
	if ci.Magnification == 0 {
		slog.Warn("MetadataCreateInfo has a zero Magnification; encoding the optical magnification is recommended")
	}

	storePrologue(buf, ci.MetadataOffset, RecoverMetadata)
	p := buf[ci.MetadataOffset:]
	storeU16(p[mdCodecMajor:], ci.CodecVersion.Major)
	storeU16(p[mdCodecMinor:], ci.CodecVersion.Minor)
	storeU16(p[mdCodecBuild:], ci.CodecVersion.Build)
	storeU64(p[mdAttributes:], ci.AttributesOffset)
	storeU64(p[mdImages:], ci.ImagesOffset)
	storeU64(p[mdICC:], ci.ICCProfileOffset)
	storeU64(p[mdAnnotations:], ci.AnnotationsOffset)
	storeF32(p[mdMicronsPx:], ci.MicronsPerPixel)
	storeF32(p[mdMagnify:], ci.Magnification)
	return nil
}
