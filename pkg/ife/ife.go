// Package ife implements the Iris File Extension (IFE) container format for
// whole-slide microscopy images.
//
// An IFE file is a graph of typed data blocks linked by absolute file
// offsets, rooted at the file header at offset 0. Every non-root block opens
// with a ten byte prologue storing the block's own absolute offset and a
// kind-specific recovery tag, which together support structural validation
// and post-corruption block rediscovery. The package provides validating
// readers that abstract a byte region into a light in-memory description
// without copying payload bytes, writers that store blocks at pre-computed
// offsets, and a file-map walk that enumerates every block for safe in-place
// updates. The byte region may be a memory-mapped file or an HTTP range
// fetched remote resource.
package ife

// Magic is the file magic at offset 0, ASCII 'Iris' stored little-endian.
const Magic uint32 = 0x49726973

// Extension version implemented by this package. Files written by a newer
// minor version still read successfully; unknown trailing fields are ignored
// with a warning.
const (
	ExtensionMajor uint16 = 1
	ExtensionMinor uint16 = 0
)

// Version keys packed as major<<16 | minor.
const (
	Extension1_0 uint32 = uint32(1) << 16
	Extension2_0 uint32 = uint32(2) << 16
)

// CurrentVersion is the packed extension version of this implementation.
const CurrentVersion uint32 = uint32(ExtensionMajor)<<16 | uint32(ExtensionMinor)

// Reserved maximal values indicating absence.
const (
	// NullOffset marks an absent block offset.
	NullOffset uint64 = 1<<64 - 1
	// NullTile marks a sparse tile slot in the tile offsets array.
	NullTile uint64 = 1<<40 - 1
	// NullID marks an absent 24-bit annotation identifier.
	NullID uint32 = 1<<24 - 1
)

// On-disk numeric limits.
const (
	maxUint24 = 1<<24 - 1
	maxUint40 = 1<<40 - 1
)

// RecoveryTag identifies a block kind in the second prologue field. In the
// event of metadata corruption a recovery tool can rediscover block starts by
// scanning for an offset that stores its own value followed by one of these
// tags.
type RecoveryTag uint16

const (
	RecoverUndefined            RecoveryTag = 0x5500
	RecoverHeader               RecoveryTag = 0x5501
	RecoverTileTable            RecoveryTag = 0x5502
	RecoverCipher               RecoveryTag = 0x5503 // reserved
	RecoverMetadata             RecoveryTag = 0x5504
	RecoverAttributes           RecoveryTag = 0x5505
	RecoverLayerExtents         RecoveryTag = 0x5506
	RecoverTileOffsets          RecoveryTag = 0x5507
	RecoverAttributesSizes      RecoveryTag = 0x5508
	RecoverAttributesBytes      RecoveryTag = 0x5509
	RecoverAssociatedImages     RecoveryTag = 0x550A
	RecoverAssociatedImageBytes RecoveryTag = 0x550B
	RecoverICCProfile           RecoveryTag = 0x550C
	RecoverAnnotations          RecoveryTag = 0x550D
	RecoverAnnotationBytes      RecoveryTag = 0x550E
	RecoverAnnotationGroupSizes RecoveryTag = 0x550F
	RecoverAnnotationGroupBytes RecoveryTag = 0x5510
)

func (t RecoveryTag) String() string {
	switch t {
	case RecoverHeader:
		return "FILE_HEADER"
	case RecoverTileTable:
		return "TILE_TABLE"
	case RecoverCipher:
		return "CIPHER"
	case RecoverMetadata:
		return "METADATA"
	case RecoverAttributes:
		return "ATTRIBUTES"
	case RecoverLayerExtents:
		return "LAYER_EXTENTS"
	case RecoverTileOffsets:
		return "TILE_OFFSETS"
	case RecoverAttributesSizes:
		return "ATTRIBUTES_SIZES"
	case RecoverAttributesBytes:
		return "ATTRIBUTES_BYTES"
	case RecoverAssociatedImages:
		return "IMAGE_ARRAY"
	case RecoverAssociatedImageBytes:
		return "IMAGE_BYTES"
	case RecoverICCProfile:
		return "ICC_PROFILE"
	case RecoverAnnotations:
		return "ANNOTATIONS"
	case RecoverAnnotationBytes:
		return "ANNOTATION_BYTES"
	case RecoverAnnotationGroupSizes:
		return "ANNOTATION_GROUP_SIZES"
	case RecoverAnnotationGroupBytes:
		return "ANNOTATION_GROUP_BYTES"
	default:
		return "UNDEFINED"
	}
}

// Encoding is the tile compression codec. Zero is reserved and rejected on
// read.
type Encoding uint8

const (
	EncodingUndefined Encoding = 0
	EncodingIris      Encoding = 1
	EncodingJPEG      Encoding = 2
	EncodingAVIF      Encoding = 3
)

func (e Encoding) String() string {
	switch e {
	case EncodingIris:
		return "IRIS"
	case EncodingJPEG:
		return "JPEG"
	case EncodingAVIF:
		return "AVIF"
	default:
		return "UNDEFINED"
	}
}

func validEncoding(e Encoding, version uint32) bool {
	switch e {
	case EncodingIris, EncodingJPEG, EncodingAVIF:
		return true
	}
	if version > Extension1_0 {
		// Version 2 encodings are accepted here.
	}
	return false
}

// Format is the pixel channel ordering of decompressed tile data. Zero is
// permitted on write with a warning but rejected on read.
type Format uint8

const (
	FormatUndefined Format = 0
	FormatB8G8R8    Format = 1
	FormatR8G8B8    Format = 2
	FormatB8G8R8A8  Format = 3
	FormatR8G8B8A8  Format = 4
)

func (f Format) String() string {
	switch f {
	case FormatB8G8R8:
		return "B8G8R8"
	case FormatR8G8B8:
		return "R8G8B8"
	case FormatB8G8R8A8:
		return "B8G8R8A8"
	case FormatR8G8B8A8:
		return "R8G8B8A8"
	default:
		return "UNDEFINED"
	}
}

func validFormat(f Format, version uint32) bool {
	switch f {
	case FormatB8G8R8, FormatR8G8B8, FormatB8G8R8A8, FormatR8G8B8A8:
		return true
	}
	if version > Extension1_0 {
		// Version 2 formats are accepted here.
	}
	return false
}

// AttributeFormat is the convention used for attribute key/value pairs.
type AttributeFormat uint8

const (
	AttributesUndefined AttributeFormat = 0
	AttributesI2S       AttributeFormat = 1
	AttributesDICOM     AttributeFormat = 2
)

func (f AttributeFormat) String() string {
	switch f {
	case AttributesI2S:
		return "I2S"
	case AttributesDICOM:
		return "DICOM"
	default:
		return "UNDEFINED"
	}
}

func validAttributeFormat(f AttributeFormat, version uint32) bool {
	switch f {
	case AttributesI2S, AttributesDICOM:
		return true
	}
	if version > Extension1_0 {
		// Version 2 formats are accepted here.
	}
	return false
}

// ImageEncoding is the compression codec of an associated image byte stream.
type ImageEncoding uint8

const (
	ImageEncodingUndefined ImageEncoding = 0
	ImageEncodingPNG       ImageEncoding = 1
	ImageEncodingJPEG      ImageEncoding = 2
	ImageEncodingAVIF      ImageEncoding = 3
)

func (e ImageEncoding) String() string {
	switch e {
	case ImageEncodingPNG:
		return "PNG"
	case ImageEncodingJPEG:
		return "JPEG"
	case ImageEncodingAVIF:
		return "AVIF"
	default:
		return "UNDEFINED"
	}
}

func validImageEncoding(e ImageEncoding, version uint32) bool {
	switch e {
	case ImageEncodingPNG, ImageEncodingJPEG, ImageEncodingAVIF:
		return true
	}
	if version > Extension1_0 {
		// Version 2 encodings are accepted here.
	}
	return false
}

// AnnotationType is the content format of an annotation byte stream.
type AnnotationType uint8

const (
	AnnotationUndefined AnnotationType = 0
	AnnotationPNG       AnnotationType = 1
	AnnotationJPEG      AnnotationType = 2
	AnnotationSVG       AnnotationType = 3
	AnnotationText      AnnotationType = 4
)

func (t AnnotationType) String() string {
	switch t {
	case AnnotationPNG:
		return "PNG"
	case AnnotationJPEG:
		return "JPEG"
	case AnnotationSVG:
		return "SVG"
	case AnnotationText:
		return "TEXT"
	default:
		return "UNDEFINED"
	}
}

func validAnnotationType(t AnnotationType, version uint32) bool {
	switch t {
	case AnnotationPNG, AnnotationJPEG, AnnotationSVG, AnnotationText:
		return true
	}
	if version > Extension1_0 {
		// Version 2 types are accepted here.
	}
	return false
}
