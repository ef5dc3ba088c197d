package ife

import "log/slog"

// Image array entry layout.
const (
	ieBytesOffset = 0
	ieWidth       = 8
	ieHeight      = 12
	ieEncoding    = 16
	ieFormat      = 17
	ieOrientation = 18
	ieEntrySize   = 20
)

// Image bytes block layout: the prologue, the title length, the image byte
// length, then the ASCII title followed by the compressed image stream.
const (
	ibTitleSize = blockHeaderSize
	ibImageSize = ibTitleSize + 2
	ibV1_0Size  = ibImageSize + 4
)

// AssociatedImage is the abstracted handle of one ancillary image (label,
// macro, thumbnail): the payload location and the decode parameters. The
// compressed bytes stay in the region.
type AssociatedImage struct {
	Offset      uint64
	ByteSize    uint64
	Width       uint32
	Height      uint32
	Encoding    ImageEncoding
	Format      Format
	Orientation uint16
}

// ImageArray reads and validates the associated images array block.
type ImageArray struct {
	DataBlock
}

// Size returns the on-disk byte length of the array block.
func (a ImageArray) Size(r Region) (uint64, error) {
	p, err := r.Bytes(a.Offset, arrHeaderSize)
	if err != nil {
		return 0, err
	}
	size := uint64(arrHeaderSize) + uint64(loadU32(p[arrEntryCount:]))*uint64(loadU16(p[arrEntrySize:]))
	if a.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size, nil
}

// ValidateOffset checks the block prologue against the image array tag.
func (a ImageArray) ValidateOffset(r Region) Result {
	return a.validateOffset(r, RecoverAssociatedImages)
}

// ValidateFull validates the prologue, every referenced image bytes block,
// and each entry's encoding and format enumerators.
func (a ImageArray) ValidateFull(r Region) Result {
	result := a.ValidateOffset(r)
	if result.Failed() {
		return result
	}

	p, err := r.Bytes(a.Offset, arrHeaderSize)
	if err != nil {
		return validationFailuref("IMAGE_ARRAY unreadable: %v", err)
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))
	start := a.Offset + arrHeaderSize
	if a.Version > Extension1_0 {
		// Version 2 header fields are validated here.
	}

	if step < ieEntrySize {
		return failuref("IMAGE_ARRAY failed validation: stored entry size (%d) is shorter than a v1.0 entry", step)
	}
	if start+entries*step > a.FileSize {
		return failuref(
			"IMAGE_ARRAY failed validation: bytes block (%d-%d bytes) extends beyond the end of the file",
			start, start+entries*step)
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return failuref("IMAGE_ARRAY array unreadable: %v", err)
	}

	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		bytes := ImageBytes{DataBlock{Offset: loadU64(e[ieBytesOffset:]), FileSize: a.FileSize, Version: a.Version}}
		if res := bytes.ValidateFull(r); res.Failed() {
			return res
		}
		if enc := ImageEncoding(loadU8(e[ieEncoding:])); !validImageEncoding(enc, a.Version) {
			return failuref(
				"undefined associated image encoding (%d) decoded from associated image array; the encoding shall be one of the enumerated values, excluding the undefined value (0)",
				uint8(enc))
		}
		if f := Format(loadU8(e[ieFormat:])); !validFormat(f, a.Version) {
			return failuref(
				"undefined associated image pixel format (%d) decoded from associated image array; the format shall be one of the enumerated values, excluding the undefined value (0)",
				uint8(f))
		}
		if a.Version > Extension1_0 {
			// Version 2 entry fields are validated here.
		}
	}
	return result
}

// ReadAssocImages returns the abstracted images keyed by their unique
// titles. A duplicate title is skipped with a warning. The optional blocks
// slice receives the ImageBytes reader of every entry for file-map walks.
func (a ImageArray) ReadAssocImages(r Region, blocks *[]ImageBytes) (map[string]AssociatedImage, error) {
	p, err := r.Bytes(a.Offset, arrHeaderSize)
	if err != nil {
		return nil, err
	}
	step := uint64(loadU16(p[arrEntrySize:]))
	entries := uint64(loadU32(p[arrEntryCount:]))
	start := a.Offset + arrHeaderSize
	if a.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}

	if step < ieEntrySize {
		return nil, failuref("IMAGE_ARRAY read failed: stored entry size (%d) is shorter than a v1.0 entry", step).Err()
	}
	if start+entries*step > a.FileSize {
		return nil, failuref(
			"IMAGE_ARRAY read failed: bytes block (%d-%d bytes) extends beyond the end of the file",
			start, start+entries*step).Err()
	}
	array, err := r.Bytes(start, entries*step)
	if err != nil {
		return nil, err
	}

	images := make(map[string]AssociatedImage, entries)
	for i := uint64(0); i < entries; i++ {
		e := array[i*step:]
		bytesOffset := loadU64(e[ieBytesOffset:])
		if bytesOffset == NullOffset {
			return nil, failuref("failed IMAGE_ARRAY read: image entry contains an invalid offset").Err()
		}
		if bytesOffset > a.FileSize {
			return nil, failuref("failed IMAGE_ARRAY read: image entry out of file bounds").Err()
		}

		bytes := ImageBytes{DataBlock{Offset: bytesOffset, FileSize: a.FileSize, Version: a.Version}}
		if result := bytes.ValidateOffset(r); result.Failed() {
			return nil, result.Err()
		}
		if blocks != nil {
			*blocks = append(*blocks, bytes)
		}

		var image AssociatedImage
		title, err := bytes.ReadImageBytes(r, &image)
		if err != nil {
			return nil, err
		}
		if _, dup := images[title]; dup {
			slog.Warn("duplicate associated image title; skipping duplicate; image titles shall be unique ASCII labels",
				"title", title)
			continue
		}

		image.Width = loadU32(e[ieWidth:])
		image.Height = loadU32(e[ieHeight:])
		image.Encoding = ImageEncoding(loadU8(e[ieEncoding:]))
		if !validImageEncoding(image.Encoding, a.Version) {
			return nil, failuref(
				"undefined associated image encoding (%d) decoded from associated image array", uint8(image.Encoding)).Err()
		}
		image.Format = Format(loadU8(e[ieFormat:]))
		if !validFormat(image.Format, a.Version) {
			return nil, failuref(
				"undefined associated image source format (%d) decoded from associated image array", uint8(image.Format)).Err()
		}
		image.Orientation = loadU16(e[ieOrientation:]) % 360
		images[title] = image

		if a.Version > Extension1_0 {
			// Version 2 entry fields are surfaced here.
		}
	}
	return images, nil
}

// ImageBytes reads and validates one associated image byte stream block.
type ImageBytes struct {
	DataBlock
}

// Size returns the on-disk byte length of the block: the header plus the
// title plus the image stream.
func (b ImageBytes) Size(r Region) (uint64, error) {
	p, err := r.Bytes(b.Offset, ibV1_0Size)
	if err != nil {
		return 0, err
	}
	size := uint64(ibV1_0Size) + uint64(loadU16(p[ibTitleSize:])) + uint64(loadU32(p[ibImageSize:]))
	if b.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size, nil
}

// ValidateOffset checks the block prologue against the image bytes tag.
func (b ImageBytes) ValidateOffset(r Region) Result {
	return b.validateOffset(r, RecoverAssociatedImageBytes)
}

// ValidateFull validates the prologue, the title and image lengths, and the
// block bounds.
func (b ImageBytes) ValidateFull(r Region) Result {
	result := b.ValidateOffset(r)
	if result.Failed() {
		return result
	}

	p, err := r.Bytes(b.Offset, ibV1_0Size)
	if err != nil {
		return validationFailuref("IMAGE_BYTES unreadable: %v", err)
	}
	title := uint64(loadU16(p[ibTitleSize:]))
	bytes := uint64(loadU32(p[ibImageSize:]))
	if title == 0 {
		return validationFailuref(
			"associated image title failed validation due to length: the title size shall be greater than zero")
	}
	if bytes == 0 {
		return validationFailuref(
			"associated image bytes failed validation due to length: the image size shall be greater than zero bytes")
	}
	if b.Offset+ibV1_0Size+title+bytes > b.FileSize {
		return failuref(
			"IMAGE_BYTES failed validation: image bytes array block (location %d - %d bytes) extends beyond the end of file",
			b.Offset, b.Offset+ibV1_0Size+title+bytes)
	}
	return result
}

// ReadImageBytes returns the image title and fills the payload handle: the
// absolute offset just past the title and the image byte length.
func (b ImageBytes) ReadImageBytes(r Region, image *AssociatedImage) (string, error) {
	p, err := r.Bytes(b.Offset, ibV1_0Size)
	if err != nil {
		return "", err
	}
	titleSize := uint64(loadU16(p[ibTitleSize:]))
	image.ByteSize = uint64(loadU32(p[ibImageSize:]))

	start := b.Offset + ibV1_0Size
	if b.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}

	if titleSize == 0 {
		return "", failuref("associated image title failed validation due to length: the title size shall be greater than zero").Err()
	}
	if image.ByteSize == 0 {
		return "", failuref("associated image bytes failed validation due to length: the image size shall be greater than zero bytes").Err()
	}
	titleBytes, err := r.Bytes(start, titleSize)
	if err != nil {
		return "", err
	}
	image.Offset = start + titleSize
	if image.Offset+image.ByteSize > b.FileSize {
		return "", failuref(
			"IMAGE_BYTES read failed: image bytes block (%d-%d bytes) extends beyond the end of the file",
			image.Offset, image.Offset+image.ByteSize).Err()
	}
	return string(titleBytes), nil
}

// ImageArrayEntry is one pre-laid-out entry for StoreImageArray; the image
// bytes block at BytesOffset must already be stored.
type ImageArrayEntry struct {
	BytesOffset uint64
	Width       uint32
	Height      uint32
	Encoding    ImageEncoding
	Format      Format
	Orientation uint16
}

// ImageArrayCreateInfo carries the pre-computed layout for StoreImageArray.
type ImageArrayCreateInfo struct {
	Offset uint64
	Images []ImageArrayEntry
}

// SizeImageArray returns the byte length of an image array block holding n
// entries.
func SizeImageArray(n int) uint64 {
	return arrHeaderSize + uint64(n)*ieEntrySize
}

// StoreImageArray validates every entry and writes the array block.
func StoreImageArray(buf []byte, ci ImageArrayCreateInfo) error {
	if err := checkStoreBounds(buf, ci.Offset, SizeImageArray(len(ci.Images)), "IMAGE_ARRAY"); err != nil {
		return err
	}
	if uint64(len(ci.Images)) > uint64(^uint32(0)) {
		return failuref("failed to store associated images array: array too large (%d)", len(ci.Images)).Err()
	}

	storePrologue(buf, ci.Offset, RecoverAssociatedImages)
	p := buf[ci.Offset:]
	storeU16(p[arrEntrySize:], ieEntrySize)
	storeU32(p[arrEntryCount:], uint32(len(ci.Images)))
	cursor := p[arrHeaderSize:]
	for _, image := range ci.Images {
		if image.BytesOffset == NullOffset {
			return failuref("failed to store associated image: NULL_OFFSET provided as bytes location").Err()
		}
		if image.Width == 0 {
			return failuref("failed to store associated image: invalid width (0 px)").Err()
		}
		if image.Height == 0 {
			return failuref("failed to store associated image: invalid height (0 px)").Err()
		}
		if !validImageEncoding(image.Encoding, CurrentVersion) {
			return failuref("failed to store associated image: undefined compression encoding (%d)", uint8(image.Encoding)).Err()
		}
		if !validFormat(image.Format, CurrentVersion) {
			return failuref("failed to store associated image: undefined source pixel format (%d)", uint8(image.Format)).Err()
		}
		storeU64(cursor[ieBytesOffset:], image.BytesOffset)
		storeU32(cursor[ieWidth:], image.Width)
		storeU32(cursor[ieHeight:], image.Height)
		storeU8(cursor[ieEncoding:], uint8(image.Encoding))
		storeU8(cursor[ieFormat:], uint8(image.Format))
		storeU16(cursor[ieOrientation:], image.Orientation%360)
		cursor = cursor[ieEntrySize:]
	}
	return nil
}

// ImageBytesCreateInfo carries the layout and content for StoreImageBytes.
type ImageBytesCreateInfo struct {
	Offset uint64
	Title  string
	Data   []byte
}

// SizeImageBytes returns the byte length of the image bytes block: header
// plus title plus payload.
func SizeImageBytes(ci ImageBytesCreateInfo) uint64 {
	return ibV1_0Size + uint64(len(ci.Title)) + uint64(len(ci.Data))
}

// StoreImageBytes writes one associated image byte stream block.
func StoreImageBytes(buf []byte, ci ImageBytesCreateInfo) error {
	if err := checkStoreBounds(buf, ci.Offset, SizeImageBytes(ci), "IMAGE_BYTES"); err != nil {
		return err
	}
	if len(ci.Title) == 0 {
		return failuref("failed to store associated image bytes: an associated image shall carry a valid and unique title").Err()
	}
	if len(ci.Title) > int(^uint16(0)) {
		return failuref("failed to store associated image bytes: title longer than the 16-bit size limit").Err()
	}
	if len(ci.Data) == 0 {
		return failuref("failed to store associated image bytes: no image data was provided").Err()
	}
	if uint64(len(ci.Data)) > uint64(^uint32(0)) {
		return failuref("failed to store associated image bytes: image larger than the 32-bit size limit").Err()
	}

	storePrologue(buf, ci.Offset, RecoverAssociatedImageBytes)
	p := buf[ci.Offset:]
	storeU16(p[ibTitleSize:], uint16(len(ci.Title)))
	storeU32(p[ibImageSize:], uint32(len(ci.Data)))
	copy(p[ibV1_0Size:], ci.Title)
	copy(p[ibV1_0Size+len(ci.Title):], ci.Data)
	return nil
}
