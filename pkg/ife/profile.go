package ife

// ICCProfile reads and validates the ICC color profile block: a
// length-prefixed opaque byte array.
type ICCProfile struct {
	DataBlock
}

// Size returns the on-disk byte length of the block.
func (c ICCProfile) Size(r Region) (uint64, error) {
	p, err := r.Bytes(c.Offset, bytesHdrSize)
	if err != nil {
		return 0, err
	}
	size := uint64(bytesHdrSize) + uint64(loadU32(p[bytesCount:]))
	if c.Version > Extension1_0 {
		// Version 2 fields extend the block here.
	}
	return size, nil
}

// ValidateOffset checks the block prologue against the ICC profile tag.
func (c ICCProfile) ValidateOffset(r Region) Result {
	return c.validateOffset(r, RecoverICCProfile)
}

// ValidateFull validates the prologue and the profile bounds.
func (c ICCProfile) ValidateFull(r Region) Result {
	result := c.ValidateOffset(r)
	if result.Failed() {
		return result
	}
	p, err := r.Bytes(c.Offset, bytesHdrSize)
	if err != nil {
		return validationFailuref("ICC_PROFILE unreadable: %v", err)
	}
	bytes := uint64(loadU32(p[bytesCount:]))
	if c.Offset+bytesHdrSize+bytes > c.FileSize {
		return failuref(
			"ICC_PROFILE failed validation: profile byte block (location %d - %d bytes) extends beyond the end of file",
			c.Offset, c.Offset+bytesHdrSize+bytes)
	}
	return result
}

// ReadProfile returns a copy of the profile bytes.
func (c ICCProfile) ReadProfile(r Region) ([]byte, error) {
	p, err := r.Bytes(c.Offset, bytesHdrSize)
	if err != nil {
		return nil, err
	}
	bytes := uint64(loadU32(p[bytesCount:]))
	start := c.Offset + bytesHdrSize
	if c.Version > Extension1_0 {
		// Version 2 header fields are read here.
	}
	if start+bytes > c.FileSize {
		return nil, failuref(
			"ICC_PROFILE read failed: profile byte block (%d-%d bytes) extends beyond the end of the file",
			start, start+bytes).Err()
	}
	body, err := r.Bytes(start, bytes)
	if err != nil {
		return nil, err
	}
	profile := make([]byte, len(body))
	copy(profile, body)
	return profile, nil
}

// SizeICCProfile returns the byte length of an ICC profile block for the
// given profile.
func SizeICCProfile(profile []byte) uint64 {
	return bytesHdrSize + uint64(len(profile))
}

// StoreICCProfile writes the ICC color profile block at the given offset.
func StoreICCProfile(buf []byte, offset uint64, profile []byte) error {
	if err := checkStoreBounds(buf, offset, SizeICCProfile(profile), "ICC_PROFILE"); err != nil {
		return err
	}
	if uint64(len(profile)) > uint64(^uint32(0)) {
		return failuref("failed to store ICC profile: profile longer than the 32-bit size limit").Err()
	}

	storePrologue(buf, offset, RecoverICCProfile)
	p := buf[offset:]
	storeU32(p[bytesCount:], uint32(len(profile)))
	copy(p[bytesHdrSize:], profile)
	return nil
}
