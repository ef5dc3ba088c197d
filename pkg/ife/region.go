package ife

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds reports a read past the end of a byte region.
var ErrOutOfBounds = errors.New("ife: read out of region bounds")

// Region is the byte-addressable backing of an IFE file: either a whole-file
// memory view or a range-fetching remote proxy. Implementations return views
// where possible; callers must not mutate the returned slices.
type Region interface {
	// Size is the total byte length of the backing file.
	Size() uint64
	// Bytes returns n bytes starting at absolute offset off.
	Bytes(off, n uint64) ([]byte, error)
}

// MemoryRegion adapts an in-memory or memory-mapped file image to the Region
// contract. Slices returned by Bytes alias the backing array.
type MemoryRegion []byte

func (m MemoryRegion) Size() uint64 { return uint64(len(m)) }

func (m MemoryRegion) Bytes(off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > uint64(len(m)) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfBounds, off, end, len(m))
	}
	return m[off:end], nil
}
