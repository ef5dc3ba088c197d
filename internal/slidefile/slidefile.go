// Package slidefile provides the OS file layer beneath the IFE engine:
// whole-file memory mapping with a ReadAt fallback and advisory file
// locking, shared for readers and exclusive for writers. The engine itself
// only ever sees the resulting byte view and size.
package slidefile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/irisdigital/ife/pkg/ife"
)

// ErrBusy reports that another process holds a conflicting lock on the
// slide.
var ErrBusy = errors.New("slidefile: slide is locked by another process")

// File is an open slide backed by a byte view. Readers share an advisory
// lock; writers hold it exclusively for the duration of the session.
type File struct {
	f        *os.File
	data     []byte
	mmapped  bool
	writable bool
}

// Open maps a slide read-only under a shared advisory lock. If mmap is
// unavailable the file is loaded through ReadAt instead.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if err := lock(f, unix.LOCK_SH); err != nil {
		f.Close()
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		unlockAndClose(f)
		return nil, err
	}
	size := stat.Size()
	if size < 0 || size > int64(int(^uint(0)>>1)) {
		unlockAndClose(f)
		return nil, fmt.Errorf("slidefile: cannot index a %d byte file on this architecture", size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return &File{f: f, data: data, mmapped: true}, nil
	}

	data, err = readAllAt(f, int(size))
	if err != nil {
		unlockAndClose(f)
		return nil, err
	}
	return &File{f: f, data: data}, nil
}

// Create opens a slide read-write under an exclusive advisory lock,
// truncated to the planned size, with a writable mapping. Without mmap the
// buffer lives in memory and flushes on Sync and Close.
func Create(path string, size uint64) (*File, error) {
	if size > uint64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("slidefile: cannot map a %d byte file on this architecture", size)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := lock(f, unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		unlockAndClose(f)
		return nil, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err == nil {
		return &File{f: f, data: data, mmapped: true, writable: true}, nil
	}
	return &File{f: f, data: make([]byte, size), writable: true}, nil
}

// Bytes returns the backing byte view. For a writable file, mutations land
// in the mapping and reach disk on Sync or Close.
func (f *File) Bytes() []byte { return f.data }

// Size is the byte length of the backing file.
func (f *File) Size() uint64 { return uint64(len(f.data)) }

// Region adapts the byte view to the engine's Region contract.
func (f *File) Region() ife.Region { return ife.MemoryRegion(f.data) }

// Sync flushes a writable view to disk.
func (f *File) Sync() error {
	if !f.writable {
		return nil
	}
	if f.mmapped {
		if err := unix.Msync(f.data, unix.MS_SYNC); err != nil {
			return err
		}
		return f.f.Sync()
	}
	if _, err := f.f.WriteAt(f.data, 0); err != nil {
		return err
	}
	return f.f.Sync()
}

// Close flushes writable state, releases the mapping and the advisory lock,
// and closes the file.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	var firstErr error
	if f.writable && !f.mmapped {
		if _, err := f.f.WriteAt(f.data, 0); err != nil {
			firstErr = err
		}
	}
	if f.mmapped {
		if err := unix.Munmap(f.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := unix.Flock(int(f.f.Fd()), unix.LOCK_UN); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := f.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	f.f = nil
	f.data = nil
	return firstErr
}

func lock(f *os.File, how int) error {
	err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrBusy
	}
	return err
}

func unlockAndClose(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	_ = f.Close()
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}
