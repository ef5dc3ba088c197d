package slidefile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateWriteOpenRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "slide.iris")
	wf, err := Create(path, 256)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	copy(wf.Bytes(), []byte("Iris"))
	wf.Bytes()[255] = 0x7F
	if err := wf.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := wf.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stat.Size() != 256 {
		t.Fatalf("file size: got %d want 256", stat.Size())
	}

	rf, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rf.Close()
	if rf.Size() != 256 {
		t.Fatalf("view size: got %d", rf.Size())
	}
	if !bytes.Equal(rf.Bytes()[:4], []byte("Iris")) {
		t.Fatalf("leading bytes: % X", rf.Bytes()[:4])
	}
	if rf.Bytes()[255] != 0x7F {
		t.Fatalf("trailing byte: %X", rf.Bytes()[255])
	}
	if rf.Region().Size() != 256 {
		t.Fatalf("region size: got %d", rf.Region().Size())
	}
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Open(filepath.Join(t.TempDir(), "absent.iris")); err == nil {
		t.Fatalf("open of a missing file succeeded")
	}
}

func TestWriterExcludesWriter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "slide.iris")
	first, err := Create(path, 64)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	defer first.Close()

	if _, err := Create(path, 64); err == nil {
		t.Fatalf("second exclusive writer acquired the lock")
	}
}

func TestReadersShareLock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "slide.iris")
	wf, err := Create(path, 64)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := wf.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	a, err := Open(path)
	if err != nil {
		t.Fatalf("first reader: %v", err)
	}
	defer a.Close()
	b, err := Open(path)
	if err != nil {
		t.Fatalf("second reader: %v", err)
	}
	defer b.Close()
}
