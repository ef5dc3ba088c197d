package ife

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// rangeHandler serves single byte ranges over data with 206 responses, the
// contract the remote region requires.
func rangeHandler(data []byte, hits *atomic.Int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		spec := req.Header.Get("Range")
		if !strings.HasPrefix(spec, "bytes=") {
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}
		parts := strings.SplitN(strings.TrimPrefix(spec, "bytes="), "-", 2)
		start, _ := strconv.ParseUint(parts[0], 10, 64)
		end, _ := strconv.ParseUint(parts[1], 10, 64)
		if start > end || end >= uint64(len(data)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	})
}

func TestRemoteRegionReadsSlide(t *testing.T) {
	t.Parallel()

	buf, _ := buildFullSlide(t)
	server := httptest.NewServer(rangeHandler(buf, nil))
	defer server.Close()

	if !IsIrisFileRemote(server.URL, uint64(len(buf)), server.Client()) {
		t.Fatalf("remote slide not recognized as an Iris file")
	}
	if result := ValidateFileStructureRemote(server.URL, uint64(len(buf)), server.Client()); result.Failed() {
		t.Fatalf("remote validation failed: %s", result.Message)
	}

	remote, err := AbstractFileStructureRemote(server.URL, uint64(len(buf)), server.Client())
	if err != nil {
		t.Fatalf("remote abstraction: %v", err)
	}
	local, err := AbstractFileStructure(MemoryRegion(buf))
	if err != nil {
		t.Fatalf("local abstraction: %v", err)
	}
	if !reflect.DeepEqual(remote, local) {
		t.Fatalf("remote abstraction differs from local:\nremote: %+v\nlocal:  %+v", remote, local)
	}
}

// A repeated read of the same block must be served from the per-block cache
// without another request.
func TestRemoteRegionCachesBlocks(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	var hits atomic.Int64
	server := httptest.NewServer(rangeHandler(buf, &hits))
	defer server.Close()

	region := NewRemoteRegion(server.URL, uint64(len(buf)), server.Client())
	if _, err := region.Bytes(0, headerV1_0Size); err != nil {
		t.Fatalf("first read: %v", err)
	}
	first := hits.Load()
	if first != 1 {
		t.Fatalf("first read issued %d requests", first)
	}
	if _, err := region.Bytes(0, headerV1_0Size); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if hits.Load() != first {
		t.Fatalf("cached read issued another request")
	}

	// A sub-range of a cached fetch is also served locally.
	if _, err := region.Bytes(4, 2); err != nil {
		t.Fatalf("sub-range read: %v", err)
	}
	if hits.Load() != first {
		t.Fatalf("sub-range read issued another request")
	}

	// Expanding the same block start replaces the prologue fetch.
	if _, err := region.Bytes(0, headerV1_0Size+8); err != nil {
		t.Fatalf("expanded read: %v", err)
	}
	if hits.Load() != first+1 {
		t.Fatalf("expanded read issued %d requests", hits.Load()-first)
	}
}

// Any status other than 206 fails the read and leaves the cache empty so a
// retry can succeed.
func TestRemoteRegionRequiresPartialContent(t *testing.T) {
	t.Parallel()

	buf := buildMinimalSlide(t)
	var fail atomic.Bool
	fail.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusOK)
			w.Write(buf)
			return
		}
		rangeHandler(buf, nil).ServeHTTP(w, req)
	}))
	defer server.Close()

	region := NewRemoteRegion(server.URL, uint64(len(buf)), server.Client())
	if _, err := region.Bytes(0, headerV1_0Size); err == nil {
		t.Fatalf("non-206 response did not fail the read")
	}

	fail.Store(false)
	if _, err := region.Bytes(0, headerV1_0Size); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestRemoteRegionBounds(t *testing.T) {
	t.Parallel()

	region := NewRemoteRegion("http://unreachable.invalid/slide.iris", 100, nil)
	if _, err := region.Bytes(96, 8); err == nil {
		t.Fatalf("out of bounds remote read succeeded")
	}
}
