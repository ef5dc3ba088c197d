package ife

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrRemoteFetch reports a failed range request against a remote slide.
var ErrRemoteFetch = errors.New("ife: remote fetch failed")

// RemoteRegion is a Region backed by HTTP range requests against a slide URL.
//
// Block readers request a block's fixed prologue first and then its fixed
// header as a longer range from the same start; the region caches each
// fetched range keyed by its start offset, so the header fetch replaces the
// prologue fetch. The entries or payload of a variable-length block are
// fetched as a separate range that begins after the header, not as one range
// covering the block's full size. Reads that fall inside a cached range are
// served locally. A failed fetch leaves the cache untouched so the read can
// be retried.
type RemoteRegion struct {
	url    string
	size   uint64
	client *http.Client

	mu     sync.Mutex
	ranges []cachedRange
}

type cachedRange struct {
	start uint64
	data  []byte
}

// NewRemoteRegion creates a range-fetching region over url. The file size
// must be known up front (the remote counterpart of the OS size query). A nil
// client uses http.DefaultClient.
func NewRemoteRegion(url string, fileSize uint64, client *http.Client) *RemoteRegion {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteRegion{url: url, size: fileSize, client: client}
}

func (r *RemoteRegion) Size() uint64 { return r.size }

// URL returns the remote endpoint this region fetches from.
func (r *RemoteRegion) URL() string { return r.url }

func (r *RemoteRegion) Bytes(off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > r.size {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfBounds, off, end, r.size)
	}
	if n == 0 {
		return nil, nil
	}

	r.mu.Lock()
	if b, ok := r.cached(off, n); ok {
		r.mu.Unlock()
		return b, nil
	}
	r.mu.Unlock()

	data, err := r.fetch(off, n)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.install(off, data)
	b, _ := r.cached(off, n)
	return b, nil
}

// cached returns a view into an already fetched range covering [off, off+n).
// Callers must hold mu.
func (r *RemoteRegion) cached(off, n uint64) ([]byte, bool) {
	for i := range r.ranges {
		c := &r.ranges[i]
		if off >= c.start && off+n <= c.start+uint64(len(c.data)) {
			rel := off - c.start
			return c.data[rel : rel+n], true
		}
	}
	return nil, false
}

// install records a fetched range, replacing a shorter fetch from the same
// start (the prologue fetch a header fetch expands on). Callers must hold mu.
func (r *RemoteRegion) install(start uint64, data []byte) {
	for i := range r.ranges {
		c := &r.ranges[i]
		if c.start == start {
			if len(data) > len(c.data) {
				c.data = data
			}
			return
		}
	}
	r.ranges = append(r.ranges, cachedRange{start: start, data: data})
}

// fetch issues a single blocking range request. Any status other than 206
// Partial Content fails the read.
func (r *RemoteRegion) fetch(off, n uint64) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+n-1))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("%w: %s returned HTTP status %d", ErrRemoteFetch, r.url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	if uint64(len(data)) < n {
		return nil, fmt.Errorf("%w: short range response (%d of %d bytes)", ErrRemoteFetch, len(data), n)
	}
	return data[:n], nil
}
