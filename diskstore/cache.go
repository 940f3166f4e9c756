package diskstore

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// CachedReader wraps a Reader with an LRU cache of decoded node pages. It
// is useful when a host keeps a disk image open across many Map.Open calls
// (for example, re-deriving a fresh in-memory trie after every batch of
// writes) and the underlying source is slow relative to memory — a local
// file on spinning disk, or a remote block store. Plain in-process use of
// Open against an os.File or bytes.Reader has no need for it.
//
// CachedReader itself satisfies Reader, so it can be passed directly to
// Open or merklemap.Open in place of the reader it wraps.
type CachedReader struct {
	r     Reader
	cache *lru.Cache
}

// NewCachedReader wraps r with an LRU cache holding up to size decoded
// pages.
func NewCachedReader(r Reader, size int) (*CachedReader, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("diskstore: creating page cache: %w", err)
	}
	return &CachedReader{r: r, cache: cache}, nil
}

// ReadAt implements io.ReaderAt. Reads that align exactly to one NodeSize
// page (as every read Open performs does) are served from cache on a hit;
// any other read is passed straight through without populating the cache.
func (c *CachedReader) ReadAt(p []byte, off int64) (int, error) {
	if len(p) != NodeSize || (off-HeaderSize)%NodeSize != 0 || off < HeaderSize {
		return c.r.ReadAt(p, off)
	}

	if cached, ok := c.cache.Get(off); ok {
		copy(p, cached.([]byte))
		return len(p), nil
	}

	n, err := c.r.ReadAt(p, off)
	if err != nil {
		return n, err
	}
	stored := append([]byte(nil), p...)
	c.cache.Add(off, stored)
	return n, nil
}
