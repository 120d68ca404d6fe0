package nounseq

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of documents CachedSource remembers.
const DefaultCacheSize = 4096

// CachedSource memoizes another Source by content hash. Reindexing the same
// chat or wiki content across runs then skips morphological analysis.
// Errors are never cached.
type CachedSource struct {
	next  Source
	cache *lru.Cache[[sha256.Size]byte, []NounSequence]
}

// NewCachedSource wraps next with an LRU cache of the given size.
func NewCachedSource(next Source, size int) (*CachedSource, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[sha256.Size]byte, []NounSequence](size)
	if err != nil {
		return nil, err
	}
	return &CachedSource{next: next, cache: cache}, nil
}

// ExtractWithOffsets implements Source.
func (c *CachedSource) ExtractWithOffsets(content string) ([]NounSequence, error) {
	key := sha256.Sum256([]byte(content))
	if seqs, ok := c.cache.Get(key); ok {
		return seqs, nil
	}
	seqs, err := c.next.ExtractWithOffsets(content)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, seqs)
	return seqs, nil
}

// Len returns the number of cached documents.
func (c *CachedSource) Len() int {
	return c.cache.Len()
}
