package toolchain

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/specmerge/errors"
)

// DefaultCacheSize is the number of disassembled modules kept in memory
const DefaultCacheSize = 256

// textCache holds disassembly output keyed by the SHA-256 of the binary
type textCache struct {
	lru   *lru.Cache[string, string]
	group singleflight.Group
	hits  atomic.Uint64
}

func newTextCache(size int) (*textCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "create disassembly cache")
	}
	return &textCache{lru: c}, nil
}

// get returns the cached text for data, or calls convert once for all
// concurrent callers with the same data. Failed conversions are not cached.
func (c *textCache) get(data []byte, convert func() (string, error)) (string, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if text, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return text, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// a caller that missed above may arrive after the flight landed
		if text, ok := c.lru.Get(key); ok {
			c.hits.Add(1)
			return text, nil
		}
		text, err := convert()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, text)
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
