package imageio

import (
	"context"
	"image"
	"sync"
)

// CachingLoader keeps decoded images in memory so repeated renders of the
// same pattern decode each separation once. Cached images are shared and
// must be treated as read-only. Failures are not cached.
type CachingLoader struct {
	next  Loader
	cache sync.Map // path -> image.Image
	locks sync.Map // path -> *sync.Mutex
}

// NewCachingLoader wraps next.
func NewCachingLoader(next Loader) *CachingLoader {
	return &CachingLoader{next: next}
}

// Load implements Loader.
func (c *CachingLoader) Load(ctx context.Context, path string) (image.Image, error) {
	if v, ok := c.cache.Load(path); ok {
		return v.(image.Image), nil
	}

	mu := c.getLock(path)
	mu.Lock()
	defer mu.Unlock()

	if v, ok := c.cache.Load(path); ok {
		return v.(image.Image), nil
	}

	img, err := c.next.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	c.cache.Store(path, img)
	return img, nil
}

// Forget drops path from the cache.
func (c *CachingLoader) Forget(path string) {
	c.cache.Delete(path)
}

func (c *CachingLoader) getLock(key string) *sync.Mutex {
	if v, ok := c.locks.Load(key); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	actual, _ := c.locks.LoadOrStore(key, mu)
	return actual.(*sync.Mutex)
}
