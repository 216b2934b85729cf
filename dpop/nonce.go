package dpop

import (
	"net/url"
	"sync"
)

// nonceCache is a concurrent origin -> latest server nonce map.
type nonceCache struct {
	mu    sync.RWMutex
	nonce map[string]string
}

func newNonceCache() *nonceCache {
	return &nonceCache{nonce: make(map[string]string)}
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

func (c *nonceCache) get(origin string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nonce[origin]
}

func (c *nonceCache) set(origin, nonce string) {
	if nonce == "" {
		return
	}
	c.mu.Lock()
	c.nonce[origin] = nonce
	c.mu.Unlock()
}
