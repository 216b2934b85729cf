package identity

import (
	"context"
	"net"
	"net/http"
	"time"
)

// DNSResolver is the collaborator interface for TXT record lookups,
// satisfied directly by *net.Resolver.
type DNSResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Config holds the identity resolver's tunables. Every field has a
// sensible default; zero-value fields are filled in by NewResolver.
type Config struct {
	// PLCDirectoryURL is the base URL of the did:plc directory service.
	PLCDirectoryURL string

	// HTTPClient performs the HTTPS lookups against did:web hosts, handle
	// well-known endpoints, and the PLC directory.
	HTTPClient *http.Client

	// DNSResolver performs the handle TXT record lookup.
	DNSResolver DNSResolver

	// CacheSize bounds the number of entries the LRU cache holds.
	CacheSize int

	// CacheTTL is how long a cached identity is considered fresh.
	CacheTTL time.Duration
}

// DefaultConfig returns a Config with production-sensible defaults.
func DefaultConfig() Config {
	return Config{
		PLCDirectoryURL: "https://plc.directory",
		HTTPClient:      &http.Client{Timeout: 10 * time.Second},
		DNSResolver:     net.DefaultResolver,
		CacheSize:       10_000,
		CacheTTL:        24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	if c.PLCDirectoryURL == "" {
		c.PLCDirectoryURL = "https://plc.directory"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.DNSResolver == nil {
		c.DNSResolver = net.DefaultResolver
	}
	if c.CacheSize == 0 {
		c.CacheSize = 10_000
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 24 * time.Hour
	}
	return c
}
