package identity

import (
	"testing"
	"time"
)

func TestIdentityCacheExpiry(t *testing.T) {
	c, err := newIdentityCache(10, time.Millisecond)
	if err != nil {
		t.Fatalf("newIdentityCache: %v", err)
	}
	c.set("k", Identity{DID: "did:plc:x"})

	if _, ok := c.get("k"); !ok {
		t.Fatal("expected hit immediately after set")
	}

	time.Sleep(5 * time.Millisecond)
	if _, ok := c.get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestIdentityCachePurge(t *testing.T) {
	c, err := newIdentityCache(10, time.Hour)
	if err != nil {
		t.Fatalf("newIdentityCache: %v", err)
	}
	c.set("k", Identity{DID: "did:plc:x"})
	c.purge("k")
	if _, ok := c.get("k"); ok {
		t.Error("expected miss after purge")
	}
}
