package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeDNSResolver struct {
	records map[string][]string
}

func (f fakeDNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	recs, ok := f.records[name]
	if !ok {
		return nil, &ErrNotFound{Identifier: name}
	}
	return recs, nil
}

func TestResolveHandleViaDNS(t *testing.T) {
	r, err := NewResolver(Config{
		DNSResolver: fakeDNSResolver{records: map[string][]string{
			"_atproto.alice.example.com": {"did=did:plc:alice"},
		}},
		HTTPClient: http.DefaultClient,
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	did, err := r.ResolveHandle(context.Background(), "alice.example.com")
	if err != nil {
		t.Fatalf("ResolveHandle: %v", err)
	}
	if did != "did:plc:alice" {
		t.Errorf("did = %q, want did:plc:alice", did)
	}
}

func TestResolveHandleInvalid(t *testing.T) {
	r := newTestResolver(t, "https://plc.directory")
	_, err := r.ResolveHandle(context.Background(), "did:plc:notahandle")
	if _, ok := err.(*ErrInvalidHandle); !ok {
		t.Errorf("error = %v, want ErrInvalidHandle", err)
	}
}

func TestResolveHandleNotFound(t *testing.T) {
	r, err := NewResolver(Config{
		DNSResolver: fakeDNSResolver{records: map[string][]string{}},
		HTTPClient:  http.DefaultClient,
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	_, err = r.ResolveHandle(context.Background(), "nobody.invalid-handle-test.example")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveHandleWellKnownFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/.well-known/atproto-did") {
			w.Write([]byte("did:plc:viahttp"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	r, err := NewResolver(Config{
		DNSResolver: fakeDNSResolver{records: map[string][]string{}},
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	got, err := r.resolveHandleWellKnown(context.Background(), host)
	if err != nil {
		t.Fatalf("resolveHandleWellKnown: %v", err)
	}
	if got != "did:plc:viahttp" {
		t.Errorf("did = %q", got)
	}
}
