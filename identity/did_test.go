package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestResolver(t *testing.T, plcURL string) *Resolver {
	t.Helper()
	r, err := NewResolver(Config{
		PLCDirectoryURL: plcURL,
		HTTPClient:      http.DefaultClient,
		DNSResolver:     failingDNSResolver{},
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

type failingDNSResolver struct{}

func (failingDNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	return nil, context.DeadlineExceeded
}

func TestResolveDIDDocPLC(t *testing.T) {
	const did = "did:plc:abc123"
	doc := DIDDocument{
		ID:          did,
		AlsoKnownAs: []string{"at://alice.example.com"},
		Service: []Service{
			{ID: "#atproto_pds", Type: "AtprotoPersonalDataServer", ServiceEndpoint: "https://pds.example.com"},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+did {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(doc)
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL)
	got, err := r.ResolveDIDDoc(context.Background(), did)
	if err != nil {
		t.Fatalf("ResolveDIDDoc: %v", err)
	}
	if got.ID != did {
		t.Errorf("ID = %q, want %q", got.ID, did)
	}
	if got.PDSEndpoint() != "https://pds.example.com" {
		t.Errorf("PDSEndpoint = %q", got.PDSEndpoint())
	}
}

func TestResolveDIDDocNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL)
	_, err := r.ResolveDIDDoc(context.Background(), "did:plc:missing")
	var nf *ErrNotFound
	if err == nil {
		t.Fatal("expected error")
	}
	if !isErrNotFound(err, &nf) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func isErrNotFound(err error, target **ErrNotFound) bool {
	e, ok := err.(*ErrNotFound)
	if ok {
		*target = e
	}
	return ok
}

func TestResolveDIDDocUnsupportedMethod(t *testing.T) {
	r := newTestResolver(t, "https://plc.directory")
	_, err := r.ResolveDIDDoc(context.Background(), "did:example:123")
	if _, ok := err.(*ErrUnsupportedDidMethod); !ok {
		t.Errorf("error = %v, want ErrUnsupportedDidMethod", err)
	}
}

func TestIsLoopbackHost(t *testing.T) {
	cases := map[string]bool{
		"localhost":      true,
		"localhost:3000": true,
		"127.0.0.1":      true,
		"example.com":    false,
	}
	for host, want := range cases {
		if got := isLoopbackHost(host); got != want {
			t.Errorf("isLoopbackHost(%q) = %v, want %v", host, got, want)
		}
	}
}
