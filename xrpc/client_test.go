package xrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticTokens struct {
	access  string
	refresh string
}

func (s staticTokens) TokenForNSID(nsid string) (string, bool) {
	if nsid == refreshSessionNSID {
		return s.refresh, true
	}
	return s.access, true
}

func TestSendQuerySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xrpc/app.bsky.feed.getTimeline" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("limit = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"cursor": "abc"})
	}))
	defer srv.Close()

	c := New(srv.Client(), staticTokens{access: "access-tok"}, Config{Endpoint: srv.URL})
	resp, err := c.Send(context.Background(), Request{
		Method:     Query,
		NSID:       "app.bsky.feed.getTimeline",
		Parameters: map[string]string{"limit": "10"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !resp.IsJSON() {
		t.Error("expected JSON content type")
	}
	var out struct{ Cursor string }
	if err := resp.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Cursor != "abc" {
		t.Errorf("cursor = %q", out.Cursor)
	}
}

func TestSendProcedureUsesRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer refresh-tok" {
			t.Errorf("Authorization = %q, want refresh token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"accessJwt": "new"})
	}))
	defer srv.Close()

	c := New(srv.Client(), staticTokens{access: "access-tok", refresh: "refresh-tok"}, Config{Endpoint: srv.URL})
	_, err := c.Send(context.Background(), Request{Method: Procedure, NSID: refreshSessionNSID})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "ExpiredToken", "message": "token is expired"})
	}))
	defer srv.Close()

	c := New(srv.Client(), staticTokens{access: "tok"}, Config{Endpoint: srv.URL})
	_, err := c.Send(context.Background(), Request{Method: Query, NSID: "com.atproto.server.getSession"})
	if err == nil {
		t.Fatal("expected error")
	}
	xerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if xerr.Name != "ExpiredToken" || xerr.StatusCode != 400 {
		t.Errorf("err = %+v", xerr)
	}
}

func TestSendProxyAndLabelersHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("atproto-proxy"); got != "did:plc:svc#bsky_fg" {
			t.Errorf("atproto-proxy = %q", got)
		}
		if got := r.Header.Get("atproto-accept-labelers"); got != "did:plc:l1, did:plc:l2;redact" {
			t.Errorf("atproto-accept-labelers = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := New(srv.Client(), staticTokens{access: "tok"}, Config{
		Endpoint: srv.URL,
		LabelersHeader: []LabelerHeader{
			{DID: "did:plc:l1"},
			{DID: "did:plc:l2", Redact: true},
		},
	}).WithProxyHeader(ProxyHeader{DID: "did:plc:svc", ServiceType: "bsky_fg"})

	_, err := c.Send(context.Background(), Request{Method: Query, NSID: "app.bsky.feed.getFeed"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendInputMarshaled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hello" {
			t.Errorf("body = %+v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.Client(), nil, Config{Endpoint: srv.URL})
	_, err := c.Send(context.Background(), Request{
		Method: Procedure,
		NSID:   "com.atproto.repo.createRecord",
		Input:  map[string]string{"text": "hello"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
}
