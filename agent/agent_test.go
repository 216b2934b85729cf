package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-atproto/atproto/session"
)

func TestLoginAndCreateRecord(t *testing.T) {
	var createBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/" + createSessionNSID:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"accessJwt": "A0", "refreshJwt": "R0", "did": "did:plc:alice", "handle": "alice.test",
			})
		case "/xrpc/" + createRecordNSID:
			if got := r.Header.Get("Authorization"); got != "Bearer A0" {
				t.Errorf("Authorization = %q", got)
			}
			json.NewDecoder(r.Body).Decode(&createBody)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"uri": "at://did:plc:alice/app.bsky.feed.post/abc123",
				"cid": "bafyreicid",
			})
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	a, err := Login(context.Background(), srv.Client(), srv.URL, "alice.test", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if a.DID() != "did:plc:alice" || a.Handle() != "alice.test" {
		t.Fatalf("identity = %q/%q", a.DID(), a.Handle())
	}

	created, err := a.CreateRecord(context.Background(), "app.bsky.feed.post", map[string]any{
		"$type": "app.bsky.feed.post",
		"text":  "hello",
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if created.URI != "at://did:plc:alice/app.bsky.feed.post/abc123" {
		t.Errorf("URI = %q", created.URI)
	}
	if createBody["repo"] != "did:plc:alice" || createBody["collection"] != "app.bsky.feed.post" {
		t.Errorf("request body = %+v", createBody)
	}
}

func TestCreateRecordRequiresType(t *testing.T) {
	a := newAgent(nil, "did:plc:alice", "alice.test")
	if _, err := a.CreateRecord(context.Background(), "app.bsky.feed.post", map[string]any{"text": "no type"}); err == nil {
		t.Fatal("expected error for missing $type")
	}
}

func TestDeleteRecordParsesAtURI(t *testing.T) {
	var sawRepo, sawCollection, sawRkey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Repo       string `json:"repo"`
			Collection string `json:"collection"`
			Rkey       string `json:"rkey"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		sawRepo, sawCollection, sawRkey = body.Repo, body.Collection, body.Rkey
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	a := Resume(srv.Client(), srv.URL, session.Session{
		AccessJwt: "A0", RefreshJwt: "R0", DID: "did:plc:alice", Handle: "alice.test",
	})
	if err := a.DeleteRecord(context.Background(), "at://did:plc:alice/app.bsky.feed.post/abc123"); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if sawRepo != "did:plc:alice" || sawCollection != "app.bsky.feed.post" || sawRkey != "abc123" {
		t.Errorf("delete body = %q/%q/%q", sawRepo, sawCollection, sawRkey)
	}
}

func TestSplitAtURIRejectsMalformed(t *testing.T) {
	if _, _, _, err := splitAtURI("not-an-at-uri"); err == nil {
		t.Fatal("expected error")
	}
	if _, _, _, err := splitAtURI("at://did:plc:alice/onlyCollection"); err == nil {
		t.Fatal("expected error for missing rkey")
	}
}
