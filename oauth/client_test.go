package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-atproto/atproto/identity"
)

func TestAuthorizeCallbackHappyPath(t *testing.T) {
	const did = "did:plc:alice"

	var pdsSrv, authSrv *httptest.Server
	var capturedState string

	pdsSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ProtectedResourceMetadata{
			Resource:             pdsSrv.URL,
			AuthorizationServers: []string{authSrv.URL},
		})
	}))
	defer pdsSrv.Close()

	authSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/oauth-authorization-server":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(AuthorizationServerMetadata{
				Issuer:                              authSrv.URL,
				AuthorizationEndpoint:               authSrv.URL + "/authorize",
				TokenEndpoint:                        authSrv.URL + "/token",
				PushedAuthorizationRequestEndpoint:   authSrv.URL + "/par",
				RevocationEndpoint:                   authSrv.URL + "/revoke",
				TokenEndpointAuthMethodsSupported:    []string{"none"},
				DPoPSigningAlgValuesSupported:        []string{"ES256"},
			})
		case "/par":
			r.ParseForm()
			capturedState = r.Form.Get("state")
			if r.Header.Get("DPoP") == "" {
				t.Error("PAR request missing DPoP header")
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"request_uri": "urn:ietf:params:oauth:request_uri:abc", "expires_in": 60})
		case "/token":
			r.ParseForm()
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-tok",
				"token_type":    "DPoP",
				"refresh_token": "refresh-tok",
				"sub":           did,
				"expires_in":    3600,
			})
		default:
			t.Fatalf("unexpected auth server path %s", r.URL.Path)
		}
	}))
	defer authSrv.Close()

	plcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(identity.DIDDocument{
			ID:          did,
			AlsoKnownAs: []string{"at://alice.test"},
			Service: []identity.Service{
				{ID: "#atproto_pds", Type: "AtprotoPersonalDataServer", ServiceEndpoint: pdsSrv.URL},
			},
		})
	}))
	defer plcSrv.Close()

	idResolver, err := identity.NewResolver(identity.Config{
		PLCDirectoryURL: plcSrv.URL,
		HTTPClient:      http.DefaultClient,
	})
	if err != nil {
		t.Fatalf("identity.NewResolver: %v", err)
	}

	metadata := LocalhostClientMetadata([]string{"http://127.0.0.1/callback"}, "atproto")
	client := NewClient(metadata, idResolver, http.DefaultClient, NewMemoryAuthorizationStateStore(), NewMemorySessionStore())

	authURL, err := client.Authorize(context.Background(), did)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if authURL == "" {
		t.Fatal("expected non-empty authorize URL")
	}
	if capturedState == "" {
		t.Fatal("expected PAR request to carry a state")
	}

	sess, err := client.Callback(context.Background(), CallbackParams{
		Code:  "C",
		State: capturedState,
		Iss:   authSrv.URL,
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if sess.DID() != did {
		t.Errorf("DID = %q", sess.DID())
	}
	if sess.Tokens().AccessToken != "access-tok" {
		t.Errorf("access token = %q", sess.Tokens().AccessToken)
	}

	// Replaying the same state must fail: single-use.
	_, err = client.Callback(context.Background(), CallbackParams{Code: "C", State: capturedState})
	if err != ErrStateNotFound {
		t.Errorf("second callback error = %v, want ErrStateNotFound", err)
	}
}
