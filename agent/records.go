package agent

import (
	"context"
	"fmt"

	"github.com/go-atproto/atproto/xrpc"
)

const (
	createRecordNSID = "com.atproto.repo.createRecord"
	deleteRecordNSID = "com.atproto.repo.deleteRecord"
	getRecordNSID    = "com.atproto.repo.getRecord"
	getProfileNSID   = "app.bsky.actor.getProfile"
)

// CreatedRecord is the result of a successful createRecord call.
type CreatedRecord struct {
	URI string
	CID string
}

// CreateRecord writes record (which must carry a "$type" NSID field,
// the tagged-sum discriminator every atproto record uses) to the
// agent's own repo under collection, letting the PDS assign the record
// key. It returns the record's new at:// URI and CID.
func (a *Agent) CreateRecord(ctx context.Context, collection string, record map[string]any) (CreatedRecord, error) {
	if _, ok := record["$type"]; !ok {
		return CreatedRecord{}, fmt.Errorf("agent: create record: missing $type")
	}

	resp, err := a.client.Send(ctx, xrpc.Request{
		Method: xrpc.Procedure,
		NSID:   createRecordNSID,
		Input: map[string]any{
			"repo":       a.did,
			"collection": collection,
			"record":     record,
		},
	})
	if err != nil {
		return CreatedRecord{}, fmt.Errorf("agent: create record: %w", err)
	}

	var out struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := resp.Decode(&out); err != nil {
		return CreatedRecord{}, fmt.Errorf("agent: create record: decode response: %w", err)
	}
	return CreatedRecord{URI: out.URI, CID: out.CID}, nil
}

// DeleteRecord removes the record named by atURI (an at://<did>/<collection>/<rkey>
// string) from the agent's own repo.
func (a *Agent) DeleteRecord(ctx context.Context, atURI string) error {
	collection, rkey, err := splitCollectionRkey(atURI)
	if err != nil {
		return err
	}

	_, err = a.client.Send(ctx, xrpc.Request{
		Method: xrpc.Procedure,
		NSID:   deleteRecordNSID,
		Input: map[string]any{
			"repo":       a.did,
			"collection": collection,
			"rkey":       rkey,
		},
	})
	if err != nil {
		return fmt.Errorf("agent: delete record: %w", err)
	}
	return nil
}

// GetRecord fetches a single record by at:// URI from whichever repo it
// names (not necessarily the agent's own).
func (a *Agent) GetRecord(ctx context.Context, atURI string) (map[string]any, error) {
	did, collection, rkey, err := splitAtURI(atURI)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Send(ctx, xrpc.Request{
		Method: xrpc.Query,
		NSID:   getRecordNSID,
		Parameters: map[string]string{
			"repo":       did,
			"collection": collection,
			"rkey":       rkey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: get record: %w", err)
	}

	var out struct {
		URI   string         `json:"uri"`
		CID   string         `json:"cid"`
		Value map[string]any `json:"value"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("agent: get record: decode response: %w", err)
	}
	return out.Value, nil
}

// GetProfile fetches the app.bsky.actor.profile view for actor (a
// handle or DID). The profile view is an AppView presentation concern
// this module does not model as a typed struct (§1 scope: Bluesky
// presentation concerns beyond the data contracts this package needs
// are a collaborator's job) — callers decode the returned map into
// whatever typed view their own (possibly codegen'd) bindings expect.
func (a *Agent) GetProfile(ctx context.Context, actor string) (map[string]any, error) {
	resp, err := a.client.Send(ctx, xrpc.Request{
		Method:     xrpc.Query,
		NSID:       getProfileNSID,
		Parameters: map[string]string{"actor": actor},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: get profile: %w", err)
	}
	var out map[string]any
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("agent: get profile: decode response: %w", err)
	}
	return out, nil
}
