package identity

import (
	"context"
	"strings"
)

// Resolver resolves DIDs and handles to Identity records, composing
// document fetch, caching, and throttling.
type Resolver struct {
	config Config
	cache  *identityCache
	throt  *throttle
}

// ResolveIdentity accepts either a DID or a handle and returns the
// resolved Identity: its canonical DID, its handle (if known), and its
// PDS endpoint.
//
// For a handle input, the resolved document's alsoKnownAs must list the
// handle back, or resolution fails — this is the bidirectional
// verification that prevents handle spoofing.
func (r *Resolver) ResolveIdentity(ctx context.Context, identifier string) (Identity, error) {
	if cached, ok := r.cache.get(identifier); ok {
		return cached, nil
	}

	id, err := r.throt.do(identifier, func() (Identity, error) {
		return r.resolveUncached(ctx, identifier)
	})
	if err != nil {
		return Identity{}, err
	}

	r.cache.set(identifier, id)
	if id.Handle != "" {
		r.cache.set(id.Handle, id)
	}
	r.cache.set(id.DID, id)
	return id, nil
}

func (r *Resolver) resolveUncached(ctx context.Context, identifier string) (Identity, error) {
	if strings.HasPrefix(identifier, "did:") {
		doc, err := r.ResolveDIDDoc(ctx, identifier)
		if err != nil {
			return Identity{}, err
		}
		return r.identityFromDocument(doc, "")
	}

	did, err := r.ResolveHandle(ctx, identifier)
	if err != nil {
		return Identity{}, err
	}

	doc, err := r.ResolveDIDDoc(ctx, did)
	if err != nil {
		return Identity{}, err
	}
	return r.identityFromDocument(doc, identifier)
}

// identityFromDocument builds an Identity from a resolved document. If
// expectedHandle is non-empty, the document's alsoKnownAs must contain it.
func (r *Resolver) identityFromDocument(doc *DIDDocument, expectedHandle string) (Identity, error) {
	if expectedHandle != "" && !doc.HasAlsoKnownAsHandle(expectedHandle) {
		return Identity{}, &ErrDidDocument{
			Identifier: doc.ID,
			Reason:     "alsoKnownAs does not include handle " + expectedHandle,
		}
	}

	pds := doc.PDSEndpoint()
	if pds == "" {
		return Identity{}, &ErrDidDocument{Identifier: doc.ID, Reason: "no atproto pds service"}
	}

	handle := expectedHandle
	if handle == "" {
		handle = firstHandle(doc)
	}

	return Identity{DID: doc.ID, Handle: handle, PDS: pds}, nil
}

func firstHandle(doc *DIDDocument) string {
	for _, aka := range doc.AlsoKnownAs {
		if strings.HasPrefix(aka, "at://") {
			return strings.TrimPrefix(aka, "at://")
		}
	}
	return ""
}

// PurgeCache removes a cached identity, forcing the next lookup to hit
// the network.
func (r *Resolver) PurgeCache(identifier string) {
	r.cache.purge(identifier)
}
