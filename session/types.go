// Package session implements the password-flow session lifecycle: a
// token store, endpoint tracking from DID documents, and single-flight
// refresh coalescing, exposed as an xrpc.TokenSource.
package session

// Session is the password-flow credential set: a short-lived access
// token, a long-lived refresh token, and the account's identity.
type Session struct {
	AccessJwt  string
	RefreshJwt string
	DID        string
	Handle     string
	DidDoc     map[string]any
}

// Store is the pluggable persistence interface for a Session. The
// in-memory implementation below is the default; a caller wanting
// durable storage implements this against whatever database it runs.
type Store interface {
	Get() (Session, bool)
	Set(Session)
	Clear()
}

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	session Session
	has     bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (Session, bool) {
	return s.session, s.has
}

func (s *MemoryStore) Set(sess Session) {
	s.session = sess
	s.has = true
}

func (s *MemoryStore) Clear() {
	s.session = Session{}
	s.has = false
}
