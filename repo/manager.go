package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/go-atproto/atproto/blockstore"
	"github.com/go-atproto/atproto/crypto"
	"github.com/go-atproto/atproto/repo/mst"
)

// RepoOp describes a single record mutation folded into a commit.
type RepoOp struct {
	Action string // "create", "update", or "delete"
	Path   string // collection/rkey
	CID    *cid.Cid
	Prev   *cid.Cid
}

// CommitResult carries everything about a commit a caller (or, upstream
// of this module, a firehose event builder) needs to describe what
// changed.
type CommitResult struct {
	CommitCID cid.Cid
	Rev       string
	PrevRev   string
	PrevData  *cid.Cid
	Ops       []RepoOp
	DiffCAR   []byte // CAR v1 with only the blocks this commit introduced
}

// RecordEntry is one record returned from ListRecords.
type RecordEntry struct {
	URI   string
	CID   cid.Cid
	Value map[string]any
}

// repoState is one repository's live, in-memory state: its blocks, the
// current flat key/value view of the MST, and its current commit.
type repoState struct {
	mu         sync.Mutex
	bs         *blockstore.MemBlockstore
	entries    map[string]cid.Cid
	commitCID  cid.Cid
	rev        string
	signingKey *crypto.PrivateKey
}

// Manager holds every repository this process is tracking, keyed by DID.
// Unlike a PDS-side repo manager, it keeps no durable backing store: a
// caller that needs persistence serializes a repository with ExportRepo
// and reloads it with ImportRepo.
type Manager struct {
	mu    sync.Mutex
	clock *Clock
	repos map[string]*repoState
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{clock: NewClock(), repos: make(map[string]*repoState)}
}

func entriesSlice(m map[string]cid.Cid) []mst.LeafEntry {
	out := make([]mst.LeafEntry, 0, len(m))
	for k, v := range m {
		out = append(out, mst.LeafEntry{Key: []byte(k), Value: v})
	}
	return out
}

func storeCommitBlock(ctx context.Context, bs blockstore.Blockstore, c *Commit) (cid.Cid, error) {
	raw, err := c.MarshalCBOR()
	if err != nil {
		return cid.Undef, err
	}
	return bs.WriteBlock(ctx, dagCBORCodec, sha2_256, raw)
}

// InitRepo creates an empty repository for did if one is not already
// tracked. Calling it again for the same DID is a no-op.
func (m *Manager) InitRepo(ctx context.Context, did string, signingKey *crypto.PrivateKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.repos[did]; ok {
		return nil
	}

	bs := blockstore.NewMemBlockstore()
	mstRoot, err := mst.BuildRoot(ctx, bs, nil)
	if err != nil {
		return fmt.Errorf("repo: init mst: %w", err)
	}

	rev := m.clock.Next()
	commit := &Commit{DID: did, Version: RepoVersion, Data: mstRoot, Rev: rev}
	if err := commit.Sign(signingKey); err != nil {
		return fmt.Errorf("repo: init sign: %w", err)
	}
	commitCID, err := storeCommitBlock(ctx, bs, commit)
	if err != nil {
		return fmt.Errorf("repo: init store commit: %w", err)
	}

	m.repos[did] = &repoState{
		bs:         bs,
		entries:    make(map[string]cid.Cid),
		commitCID:  commitCID,
		rev:        rev,
		signingKey: signingKey,
	}
	return nil
}

func (m *Manager) state(did string) (*repoState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.repos[did]
	if !ok {
		return nil, fmt.Errorf("repo: %w: %s", ErrRepoNotInitialized, did)
	}
	return st, nil
}

// commit rebuilds and signs a new commit over st's current entries,
// writing it (and everything the mutation introduced) to diff, and
// advances st's root/rev in place.
func (m *Manager) commit(ctx context.Context, did string, st *repoState, diff *blockstore.DiffBlockstore, mstRoot cid.Cid, ops []RepoOp) (*CommitResult, error) {
	prevCommitCID := st.commitCID
	prevRev := st.rev

	prevRaw, err := diff.ReadBlock(ctx, prevCommitCID)
	if err != nil {
		return nil, fmt.Errorf("repo: commit read previous: %w", err)
	}
	prevCommit, err := DecodeCommit(prevRaw)
	if err != nil {
		return nil, fmt.Errorf("repo: commit decode previous: %w", err)
	}
	prevData := prevCommit.Data

	rev := m.clock.Next()
	newCommit := &Commit{DID: did, Version: RepoVersion, Data: mstRoot, Rev: rev, Prev: &prevCommitCID}
	if err := newCommit.Sign(st.signingKey); err != nil {
		return nil, fmt.Errorf("repo: commit sign: %w", err)
	}
	commitCID, err := storeCommitBlock(ctx, diff, newCommit)
	if err != nil {
		return nil, fmt.Errorf("repo: commit store: %w", err)
	}

	var carBuf bytes.Buffer
	if err := diff.ExportDiffCAR(&carBuf, commitCID); err != nil {
		return nil, fmt.Errorf("repo: commit export diff car: %w", err)
	}

	st.commitCID = commitCID
	st.rev = rev

	return &CommitResult{
		CommitCID: commitCID,
		Rev:       rev,
		PrevRev:   prevRev,
		PrevData:  &prevData,
		Ops:       ops,
		DiffCAR:   carBuf.Bytes(),
	}, nil
}

// PutRecord creates or replaces the record at collection/rkey.
func (m *Manager) PutRecord(ctx context.Context, did, collection, rkey string, record map[string]any) (string, *CommitResult, error) {
	st, err := m.state(did)
	if err != nil {
		return "", nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	diff := blockstore.NewDiffBlockstore(st.bs)

	raw, err := EncodeRecord(record)
	if err != nil {
		return "", nil, fmt.Errorf("repo: put encode: %w", err)
	}
	recordCID, err := diff.WriteBlock(ctx, dagCBORCodec, sha2_256, raw)
	if err != nil {
		return "", nil, fmt.Errorf("repo: put store record: %w", err)
	}

	path := collection + "/" + rkey
	prevCID, hadPrev := st.entries[path]
	st.entries[path] = recordCID

	mstRoot, err := mst.BuildRoot(ctx, diff, entriesSlice(st.entries))
	if err != nil {
		return "", nil, fmt.Errorf("repo: put build mst: %w", err)
	}

	action := "create"
	var prevPtr *cid.Cid
	if hadPrev {
		action = "update"
		p := prevCID
		prevPtr = &p
	}
	op := RepoOp{Action: action, Path: path, CID: &recordCID, Prev: prevPtr}

	result, err := m.commit(ctx, did, st, diff, mstRoot, []RepoOp{op})
	if err != nil {
		return "", nil, err
	}
	return "at://" + did + "/" + path, result, nil
}

// CreateRecord mints a fresh TID rkey and stores record under it.
func (m *Manager) CreateRecord(ctx context.Context, did, collection string, record map[string]any) (string, *CommitResult, error) {
	rkey := m.clock.Next()
	return m.PutRecord(ctx, did, collection, rkey, record)
}

// GetRecord reads a single record by collection + rkey.
func (m *Manager) GetRecord(ctx context.Context, did, collection, rkey string) (cid.Cid, map[string]any, error) {
	st, err := m.state(did)
	if err != nil {
		return cid.Undef, nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	path := collection + "/" + rkey
	recordCID, ok := st.entries[path]
	if !ok {
		return cid.Undef, nil, fmt.Errorf("repo: get record: %w: %s", ErrRecordNotFound, path)
	}
	raw, err := st.bs.ReadBlock(ctx, recordCID)
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("repo: get record block: %w", err)
	}
	rec, err := DecodeRecord(raw)
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("repo: get record decode: %w", err)
	}
	return recordCID, rec, nil
}

// DeleteRecord removes the record at collection/rkey.
func (m *Manager) DeleteRecord(ctx context.Context, did, collection, rkey string) (*CommitResult, error) {
	st, err := m.state(did)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	path := collection + "/" + rkey
	prevCID, ok := st.entries[path]
	if !ok {
		return nil, fmt.Errorf("repo: delete record: %w: %s", ErrRecordNotFound, path)
	}
	delete(st.entries, path)

	diff := blockstore.NewDiffBlockstore(st.bs)
	mstRoot, err := mst.BuildRoot(ctx, diff, entriesSlice(st.entries))
	if err != nil {
		return nil, fmt.Errorf("repo: delete build mst: %w", err)
	}

	prevPtr := prevCID
	op := RepoOp{Action: "delete", Path: path, CID: nil, Prev: &prevPtr}
	return m.commit(ctx, did, st, diff, mstRoot, []RepoOp{op})
}

// ListRecords returns up to limit records in collection, starting after
// cursor (an rkey), optionally walked in reverse key order.
func (m *Manager) ListRecords(ctx context.Context, did, collection string, limit int, cursor string, reverse bool) ([]RecordEntry, string, error) {
	st, err := m.state(did)
	if err != nil {
		return nil, "", err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	prefix := collection + "/"
	var keys []string
	for k := range st.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	startIdx := 0
	if cursor != "" {
		cursorPath := prefix + cursor
		for i, k := range keys {
			if k == cursorPath {
				startIdx = i + 1
				break
			}
		}
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var records []RecordEntry
	var nextCursor string
	for i := startIdx; i < len(keys) && len(records) < limit; i++ {
		k := keys[i]
		recordCID := st.entries[k]
		raw, err := st.bs.ReadBlock(ctx, recordCID)
		if err != nil {
			return nil, "", fmt.Errorf("repo: list record block %s: %w", recordCID, err)
		}
		rec, err := DecodeRecord(raw)
		if err != nil {
			return nil, "", fmt.Errorf("repo: list record decode: %w", err)
		}
		records = append(records, RecordEntry{URI: "at://" + did + "/" + k, CID: recordCID, Value: rec})
		if len(records) == limit && i+1 < len(keys) {
			nextCursor = strings.TrimPrefix(k, prefix)
		}
	}
	return records, nextCursor, nil
}

// DescribeRepo returns the distinct collection NSIDs present in the repo.
func (m *Manager) DescribeRepo(ctx context.Context, did string) ([]string, error) {
	st, err := m.state(did)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	seen := make(map[string]bool)
	for k := range st.entries {
		if idx := strings.Index(k, "/"); idx > 0 {
			seen[k[:idx]] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// GetRoot returns the current commit CID and rev for did.
func (m *Manager) GetRoot(ctx context.Context, did string) (cid.Cid, string, error) {
	st, err := m.state(did)
	if err != nil {
		return cid.Undef, "", err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.commitCID, st.rev, nil
}

// ExportRepo writes the full repository as a CAR v1 archive to w.
func (m *Manager) ExportRepo(ctx context.Context, did string, w *bytes.Buffer) error {
	st, err := m.state(did)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return blockstore.ExportCAR(w, st.bs, st.commitCID)
}

// ImportRepo rebuilds an in-memory repository from a previously signed
// root commit and its backing blocks (e.g. one loaded from a CAR via the
// blockstore package's indexed reader), so a caller can resume operating
// on a repository it did not originate in this process.
func (m *Manager) ImportRepo(ctx context.Context, did string, bs *blockstore.MemBlockstore, commitCID cid.Cid, signingKey *crypto.PrivateKey) error {
	raw, err := bs.ReadBlock(ctx, commitCID)
	if err != nil {
		return fmt.Errorf("repo: import read commit: %w", err)
	}
	commit, err := DecodeCommit(raw)
	if err != nil {
		return fmt.Errorf("repo: import decode commit: %w", err)
	}
	entries, err := mst.ReadTree(ctx, bs, commit.Data)
	if err != nil {
		return fmt.Errorf("repo: import read mst: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[did] = &repoState{
		bs:         bs,
		entries:    entries,
		commitCID:  commitCID,
		rev:        commit.Rev,
		signingKey: signingKey,
	}
	return nil
}
