package firehose

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// Schema names the payload's $type-equivalent header field (frame.Header.T)
// for each event kind the subscribeRepos lexicon defines. Unknown values
// are ignored by Subscribe per the framing forward-compatibility rule.
const (
	SchemaCommit    = "#commit"
	SchemaIdentity  = "#identity"
	SchemaAccount   = "#account"
	SchemaHandle    = "#handle"
	SchemaMigrate   = "#migrate"
	SchemaTombstone = "#tombstone"
	SchemaInfo      = "#info"
)

// RepoOp describes one record mutation folded into a commit event.
type RepoOp struct {
	Action string // "create", "update", or "delete"
	Path   string // collection/rkey
	Cid    *cid.Cid
	Prev   *cid.Cid
}

// CommitEvent is the decoded payload of a #commit frame: a signed
// repository commit plus the CAR-encoded diff of blocks it introduced.
type CommitEvent struct {
	Seq      int64
	Repo     string
	Rev      string
	Since    string
	Commit   cid.Cid
	PrevData *cid.Cid
	Blocks   []byte
	Ops      []RepoOp
	Time     string
	TooBig   bool
	Rebase   bool
}

// IdentityEvent signals that an account's identity (handle or DID
// document) may have changed; consumers should re-resolve.
type IdentityEvent struct {
	Seq    int64
	Did    string
	Handle string
	Time   string
}

// AccountEvent signals an account status change (active, takendown,
// suspended, deactivated).
type AccountEvent struct {
	Seq    int64
	Did    string
	Active bool
	Status string
	Time   string
}

// HandleEvent is a deprecated predecessor of IdentityEvent, still
// emitted by some relays for backward compatibility.
type HandleEvent struct {
	Seq    int64
	Did    string
	Handle string
	Time   string
}

// MigrateEvent announces a repo moving to a new PDS. Deprecated in
// favor of AccountEvent, kept for relays that still emit it.
type MigrateEvent struct {
	Seq       int64
	Did       string
	MigrateTo string
	Time      string
}

// TombstoneEvent announces permanent account deletion.
type TombstoneEvent struct {
	Seq  int64
	Did  string
	Time string
}

// InfoEvent carries an out-of-band informational message from the
// relay (e.g. OutdatedCursor) that is not itself an error frame.
type InfoEvent struct {
	Name    string
	Message string
}

// Handler is the caller-supplied dispatch target. Each method mirrors
// one subscribeRepos payload schema. A nil, nil return drops the event;
// a non-nil Processed value is the caller's own choice of result type
// (Subscribe does not interpret it further); a non-nil error is fatal
// to the subscription, per the handler contract.
type Handler interface {
	HandleCommit(*CommitEvent) (any, error)
	HandleIdentity(*IdentityEvent) (any, error)
	HandleAccount(*AccountEvent) (any, error)
	HandleHandle(*HandleEvent) (any, error)
	HandleMigrate(*MigrateEvent) (any, error)
	HandleTombstone(*TombstoneEvent) (any, error)
	HandleInfo(*InfoEvent) (any, error)
}

// Forwarded is what a caller receives from a handler method that chose
// to keep the event: the emission sequence number paired with whatever
// value the handler decided to return.
type Forwarded struct {
	Seq   int64
	Value any
}

func asString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func asInt64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func asBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func asBytes(m map[string]any, key string) []byte {
	b, _ := m[key].([]byte)
	return b
}

func asCid(m map[string]any, key string) (cid.Cid, bool) {
	c, ok := m[key].(cid.Cid)
	return c, ok
}

func asCidPtr(m map[string]any, key string) *cid.Cid {
	c, ok := asCid(m, key)
	if !ok {
		return nil
	}
	return &c
}

func decodeCommitEvent(m map[string]any) (*CommitEvent, error) {
	commit, ok := asCid(m, "commit")
	if !ok {
		return nil, fmt.Errorf("firehose: #commit payload missing commit cid")
	}
	repo := asString(m, "repo")
	if repo == "" {
		return nil, fmt.Errorf("firehose: #commit payload missing repo")
	}

	var ops []RepoOp
	if rawOps, ok := m["ops"].([]any); ok {
		ops = make([]RepoOp, 0, len(rawOps))
		for _, raw := range rawOps {
			om, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			ops = append(ops, RepoOp{
				Action: asString(om, "action"),
				Path:   asString(om, "path"),
				Cid:    asCidPtr(om, "cid"),
				Prev:   asCidPtr(om, "prev"),
			})
		}
	}

	return &CommitEvent{
		Seq:      asInt64(m, "seq"),
		Repo:     repo,
		Rev:      asString(m, "rev"),
		Since:    asString(m, "since"),
		Commit:   commit,
		PrevData: asCidPtr(m, "prevData"),
		Blocks:   asBytes(m, "blocks"),
		Ops:      ops,
		Time:     asString(m, "time"),
		TooBig:   asBool(m, "tooBig"),
		Rebase:   asBool(m, "rebase"),
	}, nil
}

func decodeIdentityEvent(m map[string]any) *IdentityEvent {
	return &IdentityEvent{
		Seq:    asInt64(m, "seq"),
		Did:    asString(m, "did"),
		Handle: asString(m, "handle"),
		Time:   asString(m, "time"),
	}
}

func decodeAccountEvent(m map[string]any) *AccountEvent {
	return &AccountEvent{
		Seq:    asInt64(m, "seq"),
		Did:    asString(m, "did"),
		Active: asBool(m, "active"),
		Status: asString(m, "status"),
		Time:   asString(m, "time"),
	}
}

func decodeHandleEvent(m map[string]any) *HandleEvent {
	return &HandleEvent{
		Seq:    asInt64(m, "seq"),
		Did:    asString(m, "did"),
		Handle: asString(m, "handle"),
		Time:   asString(m, "time"),
	}
}

func decodeMigrateEvent(m map[string]any) *MigrateEvent {
	return &MigrateEvent{
		Seq:       asInt64(m, "seq"),
		Did:       asString(m, "did"),
		MigrateTo: asString(m, "migrateTo"),
		Time:      asString(m, "time"),
	}
}

func decodeTombstoneEvent(m map[string]any) *TombstoneEvent {
	return &TombstoneEvent{
		Seq:  asInt64(m, "seq"),
		Did:  asString(m, "did"),
		Time: asString(m, "time"),
	}
}
