package repo

import "fmt"

// Record pairs a record's $type NSID discriminator with its field
// values, the tagged-sum-type envelope spec.md §3 describes for the
// generic Record data model. It is a thin convenience over the raw
// map[string]any EncodeRecord/DecodeRecord already accept — useful when
// code wants to branch on Type before deciding how to interpret Value,
// e.g. an MST walk that collects records of several collections at once.
type Record struct {
	Type  string
	Value map[string]any
}

// NewRecord builds a Record, folding $type into a copy of fields so the
// caller's map is left untouched.
func NewRecord(typ string, fields map[string]any) Record {
	v := make(map[string]any, len(fields)+1)
	for k, val := range fields {
		v[k] = val
	}
	v["$type"] = typ
	return Record{Type: typ, Value: v}
}

// Encode serializes the record to DAG-CBOR.
func (r Record) Encode() ([]byte, error) {
	return EncodeRecord(r.Value)
}

// DecodeRecordEnvelope decodes DAG-CBOR bytes and requires the result to
// carry a $type field, the invariant every atproto record satisfies.
func DecodeRecordEnvelope(data []byte) (Record, error) {
	m, err := DecodeRecord(data)
	if err != nil {
		return Record{}, err
	}
	typ, _ := m["$type"].(string)
	if typ == "" {
		return Record{}, fmt.Errorf("repo: decode record envelope: %w: missing $type", ErrMalformedRecord)
	}
	return Record{Type: typ, Value: m}, nil
}
