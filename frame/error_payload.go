package frame

import "encoding/json"

// ErrorPayload is the DAG-CBOR-as-JSON shape of an error frame's payload:
// {error: string, message?: string}. Frame payloads are themselves
// DAG-CBOR objects, but since this module has no generic DAG-CBOR ->
// struct decoder beyond go-ipld-cbor's map form, callers typically decode
// the raw payload bytes with the repo package's record codec before
// unmarshalling the resulting map into ErrorPayload with encoding/json.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DecodeErrorPayload is a convenience for the common case where the
// payload has already been normalized to a JSON-compatible map (e.g. by
// repo.DecodeRecord).
func DecodeErrorPayload(m map[string]any) (ErrorPayload, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return ErrorPayload{}, err
	}
	var p ErrorPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return ErrorPayload{}, err
	}
	return p, nil
}
