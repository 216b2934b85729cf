package frame

import "errors"

var (
	// ErrFraming is returned for any invalid-CBOR or truncated-frame
	// condition at the framing layer. Per the subscription error taxonomy,
	// this is always fatal to the connection that produced it.
	ErrFraming = errors.New("frame: invalid frame encoding")

	// ErrEmptyPayload is returned when a header requires a payload (op=1
	// with any non-empty t, or op=-1) but none follows.
	ErrEmptyPayload = errors.New("frame: empty payload")
)
