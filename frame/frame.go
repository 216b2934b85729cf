// Package frame implements the two-object DAG-CBOR wire framing used by
// the firehose: each frame is the concatenation of a header object and a
// payload object, both DAG-CBOR, with no length prefix between them (the
// boundary is wherever the header's CBOR encoding ends).
package frame

import (
	"bufio"
	"fmt"
	"io"

	cbg "github.com/whyrusleeping/cbor-gen"
)

// Op distinguishes a message frame from an error frame.
type Op int64

const (
	OpMessage Op = 1
	OpError   Op = -1
)

// Header is the first DAG-CBOR object in a frame.
type Header struct {
	Op Op
	// T names the payload's schema for message frames (e.g. "#commit").
	// Unset for error frames.
	T string
}

const (
	majUnsignedInt byte = 0
	majNegativeInt byte = 1
	majTextString  byte = 3
	majMap         byte = 5
)

// Decode reads exactly one frame from r: a header object followed by a
// payload object whose bytes are returned undecoded (decoding into a
// concrete schema type is the caller's job, keyed on header.T).
//
// The header and payload are read from a single bufio.Reader without ever
// re-wrapping it mid-stream — re-wrapping would let the inner reader
// buffer ahead past the header's true end and silently swallow the first
// bytes of the payload. Any caller adding more structure here must
// preserve that property.
func Decode(r io.Reader) (Header, []byte, error) {
	br := bufio.NewReader(r)

	h, err := decodeHeader(br)
	if err != nil {
		return Header{}, nil, err
	}

	payload, err := io.ReadAll(br)
	if err != nil {
		return Header{}, nil, fmt.Errorf("frame: %w: reading payload: %v", ErrFraming, err)
	}
	if len(payload) == 0 && headerRequiresPayload(h) {
		return Header{}, nil, ErrEmptyPayload
	}
	return h, payload, nil
}

func headerRequiresPayload(h Header) bool {
	return h.Op == OpError || (h.Op == OpMessage && h.T != "")
}

// Encode writes a complete frame (header then raw payload bytes) to w.
func Encode(w io.Writer, h Header, payload []byte) error {
	if err := h.MarshalCBOR(w); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// MarshalCBOR writes h as a DAG-CBOR map: {"op": N} for error frames, or
// {"op": 1, "t": "<schema>"} for message frames.
func (h *Header) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)

	fieldCount := uint64(1)
	if h.Op == OpMessage {
		fieldCount = 2
	}
	if err := writeTypeHeader(cw, majMap, fieldCount); err != nil {
		return err
	}
	if err := writeTextString(cw, "op"); err != nil {
		return err
	}
	if err := writeInt(cw, int64(h.Op)); err != nil {
		return err
	}
	if h.Op == OpMessage {
		if err := writeTextString(cw, "t"); err != nil {
			return err
		}
		if err := writeTextString(cw, h.T); err != nil {
			return err
		}
	}
	return nil
}

// decodeHeader reads a header directly from br, consuming exactly the
// header's bytes and nothing more.
func decodeHeader(br *bufio.Reader) (Header, error) {
	maj, count, err := readTypeHeader(br)
	if err != nil {
		return Header{}, fmt.Errorf("frame: %w: %v", ErrFraming, err)
	}
	if maj != majMap {
		return Header{}, fmt.Errorf("frame: %w: header is not a map", ErrFraming)
	}

	var h Header
	for i := uint64(0); i < count; i++ {
		key, err := readTextString(br)
		if err != nil {
			return Header{}, fmt.Errorf("frame: %w: reading header key: %v", ErrFraming, err)
		}
		switch key {
		case "op":
			v, err := readInt(br)
			if err != nil {
				return Header{}, fmt.Errorf("frame: %w: reading op: %v", ErrFraming, err)
			}
			h.Op = Op(v)
		case "t":
			v, err := readTextString(br)
			if err != nil {
				return Header{}, fmt.Errorf("frame: %w: reading t: %v", ErrFraming, err)
			}
			h.T = v
		default:
			if err := skipValue(br); err != nil {
				return Header{}, fmt.Errorf("frame: %w: skipping unknown field %q: %v", ErrFraming, key, err)
			}
		}
	}
	return h, nil
}

// writeTypeHeader and readTypeHeader pack and unpack a CBOR major-type
// header (RFC 8949 §3) — field order in this package's MarshalCBOR
// methods is hand-sequenced to guarantee canonical key ordering, but the
// header bit-packing itself is cbor-gen's job, not ours to reimplement.
func writeTypeHeader(w io.Writer, maj byte, length uint64) error {
	cw := cbg.NewCborWriter(w)
	switch maj {
	case majUnsignedInt:
		return cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, length)
	case majNegativeInt:
		return cw.WriteMajorTypeHeader(cbg.MajNegativeInt, length)
	case majTextString:
		return cw.WriteMajorTypeHeader(cbg.MajTextString, length)
	case majMap:
		return cw.WriteMajorTypeHeader(cbg.MajMap, length)
	default:
		return fmt.Errorf("%w: unsupported major type %d", ErrFraming, maj)
	}
}

func writeInt(w io.Writer, v int64) error {
	if v >= 0 {
		return writeTypeHeader(w, majUnsignedInt, uint64(v))
	}
	return writeTypeHeader(w, majNegativeInt, uint64(-v-1))
}

func writeTextString(w io.Writer, s string) error {
	if err := writeTypeHeader(w, majTextString, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readTypeHeader(br *bufio.Reader) (byte, uint64, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return 0, 0, err
	}
	return maj, extra, nil
}

func readTextString(br *bufio.Reader) (string, error) {
	maj, l, err := readTypeHeader(br)
	if err != nil {
		return "", err
	}
	if maj != majTextString {
		return "", fmt.Errorf("%w: expected text string, got major type %d", ErrFraming, maj)
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readInt(br *bufio.Reader) (int64, error) {
	maj, v, err := readTypeHeader(br)
	if err != nil {
		return 0, err
	}
	switch maj {
	case majUnsignedInt:
		return int64(v), nil
	case majNegativeInt:
		return -1 - int64(v), nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got major type %d", ErrFraming, maj)
	}
}

// skipValue discards one CBOR value of a kind that can legally appear in a
// header map we don't recognize (ints and text strings cover every header
// extension seen in practice).
func skipValue(br *bufio.Reader) error {
	maj, v, err := readTypeHeader(br)
	if err != nil {
		return err
	}
	switch maj {
	case majUnsignedInt, majNegativeInt:
		return nil
	case majTextString:
		_, err := io.CopyN(io.Discard, br, int64(v))
		return err
	default:
		return fmt.Errorf("%w: cannot skip major type %d", ErrFraming, maj)
	}
}
