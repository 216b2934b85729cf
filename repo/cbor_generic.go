package repo

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ipfs/go-cid"
)

// ErrMalformedRecord is returned when record bytes are not valid DAG-CBOR.
var ErrMalformedRecord = errors.New("repo: malformed record")

// decodeAny walks one DAG-CBOR value of any shape into its generic Go
// form, the decode-side counterpart to go-ipld-cbor's reflection-based
// DumpObject: there is no corresponding "DecodeObject to any" entry point
// in that library, so this mirrors the wire format directly (the same
// approach the mst package uses for node blocks).
func decodeAny(r *bufio.Reader) (any, error) {
	first, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	maj := first[0] >> 5
	info := first[0] & 0x1f

	switch maj {
	case 0: // unsigned int
		v, err := readHeaderValue(r)
		return int64(v), err
	case 1: // negative int
		v, err := readHeaderValue(r)
		return -1 - int64(v), err
	case 2: // byte string
		return readBytes(r)
	case 3: // text string
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case 4: // array
		n, err := readHeaderValue(r)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := decodeAny(r)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case 5: // map
		n, err := readHeaderValue(r)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, n)
		for i := uint64(0); i < n; i++ {
			k, err := decodeAny(r)
			if err != nil {
				return nil, err
			}
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string map key", ErrMalformedRecord)
			}
			v, err := decodeAny(r)
			if err != nil {
				return nil, err
			}
			out[ks] = v
		}
		return out, nil
	case 6: // tag
		tag, err := readHeaderValue(r)
		if err != nil {
			return nil, err
		}
		if tag != 42 {
			// Skip and return the inner value unannotated for tags we
			// don't special-case.
			return decodeAny(r)
		}
		raw, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 || raw[0] != 0x00 {
			return nil, fmt.Errorf("%w: CID link missing identity multibase prefix", ErrMalformedRecord)
		}
		_, c, err := cid.CidFromBytes(raw[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return c, nil
	case 7: // simple/float
		switch info {
		case 20:
			r.Discard(1)
			return false, nil
		case 21:
			r.Discard(1)
			return true, nil
		case 22:
			r.Discard(1)
			return nil, nil
		case 26:
			r.Discard(1)
			var buf [4]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, err
			}
			return float64(math.Float32frombits(binary.BigEndian.Uint32(buf[:]))), nil
		case 27:
			r.Discard(1)
			var buf [8]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, err
			}
			return math.Float64frombits(binary.BigEndian.Uint64(buf[:])), nil
		default:
			return nil, fmt.Errorf("%w: unsupported simple value %d", ErrMalformedRecord, info)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported major type %d", ErrMalformedRecord, maj)
	}
}

// readHeaderValue consumes one CBOR type header and returns its length
// or integer value, without reporting the major type (callers already
// peeked it).
func readHeaderValue(r *bufio.Reader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	info := b & 0x1f
	switch {
	case info < 24:
		return uint64(info), nil
	case info == 24:
		b2, err := r.ReadByte()
		return uint64(b2), err
	case info == 25:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint16(buf[:])), nil
	case info == 26:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(buf[:])), nil
	case info == 27:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(buf[:]), nil
	default:
		return 0, fmt.Errorf("%w: unsupported additional info %d", ErrMalformedRecord, info)
	}
}

func readBytes(r *bufio.Reader) ([]byte, error) {
	n, err := readHeaderValue(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
