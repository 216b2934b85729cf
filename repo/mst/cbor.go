package mst

// DAG-CBOR primitives for encoding and decoding MST node blocks. Field
// order is hand-sequenced (rather than left to a reflection-based
// codec) so field names and the CID-link tag (42) come out byte-exact;
// the major-type header bit-packing itself delegates to cbor-gen,
// already a direct dependency of this module, instead of reimplementing
// it. Mirrors the same pattern used in the frame and repo packages.

import (
	"bufio"
	"fmt"
	"io"

	cbg "github.com/whyrusleeping/cbor-gen"
	"github.com/ipfs/go-cid"
)

const (
	majUnsignedInt byte = 0
	majByteString  byte = 2
	majTextString  byte = 3
	majArray       byte = 4
	majMap         byte = 5
	majTag         byte = 6

	cidLinkTag = 42
)

func writeTypeHeader(w io.Writer, maj byte, length uint64) error {
	cw := cbg.NewCborWriter(w)
	switch maj {
	case majUnsignedInt:
		return cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, length)
	case majByteString:
		return cw.WriteMajorTypeHeader(cbg.MajByteString, length)
	case majTextString:
		return cw.WriteMajorTypeHeader(cbg.MajTextString, length)
	case majArray:
		return cw.WriteMajorTypeHeader(cbg.MajArray, length)
	case majMap:
		return cw.WriteMajorTypeHeader(cbg.MajMap, length)
	case majTag:
		return cw.WriteMajorTypeHeader(cbg.MajTag, length)
	default:
		return fmt.Errorf("%w: unsupported major type %d", ErrMalformedNode, maj)
	}
}

func writeUint(w io.Writer, v uint64) error {
	return writeTypeHeader(w, majUnsignedInt, v)
}

func writeTextString(w io.Writer, s string) error {
	if err := writeTypeHeader(w, majTextString, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeByteString(w io.Writer, b []byte) error {
	if err := writeTypeHeader(w, majByteString, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// writeCIDLink encodes a CID the way DAG-CBOR does: tag(42) over a byte
// string whose first byte is the multibase "identity" prefix (0x00)
// followed by the CID's binary form.
func writeCIDLink(w io.Writer, c cid.Cid) error {
	if err := writeTypeHeader(w, majTag, cidLinkTag); err != nil {
		return err
	}
	raw := c.Bytes()
	buf := make([]byte, 0, len(raw)+1)
	buf = append(buf, 0x00)
	buf = append(buf, raw...)
	return writeByteString(w, buf)
}

func readTypeHeader(br *bufio.Reader) (byte, uint64, error) {
	return cbg.CborReadHeaderBuf(br, make([]byte, 9))
}

func readTextString(br *bufio.Reader) (string, error) {
	maj, l, err := readTypeHeader(br)
	if err != nil {
		return "", err
	}
	if maj != majTextString {
		return "", fmt.Errorf("%w: expected text string, got major type %d", ErrMalformedNode, maj)
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readByteString(br *bufio.Reader) ([]byte, error) {
	maj, l, err := readTypeHeader(br)
	if err != nil {
		return nil, err
	}
	if maj != majByteString {
		return nil, fmt.Errorf("%w: expected byte string, got major type %d", ErrMalformedNode, maj)
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readUint(br *bufio.Reader) (uint64, error) {
	maj, v, err := readTypeHeader(br)
	if err != nil {
		return 0, err
	}
	if maj != majUnsignedInt {
		return 0, fmt.Errorf("%w: expected unsigned int, got major type %d", ErrMalformedNode, maj)
	}
	return v, nil
}

func readCIDLink(br *bufio.Reader) (cid.Cid, error) {
	maj, tag, err := readTypeHeader(br)
	if err != nil {
		return cid.Undef, err
	}
	if maj != majTag || tag != cidLinkTag {
		return cid.Undef, fmt.Errorf("%w: expected CID link tag", ErrMalformedNode)
	}
	raw, err := readByteString(br)
	if err != nil {
		return cid.Undef, err
	}
	if len(raw) == 0 || raw[0] != 0x00 {
		return cid.Undef, fmt.Errorf("%w: CID link missing identity multibase prefix", ErrMalformedNode)
	}
	_, c, err := cid.CidFromBytes(raw[1:])
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", ErrMalformedNode, err)
	}
	return c, nil
}
