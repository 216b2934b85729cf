package repo

import (
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// Low-level DAG-CBOR write primitives for the commit object. Field order
// is hand-sequenced (rather than left to go-ipld-cbor's reflection path)
// so the exact canonical key order — required for the signed bytes to
// verify against any other atproto implementation's commit encoding — is
// guaranteed rather than incidental. The major-type header bit-packing
// itself delegates to cbor-gen, already a direct dependency of this
// module, instead of reimplementing it. Mirrors the same pattern used in
// repo/mst.

const (
	majUnsignedInt byte = 0
	majByteString  byte = 2
	majTextString  byte = 3
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
	case majMap:
		return cw.WriteMajorTypeHeader(cbg.MajMap, length)
	case majTag:
		return cw.WriteMajorTypeHeader(cbg.MajTag, length)
	default:
		return fmt.Errorf("repo: unsupported major type %d", maj)
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
