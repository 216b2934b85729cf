package mst

import (
	"bufio"
	"errors"
	"io"

	"github.com/ipfs/go-cid"
)

// ErrMalformedNode is returned when a stored MST node block cannot be
// decoded as a valid node.
var ErrMalformedNode = errors.New("mst: malformed node block")

// NodeEntry is one key/value entry within a Node, plus the subtree
// (strictly deeper layer) holding every key between this entry and the
// next one in the node.
type NodeEntry struct {
	Key   []byte
	Value cid.Cid
	Tree  *cid.Cid
}

// Node is one layer-level block of the tree: an optional subtree holding
// every key less than the first entry ("Left"), followed by entries in
// ascending key order.
//
// Real atproto MST nodes compress each key against the previous entry's
// key (a "prefixlen" plus a suffix). This implementation always encodes
// the full key with prefixlen 0 — it costs some bytes on deep repos but
// keeps the encode/decode path simple and exact, and does not change the
// resulting root CID's status as a pure function of tree content (it only
// changes how many bytes that content takes to express).
type Node struct {
	Left    *cid.Cid
	Entries []NodeEntry
}

// MarshalCBOR writes n as a DAG-CBOR map: {"l": link|null, "e": [...]}.
func (n *Node) MarshalCBOR(w io.Writer) error {
	if err := writeTypeHeader(w, majMap, 2); err != nil {
		return err
	}
	if err := writeTextString(w, "l"); err != nil {
		return err
	}
	if n.Left != nil {
		if err := writeCIDLink(w, *n.Left); err != nil {
			return err
		}
	} else {
		if _, err := w.Write([]byte{0xf6}); err != nil { // CBOR null
			return err
		}
	}

	if err := writeTextString(w, "e"); err != nil {
		return err
	}
	if err := writeTypeHeader(w, majArray, uint64(len(n.Entries))); err != nil {
		return err
	}
	for _, e := range n.Entries {
		fieldCount := uint64(3)
		if e.Tree != nil {
			fieldCount = 4
		}
		if err := writeTypeHeader(w, majMap, fieldCount); err != nil {
			return err
		}
		if err := writeTextString(w, "p"); err != nil {
			return err
		}
		if err := writeUint(w, 0); err != nil {
			return err
		}
		if err := writeTextString(w, "k"); err != nil {
			return err
		}
		if err := writeByteString(w, e.Key); err != nil {
			return err
		}
		if err := writeTextString(w, "v"); err != nil {
			return err
		}
		if err := writeCIDLink(w, e.Value); err != nil {
			return err
		}
		if e.Tree != nil {
			if err := writeTextString(w, "t"); err != nil {
				return err
			}
			if err := writeCIDLink(w, *e.Tree); err != nil {
				return err
			}
		}
	}
	return nil
}

// UnmarshalCBOR decodes a Node previously written by MarshalCBOR.
func (n *Node) UnmarshalCBOR(r io.Reader) error {
	br := bufio.NewReader(r)

	maj, count, err := readTypeHeader(br)
	if err != nil {
		return err
	}
	if maj != majMap {
		return ErrMalformedNode
	}

	for i := uint64(0); i < count; i++ {
		key, err := readTextString(br)
		if err != nil {
			return err
		}
		switch key {
		case "l":
			peek, err := br.Peek(1)
			if err != nil {
				return err
			}
			if peek[0] == 0xf6 {
				br.ReadByte()
				n.Left = nil
				continue
			}
			c, err := readCIDLink(br)
			if err != nil {
				return err
			}
			n.Left = &c
		case "e":
			emaj, ecount, err := readTypeHeader(br)
			if err != nil {
				return err
			}
			if emaj != majArray {
				return ErrMalformedNode
			}
			n.Entries = make([]NodeEntry, 0, ecount)
			for j := uint64(0); j < ecount; j++ {
				entry, err := decodeEntry(br)
				if err != nil {
					return err
				}
				n.Entries = append(n.Entries, entry)
			}
		default:
			return ErrMalformedNode
		}
	}
	return nil
}

func decodeEntry(br *bufio.Reader) (NodeEntry, error) {
	maj, count, err := readTypeHeader(br)
	if err != nil {
		return NodeEntry{}, err
	}
	if maj != majMap {
		return NodeEntry{}, ErrMalformedNode
	}
	var e NodeEntry
	for k := uint64(0); k < count; k++ {
		field, err := readTextString(br)
		if err != nil {
			return NodeEntry{}, err
		}
		switch field {
		case "p":
			if _, err := readUint(br); err != nil {
				return NodeEntry{}, err
			}
		case "k":
			key, err := readByteString(br)
			if err != nil {
				return NodeEntry{}, err
			}
			e.Key = key
		case "v":
			v, err := readCIDLink(br)
			if err != nil {
				return NodeEntry{}, err
			}
			e.Value = v
		case "t":
			t, err := readCIDLink(br)
			if err != nil {
				return NodeEntry{}, err
			}
			e.Tree = &t
		default:
			return NodeEntry{}, ErrMalformedNode
		}
	}
	return e, nil
}
