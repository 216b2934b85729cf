// Package mst implements the AT Protocol Merkle Search Tree: an
// ordered, content-addressed key/value tree keyed by
// "<collection>/<rkey>" strings, whose shape is a pure function of its
// content rather than of insertion order.
package mst

import "crypto/sha256"

// KeyDepth returns a key's layer in the tree: the number of leading
// zero 2-bit groups in sha256(key), counted across the whole hash (four
// groups per byte, continuing into the next byte only once a byte's
// four groups are all zero). About 3/4 of keys land at layer 0, about
// 3/16 at layer 1, and so on — keys land at rarer, higher layers
// geometrically less often as depth increases.
//
// This is deterministic in content alone, which is what gives the tree
// its core invariant: two repositories with identical key/value sets
// always build the identical tree shape, regardless of the order
// records were inserted in.
func KeyDepth(key []byte) int {
	sum := sha256.Sum256(key)
	depth := 0
	for _, b := range sum {
		if b < 64 {
			depth++
		} else {
			break
		}
		if b < 16 {
			depth++
		} else {
			break
		}
		if b < 4 {
			depth++
		} else {
			break
		}
		if b == 0 {
			depth++
			continue
		}
		break
	}
	return depth
}
