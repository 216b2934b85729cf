package blockstore

import "errors"

var (
	// ErrCidNotFound is returned when a block is not present in the store.
	ErrCidNotFound = errors.New("blockstore: cid not found")

	// ErrUnsupportedHash is returned when writeBlock is asked to hash with
	// a multihash algorithm the store does not implement.
	ErrUnsupportedHash = errors.New("blockstore: unsupported hash algorithm")

	// ErrInvalidHash is returned by the indexed CAR reader when a block's
	// bytes do not hash to the CID that framed them.
	ErrInvalidHash = errors.New("blockstore: block hash does not match cid")
)
