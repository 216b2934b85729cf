package repo

import "errors"

var (
	// ErrUnsignedCommit is returned when MarshalCBOR or Verify is called
	// on a commit with no signature attached.
	ErrUnsignedCommit = errors.New("repo: commit is unsigned")

	// ErrRecordNotFound is returned when a record lookup misses.
	ErrRecordNotFound = errors.New("repo: record not found")

	// ErrRepoNotInitialized is returned when an operation runs against a
	// DID that InitRepo has not been called for.
	ErrRepoNotInitialized = errors.New("repo: repository not initialized")
)
