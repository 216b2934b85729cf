package agent

import (
	"fmt"
	"strings"
)

// ErrInvalidAtUri is returned when a string does not parse as
// at://<did>/<collection>/<rkey>.
type ErrInvalidAtUri struct {
	Value string
}

func (e *ErrInvalidAtUri) Error() string {
	return fmt.Sprintf("agent: invalid at-uri: %q", e.Value)
}

// splitAtURI parses at://<did>/<collection>/<rkey> into its three parts.
func splitAtURI(atURI string) (did, collection, rkey string, err error) {
	rest, ok := strings.CutPrefix(atURI, "at://")
	if !ok {
		return "", "", "", &ErrInvalidAtUri{Value: atURI}
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", &ErrInvalidAtUri{Value: atURI}
	}
	return parts[0], parts[1], parts[2], nil
}

// splitCollectionRkey is splitAtURI without the did, for the common case
// where the caller already knows it's operating on its own repo.
func splitCollectionRkey(atURI string) (collection, rkey string, err error) {
	_, collection, rkey, err = splitAtURI(atURI)
	return collection, rkey, err
}
