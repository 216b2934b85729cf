package repo

import (
	"crypto/rand"
	"encoding/binary"
	"strings"
	"sync"
	"time"
)

// tidAlphabet is the base32-sortable alphabet atproto TIDs use: lower
// ordinal characters sort before higher ones, so lexicographic string
// order matches numeric order.
const tidAlphabet = "234567abcdefghijklmnopqrstuvwxyz"

// Clock generates atproto Timestamp Identifiers (TIDs): 64-bit values
// packing a microsecond timestamp with a random low-order tiebreaker,
// encoded as 13 base32-sortable characters. Successive calls to Next on
// the same Clock are guaranteed strictly increasing even if the system
// clock does not advance between them.
type Clock struct {
	mu        sync.Mutex
	lastMicro int64
}

// NewClock returns a Clock ready to mint TIDs.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next TID in sequence.
func (c *Clock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	micros := time.Now().UnixMicro()
	if micros <= c.lastMicro {
		micros = c.lastMicro + 1
	}
	c.lastMicro = micros

	var clockID uint64
	var b [2]byte
	if _, err := rand.Read(b[:]); err == nil {
		clockID = uint64(binary.BigEndian.Uint16(b[:])) & 0x3ff
	}

	v := (uint64(micros) << 10) | clockID
	return encodeTID(v)
}

func encodeTID(v uint64) string {
	var sb strings.Builder
	sb.Grow(13)
	for i := 12; i >= 0; i-- {
		sb.WriteByte(tidAlphabet[(v>>uint(i*5))&0x1f])
	}
	return sb.String()
}
