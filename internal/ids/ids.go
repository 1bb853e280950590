// Package ids generates event and task identifiers.
//
// Event IDs are full ULIDs so the journal's event_id column is always
// monotonically sortable even when several events are appended within the
// same millisecond by one writer invocation. Root task IDs are a short,
// human-typeable 8-character Crockford-base32 tag; child task IDs are
// derived deterministically from the parent's child counter and never
// collide by construction.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// monoSource is process-wide so that successive EventID calls within the
// same invocation remain strictly increasing even when ts repeats the same
// millisecond; oklog/ulid's Monotonic reader only guarantees ordering
// across calls sharing one instance.
var (
	monoMu     sync.Mutex
	monoSource = ulid.Monotonic(rand.Reader, 0)
)

// EventID generates a new ULID for an event timestamped at ts. The single
// process-wide monotonic entropy source guarantees strict ordering of IDs
// produced within one invocation, required for the "event_id must be a
// monotonically-sortable unique identifier" invariant under a writer that
// emits several events per command.
func EventID(ts time.Time) string {
	monoMu.Lock()
	defer monoMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(ts), monoSource).String()
}

const rootIDAlphabet = "0123456789abcdefghjkmnpqrstvwxyz" // Crockford base32, lowercase

// RootID generates a new root task ID of the form "tsq-<8 chars>" from 40
// random bits (8 Crockford-base32 symbols, 5 bits each).
func RootID() (string, error) {
	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("ids: read random bytes: %w", err)
	}
	return "tsq-" + encodeCrockford40(buf), nil
}

// encodeCrockford40 encodes 40 bits (5 bytes) as 8 Crockford-base32 symbols.
func encodeCrockford40(buf [5]byte) string {
	var bits uint64
	for _, b := range buf {
		bits = bits<<8 | uint64(b)
	}
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = rootIDAlphabet[bits&0x1f]
		bits >>= 5
	}
	return string(out)
}

// ChildID computes the next child ID for parent given the parent's highest
// previously-assigned numeric suffix.
func ChildID(parent string, highestSuffix int) string {
	return fmt.Sprintf("%s.%d", parent, highestSuffix+1)
}
