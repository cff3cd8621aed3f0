// Package id generates ledger entry identifiers.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu     sync.Mutex
	mono   io.Reader
	lastMs uint64
)

func init() {
	// ulid.Monotonic keeps ids generated within the same millisecond
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string for the current time.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID string whose timestamp component is t, or the latest
// timestamp already issued if t is earlier. Ids from one process are therefore
// strictly increasing, which makes them a valid tiebreak for entries sharing a
// CreatedAt.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	ms := ulid.Timestamp(t.UTC())
	if ms < lastMs {
		ms = lastMs
	}
	lastMs = ms

	id, err := ulid.New(ms, mono)
	if err != nil {
		// Only possible when entropy fails or the monotonic counter overflows.
		panic(err)
	}
	return id.String()
}
