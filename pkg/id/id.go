// Package id issues ULIDs for journal records.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Monotonic keeps ids minted in the same millisecond ordered.
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// At returns a ULID stamped with t. Engine code passes its injected clock
// here so trade ids sort with trade timestamps. ULIDs cover 1970 through
// year 10889; other times are rejected.
func At(t time.Time) (string, error) {
	if t.Before(time.Unix(0, 0)) {
		return "", fmt.Errorf("id: time %s before 1970", t.UTC().Format(time.RFC3339))
	}

	mu.Lock()
	defer mu.Unlock()

	v, err := ulid.New(ulid.Timestamp(t.UTC()), entropy)
	if err != nil {
		return "", fmt.Errorf("id: %w", err)
	}
	return v.String(), nil
}

// Time extracts the timestamp encoded in a ULID string.
func Time(s string) (time.Time, error) {
	v, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(v.Time()).UTC(), nil
}
