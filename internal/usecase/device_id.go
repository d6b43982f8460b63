package usecase

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// deviceIDSource hands out ULIDs: a millisecond timestamp followed by 80 bits
// of entropy. ulid.Monotonic is not safe for concurrent use, hence the mutex.
type deviceIDSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func newDeviceIDSource(now func() time.Time) *deviceIDSource {
	if now == nil {
		now = time.Now
	}
	return &deviceIDSource{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     now,
	}
}

// Next returns a new 26-character identifier. Ids from one source are
// strictly increasing, even within the same millisecond.
func (s *deviceIDSource) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}
