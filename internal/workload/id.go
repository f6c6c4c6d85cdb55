package workload

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID generates a fresh workload id of the form "workload-<8 hex>": the
// low 4 bytes of a monotonic ULID, hex-encoded. Those bytes come from the
// ULID's random part, not its timestamp, so ids are not time-ordered.
func NewID() string {
	idMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy)
	idMu.Unlock()

	return fmt.Sprintf("workload-%s", hex.EncodeToString(id[len(id)-4:]))
}
