package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	PrefixUser    = "usr"
	PrefixRole    = "role"
	PrefixDevice  = "dev"
	PrefixCommand = "cmd"
	PrefixAlert   = "alt"
	PrefixRule    = "rule"
	PrefixAudit   = "log"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns "<prefix>_<ulid>". IDs with the same prefix sort by creation time.
func New(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id := strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
